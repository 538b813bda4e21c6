package models

import "time"

// QuestionKind is the answer widget a question expects.
type QuestionKind string

const (
	KindBoolean        QuestionKind = "boolean"
	KindText           QuestionKind = "text"
	KindNumber         QuestionKind = "number"
	KindMultipleChoice QuestionKind = "multiple_choice"
)

func (k QuestionKind) Valid() bool {
	switch k {
	case KindBoolean, KindText, KindNumber, KindMultipleChoice:
		return true
	}
	return false
}

// Type is a reusable checklist template.
type Type struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type TypeRequest struct {
	Name string `json:"name" binding:"required,max=255"`
}

// Segment groups questions inside a Type. Questions is only populated
// when a caller loads the full template.
type Segment struct {
	ID        int64      `json:"id" db:"id"`
	TypeID    int64      `json:"type_id" db:"type_id"`
	Name      string     `json:"name" db:"name"`
	Position  int        `json:"position" db:"position"`
	Questions []Question `json:"questions,omitempty"`
}

type SegmentRequest struct {
	TypeID   int64  `json:"type_id" binding:"required,min=1"`
	Name     string `json:"name" binding:"required,max=255"`
	Position int    `json:"position"`
}

// Question belongs to exactly one Segment. Options is a comma-separated
// list used by multiple_choice questions.
type Question struct {
	ID          int64        `json:"id" db:"id"`
	SegmentID   int64        `json:"segment_id" db:"segment_id"`
	Text        string       `json:"text" db:"text"`
	Kind        QuestionKind `json:"kind" db:"kind"`
	Required    bool         `json:"required" db:"required"`
	Description string       `json:"description" db:"description"`
	Options     string       `json:"options" db:"options"`
	Repeatable  bool         `json:"repeatable" db:"repeatable"`
	Position    int          `json:"position" db:"position"`
}

type QuestionRequest struct {
	SegmentID   int64        `json:"segment_id" binding:"required,min=1"`
	Text        string       `json:"text" binding:"required"`
	Kind        QuestionKind `json:"kind" binding:"required"`
	Required    bool         `json:"required"`
	Description string       `json:"description"`
	Options     string       `json:"options"`
	Repeatable  bool         `json:"repeatable"`
	Position    int          `json:"position"`
}

// TemplateRow is one parsed line of an uploaded template sheet.
type TemplateRow struct {
	Segment     string
	Question    string
	Kind        QuestionKind
	Required    bool
	Description string
	Options     string
	Repeatable  bool
}
