// Package archive converts a project graph to and from the portable JSON
// archive document used by export-archive and import-json.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"checklist/apierr"
	"checklist/models"
	"checklist/report"

	"github.com/google/uuid"
)

const (
	CurrentVersion = "1.0.0"
	Producer       = "checklist"

	supportedMajor = 1
)

type Document struct {
	Meta          Meta           `json:"meta"`
	Project       Project        `json:"project"`
	Types         []Type         `json:"types"`
	Segments      []Segment      `json:"segments"`
	SerialNumbers []SerialNumber `json:"serial_numbers"`
	Answers       []Answer       `json:"answers"`
	Changes       []Change       `json:"changes"`
}

type Meta struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Producer   string    `json:"producer"`
}

type Project struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Type is one project type link. ID is the template type id.
type Type struct {
	ID              int64      `json:"id"`
	ProjectTypeID   *uuid.UUID `json:"project_type_id,omitempty"`
	Name            string     `json:"name"`
	RepetitionCount int        `json:"repetition_count"`
	CreatedAt       time.Time  `json:"created_at"`
}

type Segment struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	TypeID    int64      `json:"type_id"`
	Position  int        `json:"position"`
	Questions []Question `json:"questions"`
}

type Question struct {
	ID          int64               `json:"id"`
	Text        string              `json:"text"`
	Kind        models.QuestionKind `json:"kind"`
	Required    bool                `json:"required"`
	Description string              `json:"description"`
	Options     string              `json:"options"`
	Repeatable  bool                `json:"repeatable"`
	Position    int                 `json:"position"`
}

type SerialNumber struct {
	ID        uuid.UUID `json:"id"`
	Value     string    `json:"value"`
	TypeID    int64     `json:"type_id"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

type Answer struct {
	ID             uuid.UUID       `json:"id"`
	QuestionID     int64           `json:"question_id"`
	SerialNumberID uuid.UUID       `json:"serial_number_id"`
	Value          string          `json:"value"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Actor          *models.UserRef `json:"actor,omitempty"`
}

type Change struct {
	ID                uuid.UUID          `json:"id"`
	Timestamp         time.Time          `json:"timestamp"`
	SubjectKind       models.SubjectKind `json:"subject_kind"`
	SubjectID         string             `json:"subject_id"`
	ChangeDescription string             `json:"change_description"`
	OldValue          string             `json:"old_value"`
	NewValue          string             `json:"new_value"`
	Actor             *models.UserRef    `json:"actor,omitempty"`
}

// Build projects graph into a document. Lists are sorted so that two exports
// of an unchanged project differ only in Meta.ExportedAt.
func Build(graph *models.ProjectGraph, now time.Time) *Document {
	doc := &Document{
		Meta: Meta{Version: CurrentVersion, ExportedAt: now.UTC(), Producer: Producer},
		Project: Project{
			ID:        graph.Project.ID,
			OwnerID:   graph.Project.OwnerID,
			Date:      graph.Project.Date.Format(models.DateLayout),
			CreatedAt: graph.Project.CreatedAt.UTC(),
			UpdatedAt: graph.Project.UpdatedAt.UTC(),
		},
		Types:         []Type{},
		Segments:      []Segment{},
		SerialNumbers: []SerialNumber{},
		Answers:       []Answer{},
		Changes:       []Change{},
	}

	for _, pt := range graph.Types {
		ptID := pt.ID
		doc.Types = append(doc.Types, Type{
			ID:              pt.TypeID,
			ProjectTypeID:   &ptID,
			Name:            pt.TypeName,
			RepetitionCount: pt.RepetitionCount,
			CreatedAt:       pt.CreatedAt.UTC(),
		})
	}

	segments := append([]models.Segment(nil), graph.Segments...)
	sort.SliceStable(segments, func(i, j int) bool {
		if segments[i].TypeID != segments[j].TypeID {
			return segments[i].TypeID < segments[j].TypeID
		}
		if segments[i].Position != segments[j].Position {
			return segments[i].Position < segments[j].Position
		}
		return segments[i].ID < segments[j].ID
	})
	for _, s := range segments {
		seg := Segment{ID: s.ID, Name: s.Name, TypeID: s.TypeID, Position: s.Position, Questions: []Question{}}
		questions := append([]models.Question(nil), s.Questions...)
		sort.SliceStable(questions, func(i, j int) bool {
			if questions[i].Position != questions[j].Position {
				return questions[i].Position < questions[j].Position
			}
			return questions[i].ID < questions[j].ID
		})
		for _, q := range questions {
			seg.Questions = append(seg.Questions, Question{
				ID:          q.ID,
				Text:        q.Text,
				Kind:        q.Kind,
				Required:    q.Required,
				Description: q.Description,
				Options:     q.Options,
				Repeatable:  q.Repeatable,
				Position:    q.Position,
			})
		}
		doc.Segments = append(doc.Segments, seg)
	}

	for _, sn := range graph.SerialNumbers {
		doc.SerialNumbers = append(doc.SerialNumbers, SerialNumber{
			ID:        sn.ID,
			Value:     sn.Value,
			TypeID:    sn.TypeID,
			Position:  sn.Position,
			CreatedAt: sn.CreatedAt.UTC(),
		})
	}

	for _, a := range graph.Answers {
		doc.Answers = append(doc.Answers, Answer{
			ID:             a.ID,
			QuestionID:     a.QuestionID,
			SerialNumberID: a.SerialNumberID,
			Value:          a.Value,
			CreatedAt:      a.CreatedAt.UTC(),
			UpdatedAt:      a.UpdatedAt.UTC(),
			Actor:          a.Actor,
		})
	}
	sort.SliceStable(doc.Answers, func(i, j int) bool {
		if !doc.Answers[i].CreatedAt.Equal(doc.Answers[j].CreatedAt) {
			return doc.Answers[i].CreatedAt.Before(doc.Answers[j].CreatedAt)
		}
		return doc.Answers[i].ID.String() < doc.Answers[j].ID.String()
	})

	for _, c := range graph.Changes {
		doc.Changes = append(doc.Changes, Change{
			ID:                c.ID,
			Timestamp:         c.Timestamp.UTC(),
			SubjectKind:       c.SubjectKind,
			SubjectID:         c.SubjectID,
			ChangeDescription: c.ChangeDescription,
			OldValue:          c.OldValue,
			NewValue:          c.NewValue,
			Actor:             c.Actor,
		})
	}
	sort.SliceStable(doc.Changes, func(i, j int) bool {
		if !doc.Changes[i].Timestamp.Equal(doc.Changes[j].Timestamp) {
			return doc.Changes[i].Timestamp.Before(doc.Changes[j].Timestamp)
		}
		return doc.Changes[i].ID.String() < doc.Changes[j].ID.String()
	})

	return doc
}

func (d *Document) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

// Decode reads one document. Unknown fields are ignored so that newer minor
// versions stay importable.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &syntaxErr):
			return nil, apierr.Invalidf("archive is not valid JSON at offset %d", syntaxErr.Offset)
		case errors.As(err, &typeErr):
			return nil, apierr.Invalidf("archive field %q has the wrong type", typeErr.Field)
		case errors.Is(err, io.EOF):
			return nil, apierr.Invalidf("archive is empty")
		}
		return nil, apierr.Invalidf("failed to decode archive: %v", err)
	}
	return &doc, nil
}

// ParseVersion splits a "major.minor.patch" string. Missing minor or patch
// parts count as zero.
func ParseVersion(v string) (major, minor, patch int, err error) {
	parts := strings.Split(strings.TrimSpace(v), ".")
	if len(parts) == 0 || len(parts) > 3 || parts[0] == "" {
		return 0, 0, 0, fmt.Errorf("malformed version %q", v)
	}
	nums := [3]int{}
	for i, p := range parts {
		n, convErr := strconv.Atoi(p)
		if convErr != nil || n < 0 {
			return 0, 0, 0, fmt.Errorf("malformed version %q", v)
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2], nil
}

// Validate checks the version policy and the document's internal references.
// It does not look at the store.
func (d *Document) Validate() error {
	major, _, _, err := ParseVersion(d.Meta.Version)
	if err != nil {
		return apierr.Invalidf("archive version: %v", err)
	}
	if major != supportedMajor {
		return apierr.Invalidf("unsupported archive version %s (supported: %d.x)", d.Meta.Version, supportedMajor)
	}

	if strings.TrimSpace(d.Project.ID) == "" {
		return apierr.Invalidf("archive project id is empty")
	}
	if d.Project.Date != "" {
		if _, err := time.Parse(models.DateLayout, dateOnly(d.Project.Date)); err != nil {
			return apierr.Invalidf("archive project date %q is not a date", d.Project.Date)
		}
	}
	if d.Project.CreatedAt.IsZero() || d.Project.UpdatedAt.IsZero() {
		return apierr.Invalidf("archive project timestamps are missing")
	}

	types := map[int64]bool{}
	for i, t := range d.Types {
		if t.ID <= 0 {
			return apierr.Invalidf("types[%d]: id must be positive", i)
		}
		if types[t.ID] {
			return apierr.Invalidf("types[%d]: type %d listed twice", i, t.ID)
		}
		if t.RepetitionCount < 1 {
			return apierr.Invalidf("types[%d]: repetition_count must be at least 1", i)
		}
		types[t.ID] = true
	}

	// question id to the type of its segment
	questions := map[int64]int64{}
	for i, s := range d.Segments {
		if !types[s.TypeID] {
			return apierr.Invalidf("segments[%d]: type %d is not among the archive types", i, s.TypeID)
		}
		for j, q := range s.Questions {
			if !q.Kind.Valid() {
				return apierr.Invalidf("segments[%d].questions[%d]: unknown kind %q", i, j, q.Kind)
			}
			if _, ok := questions[q.ID]; ok {
				return apierr.Invalidf("segments[%d].questions[%d]: question %d listed twice", i, j, q.ID)
			}
			questions[q.ID] = s.TypeID
		}
	}

	// serial number id to its type
	serials := map[uuid.UUID]int64{}
	for i, sn := range d.SerialNumbers {
		if sn.ID == uuid.Nil {
			return apierr.Invalidf("serial_numbers[%d]: id is missing", i)
		}
		if _, ok := serials[sn.ID]; ok {
			return apierr.Invalidf("serial_numbers[%d]: id %s listed twice", i, sn.ID)
		}
		if !types[sn.TypeID] {
			return apierr.Invalidf("serial_numbers[%d]: type %d is not among the archive types", i, sn.TypeID)
		}
		serials[sn.ID] = sn.TypeID
	}

	answers := map[uuid.UUID]bool{}
	for i, a := range d.Answers {
		serialType, ok := serials[a.SerialNumberID]
		if !ok {
			return apierr.Invalidf("answers[%d]: serial number %s is not in the archive", i, a.SerialNumberID)
		}
		questionType, ok := questions[a.QuestionID]
		if !ok {
			return apierr.Invalidf("answers[%d]: question %d is not in the archive", i, a.QuestionID)
		}
		if questionType != serialType {
			return apierr.Invalidf("answers[%d]: question %d belongs to type %d, serial number %s to type %d",
				i, a.QuestionID, questionType, a.SerialNumberID, serialType)
		}
		if a.ID != uuid.Nil && answers[a.ID] {
			return apierr.Invalidf("answers[%d]: id %s listed twice", i, a.ID)
		}
		answers[a.ID] = true
	}

	return nil
}

// ProjectDate returns the project date without any time suffix.
func (d *Document) ProjectDate() string {
	return dateOnly(d.Project.Date)
}

// Filename is the attachment name of an exported archive. The project id is
// free text, so the name goes through report.SanitizeFilename.
func Filename(projectID string, now time.Time) string {
	return report.SanitizeFilename(fmt.Sprintf("Project_%s_archive_%s.json", projectID, now.Format("20060102_150405")))
}

func dateOnly(s string) string {
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		return s[:i]
	}
	return s
}
