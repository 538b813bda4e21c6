package models

import (
	"time"

	"github.com/google/uuid"
)

// SerialNumber is one repetition slot of a ProjectType; answers are recorded against it.
// TypeID is resolved through the project type when the row is read.
type SerialNumber struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Value         string    `json:"value" db:"value"`
	ProjectID     string    `json:"project_id" db:"project_id"`
	ProjectTypeID uuid.UUID `json:"project_type_id" db:"project_type_id"`
	TypeID        int64     `json:"type_id" db:"type_id"`
	Position      int       `json:"position" db:"position"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

type UpdateSerialNumberRequest struct {
	Value string `json:"value" binding:"required,max=255"`
}
