package models

import (
	"time"

	"github.com/google/uuid"
)

// Answer is the value recorded for one Question against one SerialNumber.
// There is at most one answer per (question, serial number); writes upsert.
type Answer struct {
	ID             uuid.UUID `json:"id" db:"id"`
	QuestionID     int64     `json:"question_id" db:"question_id"`
	SerialNumberID uuid.UUID `json:"serial_number_id" db:"serial_number_id"`
	Value          string    `json:"value" db:"value"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
	Actor          *UserRef  `json:"actor,omitempty"`
}

type AnswerRequest struct {
	QuestionID     int64     `json:"question_id" binding:"required,min=1"`
	SerialNumberID uuid.UUID `json:"serial_number_id" binding:"required"`
	Value          string    `json:"value"`
}

type UpdateAnswerRequest struct {
	Value string `json:"value"`
}
