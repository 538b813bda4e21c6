package models

import "github.com/google/uuid"

// Listing filters. A nil field means "no narrowing on that axis".

type SegmentFilter struct {
	TypeID    *int64
	ProjectID *string
}

type QuestionFilter struct {
	TypeID    *int64
	ProjectID *string
	SegmentID *int64
}

type SerialNumberFilter struct {
	ProjectID *string
	TypeID    *int64
}

type AnswerFilter struct {
	SerialNumberID *uuid.UUID
	QuestionID     *int64
	ProjectID      *string
	TypeID         *int64
}
