package models

import (
	"time"

	"github.com/google/uuid"
)

// SubjectKind names the entity an audit entry describes.
type SubjectKind string

const (
	SubjectProject      SubjectKind = "project"
	SubjectProjectType  SubjectKind = "project_type"
	SubjectSerialNumber SubjectKind = "serial_number"
	SubjectAnswer       SubjectKind = "answer"
	SubjectType         SubjectKind = "type"
	SubjectUser         SubjectKind = "user"
)

// AuditEntry records one change. The subject is an explicit (kind, id)
// reference; ProjectID is set for every change scoped to a project.
type AuditEntry struct {
	ID                uuid.UUID   `json:"id" db:"id"`
	Timestamp         time.Time   `json:"timestamp" db:"timestamp"`
	SubjectKind       SubjectKind `json:"subject_kind" db:"subject_kind"`
	SubjectID         string      `json:"subject_id" db:"subject_id"`
	ProjectID         *string     `json:"project_id,omitempty" db:"project_id"`
	ChangeDescription string      `json:"change_description" db:"change_description"`
	OldValue          string      `json:"old_value" db:"old_value"`
	NewValue          string      `json:"new_value" db:"new_value"`
	ActorID           *int64      `json:"actor_id,omitempty" db:"actor_id"`
	Actor             *UserRef    `json:"actor,omitempty"`
	Rank              *float64    `json:"rank,omitempty"` // Only populated for search results
}

// AuditQueryParams filters the audit log listing. Times are RFC3339.
type AuditQueryParams struct {
	SubjectKind string `form:"subject_kind"`
	SubjectID   string `form:"subject_id"`
	ProjectID   string `form:"project_id"`
	ActorID     int64  `form:"actor_id"`
	StartTime   string `form:"start_time"`
	EndTime     string `form:"end_time"`
	Limit       int    `form:"limit"`
	Offset      int    `form:"offset"`
	Search      string `form:"search"`
}

type AuditLogResponse struct {
	Entries     []AuditEntry `json:"entries"`
	Total       int64        `json:"total"`
	Limit       int          `json:"limit"`
	Offset      int          `json:"offset"`
	HasMore     bool         `json:"has_more"`
	QueryTimeMs *int64       `json:"query_time_ms,omitempty"`
}
