package models

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire format of Project.Date.
const DateLayout = "2006-01-02"

// Project is one unit of inspection work. Its ID is chosen by the caller
// and never generated by the store.
type Project struct {
	ID        string        `json:"id" db:"id"`
	OwnerID   string        `json:"owner_id" db:"owner_id"`
	Date      time.Time     `json:"date" db:"date"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
	Types     []ProjectType `json:"types,omitempty"`
}

// ProjectType links a Project to a Type with the number of repetitions
// (serial numbers) the project needs for that type.
type ProjectType struct {
	ID              uuid.UUID `json:"id" db:"id"`
	ProjectID       string    `json:"project_id" db:"project_id"`
	TypeID          int64     `json:"type_id" db:"type_id"`
	TypeName        string    `json:"type_name" db:"type_name"`
	RepetitionCount int       `json:"repetition_count" db:"repetition_count"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	SerialNumbers   []string  `json:"serial_numbers,omitempty"`
}

// CreateProjectRequest creates a project, or adds another type to an existing one.
// Date uses DateLayout; RepetitionCount defaults to 1.
type CreateProjectRequest struct {
	ID              string `json:"id" binding:"required,max=100"`
	OwnerID         string `json:"owner_id" binding:"max=100"`
	Date            string `json:"date"`
	TypeID          int64  `json:"type_id" binding:"required,min=1"`
	RepetitionCount int    `json:"repetition_count" binding:"min=0,max=1000"`
}

type UpdateProjectRequest struct {
	OwnerID string `json:"owner_id" binding:"max=100"`
	Date    string `json:"date" binding:"required"`
}

// ProjectsResponse is the standard response format for project listings.
type ProjectsResponse struct {
	Projects []Project `json:"projects"`
	Total    int       `json:"total"`
}

// ProjectTypesResponse lists the types of one project with their serial values.
type ProjectTypesResponse struct {
	ProjectID string        `json:"project_id"`
	Types     []ProjectType `json:"types"`
}
