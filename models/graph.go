package models

// ProjectGraph is the full closure of one project: its types with their
// templates, serial numbers, answers and the audit entries scoped to it.
// Reports and archives are projections of this value.
type ProjectGraph struct {
	Project       Project
	Types         []ProjectType
	Segments      []Segment
	SerialNumbers []SerialNumber
	Answers       []Answer
	Changes       []AuditEntry
}
