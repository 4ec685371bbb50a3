package models

import "time"

// MutationLog records every accepted schedule mutation for auditing.
type MutationLog struct {
	ID        int64     `json:"id" db:"id"`                     // Auto-incremented log ID
	ProjectID int64     `json:"project_id" db:"project_id"`     // Project the mutation applied to
	Operation string    `json:"operation" db:"operation"`       // e.g. "propose_edge"
	Subject   string    `json:"subject" db:"subject"`           // Task or dependency ID
	Message   string    `json:"message,omitempty" db:"message"` // Human readable detail
	LoggedAt  time.Time `json:"logged_at" db:"logged_at"`
}

const (
	OpCreateTask = "create_task"
	OpUpdateTask = "update_task"
	OpDeleteTask = "delete_task"
	OpAddEdge    = "propose_edge"
	OpRemoveEdge = "remove_edge"
	OpSetParent  = "set_parent"
)
