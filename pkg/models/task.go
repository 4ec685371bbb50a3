package models

import (
	"strings"
	"time"
)

type TaskStatus string

const (
	ToDoTaskStatus       TaskStatus = "TODO"
	InProgressTaskStatus TaskStatus = "IN_PROGRESS"
	BlockedTaskStatus    TaskStatus = "BLOCKED"
	CompletedTaskStatus  TaskStatus = "COMPLETED"
	CancelledTaskStatus  TaskStatus = "CANCELLED"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case ToDoTaskStatus, InProgressTaskStatus, BlockedTaskStatus, CompletedTaskStatus, CancelledTaskStatus:
		return true
	}
	return false
}

// ParseTaskStatus accepts the stored form and the spellings used by the task forms
// ("To Do", "In Progress", ...).
func ParseTaskStatus(s string) (TaskStatus, bool) {
	norm := strings.ToUpper(strings.NewReplacer(" ", "_", "-", "_").Replace(strings.TrimSpace(s)))
	if norm == "TO_DO" {
		norm = string(ToDoTaskStatus)
	}
	st := TaskStatus(norm)
	return st, st.Valid()
}

type Priority string

const (
	LowPriority    Priority = "LOW"
	MediumPriority Priority = "MEDIUM"
	HighPriority   Priority = "HIGH"
	UrgentPriority Priority = "URGENT"
)

func (p Priority) Valid() bool {
	switch p {
	case LowPriority, MediumPriority, HighPriority, UrgentPriority:
		return true
	}
	return false
}

// Task represents a unit of site work on a project schedule
type Task struct {
	ID          string     `json:"id" db:"id"`                               // Caller-chosen key, unique across projects
	ProjectID   int64      `json:"project_id" db:"project_id"`               // Owning project (site)
	Name        string     `json:"name" db:"name"`                           // Descriptive name (e.g., "Pour foundation")
	Status      TaskStatus `json:"status" db:"status"`                       // Stored status; derived for parents
	Priority    Priority   `json:"priority" db:"priority"`                   // LOW, MEDIUM, HIGH, URGENT
	StartDate   time.Time  `json:"start_date" db:"start_date"`               // Planned start (whole day)
	DueDate     time.Time  `json:"due_date" db:"due_date"`                   // Planned finish (whole day)
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"` // Actual completion date
	Progress    float64    `json:"progress" db:"progress"`                   // 0-100, authoritative for leaves only
	ParentID    *string    `json:"parent_id,omitempty" db:"parent_id"`       // Optional containing task
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// Duration returns the planned length in whole days, never less than one.
func (t Task) Duration() int {
	return DurationDays(t.StartDate, t.DueDate)
}

// HasParent reports whether the task is contained in another task.
func (t Task) HasParent() bool {
	return t.ParentID != nil && *t.ParentID != ""
}
