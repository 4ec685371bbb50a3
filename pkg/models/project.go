package models

import "time"

// Project is a construction site whose tasks form one schedule.
type Project struct {
	ID        int64      `json:"id" db:"id"`                 // Unique identifier (auto-increment)
	Name      string     `json:"name" db:"name"`             // Site name (e.g., "Riverside Block C")
	StartDate time.Time  `json:"start_date" db:"start_date"` // Earliest possible start of any task
	EndDate   *time.Time `json:"end_date,omitempty" db:"end_date"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	Tasks     []Task     `json:"tasks,omitempty"` // Populated at runtime
}
