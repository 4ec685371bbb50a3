package models

import "time"

// TaskSchedule is the computed view of one task inside a ScheduleSnapshot.
type TaskSchedule struct {
	TaskID         string     `json:"task_id"`
	Name           string     `json:"name"`
	ParentID       string     `json:"parent_id,omitempty"`
	Dependencies   []string   `json:"dependencies"` // Predecessor ids of explicit edges, sorted
	EarliestStart  time.Time  `json:"earliest_start"`
	EarliestFinish time.Time  `json:"earliest_finish"`
	LatestStart    time.Time  `json:"latest_start"`
	LatestFinish   time.Time  `json:"latest_finish"`
	DurationDays   int        `json:"duration_days"`
	TotalFloat     int        `json:"total_float"`
	OnCriticalPath bool       `json:"on_critical_path"`
	Progress       float64    `json:"progress"`
	Status         TaskStatus `json:"status"`
	BlockedBy      []string   `json:"blocked_by,omitempty"` // Predecessors of elapsed FS/SS windows not yet met
}

// ScheduleSnapshot is the derived schedule of a project. It is never stored; the service
// replaces it as a whole after every accepted mutation.
type ScheduleSnapshot struct {
	ProjectID     int64          `json:"project_id"`
	AsOf          time.Time      `json:"as_of"`
	ProjectStart  time.Time      `json:"project_start"`
	ProjectFinish time.Time      `json:"project_finish"`
	DurationDays  int            `json:"duration_days"`
	Tasks         []TaskSchedule `json:"tasks"`
	CriticalPath  []string       `json:"critical_path"`
	Warnings      []Warning      `json:"warnings,omitempty"`
}

// Task returns the schedule entry for id.
func (s *ScheduleSnapshot) Task(id string) (TaskSchedule, bool) {
	for _, ts := range s.Tasks {
		if ts.TaskID == id {
			return ts, true
		}
	}
	return TaskSchedule{}, false
}

// CriticalTasks returns every task with zero float, in snapshot order.
func (s *ScheduleSnapshot) CriticalTasks() []string {
	var ids []string
	for _, ts := range s.Tasks {
		if ts.OnCriticalPath {
			ids = append(ids, ts.TaskID)
		}
	}
	return ids
}
