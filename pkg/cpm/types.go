package cpm

import "time"

// TaskSchedule holds the computed dates of one task as day numbers
// (see models.DayNumber). Finish values are exclusive: EF = ES + Duration.
type TaskSchedule struct {
	TaskID     string
	Duration   int
	ES, EF     int // earliest start/finish
	LS, LF     int // latest start/finish
	Float      int
	IsCritical bool
}

// Result holds the complete critical path analysis of a project.
type Result struct {
	Tasks         map[string]*TaskSchedule
	Order         []string // topological order of the combined graph
	Start         int      // min ES over all tasks
	Finish        int      // max EF over all tasks
	Critical      []string // every zero-float task, in topological order
	CriticalChain []string // the single chain ending at the latest-finishing critical task
}

// Options tune the backward pass.
type Options struct {
	// ProjectEnd, when set, is the earliest latest-finish any sink task may have.
	ProjectEnd *time.Time
}
