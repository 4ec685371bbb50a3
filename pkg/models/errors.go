package models

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Error kinds returned by the scheduling engine. Every *ScheduleError unwraps to one of these,
// so callers branch with errors.Is.
var (
	ErrNotFound              = errors.New("not found")
	ErrUnknownTask           = errors.New("unknown task")
	ErrCrossProjectEdge      = errors.New("cross-project edge")
	ErrSelfDependency        = errors.New("self dependency")
	ErrDuplicateEdge         = errors.New("duplicate edge")
	ErrCycleDetected         = errors.New("cycle detected")
	ErrInvalidLag            = errors.New("invalid lag")
	ErrInternalInconsistency = errors.New("internal inconsistency")
	ErrInvalidDependencyType = errors.New("invalid dependency type")
	ErrInvalidTask           = errors.New("invalid task")
	ErrInvalidProject        = errors.New("invalid project")
	ErrDerivedProgress       = errors.New("progress is derived from subtasks")
	ErrTaskHasChildren       = errors.New("task has subtasks")
)

// ScheduleError carries the ids involved in a rejected mutation. Path is set for
// ErrCycleDetected and lists the cycle in edge order, starting and ending on the same task.
type ScheduleError struct {
	Kind    error
	TaskIDs []string
	Path    []string
	Message string
}

func (e *ScheduleError) Error() string {
	msg := e.Kind.Error()
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if len(e.Path) > 0 {
		msg = fmt.Sprintf("%s (%s)", msg, strings.Join(e.Path, " -> "))
	}
	return msg
}

func (e *ScheduleError) Unwrap() error {
	return e.Kind
}

// NewError builds a ScheduleError of the given kind with a formatted message.
func NewError(kind error, format string, args ...interface{}) *ScheduleError {
	return &ScheduleError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithTasks attaches the task ids the error is about.
func (e *ScheduleError) WithTasks(ids ...string) *ScheduleError {
	e.TaskIDs = append(e.TaskIDs, ids...)
	return e
}

// CycleError reports that adding an edge would close the given path into a cycle.
func CycleError(path []string) *ScheduleError {
	return &ScheduleError{
		Kind:    ErrCycleDetected,
		TaskIDs: uniqueIDs(path),
		Path:    path,
		Message: "dependency would create a cycle",
	}
}

// Warning is a non-blocking finding attached to a schedule snapshot.
type Warning struct {
	Kind    string   `json:"kind"`
	TaskIDs []string `json:"task_ids"`
	Message string   `json:"message"`
}

// InvalidLagWarning describes a constraint that lands before the project start.
func InvalidLagWarning(dep Dependency, constraint, projectStart string) Warning {
	return Warning{
		Kind:    ErrInvalidLag.Error(),
		TaskIDs: []string{dep.PredecessorID, dep.SuccessorID},
		Message: fmt.Sprintf("%s edge %s -> %s with lag %d constrains a date (%s) before the project start (%s)",
			dep.Type, dep.PredecessorID, dep.SuccessorID, dep.Lag, constraint, projectStart),
	}
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
