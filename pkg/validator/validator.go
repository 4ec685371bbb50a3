// Package validator is the gatekeeper for every graph-altering mutation. It checks a
// proposed task, dependency or parent link against the current graph and reports the first
// violated invariant as a *models.ScheduleError.
package validator

import (
	"context"
	"strings"
	"time"

	"github.com/ignatij/goschedule/pkg/cpm"
	"github.com/ignatij/goschedule/pkg/graph"
	"github.com/ignatij/goschedule/pkg/models"
	"github.com/pkg/errors"
)

const maxTaskNameLen = 200

// TaskFinder looks a task up across all projects. It lets the validator tell a task of
// another project apart from one that does not exist at all.
type TaskFinder interface {
	FindTask(ctx context.Context, id string) (models.Task, error)
}

type Validator struct {
	finder TaskFinder
}

// New returns a Validator. finder may be nil, in which case every id missing from the
// graph is reported as ErrUnknownTask.
func New(finder TaskFinder) *Validator {
	return &Validator{finder: finder}
}

// ValidateTask checks the attributes of a new or updated task.
func (v *Validator) ValidateTask(ctx context.Context, g *graph.Graph, t models.Task) error {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return models.NewError(models.ErrInvalidTask, "task name cannot be empty").WithTasks(t.ID)
	}
	if len(name) > maxTaskNameLen {
		return models.NewError(models.ErrInvalidTask, "task name too long (max %d characters)", maxTaskNameLen).WithTasks(t.ID)
	}
	if t.StartDate.IsZero() || t.DueDate.IsZero() {
		return models.NewError(models.ErrInvalidTask, "start and due dates are required").WithTasks(t.ID)
	}
	if models.DayNumber(t.DueDate) < models.DayNumber(t.StartDate) {
		return models.NewError(models.ErrInvalidTask, "due date %s is before start date %s",
			t.DueDate.Format(models.DateLayout), t.StartDate.Format(models.DateLayout)).WithTasks(t.ID)
	}
	if t.Progress < 0 || t.Progress > 100 {
		return models.NewError(models.ErrInvalidTask, "progress %.1f outside 0-100", t.Progress).WithTasks(t.ID)
	}
	if !t.Status.Valid() {
		return models.NewError(models.ErrInvalidTask, "invalid status '%s'", t.Status).WithTasks(t.ID)
	}
	if !t.Priority.Valid() {
		return models.NewError(models.ErrInvalidTask, "invalid priority '%s'", t.Priority).WithTasks(t.ID)
	}
	if t.HasParent() && !g.Has(*t.ParentID) {
		return v.missing(ctx, g, *t.ParentID)
	}
	return nil
}

// ValidateEdge checks a proposed dependency. A cycle is reported with the offending path
// predecessor -> successor -> ... -> predecessor.
func (v *Validator) ValidateEdge(ctx context.Context, g *graph.Graph, d models.Dependency) error {
	if !d.Type.Valid() {
		return models.NewError(models.ErrInvalidDependencyType, "unknown dependency type '%s'", d.Type)
	}
	if d.PredecessorID == d.SuccessorID {
		return models.NewError(models.ErrSelfDependency, "task %s cannot depend on itself", d.PredecessorID).
			WithTasks(d.PredecessorID)
	}
	for _, id := range []string{d.PredecessorID, d.SuccessorID} {
		if !g.Has(id) {
			return v.missing(ctx, g, id)
		}
	}
	if dup := g.FindEdge(d.PredecessorID, d.SuccessorID, d.Type); dup != nil {
		return models.NewError(models.ErrDuplicateEdge, "%s dependency %s -> %s already exists",
			d.Type, d.PredecessorID, d.SuccessorID).WithTasks(d.PredecessorID, d.SuccessorID)
	}
	if path := FindPath(g, d.SuccessorID, d.PredecessorID); path != nil {
		return models.CycleError(append([]string{d.PredecessorID}, path...))
	}
	return nil
}

// ValidateParent checks moving taskID under parentID. A nil parent detaches the task and is
// always acceptable for a known task.
func (v *Validator) ValidateParent(ctx context.Context, g *graph.Graph, taskID string, parentID *string) error {
	if !g.Has(taskID) {
		return v.missing(ctx, g, taskID)
	}
	if parentID == nil || *parentID == "" {
		return nil
	}
	parent := *parentID
	if parent == taskID {
		return models.NewError(models.ErrSelfDependency, "task %s cannot be its own parent", taskID).WithTasks(taskID)
	}
	if !g.Has(parent) {
		return v.missing(ctx, g, parent)
	}
	if g.Parent(taskID) == parent {
		return nil
	}
	if path := FindPath(g, taskID, parent); path != nil {
		return models.CycleError(append([]string{parent}, path...))
	}
	return nil
}

// CheckLag reports, as a warning, a dependency whose constraint puts its successor before
// the project start. Negative lag is never rejected.
func CheckLag(d models.Dependency, res *cpm.Result, projectStart time.Time) *models.Warning {
	if res == nil {
		return nil
	}
	bound, ok := res.StartBound(graph.Link{
		From: d.PredecessorID, To: d.SuccessorID, Type: d.Type, Lag: d.Lag, EdgeID: d.ID,
	})
	if !ok || bound >= models.DayNumber(projectStart) {
		return nil
	}
	w := models.InvalidLagWarning(d,
		models.FromDayNumber(bound).Format(models.DateLayout),
		models.Day(projectStart).Format(models.DateLayout))
	return &w
}

// missing classifies an id absent from the graph as belonging to another project or
// not existing at all.
func (v *Validator) missing(ctx context.Context, g *graph.Graph, id string) error {
	if v.finder != nil {
		t, err := v.finder.FindTask(ctx, id)
		switch {
		case err == nil && t.ProjectID != g.ProjectID:
			return models.NewError(models.ErrCrossProjectEdge, "task %s belongs to project %d, not %d",
				id, t.ProjectID, g.ProjectID).WithTasks(id)
		case err != nil && !errors.Is(err, models.ErrNotFound):
			return err
		}
	}
	return models.NewError(models.ErrUnknownTask, "task %s does not exist in project %d", id, g.ProjectID).WithTasks(id)
}
