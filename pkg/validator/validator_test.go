package validator_test

import (
	"context"
	"testing"
	"time"

	"github.com/ignatij/goschedule/pkg/cpm"
	"github.com/ignatij/goschedule/pkg/graph"
	"github.com/ignatij/goschedule/pkg/models"
	"github.com/ignatij/goschedule/pkg/validator"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var projectStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func task(id string, startOffset, days int) models.Task {
	s := projectStart.AddDate(0, 0, startOffset)
	return models.Task{
		ID: id, ProjectID: 1, Name: "Task " + id,
		Status: models.ToDoTaskStatus, Priority: models.MediumPriority,
		StartDate: s, DueDate: s.AddDate(0, 0, days),
	}
}

func child(id, parent string) models.Task {
	t := task(id, 0, 1)
	t.ParentID = &parent
	return t
}

func dep(pred, succ string, typ models.DependencyType, lag int) models.Dependency {
	return models.Dependency{ID: pred + "-" + succ, ProjectID: 1, PredecessorID: pred, SuccessorID: succ, Type: typ, Lag: lag}
}

func build(t *testing.T, tasks []models.Task, deps ...models.Dependency) *graph.Graph {
	t.Helper()
	g, err := graph.Build(1, tasks, deps)
	require.NoError(t, err)
	return g
}

func scheduleError(t *testing.T, err error) *models.ScheduleError {
	t.Helper()
	var se *models.ScheduleError
	require.True(t, errors.As(err, &se), "expected *models.ScheduleError, got %v", err)
	return se
}

type finder map[string]models.Task

func (f finder) FindTask(_ context.Context, id string) (models.Task, error) {
	if t, ok := f[id]; ok {
		return t, nil
	}
	return models.Task{}, models.ErrNotFound
}

func TestValidateEdge(t *testing.T) {
	ctx := context.Background()
	foreign := task("foreign", 0, 1)
	foreign.ProjectID = 2
	v := validator.New(finder{"foreign": foreign})

	g := build(t, []models.Task{task("a", 0, 1), task("b", 0, 1), task("c", 0, 1), task("p", 0, 1), child("k", "p")},
		dep("a", "b", models.FinishToStart, 0),
		dep("b", "c", models.StartToStart, 0))

	tests := []struct {
		name string
		edge models.Dependency
		kind error
	}{
		{"valid", dep("a", "c", models.FinishToFinish, 3), nil},
		{"negative lag", dep("c", "p", models.FinishToStart, -5), nil},
		{"same pair other type", dep("a", "b", models.StartToStart, 0), nil},
		{"self", dep("a", "a", models.FinishToStart, 0), models.ErrSelfDependency},
		{"unknown type", dep("a", "c", "XX", 0), models.ErrInvalidDependencyType},
		{"unknown task", dep("a", "ghost", models.FinishToStart, 0), models.ErrUnknownTask},
		{"other project", dep("a", "foreign", models.FinishToStart, 0), models.ErrCrossProjectEdge},
		{"duplicate", dep("a", "b", models.FinishToStart, 4), models.ErrDuplicateEdge},
		{"cycle", dep("c", "a", models.FinishToStart, 0), models.ErrCycleDetected},
		{"cycle through containment", dep("k", "p", models.FinishToStart, 0), models.ErrCycleDetected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateEdge(ctx, g, tt.edge)
			if tt.kind == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, scheduleError(t, err).Kind, tt.kind)
		})
	}

	t.Run("CyclePath", func(t *testing.T) {
		se := scheduleError(t, v.ValidateEdge(ctx, g, dep("c", "a", models.FinishToStart, 0)))
		assert.Equal(t, []string{"c", "a", "b", "c"}, se.Path)
		assert.ElementsMatch(t, []string{"a", "b", "c"}, se.TaskIDs)
		assert.Contains(t, se.Error(), "c -> a -> b -> c")
	})

	t.Run("LeavesGraphUntouched", func(t *testing.T) {
		before := len(g.Edges())
		_ = v.ValidateEdge(ctx, g, dep("c", "a", models.FinishToStart, 0))
		_ = v.ValidateEdge(ctx, g, dep("a", "c", models.FinishToStart, 0))
		assert.Len(t, g.Edges(), before)
	})
}

func TestValidateParent(t *testing.T) {
	ctx := context.Background()
	v := validator.New(nil)
	g := build(t, []models.Task{task("p", 0, 1), child("c", "p"), task("x", 0, 1)},
		dep("x", "p", models.FinishToStart, 0))

	strPtr := func(s string) *string { return &s }

	assert.NoError(t, v.ValidateParent(ctx, g, "x", nil), "detaching is always allowed")
	assert.NoError(t, v.ValidateParent(ctx, g, "c", strPtr("p")), "unchanged parent")
	assert.NoError(t, v.ValidateParent(ctx, g, "c", strPtr("x")))

	se := scheduleError(t, v.ValidateParent(ctx, g, "p", strPtr("c")))
	assert.ErrorIs(t, se, models.ErrCycleDetected)
	assert.Equal(t, []string{"c", "p", "c"}, se.Path)

	se = scheduleError(t, v.ValidateParent(ctx, g, "x", strPtr("c")))
	assert.ErrorIs(t, se, models.ErrCycleDetected, "x already precedes c through p")

	assert.ErrorIs(t, v.ValidateParent(ctx, g, "x", strPtr("x")), models.ErrSelfDependency)
	assert.ErrorIs(t, v.ValidateParent(ctx, g, "ghost", nil), models.ErrUnknownTask)
	assert.ErrorIs(t, v.ValidateParent(ctx, g, "x", strPtr("ghost")), models.ErrUnknownTask)
}

func TestValidateTask(t *testing.T) {
	ctx := context.Background()
	v := validator.New(nil)
	g := build(t, []models.Task{task("p", 0, 1)})

	long := make([]byte, 201)
	for i := range long {
		long[i] = 'x'
	}

	tests := []struct {
		name   string
		mutate func(*models.Task)
		kind   error
	}{
		{"valid", func(*models.Task) {}, nil},
		{"same day", func(t *models.Task) { t.DueDate = t.StartDate }, nil},
		{"blank name", func(t *models.Task) { t.Name = "  " }, models.ErrInvalidTask},
		{"long name", func(t *models.Task) { t.Name = string(long) }, models.ErrInvalidTask},
		{"due before start", func(t *models.Task) { t.DueDate = t.StartDate.AddDate(0, 0, -1) }, models.ErrInvalidTask},
		{"missing dates", func(t *models.Task) { t.StartDate = time.Time{} }, models.ErrInvalidTask},
		{"progress", func(t *models.Task) { t.Progress = 101 }, models.ErrInvalidTask},
		{"status", func(t *models.Task) { t.Status = "DONE" }, models.ErrInvalidTask},
		{"priority", func(t *models.Task) { t.Priority = "" }, models.ErrInvalidTask},
		{"unknown parent", func(t *models.Task) { p := "ghost"; t.ParentID = &p }, models.ErrUnknownTask},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := task("n", 0, 2)
			tt.mutate(&tk)
			err := v.ValidateTask(ctx, g, tk)
			if tt.kind == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestFindPath(t *testing.T) {
	g := build(t, []models.Task{task("a", 0, 1), task("b", 0, 1), task("c", 0, 1), task("d", 0, 1)},
		dep("a", "b", models.FinishToStart, 0),
		dep("b", "c", models.FinishToStart, 0),
		dep("a", "c", models.FinishToStart, 0))

	assert.Equal(t, []string{"a", "b", "c"}, validator.FindPath(g, "a", "c"))
	assert.Equal(t, []string{"a"}, validator.FindPath(g, "a", "a"))
	assert.Nil(t, validator.FindPath(g, "c", "a"))
	assert.Nil(t, validator.FindPath(g, "a", "d"))
	assert.Nil(t, validator.FindPath(g, "a", "ghost"))
	assert.Equal(t, []string{"b", "c"}, validator.FindPath(g, "b", "c"))
	assert.Nil(t, validator.FindPath(g, "d", "a"))
}

func TestCheckLag(t *testing.T) {
	g := build(t, []models.Task{task("a", 0, 2), task("b", 0, 3)})
	res, err := cpm.Calculate(g, cpm.Options{})
	require.NoError(t, err)

	assert.Nil(t, validator.CheckLag(dep("a", "b", models.FinishToStart, -2), res, projectStart))

	w := validator.CheckLag(dep("a", "b", models.StartToStart, -3), res, projectStart)
	require.NotNil(t, w)
	assert.Equal(t, models.ErrInvalidLag.Error(), w.Kind)
	assert.Equal(t, []string{"a", "b"}, w.TaskIDs)
	assert.Contains(t, w.Message, "2023-12-29")

	w = validator.CheckLag(dep("a", "b", models.StartToFinish, 0), res, projectStart)
	require.NotNil(t, w, "SF with zero lag starts b before a")

	assert.Nil(t, validator.CheckLag(dep("a", "b", models.FinishToStart, 0), nil, projectStart))
}
