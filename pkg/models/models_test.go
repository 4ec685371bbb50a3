package models_test

import (
	"testing"
	"time"

	"github.com/ignatij/goschedule/pkg/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDates(t *testing.T) {
	t.Run("DayNumberRoundTrip", func(t *testing.T) {
		d := time.Date(2024, 2, 29, 17, 45, 0, 0, time.UTC)
		n := models.DayNumber(d)
		assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), models.FromDayNumber(n))
		assert.Equal(t, 0, models.DayNumber(time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("DurationDays", func(t *testing.T) {
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, 3, models.DurationDays(start, start.AddDate(0, 0, 3)))
		assert.Equal(t, 1, models.DurationDays(start, start), "zero-length tasks take a day")
		assert.Equal(t, 1, models.DurationDays(start, start.AddDate(0, 0, -2)))
	})

	t.Run("ParseDate", func(t *testing.T) {
		d, err := models.ParseDate("2024-03-10")
		require.NoError(t, err)
		assert.Equal(t, "2024-03-10", d.Format(models.DateLayout))

		d, err = models.ParseDate("2024-03-10T22:15:00Z")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), d)

		_, err = models.ParseDate("10/03/2024")
		assert.Error(t, err)
	})
}

func TestParseDependencyType(t *testing.T) {
	tests := []struct {
		in   string
		want models.DependencyType
	}{
		{"", models.FinishToStart},
		{"fs", models.FinishToStart},
		{"Finish-to-Start", models.FinishToStart},
		{"start_to_start", models.StartToStart},
		{" FF ", models.FinishToFinish},
		{"Start to Finish", models.StartToFinish},
	}
	for _, tt := range tests {
		got, err := models.ParseDependencyType(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := models.ParseDependencyType("XX")
	assert.ErrorIs(t, err, models.ErrInvalidDependencyType)
	assert.False(t, models.DependencyType("XX").Valid())
}

func TestParseTaskStatus(t *testing.T) {
	for in, want := range map[string]models.TaskStatus{
		"To Do":       models.ToDoTaskStatus,
		"TODO":        models.ToDoTaskStatus,
		"in progress": models.InProgressTaskStatus,
		"Completed":   models.CompletedTaskStatus,
		"cancelled":   models.CancelledTaskStatus,
	} {
		got, ok := models.ParseTaskStatus(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := models.ParseTaskStatus("done")
	assert.False(t, ok)
}

func TestTask(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	task := models.Task{StartDate: start, DueDate: start.AddDate(0, 0, 5)}
	assert.Equal(t, 5, task.Duration())
	assert.False(t, task.HasParent())

	parent := "P"
	task.ParentID = &parent
	assert.True(t, task.HasParent())
}

func TestScheduleError(t *testing.T) {
	t.Run("Unwrap", func(t *testing.T) {
		err := models.NewError(models.ErrUnknownTask, "task '%s' does not exist", "X").WithTasks("X")
		assert.True(t, errors.Is(err, models.ErrUnknownTask))
		assert.Equal(t, "unknown task: task 'X' does not exist", err.Error())
		assert.Equal(t, []string{"X"}, err.TaskIDs)
	})

	t.Run("Cycle", func(t *testing.T) {
		err := models.CycleError([]string{"A", "B", "A"})
		assert.ErrorIs(t, err, models.ErrCycleDetected)
		assert.Equal(t, []string{"A", "B"}, err.TaskIDs)
		assert.Equal(t, "cycle detected: dependency would create a cycle (A -> B -> A)", err.Error())

		var se *models.ScheduleError
		var wrapped error = err
		require.True(t, errors.As(wrapped, &se))
		assert.Equal(t, []string{"A", "B", "A"}, se.Path)
	})

	t.Run("InvalidLagWarning", func(t *testing.T) {
		dep := models.Dependency{PredecessorID: "A", SuccessorID: "B", Type: models.StartToStart, Lag: -3}
		w := models.InvalidLagWarning(dep, "2023-12-29", "2024-01-01")
		assert.Equal(t, "invalid lag", w.Kind)
		assert.Equal(t, []string{"A", "B"}, w.TaskIDs)
		assert.Contains(t, w.Message, "SS edge A -> B with lag -3")
	})
}

func TestSnapshot(t *testing.T) {
	snap := &models.ScheduleSnapshot{Tasks: []models.TaskSchedule{
		{TaskID: "A", OnCriticalPath: true},
		{TaskID: "B"},
		{TaskID: "C", OnCriticalPath: true},
	}}
	assert.Equal(t, []string{"A", "C"}, snap.CriticalTasks())
	b, ok := snap.Task("B")
	require.True(t, ok)
	assert.Equal(t, "B", b.TaskID)
	_, ok = snap.Task("Z")
	assert.False(t, ok)
}
