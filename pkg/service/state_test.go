package service

import (
	"context"
	"testing"
	"time"

	"github.com/ignatij/goschedule/pkg/models"
	"github.com/ignatij/goschedule/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

func TestProjectStateIsNotKeptForMissingProjects(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := NewScheduleService(storage.NewMockStore(), nopLogger{},
		WithClock(func() time.Time { return start }))

	for id := int64(100); id < 150; id++ {
		_, err := svc.GetSchedule(ctx, id)
		assert.ErrorIs(t, err, models.ErrNotFound)
	}
	_, _, err := svc.ProposeTask(ctx, 999, models.Task{ID: "A", Name: "A", StartDate: start, DueDate: start.AddDate(0, 0, 1)})
	assert.ErrorIs(t, err, models.ErrNotFound)
	snapshots, err := svc.RefreshSchedules(ctx, 998)
	require.NoError(t, err)
	assert.Empty(t, snapshots)
	assert.Empty(t, svc.projects)

	projectID, err := svc.CreateProject(ctx, "Site", start, nil)
	require.NoError(t, err)
	_, _, err = svc.ProposeTask(ctx, projectID, models.Task{ID: "A", Name: "A", StartDate: start, DueDate: start.AddDate(0, 0, 1)})
	require.NoError(t, err)
	snap, err := svc.GetSchedule(ctx, projectID)
	require.NoError(t, err)
	assert.Len(t, svc.projects, 1)
	assert.Same(t, snap, svc.lookup(projectID).snapshot.Load())
}
