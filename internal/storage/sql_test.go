package storage_test

import (
	"context"
	"testing"
	"time"

	internal_storage "github.com/ignatij/goschedule/internal/storage"
	"github.com/ignatij/goschedule/internal/testutil"
	"github.com/ignatij/goschedule/pkg/models"
	"github.com/ignatij/goschedule/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore(t *testing.T) {
	store := testutil.NewSQLiteStore(t)
	assert.Equal(t, internal_storage.DriverSQLite, store.Driver())
	runStoreSuite(t, func(t *testing.T) storage.Store { return txStore(t, store) })
}

func TestPostgresStore(t *testing.T) {
	testDB := testutil.SetupTestDB(t)
	defer testDB.Teardown(t)

	store := testDB.Store(t)
	runStoreSuite(t, func(t *testing.T) storage.Store { return txStore(t, store) })
}

func TestMockStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) storage.Store { return storage.NewMockStore() })
}

// txStore runs a subtest inside a transaction that is rolled back afterwards.
func txStore(t *testing.T, store storage.Store) storage.Store {
	tx, err := store.Begin()
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback() })
	return tx
}

func day(s string) time.Time {
	t, _ := time.Parse(models.DateLayout, s)
	return t
}

func runStoreSuite(t *testing.T, newStore func(t *testing.T) storage.Store) {
	ctx := context.Background()

	saveProject := func(t *testing.T, store storage.Store, name string, createdAt time.Time) int64 {
		id, err := store.SaveProject(ctx, models.Project{
			Name:      name,
			StartDate: day("2024-01-01"),
			CreatedAt: createdAt,
			UpdatedAt: createdAt,
		})
		require.NoError(t, err)
		require.Greater(t, id, int64(0))
		return id
	}

	task := func(projectID int64, id string) models.Task {
		return models.Task{
			ID:        id,
			ProjectID: projectID,
			Name:      "Task " + id,
			Status:    models.ToDoTaskStatus,
			Priority:  models.MediumPriority,
			StartDate: day("2024-01-01"),
			DueDate:   day("2024-01-03"),
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
	}

	t.Run("SaveProject", func(t *testing.T) {
		store := newStore(t)
		end := day("2024-06-30")
		id, err := store.SaveProject(ctx, models.Project{
			Name:      "Bridge",
			StartDate: day("2024-01-01"),
			EndDate:   &end,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		})
		require.NoError(t, err)

		saved, err := store.GetProject(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Bridge", saved.Name)
		assert.Equal(t, day("2024-01-01"), saved.StartDate)
		require.NotNil(t, saved.EndDate)
		assert.Equal(t, end, *saved.EndDate)
		assert.Empty(t, saved.Tasks)
	})

	t.Run("GetNonExistingProject", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetProject(ctx, 123456)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("ListProjects returns projects newest first", func(t *testing.T) {
		store := newStore(t)
		base := time.Now().Add(-time.Hour)
		id1 := saveProject(t, store, "Project 1", base)
		id2 := saveProject(t, store, "Project 2", base.Add(time.Minute))

		projects, err := store.ListProjects(ctx)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(projects), 2)
		assert.Equal(t, id2, projects[0].ID)
		assert.Equal(t, id1, projects[1].ID)
	})

	t.Run("Tasks", func(t *testing.T) {
		store := newStore(t)
		projectID := saveProject(t, store, "Tasks", time.Now())

		parent := task(projectID, "p")
		require.NoError(t, store.SaveTask(ctx, parent))
		child := task(projectID, "c")
		child.ParentID = &parent.ID
		child.Progress = 42.5
		require.NoError(t, store.SaveTask(ctx, child))
		assert.Error(t, store.SaveTask(ctx, child), "duplicate id")

		got, err := store.GetTask(ctx, projectID, "c")
		require.NoError(t, err)
		assert.Equal(t, "Task c", got.Name)
		require.NotNil(t, got.ParentID)
		assert.Equal(t, "p", *got.ParentID)
		assert.Equal(t, 42.5, got.Progress)
		assert.Equal(t, day("2024-01-03"), got.DueDate)
		assert.Nil(t, got.CompletedAt)

		found, err := store.FindTask(ctx, "c")
		require.NoError(t, err)
		assert.Equal(t, projectID, found.ProjectID)

		completed := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
		got.Status = models.CompletedTaskStatus
		got.Progress = 100
		got.CompletedAt = &completed
		stamped := time.Date(2024, 1, 2, 16, 30, 0, 0, time.UTC)
		got.UpdatedAt = stamped
		require.NoError(t, store.UpdateTask(ctx, got))

		got, err = store.GetTask(ctx, projectID, "c")
		require.NoError(t, err)
		assert.Equal(t, models.CompletedTaskStatus, got.Status)
		require.NotNil(t, got.CompletedAt)
		assert.True(t, completed.Equal(*got.CompletedAt))
		assert.True(t, stamped.Equal(got.UpdatedAt), "updated_at is stored as given, got %v", got.UpdatedAt)

		tasks, err := store.ListTasks(ctx, projectID)
		require.NoError(t, err)
		require.Len(t, tasks, 2)
		assert.Equal(t, "c", tasks[0].ID)
		assert.Equal(t, "p", tasks[1].ID)

		project, err := store.GetProject(ctx, projectID)
		require.NoError(t, err)
		assert.Len(t, project.Tasks, 2)
	})

	t.Run("GetNonExistingTask", func(t *testing.T) {
		store := newStore(t)
		projectID := saveProject(t, store, "Missing", time.Now())
		_, err := store.GetTask(ctx, projectID, "nope")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = store.FindTask(ctx, "nope")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.ErrorIs(t, store.UpdateTask(ctx, task(projectID, "nope")), storage.ErrNotFound)
		assert.ErrorIs(t, store.DeleteTask(ctx, projectID, "nope"), storage.ErrNotFound)
	})

	t.Run("Dependencies", func(t *testing.T) {
		store := newStore(t)
		projectID := saveProject(t, store, "Deps", time.Now())
		for _, id := range []string{"a", "b", "c"} {
			require.NoError(t, store.SaveTask(ctx, task(projectID, id)))
		}
		deps := []models.Dependency{
			{ID: "d1", ProjectID: projectID, PredecessorID: "a", SuccessorID: "b", Type: models.FinishToStart, Lag: 2, CreatedAt: time.Now()},
			{ID: "d2", ProjectID: projectID, PredecessorID: "b", SuccessorID: "c", Type: models.StartToStart, Lag: -1, CreatedAt: time.Now()},
		}
		for _, d := range deps {
			require.NoError(t, store.SaveDependency(ctx, d))
		}
		dup := deps[0]
		dup.ID = "d3"
		assert.Error(t, store.SaveDependency(ctx, dup), "same predecessor, successor and type")

		listed, err := store.ListDependencies(ctx, projectID)
		require.NoError(t, err)
		require.Len(t, listed, 2)
		assert.Equal(t, "d1", listed[0].ID)
		assert.Equal(t, 2, listed[0].Lag)
		assert.Equal(t, models.StartToStart, listed[1].Type)
		assert.Equal(t, -1, listed[1].Lag)

		require.NoError(t, store.DeleteDependency(ctx, projectID, "d1"))
		assert.ErrorIs(t, store.DeleteDependency(ctx, projectID, "d1"), storage.ErrNotFound)

		require.NoError(t, store.DeleteTask(ctx, projectID, "b"))
		listed, err = store.ListDependencies(ctx, projectID)
		require.NoError(t, err)
		assert.Empty(t, listed, "deleting a task removes its dependencies")
	})

	t.Run("Mutations", func(t *testing.T) {
		store := newStore(t)
		projectID := saveProject(t, store, "Audit", time.Now())
		for _, op := range []string{models.OpCreateTask, models.OpAddEdge} {
			require.NoError(t, store.SaveMutation(ctx, models.MutationLog{
				ProjectID: projectID, Operation: op, Subject: "x", LoggedAt: time.Now(),
			}))
		}
		logs, err := store.ListMutations(ctx, projectID)
		require.NoError(t, err)
		require.Len(t, logs, 2)
		assert.Equal(t, models.OpCreateTask, logs[0].Operation)
		assert.Equal(t, models.OpAddEdge, logs[1].Operation)
		assert.Less(t, logs[0].ID, logs[1].ID)
	})
}

func TestMockStore_Transactions(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMockStore()
	projectID, err := store.SaveProject(ctx, models.Project{Name: "Tx", StartDate: day("2024-01-01")})
	require.NoError(t, err)

	tx, err := store.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.SaveTask(ctx, models.Task{ID: "a", ProjectID: projectID, Name: "A"}))

	_, err = store.GetTask(ctx, projectID, "a")
	assert.ErrorIs(t, err, storage.ErrNotFound, "uncommitted writes stay private")
	require.NoError(t, tx.Rollback())
	_, err = store.GetTask(ctx, projectID, "a")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	tx, err = store.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.SaveTask(ctx, models.Task{ID: "a", ProjectID: projectID, Name: "A"}))
	require.NoError(t, tx.Commit())
	assert.Error(t, tx.Commit())
	_, err = store.GetTask(ctx, projectID, "a")
	assert.NoError(t, err)

	assert.Error(t, store.Commit(), "root store is not a transaction")
}
