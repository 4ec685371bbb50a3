package storage

import (
	"context"

	"github.com/ignatij/goschedule/pkg/models"
)

// ErrNotFound is returned when a project, task or dependency row does not exist.
var ErrNotFound = models.ErrNotFound

// Store defines the storage operations for GoSchedule. Begin returns a transactional
// Store whose writes become visible only after Commit.
type Store interface {
	Begin() (Store, error)
	Commit() error
	Rollback() error
	Close() error

	// Project operations
	SaveProject(ctx context.Context, p models.Project) (int64, error)
	GetProject(ctx context.Context, id int64) (models.Project, error)
	ListProjects(ctx context.Context) ([]models.Project, error)

	// Task operations
	SaveTask(ctx context.Context, t models.Task) error
	UpdateTask(ctx context.Context, t models.Task) error
	DeleteTask(ctx context.Context, projectID int64, id string) error
	GetTask(ctx context.Context, projectID int64, id string) (models.Task, error)
	FindTask(ctx context.Context, id string) (models.Task, error)
	ListTasks(ctx context.Context, projectID int64) ([]models.Task, error)

	// Dependency operations
	SaveDependency(ctx context.Context, d models.Dependency) error
	DeleteDependency(ctx context.Context, projectID int64, id string) error
	ListDependencies(ctx context.Context, projectID int64) ([]models.Dependency, error)

	// Audit trail
	SaveMutation(ctx context.Context, m models.MutationLog) error
	ListMutations(ctx context.Context, projectID int64) ([]models.MutationLog, error)
}

// ProjectReader is the read side the graph index loads from.
type ProjectReader interface {
	ListTasks(ctx context.Context, projectID int64) ([]models.Task, error)
	ListDependencies(ctx context.Context, projectID int64) ([]models.Dependency, error)
}
