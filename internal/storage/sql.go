package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignatij/goschedule/pkg/models"
	"github.com/ignatij/goschedule/pkg/storage"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DBInterface is the part of sqlx shared by *sqlx.DB and *sqlx.Tx.
type DBInterface interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	Rebind(query string) string
}

// SQLStore implements storage.Store on Postgres or SQLite. Queries are written with ?
// placeholders and rebound for the driver.
type SQLStore struct {
	db     DBInterface
	driver string
}

// NewSQLStore opens and pings a database. SQLite databases run in WAL mode on a single
// connection.
func NewSQLStore(driver, dsn string) (*SQLStore, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", "PRAGMA foreign_keys=ON"} {
			if _, err := db.Exec(pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("%s: %w", pragma, err)
			}
		}
	}
	return &SQLStore{db: db, driver: driver}, nil
}

// Driver returns the name of the underlying database driver.
func (s *SQLStore) Driver() string {
	return s.driver
}

func (s *SQLStore) Begin() (storage.Store, error) {
	if db, ok := s.db.(*sqlx.DB); ok {
		tx, err := db.Beginx()
		if err != nil {
			return nil, err
		}
		return &SQLStore{db: tx, driver: s.driver}, nil
	}
	return nil, fmt.Errorf("cannot begin transaction inside a transaction")
}

func (s *SQLStore) Commit() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Commit()
	}
	return fmt.Errorf("cannot commit: not a transaction")
}

func (s *SQLStore) Rollback() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Rollback()
	}
	return fmt.Errorf("cannot rollback: not a transaction")
}

func (s *SQLStore) Close() error {
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil // No-op for *sqlx.Tx
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.db.Rebind(query), args...)
}

// SaveProject creates a new project and returns its ID (no tasks)
func (s *SQLStore) SaveProject(ctx context.Context, p models.Project) (int64, error) {
	row := toProjectRow(p)
	var id int64
	err := s.db.QueryRowxContext(ctx, s.db.Rebind(
		"INSERT INTO projects (name, start_date, end_date, created_at, updated_at) VALUES (?, ?, ?, ?, ?) RETURNING id"),
		row.Name, row.StartDate, row.EndDate, row.CreatedAt, row.UpdatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save project: %w", err)
	}
	return id, nil
}

// GetProject retrieves a project by ID, including its tasks
func (s *SQLStore) GetProject(ctx context.Context, id int64) (models.Project, error) {
	var row projectRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind("SELECT * FROM projects WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Project{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("get project %d: %w", id, err)
	}
	p, err := row.toModel()
	if err != nil {
		return models.Project{}, err
	}
	p.Tasks, err = s.ListTasks(ctx, id)
	if err != nil {
		return models.Project{}, fmt.Errorf("get project %d: %w", id, err)
	}
	return p, nil
}

func (s *SQLStore) ListProjects(ctx context.Context) ([]models.Project, error) {
	var rows []projectRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT * FROM projects ORDER BY created_at DESC, id DESC"); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	projects := make([]models.Project, 0, len(rows))
	for _, row := range rows {
		p, err := row.toModel()
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, nil
}

// SaveTask creates a new task within a project
func (s *SQLStore) SaveTask(ctx context.Context, t models.Task) error {
	row := toTaskRow(t)
	_, err := s.exec(ctx, `
		INSERT INTO tasks (id, project_id, name, status, priority, start_date, due_date, completed_at, progress, parent_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.ProjectID, row.Name, row.Status, row.Priority, row.StartDate, row.DueDate,
		row.CompletedAt, row.Progress, row.ParentID, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save task %s: %w", t.ID, err)
	}
	return nil
}

// UpdateTask overwrites every mutable column of a task
func (s *SQLStore) UpdateTask(ctx context.Context, t models.Task) error {
	row := toTaskRow(t)
	res, err := s.exec(ctx, `
		UPDATE tasks
		SET name = ?, status = ?, priority = ?, start_date = ?, due_date = ?,
		completed_at = ?, progress = ?, parent_id = ?, updated_at = ?
		WHERE id = ? AND project_id = ?`,
		row.Name, row.Status, row.Priority, row.StartDate, row.DueDate,
		row.CompletedAt, row.Progress, row.ParentID, row.UpdatedAt,
		row.ID, row.ProjectID)
	if err != nil {
		return fmt.Errorf("update task %s: %w", t.ID, err)
	}
	return expectRow(res, "task "+t.ID)
}

// DeleteTask removes a task together with the dependencies touching it
func (s *SQLStore) DeleteTask(ctx context.Context, projectID int64, id string) error {
	if _, err := s.exec(ctx, "DELETE FROM dependencies WHERE project_id = ? AND (predecessor_id = ? OR successor_id = ?)",
		projectID, id, id); err != nil {
		return fmt.Errorf("delete dependencies of task %s: %w", id, err)
	}
	res, err := s.exec(ctx, "DELETE FROM tasks WHERE id = ? AND project_id = ?", id, projectID)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return expectRow(res, "task "+id)
}

// GetTask retrieves a task by ID and project ID
func (s *SQLStore) GetTask(ctx context.Context, projectID int64, id string) (models.Task, error) {
	return s.getTask(ctx, "SELECT * FROM tasks WHERE id = ? AND project_id = ?", id, projectID)
}

// FindTask retrieves a task by ID regardless of its project
func (s *SQLStore) FindTask(ctx context.Context, id string) (models.Task, error) {
	return s.getTask(ctx, "SELECT * FROM tasks WHERE id = ?", id)
}

func (s *SQLStore) getTask(ctx context.Context, query string, args ...interface{}) (models.Task, error) {
	var row taskRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Task{}, err
	}
	return row.toModel()
}

func (s *SQLStore) ListTasks(ctx context.Context, projectID int64) ([]models.Task, error) {
	var rows []taskRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind("SELECT * FROM tasks WHERE project_id = ? ORDER BY id"), projectID); err != nil {
		return nil, fmt.Errorf("list tasks of project %d: %w", projectID, err)
	}
	tasks := make([]models.Task, 0, len(rows))
	for _, row := range rows {
		t, err := row.toModel()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// SaveDependency creates a new dependency between tasks
func (s *SQLStore) SaveDependency(ctx context.Context, d models.Dependency) error {
	_, err := s.exec(ctx, `
		INSERT INTO dependencies (id, project_id, predecessor_id, successor_id, type, lag, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ProjectID, d.PredecessorID, d.SuccessorID, string(d.Type), d.Lag, formatTimestamp(d.CreatedAt))
	if err != nil {
		return fmt.Errorf("save dependency %s: %w", d.ID, err)
	}
	return nil
}

func (s *SQLStore) DeleteDependency(ctx context.Context, projectID int64, id string) error {
	res, err := s.exec(ctx, "DELETE FROM dependencies WHERE id = ? AND project_id = ?", id, projectID)
	if err != nil {
		return fmt.Errorf("delete dependency %s: %w", id, err)
	}
	return expectRow(res, "dependency "+id)
}

// ListDependencies retrieves all dependencies for a project
func (s *SQLStore) ListDependencies(ctx context.Context, projectID int64) ([]models.Dependency, error) {
	var rows []dependencyRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind("SELECT * FROM dependencies WHERE project_id = ? ORDER BY id"), projectID)
	if err != nil {
		return nil, fmt.Errorf("list dependencies of project %d: %w", projectID, err)
	}
	deps := make([]models.Dependency, 0, len(rows))
	for _, row := range rows {
		d, err := row.toModel()
		if err != nil {
			return nil, err
		}
		deps = append(deps, d)
	}
	return deps, nil
}

func (s *SQLStore) SaveMutation(ctx context.Context, m models.MutationLog) error {
	_, err := s.exec(ctx,
		"INSERT INTO mutation_logs (project_id, operation, subject, message, logged_at) VALUES (?, ?, ?, ?, ?)",
		m.ProjectID, m.Operation, m.Subject, m.Message, formatTimestamp(m.LoggedAt))
	if err != nil {
		return fmt.Errorf("save mutation log: %w", err)
	}
	return nil
}

func (s *SQLStore) ListMutations(ctx context.Context, projectID int64) ([]models.MutationLog, error) {
	var rows []mutationRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind("SELECT * FROM mutation_logs WHERE project_id = ? ORDER BY id"), projectID)
	if err != nil {
		return nil, fmt.Errorf("list mutations of project %d: %w", projectID, err)
	}
	logs := make([]models.MutationLog, 0, len(rows))
	for _, row := range rows {
		loggedAt, err := parseTimestamp(row.LoggedAt)
		if err != nil {
			return nil, err
		}
		logs = append(logs, models.MutationLog{
			ID:        row.ID,
			ProjectID: row.ProjectID,
			Operation: row.Operation,
			Subject:   row.Subject,
			Message:   row.Message,
			LoggedAt:  loggedAt,
		})
	}
	return logs, nil
}

func expectRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrap(storage.ErrNotFound, what)
	}
	return nil
}
