package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ignatij/goschedule/pkg/models"
)

// Rows keep dates and timestamps as text so both drivers scan them the same way. Postgres
// hands DATE and TIMESTAMPTZ back as RFC 3339 strings, SQLite returns what was stored.

type projectRow struct {
	ID        int64          `db:"id"`
	Name      string         `db:"name"`
	StartDate string         `db:"start_date"`
	EndDate   sql.NullString `db:"end_date"`
	CreatedAt string         `db:"created_at"`
	UpdatedAt string         `db:"updated_at"`
}

type taskRow struct {
	ID          string         `db:"id"`
	ProjectID   int64          `db:"project_id"`
	Name        string         `db:"name"`
	Status      string         `db:"status"`
	Priority    string         `db:"priority"`
	StartDate   string         `db:"start_date"`
	DueDate     string         `db:"due_date"`
	CompletedAt sql.NullString `db:"completed_at"`
	Progress    float64        `db:"progress"`
	ParentID    sql.NullString `db:"parent_id"`
	CreatedAt   string         `db:"created_at"`
	UpdatedAt   string         `db:"updated_at"`
}

type dependencyRow struct {
	ID            string `db:"id"`
	ProjectID     int64  `db:"project_id"`
	PredecessorID string `db:"predecessor_id"`
	SuccessorID   string `db:"successor_id"`
	Type          string `db:"type"`
	Lag           int    `db:"lag"`
	CreatedAt     string `db:"created_at"`
}

type mutationRow struct {
	ID        int64  `db:"id"`
	ProjectID int64  `db:"project_id"`
	Operation string `db:"operation"`
	Subject   string `db:"subject"`
	Message   string `db:"message"`
	LoggedAt  string `db:"logged_at"`
}

func toProjectRow(p models.Project) projectRow {
	row := projectRow{
		ID:        p.ID,
		Name:      p.Name,
		StartDate: formatDate(p.StartDate),
		CreatedAt: formatTimestamp(p.CreatedAt),
		UpdatedAt: formatTimestamp(p.UpdatedAt),
	}
	if p.EndDate != nil {
		row.EndDate = sql.NullString{String: formatDate(*p.EndDate), Valid: true}
	}
	return row
}

func (r projectRow) toModel() (models.Project, error) {
	p := models.Project{ID: r.ID, Name: r.Name}
	var err error
	if p.StartDate, err = parseDate(r.StartDate); err != nil {
		return p, err
	}
	if r.EndDate.Valid {
		end, err := parseDate(r.EndDate.String)
		if err != nil {
			return p, err
		}
		p.EndDate = &end
	}
	if p.CreatedAt, err = parseTimestamp(r.CreatedAt); err != nil {
		return p, err
	}
	if p.UpdatedAt, err = parseTimestamp(r.UpdatedAt); err != nil {
		return p, err
	}
	return p, nil
}

func toTaskRow(t models.Task) taskRow {
	row := taskRow{
		ID:        t.ID,
		ProjectID: t.ProjectID,
		Name:      t.Name,
		Status:    string(t.Status),
		Priority:  string(t.Priority),
		StartDate: formatDate(t.StartDate),
		DueDate:   formatDate(t.DueDate),
		Progress:  t.Progress,
		CreatedAt: formatTimestamp(t.CreatedAt),
		UpdatedAt: formatTimestamp(t.UpdatedAt),
	}
	if t.CompletedAt != nil {
		row.CompletedAt = sql.NullString{String: formatTimestamp(*t.CompletedAt), Valid: true}
	}
	if t.HasParent() {
		row.ParentID = sql.NullString{String: *t.ParentID, Valid: true}
	}
	return row
}

func (r taskRow) toModel() (models.Task, error) {
	t := models.Task{
		ID:        r.ID,
		ProjectID: r.ProjectID,
		Name:      r.Name,
		Status:    models.TaskStatus(r.Status),
		Priority:  models.Priority(r.Priority),
		Progress:  r.Progress,
	}
	var err error
	if t.StartDate, err = parseDate(r.StartDate); err != nil {
		return t, err
	}
	if t.DueDate, err = parseDate(r.DueDate); err != nil {
		return t, err
	}
	if r.CompletedAt.Valid {
		completed, err := parseTimestamp(r.CompletedAt.String)
		if err != nil {
			return t, err
		}
		t.CompletedAt = &completed
	}
	if r.ParentID.Valid {
		parent := r.ParentID.String
		t.ParentID = &parent
	}
	if t.CreatedAt, err = parseTimestamp(r.CreatedAt); err != nil {
		return t, err
	}
	if t.UpdatedAt, err = parseTimestamp(r.UpdatedAt); err != nil {
		return t, err
	}
	return t, nil
}

func (r dependencyRow) toModel() (models.Dependency, error) {
	createdAt, err := parseTimestamp(r.CreatedAt)
	if err != nil {
		return models.Dependency{}, err
	}
	return models.Dependency{
		ID:            r.ID,
		ProjectID:     r.ProjectID,
		PredecessorID: r.PredecessorID,
		SuccessorID:   r.SuccessorID,
		Type:          models.DependencyType(r.Type),
		Lag:           r.Lag,
		CreatedAt:     createdAt,
	}, nil
}

func formatDate(t time.Time) string {
	return models.Day(t).Format(models.DateLayout)
}

func parseDate(s string) (time.Time, error) {
	t, err := models.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored date %q: %w", s, err)
	}
	return t, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTimestamp also accepts SQLite's CURRENT_TIMESTAMP layout.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid stored timestamp %q", s)
}
