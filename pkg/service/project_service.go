package service

import (
	"context"
	"strings"
	"time"

	"github.com/ignatij/goschedule/pkg/models"
	"github.com/pkg/errors"
)

const maxProjectNameLen = 100

// CreateProject stores a new project. end may be nil; when set it must not precede start.
func (s *ScheduleService) CreateProject(ctx context.Context, name string, start time.Time, end *time.Time) (id int64, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, models.NewError(models.ErrInvalidProject, "project name cannot be empty")
	}
	if len(name) > maxProjectNameLen {
		return 0, models.NewError(models.ErrInvalidProject, "project name too long (max %d characters)", maxProjectNameLen)
	}
	if start.IsZero() {
		return 0, models.NewError(models.ErrInvalidProject, "project start date is required")
	}
	start = models.Day(start)
	if end != nil {
		e := models.Day(*end)
		if e.Before(start) {
			return 0, models.NewError(models.ErrInvalidProject, "project end %s is before start %s",
				e.Format(models.DateLayout), start.Format(models.DateLayout))
		}
		end = &e
	}

	txStore, err := s.store.Begin()
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				s.logger.Errorf("Failed to rollback after error: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			s.logger.Errorf("Failed to commit: %v", commitErr)
			err = commitErr
		}
	}()

	now := s.now()
	id, err = txStore.SaveProject(ctx, models.Project{
		Name:      name,
		StartDate: start,
		EndDate:   end,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return 0, err
	}
	s.logger.Infof("Created project '%s' with ID %d", name, id)
	return id, nil
}

// GetProject returns a project together with its stored tasks.
func (s *ScheduleService) GetProject(ctx context.Context, id int64) (models.Project, error) {
	return s.getProject(ctx, id)
}

func (s *ScheduleService) ListProjects(ctx context.Context) ([]models.Project, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list projects")
	}
	return projects, nil
}

// History returns the mutation log of a project, oldest first.
func (s *ScheduleService) History(ctx context.Context, projectID int64) ([]models.MutationLog, error) {
	if _, err := s.getProject(ctx, projectID); err != nil {
		return nil, err
	}
	logs, err := s.store.ListMutations(ctx, projectID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list mutations of project %d", projectID)
	}
	return logs, nil
}
