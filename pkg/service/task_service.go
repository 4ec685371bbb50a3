package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignatij/goschedule/pkg/graph"
	"github.com/ignatij/goschedule/pkg/models"
	"github.com/ignatij/goschedule/pkg/storage"
	"github.com/pkg/errors"
)

// TaskPatch lists the attributes UpdateTask changes; nil fields are left untouched.
type TaskPatch struct {
	Name      *string            `json:"name,omitempty"`
	StartDate *time.Time         `json:"start_date,omitempty"`
	DueDate   *time.Time         `json:"due_date,omitempty"`
	Status    *models.TaskStatus `json:"status,omitempty"`
	Priority  *models.Priority   `json:"priority,omitempty"`
	Progress  *float64           `json:"progress,omitempty"`
}

// ProposeTask adds a task to a project. A missing id is generated; status and priority
// default to TODO and MEDIUM. It returns the task id and the new snapshot, or the prior
// snapshot and the rejection.
func (s *ScheduleService) ProposeTask(ctx context.Context, projectID int64, attrs models.Task) (string, *models.ScheduleSnapshot, error) {
	t := attrs
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.ProjectID = projectID
	if t.Status == "" {
		t.Status = models.ToDoTaskStatus
	}
	if t.Priority == "" {
		t.Priority = models.MediumPriority
	}
	if t.ParentID != nil && *t.ParentID == "" {
		t.ParentID = nil
	}
	s.normalize(&t)
	now := s.now()
	t.CreatedAt, t.UpdatedAt = now, now

	snap, err := s.mutate(ctx, projectID, mutation{
		op:      models.OpCreateTask,
		subject: t.ID,
		message: fmt.Sprintf("created task '%s'", t.Name),
		apply: func(ctx context.Context, g *graph.Graph) error {
			if err := s.validator.ValidateTask(ctx, g, t); err != nil {
				return err
			}
			if err := s.checkUnused(ctx, t.ID); err != nil {
				return err
			}
			return g.AddTask(t)
		},
		persist: func(ctx context.Context, tx storage.Store, g *graph.Graph) error {
			return tx.SaveTask(ctx, t)
		},
	})
	if err != nil {
		return "", snap, err
	}
	return t.ID, snap, nil
}

// GetTask returns the stored record of a task. Parent progress and status are the values
// written back by the last accepted mutation.
func (s *ScheduleService) GetTask(ctx context.Context, projectID int64, taskID string) (models.Task, error) {
	t, err := s.store.GetTask(ctx, projectID, taskID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Task{}, models.NewError(models.ErrUnknownTask, "task %s not found in project %d", taskID, projectID).WithTasks(taskID)
	}
	if err != nil {
		return models.Task{}, errors.Wrapf(err, "failed to get task %s", taskID)
	}
	return t, nil
}

// UpdateTask applies patch to a task. Progress and status of a task with subtasks are
// derived and cannot be set directly.
func (s *ScheduleService) UpdateTask(ctx context.Context, projectID int64, taskID string, patch TaskPatch) (*models.ScheduleSnapshot, error) {
	return s.mutate(ctx, projectID, mutation{
		op:      models.OpUpdateTask,
		subject: taskID,
		message: "updated task attributes",
		apply: func(ctx context.Context, g *graph.Graph) error {
			cur := g.Task(taskID)
			if cur == nil {
				return models.NewError(models.ErrUnknownTask, "task %s does not exist in project %d", taskID, projectID).
					WithTasks(taskID)
			}
			if g.HasChildren(taskID) && (patch.Progress != nil || patch.Status != nil) {
				return models.NewError(models.ErrDerivedProgress,
					"task %s has subtasks; its progress and status follow them", taskID).WithTasks(taskID)
			}
			t := s.patched(*cur, patch)
			if err := s.validator.ValidateTask(ctx, g, t); err != nil {
				return err
			}
			return g.UpdateTask(t)
		},
		persist: func(ctx context.Context, tx storage.Store, g *graph.Graph) error {
			return tx.UpdateTask(ctx, *g.Task(taskID))
		},
	})
}

// DeleteTask removes a leaf task and every dependency touching it.
func (s *ScheduleService) DeleteTask(ctx context.Context, projectID int64, taskID string) (*models.ScheduleSnapshot, error) {
	return s.mutate(ctx, projectID, mutation{
		op:      models.OpDeleteTask,
		subject: taskID,
		message: "deleted task",
		apply: func(ctx context.Context, g *graph.Graph) error {
			return g.RemoveTask(taskID)
		},
		persist: func(ctx context.Context, tx storage.Store, g *graph.Graph) error {
			return tx.DeleteTask(ctx, projectID, taskID)
		},
	})
}

// SetParent moves a task under parentID, or detaches it when parentID is nil.
func (s *ScheduleService) SetParent(ctx context.Context, projectID int64, taskID string, parentID *string) (*models.ScheduleSnapshot, error) {
	if parentID != nil && *parentID == "" {
		parentID = nil
	}
	message := "detached from parent"
	if parentID != nil {
		message = fmt.Sprintf("moved under %s", *parentID)
	}
	return s.mutate(ctx, projectID, mutation{
		op:      models.OpSetParent,
		subject: taskID,
		message: message,
		apply: func(ctx context.Context, g *graph.Graph) error {
			if err := s.validator.ValidateParent(ctx, g, taskID, parentID); err != nil {
				return err
			}
			return g.SetParent(taskID, parentID)
		},
		persist: func(ctx context.Context, tx storage.Store, g *graph.Graph) error {
			t := *g.Task(taskID)
			t.UpdatedAt = s.now()
			return tx.UpdateTask(ctx, t)
		},
	})
}

// checkUnused rejects a caller-chosen id already taken in any project.
func (s *ScheduleService) checkUnused(ctx context.Context, id string) error {
	existing, err := s.store.FindTask(ctx, id)
	switch {
	case err == nil:
		return models.NewError(models.ErrInvalidTask, "task id %s already used in project %d",
			id, existing.ProjectID).WithTasks(id)
	case errors.Is(err, storage.ErrNotFound):
		return nil
	default:
		return err
	}
}

func (s *ScheduleService) patched(t models.Task, patch TaskPatch) models.Task {
	if patch.Name != nil {
		t.Name = *patch.Name
	}
	if patch.StartDate != nil {
		t.StartDate = *patch.StartDate
	}
	if patch.DueDate != nil {
		t.DueDate = *patch.DueDate
	}
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}
	if patch.Progress != nil {
		t.Progress = *patch.Progress
	}
	if patch.Status != nil {
		t.Status = *patch.Status
		if t.Status == models.CompletedTaskStatus {
			t.Progress = 100
		}
	}
	s.normalize(&t)
	t.UpdatedAt = s.now()
	return t
}

// normalize truncates dates to whole days and keeps the completion stamp in line with status.
func (s *ScheduleService) normalize(t *models.Task) {
	if !t.StartDate.IsZero() {
		t.StartDate = models.Day(t.StartDate)
	}
	if !t.DueDate.IsZero() {
		t.DueDate = models.Day(t.DueDate)
	}
	t.CompletedAt = s.completedAt(t.Status, t.CompletedAt)
}
