package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignatij/goschedule/pkg/graph"
	"github.com/ignatij/goschedule/pkg/models"
	"github.com/ignatij/goschedule/pkg/storage"
)

// ProposeEdge adds a dependency predecessor -> successor. An empty type means FS. Lag may be
// negative; a lag that drags the successor before the project start only adds a warning
// to the snapshot.
func (s *ScheduleService) ProposeEdge(ctx context.Context, projectID int64, predecessor, successor string, typ models.DependencyType, lag int) (string, *models.ScheduleSnapshot, error) {
	if typ == "" {
		typ = models.FinishToStart
	}
	d := models.Dependency{
		ID:            uuid.NewString(),
		ProjectID:     projectID,
		PredecessorID: predecessor,
		SuccessorID:   successor,
		Type:          typ,
		Lag:           lag,
		CreatedAt:     s.now(),
	}

	snap, err := s.mutate(ctx, projectID, mutation{
		op:      models.OpAddEdge,
		subject: d.ID,
		message: fmt.Sprintf("%s %s -> %s lag %d", d.Type, predecessor, successor, lag),
		edge:    &d,
		apply: func(ctx context.Context, g *graph.Graph) error {
			if err := s.validator.ValidateEdge(ctx, g, d); err != nil {
				return err
			}
			return g.AddEdge(d)
		},
		persist: func(ctx context.Context, tx storage.Store, g *graph.Graph) error {
			return tx.SaveDependency(ctx, d)
		},
	})
	if err != nil {
		return "", snap, err
	}
	return d.ID, snap, nil
}

// RemoveEdge deletes a dependency of the project.
func (s *ScheduleService) RemoveEdge(ctx context.Context, projectID int64, edgeID string) (*models.ScheduleSnapshot, error) {
	return s.mutate(ctx, projectID, mutation{
		op:      models.OpRemoveEdge,
		subject: edgeID,
		message: "removed dependency",
		apply: func(ctx context.Context, g *graph.Graph) error {
			return g.RemoveEdge(edgeID)
		},
		persist: func(ctx context.Context, tx storage.Store, g *graph.Graph) error {
			return tx.DeleteDependency(ctx, projectID, edgeID)
		},
	})
}
