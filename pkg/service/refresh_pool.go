package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ignatij/goschedule/pkg/models"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// DefaultRefreshWorkers bounds RefreshSchedules when no WithRefreshWorkers option is given.
const DefaultRefreshWorkers = 4

// RefreshSchedules recomputes the snapshots of the given projects, or of every project when
// none are given, with at most the configured number of projects in flight. Derived parent
// values that changed since the last commit are written back. Projects without tasks are
// skipped. A failing project does not stop the others; the returned error lists every failure.
func (s *ScheduleService) RefreshSchedules(ctx context.Context, projectIDs ...int64) (map[int64]*models.ScheduleSnapshot, error) {
	if len(projectIDs) == 0 {
		projects, err := s.ListProjects(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range projects {
			projectIDs = append(projectIDs, p.ID)
		}
	}

	var (
		mu        sync.Mutex
		snapshots = make(map[int64]*models.ScheduleSnapshot, len(projectIDs))
		failures  = make(map[int64]error)
	)
	g := new(errgroup.Group)
	g.SetLimit(max(s.refreshWorkers, 1))
	for _, id := range projectIDs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				mu.Lock()
				failures[id] = err
				mu.Unlock()
				return nil
			}
			snap, err := s.refresh(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, models.ErrNotFound):
				s.logger.Infof("Skipping refresh of project %d: %v", id, err)
			case err != nil:
				failures[id] = err
			default:
				snapshots[id] = snap
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failures) > 0 {
		ids := make([]int64, 0, len(failures))
		for id := range failures {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		msgs := make([]string, 0, len(ids))
		for _, id := range ids {
			msgs = append(msgs, fmt.Sprintf("project %d: %v", id, failures[id]))
		}
		s.logger.Errorf("Refresh failed for %d of %d projects", len(failures), len(projectIDs))
		return snapshots, fmt.Errorf("refresh failed: %s", strings.Join(msgs, "; "))
	}
	s.logger.Infof("Refreshed %d projects", len(snapshots))
	return snapshots, nil
}

// refresh recomputes one project under its lock and publishes the result.
func (s *ScheduleService) refresh(ctx context.Context, projectID int64) (*models.ScheduleSnapshot, error) {
	st := s.acquire(projectID)
	defer st.mu.Unlock()

	comp, err := s.recompute(ctx, st, projectID)
	if err != nil {
		return nil, err
	}
	project := models.Project{ID: projectID}
	if err := s.commit(context.WithoutCancel(ctx), project, comp, mutation{}); err != nil {
		return nil, err
	}
	st.snapshot.Store(comp.snapshot)
	return comp.snapshot, nil
}
