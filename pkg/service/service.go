package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignatij/goschedule/pkg/cpm"
	"github.com/ignatij/goschedule/pkg/graph"
	"github.com/ignatij/goschedule/pkg/models"
	"github.com/ignatij/goschedule/pkg/progress"
	"github.com/ignatij/goschedule/pkg/storage"
	"github.com/ignatij/goschedule/pkg/validator"
	"github.com/pkg/errors"
)

// Logger defines the logging interface for ScheduleService
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Option configures a ScheduleService.
type Option func(*ScheduleService)

// WithClock replaces time.Now. The clock decides the as-of date of every snapshot.
func WithClock(now func() time.Time) Option {
	return func(s *ScheduleService) {
		s.now = now
	}
}

// WithRefreshWorkers bounds how many projects RefreshSchedules recomputes at once.
func WithRefreshWorkers(n int) Option {
	return func(s *ScheduleService) {
		s.refreshWorkers = n
	}
}

// projectState is the per-project unit of work: mu serializes mutations, snapshot holds
// the last computed schedule and is swapped as a whole.
type projectState struct {
	mu       sync.Mutex
	snapshot atomic.Pointer[models.ScheduleSnapshot]
}

// ScheduleService is the façade of the scheduling engine. Every mutation is validated
// against the project's graph, recomputed, persisted in one transaction and only then
// published as the project's new snapshot.
type ScheduleService struct {
	store          storage.Store
	logger         Logger
	validator      *validator.Validator
	now            func() time.Time
	refreshWorkers int

	mu       sync.Mutex
	projects map[int64]*projectState
}

func NewScheduleService(store storage.Store, logger Logger, opts ...Option) *ScheduleService {
	s := &ScheduleService{
		store:          store,
		logger:         logger,
		validator:      validator.New(store),
		now:            time.Now,
		refreshWorkers: DefaultRefreshWorkers,
		projects:       make(map[int64]*projectState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ScheduleService) state(projectID int64) *projectState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.projects[projectID]
	if !ok {
		st = &projectState{}
		s.projects[projectID] = st
	}
	return st
}

func (s *ScheduleService) lookup(projectID int64) *projectState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projects[projectID]
}

// acquire returns the project's state with its lock held. A state dropped by forget while
// the caller waited is skipped in favour of the current one.
func (s *ScheduleService) acquire(projectID int64) *projectState {
	for {
		st := s.state(projectID)
		st.mu.Lock()
		if s.lookup(projectID) == st {
			return st
		}
		st.mu.Unlock()
	}
}

// forget drops the state of a project that does not exist. The caller holds st.mu.
func (s *ScheduleService) forget(projectID int64, st *projectState) {
	if st.snapshot.Load() != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.projects[projectID] == st {
		delete(s.projects, projectID)
	}
}

// computation is a fully derived schedule that has not been published yet.
type computation struct {
	graph    *graph.Graph
	result   *cpm.Result
	rollups  map[string]progress.Rollup
	snapshot *models.ScheduleSnapshot
}

// compute runs the critical path and progress passes over g as of the service clock.
func (s *ScheduleService) compute(project models.Project, g *graph.Graph) (*computation, error) {
	asOf := models.Day(s.now())
	res, err := cpm.Calculate(g, cpm.Options{ProjectEnd: project.EndDate})
	if err != nil {
		if errors.Is(err, models.ErrInternalInconsistency) {
			s.logger.Errorf("Schedule of project %d is inconsistent: %v", project.ID, err)
		}
		return nil, err
	}
	rollups := progress.Aggregate(g, res, asOf)
	return &computation{
		graph:    g,
		result:   res,
		rollups:  rollups,
		snapshot: buildSnapshot(project, g, res, rollups, asOf),
	}, nil
}

func buildSnapshot(project models.Project, g *graph.Graph, res *cpm.Result, rollups map[string]progress.Rollup, asOf time.Time) *models.ScheduleSnapshot {
	snap := &models.ScheduleSnapshot{
		ProjectID:     project.ID,
		AsOf:          asOf,
		ProjectStart:  models.Day(project.StartDate),
		ProjectFinish: models.Day(project.StartDate),
		Tasks:         make([]models.TaskSchedule, 0, len(res.Order)),
		CriticalPath:  append([]string{}, res.CriticalChain...),
	}
	if len(res.Order) > 0 {
		snap.ProjectStart = models.FromDayNumber(res.Start)
		snap.ProjectFinish = models.FromDayNumber(res.Finish)
		snap.DurationDays = res.DurationDays()
	}

	for _, id := range res.Order {
		t := g.Task(id)
		ts := res.Tasks[id]
		r := rollups[id]
		var blockedBy []string
		for _, d := range r.Blocking {
			blockedBy = append(blockedBy, d.PredecessorID)
		}
		snap.Tasks = append(snap.Tasks, models.TaskSchedule{
			TaskID:         id,
			Name:           t.Name,
			ParentID:       g.Parent(id),
			Dependencies:   append([]string{}, g.Predecessors(id)...),
			EarliestStart:  models.FromDayNumber(ts.ES),
			EarliestFinish: models.FromDayNumber(ts.EF),
			LatestStart:    models.FromDayNumber(ts.LS),
			LatestFinish:   models.FromDayNumber(ts.LF),
			DurationDays:   ts.Duration,
			TotalFloat:     ts.Float,
			OnCriticalPath: ts.IsCritical,
			Progress:       r.Progress,
			Status:         r.Status,
			BlockedBy:      blockedBy,
		})
	}

	for _, d := range g.Edges() {
		if w := validator.CheckLag(d, res, project.StartDate); w != nil {
			snap.Warnings = append(snap.Warnings, *w)
		}
	}
	return snap
}

// mutation describes one graph-altering request. apply validates and changes the cloned
// graph; persist writes the accepted change through the transaction.
type mutation struct {
	op      string
	subject string
	message string
	edge    *models.Dependency
	apply   func(ctx context.Context, g *graph.Graph) error
	persist func(ctx context.Context, tx storage.Store, g *graph.Graph) error
}

// mutate is the single path every change takes: load, validate, recompute, commit, publish.
// On any failure the prior snapshot is returned with the error and nothing is published.
func (s *ScheduleService) mutate(ctx context.Context, projectID int64, m mutation) (*models.ScheduleSnapshot, error) {
	st := s.acquire(projectID)
	defer st.mu.Unlock()

	project, err := s.getProject(ctx, projectID)
	if err != nil {
		s.forget(projectID, st)
		return nil, err
	}
	base, err := s.loadGraph(ctx, projectID)
	if err != nil {
		return nil, err
	}
	prior, err := s.prior(st, project, base)
	if err != nil {
		return nil, err
	}

	next := base.Clone()
	if err := m.apply(ctx, next); err != nil {
		s.logger.Infof("Rejected %s on project %d: %v", m.op, projectID, err)
		return prior, err
	}
	comp, err := s.compute(project, next)
	if err != nil {
		return prior, err
	}
	if m.edge != nil {
		if w := validator.CheckLag(*m.edge, comp.result, project.StartDate); w != nil {
			s.logger.Warnf("Project %d: %s", projectID, w.Message)
		}
	}

	// Validation passed: the commit runs to completion even if the caller goes away.
	if err := s.commit(context.WithoutCancel(ctx), project, comp, m); err != nil {
		return prior, err
	}
	st.snapshot.Store(comp.snapshot)
	s.logger.Infof("Applied %s %s on project %d", m.op, m.subject, projectID)
	return comp.snapshot, nil
}

// prior returns the published snapshot, computing and publishing one from base when the
// project has none yet.
func (s *ScheduleService) prior(st *projectState, project models.Project, base *graph.Graph) (*models.ScheduleSnapshot, error) {
	if snap := st.snapshot.Load(); snap != nil {
		return snap, nil
	}
	comp, err := s.compute(project, base)
	if err != nil {
		return nil, err
	}
	if base.Len() > 0 {
		st.snapshot.Store(comp.snapshot)
	}
	return comp.snapshot, nil
}

// commit persists the mutation, the derived parent values that changed and the audit
// entry in one transaction.
func (s *ScheduleService) commit(ctx context.Context, project models.Project, comp *computation, m mutation) (err error) {
	txStore, err := s.store.Begin()
	if err != nil {
		s.logger.Errorf("Failed to begin transaction for %s: %v", m.op, err)
		return fmt.Errorf("failed to begin transaction: %w", err)
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

	if m.persist != nil {
		if err = m.persist(ctx, txStore, comp.graph); err != nil {
			return errors.Wrapf(err, "failed to persist %s %s", m.op, m.subject)
		}
	}
	if err = s.writeBack(ctx, txStore, comp); err != nil {
		return err
	}
	if m.op != "" {
		err = txStore.SaveMutation(ctx, models.MutationLog{
			ProjectID: project.ID,
			Operation: m.op,
			Subject:   m.subject,
			Message:   m.message,
			LoggedAt:  s.now(),
		})
		if err != nil {
			return errors.Wrap(err, "failed to record mutation")
		}
	}
	return nil
}

// writeBack stores derived progress and status of parent tasks whose stored values differ.
func (s *ScheduleService) writeBack(ctx context.Context, tx storage.Store, comp *computation) error {
	for _, id := range comp.result.Order {
		r := comp.rollups[id]
		if !r.Derived {
			continue
		}
		t := *comp.graph.Task(id)
		if t.Progress == r.Progress && t.Status == r.Status {
			continue
		}
		t.Progress = r.Progress
		t.Status = r.Status
		t.CompletedAt = s.completedAt(t.Status, t.CompletedAt)
		t.UpdatedAt = s.now()
		if err := comp.graph.UpdateTask(t); err != nil {
			return err
		}
		if err := tx.UpdateTask(ctx, t); err != nil {
			return errors.Wrapf(err, "failed to store derived values of task %s", id)
		}
	}
	return nil
}

func (s *ScheduleService) completedAt(status models.TaskStatus, current *time.Time) *time.Time {
	if status != models.CompletedTaskStatus {
		return nil
	}
	if current != nil {
		return current
	}
	now := s.now()
	return &now
}

// loadGraph builds the graph of a project. Unlike graph.Load it accepts a project without
// tasks, which is where the first ProposeTask starts from.
func (s *ScheduleService) loadGraph(ctx context.Context, projectID int64) (*graph.Graph, error) {
	tasks, err := s.store.ListTasks(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks of project %d: %w", projectID, err)
	}
	deps, err := s.store.ListDependencies(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load dependencies of project %d: %w", projectID, err)
	}
	return graph.Build(projectID, tasks, deps)
}

// GetSchedule returns the project's current snapshot. A snapshot computed on an earlier day
// is recomputed so date-dependent statuses stay current. A project without tasks yields
// ErrNotFound.
func (s *ScheduleService) GetSchedule(ctx context.Context, projectID int64) (*models.ScheduleSnapshot, error) {
	if st := s.lookup(projectID); st != nil {
		if snap := st.snapshot.Load(); snap != nil && s.current(snap) {
			return snap, nil
		}
	}

	st := s.acquire(projectID)
	defer st.mu.Unlock()
	if snap := st.snapshot.Load(); snap != nil && s.current(snap) {
		return snap, nil
	}
	comp, err := s.recompute(ctx, st, projectID)
	if err != nil {
		return nil, err
	}
	st.snapshot.Store(comp.snapshot)
	return comp.snapshot, nil
}

// recompute derives a fresh schedule from the store. The caller holds st.mu.
func (s *ScheduleService) recompute(ctx context.Context, st *projectState, projectID int64) (*computation, error) {
	project, err := s.getProject(ctx, projectID)
	if err != nil {
		s.forget(projectID, st)
		return nil, err
	}
	g, err := graph.Load(ctx, s.store, projectID)
	if err != nil {
		return nil, err
	}
	return s.compute(project, g)
}

func (s *ScheduleService) current(snap *models.ScheduleSnapshot) bool {
	return models.DayNumber(snap.AsOf) == models.DayNumber(s.now())
}

func (s *ScheduleService) getProject(ctx context.Context, projectID int64) (models.Project, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Project{}, models.NewError(models.ErrNotFound, "project %d not found", projectID)
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("failed to get project %d: %w", projectID, err)
	}
	return project, nil
}
