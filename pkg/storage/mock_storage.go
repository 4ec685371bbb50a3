package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/ignatij/goschedule/pkg/models"
	"github.com/pkg/errors"
)

// memState is the full content of the in-memory store.
type memState struct {
	projects       []models.Project
	tasks          []models.Task
	dependencies   []models.Dependency
	mutations      []models.MutationLog
	nextProjectID  int64
	nextMutationID int64
}

func (s *memState) clone() *memState {
	return &memState{
		projects:       append([]models.Project(nil), s.projects...),
		tasks:          append([]models.Task(nil), s.tasks...),
		dependencies:   append([]models.Dependency(nil), s.dependencies...),
		mutations:      append([]models.MutationLog(nil), s.mutations...),
		nextProjectID:  s.nextProjectID,
		nextMutationID: s.nextMutationID,
	}
}

// mockStore implements storage.Store in memory. The root store applies writes directly;
// a store returned by Begin works on a private copy and replays its writes on Commit.
type mockStore struct {
	mu     *sync.Mutex
	shared *memState

	tx      bool
	private *memState
	ops     []func(*memState) error
	done    bool
}

func NewMockStore() Store {
	return &mockStore{mu: &sync.Mutex{}, shared: &memState{}}
}

func (m *mockStore) Begin() (Store, error) {
	if m.tx {
		return nil, errors.New("nested transactions are not supported")
	}
	m.mu.Lock()
	private := m.shared.clone()
	m.mu.Unlock()
	return &mockStore{mu: m.mu, shared: m.shared, tx: true, private: private}, nil
}

func (m *mockStore) Commit() error {
	if !m.tx {
		return errors.New("cannot commit: not a transaction")
	}
	if m.done {
		return errors.New("transaction already committed")
	}
	m.done = true
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.shared.clone()
	for _, op := range m.ops {
		if err := op(next); err != nil {
			return errors.Wrap(err, "commit")
		}
	}
	*m.shared = *next
	return nil
}

func (m *mockStore) Rollback() error {
	if !m.tx {
		return errors.New("cannot rollback: not a transaction")
	}
	if m.done {
		return errors.New("cannot rollback committed transaction")
	}
	m.done = true
	m.ops = nil
	return nil
}

func (m *mockStore) Close() error {
	return nil
}

// write runs op against the visible state and, inside a transaction, remembers it for Commit.
func (m *mockStore) write(op func(*memState) error) error {
	if m.tx {
		if m.done {
			return errors.New("transaction already committed")
		}
		if err := op(m.private); err != nil {
			return err
		}
		m.ops = append(m.ops, op)
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return op(m.shared)
}

func (m *mockStore) read(fn func(*memState)) {
	if m.tx {
		fn(m.private)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.shared)
}

func (m *mockStore) SaveProject(_ context.Context, p models.Project) (int64, error) {
	var id int64
	err := m.write(func(s *memState) error {
		if id == 0 {
			s.nextProjectID++
			id = s.nextProjectID
		} else if id > s.nextProjectID {
			s.nextProjectID = id
		}
		for _, existing := range s.projects {
			if existing.ID == id {
				return errors.Errorf("project %d already exists", id)
			}
		}
		p.ID = id
		s.projects = append(s.projects, p)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (m *mockStore) GetProject(_ context.Context, id int64) (models.Project, error) {
	var (
		project models.Project
		found   bool
	)
	m.read(func(s *memState) {
		for _, p := range s.projects {
			if p.ID == id {
				project, found = p, true
				break
			}
		}
		if !found {
			return
		}
		for _, t := range s.tasks {
			if t.ProjectID == id {
				project.Tasks = append(project.Tasks, t)
			}
		}
	})
	if !found {
		return models.Project{}, ErrNotFound
	}
	return project, nil
}

func (m *mockStore) ListProjects(_ context.Context) ([]models.Project, error) {
	projects := []models.Project{}
	m.read(func(s *memState) {
		projects = append(projects, s.projects...)
	})
	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})
	return projects, nil
}

func (m *mockStore) SaveTask(_ context.Context, t models.Task) error {
	return m.write(func(s *memState) error {
		if !hasProject(s, t.ProjectID) {
			return errors.Wrapf(ErrNotFound, "project %d", t.ProjectID)
		}
		for _, existing := range s.tasks {
			if existing.ID == t.ID {
				return errors.New("task already exists")
			}
		}
		s.tasks = append(s.tasks, t)
		return nil
	})
}

func (m *mockStore) UpdateTask(_ context.Context, t models.Task) error {
	return m.write(func(s *memState) error {
		for i, existing := range s.tasks {
			if existing.ID == t.ID && existing.ProjectID == t.ProjectID {
				s.tasks[i] = t
				return nil
			}
		}
		return errors.Wrapf(ErrNotFound, "task %s", t.ID)
	})
}

func (m *mockStore) DeleteTask(_ context.Context, projectID int64, id string) error {
	return m.write(func(s *memState) error {
		for i, existing := range s.tasks {
			if existing.ID == id && existing.ProjectID == projectID {
				s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
				kept := s.dependencies[:0:0]
				for _, d := range s.dependencies {
					if d.PredecessorID != id && d.SuccessorID != id {
						kept = append(kept, d)
					}
				}
				s.dependencies = kept
				return nil
			}
		}
		return errors.Wrapf(ErrNotFound, "task %s", id)
	})
}

func (m *mockStore) GetTask(_ context.Context, projectID int64, id string) (models.Task, error) {
	var (
		task  models.Task
		found bool
	)
	m.read(func(s *memState) {
		for _, t := range s.tasks {
			if t.ID == id && t.ProjectID == projectID {
				task, found = t, true
				return
			}
		}
	})
	if !found {
		return models.Task{}, ErrNotFound
	}
	return task, nil
}

func (m *mockStore) FindTask(_ context.Context, id string) (models.Task, error) {
	var (
		task  models.Task
		found bool
	)
	m.read(func(s *memState) {
		for _, t := range s.tasks {
			if t.ID == id {
				task, found = t, true
				return
			}
		}
	})
	if !found {
		return models.Task{}, ErrNotFound
	}
	return task, nil
}

func (m *mockStore) ListTasks(_ context.Context, projectID int64) ([]models.Task, error) {
	var tasks []models.Task
	m.read(func(s *memState) {
		for _, t := range s.tasks {
			if t.ProjectID == projectID {
				tasks = append(tasks, t)
			}
		}
	})
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

func (m *mockStore) SaveDependency(_ context.Context, d models.Dependency) error {
	return m.write(func(s *memState) error {
		for _, existing := range s.dependencies {
			if existing.ID == d.ID {
				return errors.New("dependency already exists")
			}
			if existing.ProjectID == d.ProjectID && existing.SameRelation(d) {
				return errors.New("dependency already exists")
			}
		}
		s.dependencies = append(s.dependencies, d)
		return nil
	})
}

func (m *mockStore) DeleteDependency(_ context.Context, projectID int64, id string) error {
	return m.write(func(s *memState) error {
		for i, d := range s.dependencies {
			if d.ID == id && d.ProjectID == projectID {
				s.dependencies = append(s.dependencies[:i:i], s.dependencies[i+1:]...)
				return nil
			}
		}
		return errors.Wrapf(ErrNotFound, "dependency %s", id)
	})
}

func (m *mockStore) ListDependencies(_ context.Context, projectID int64) ([]models.Dependency, error) {
	var deps []models.Dependency
	m.read(func(s *memState) {
		for _, d := range s.dependencies {
			if d.ProjectID == projectID {
				deps = append(deps, d)
			}
		}
	})
	sort.Slice(deps, func(i, j int) bool { return deps[i].ID < deps[j].ID })
	return deps, nil
}

func (m *mockStore) SaveMutation(_ context.Context, entry models.MutationLog) error {
	return m.write(func(s *memState) error {
		s.nextMutationID++
		entry.ID = s.nextMutationID
		s.mutations = append(s.mutations, entry)
		return nil
	})
}

func (m *mockStore) ListMutations(_ context.Context, projectID int64) ([]models.MutationLog, error) {
	logs := []models.MutationLog{}
	m.read(func(s *memState) {
		for _, l := range s.mutations {
			if l.ProjectID == projectID {
				logs = append(logs, l)
			}
		}
	})
	return logs, nil
}

func hasProject(s *memState, id int64) bool {
	for _, p := range s.projects {
		if p.ID == id {
			return true
		}
	}
	return false
}
