// Package graph holds the in-memory dependency index of one project: tasks, typed
// dependency edges, and parent/child containment links.
package graph

import (
	"context"
	"sort"

	"github.com/ignatij/goschedule/pkg/models"
	"github.com/ignatij/goschedule/pkg/storage"
	"github.com/pkg/errors"
)

// Graph is the adjacency index of a single project. It is not safe for concurrent
// mutation; the schedule service serializes access per project.
type Graph struct {
	ProjectID int64

	tasks    map[string]*models.Task
	edges    map[string]*models.Dependency
	out      map[string][]string // task -> outgoing edge ids
	in       map[string][]string // task -> incoming edge ids
	children map[string][]string // task -> child task ids
}

// New creates an empty graph for a project.
func New(projectID int64) *Graph {
	return &Graph{
		ProjectID: projectID,
		tasks:     make(map[string]*models.Task),
		edges:     make(map[string]*models.Dependency),
		out:       make(map[string][]string),
		in:        make(map[string][]string),
		children:  make(map[string][]string),
	}
}

// Load builds a graph from every task and dependency of a project. It fails with
// ErrNotFound when the project has no tasks.
func Load(ctx context.Context, store storage.ProjectReader, projectID int64) (*Graph, error) {
	tasks, err := store.ListTasks(ctx, projectID)
	if err != nil {
		return nil, errors.Wrapf(err, "load tasks of project %d", projectID)
	}
	if len(tasks) == 0 {
		return nil, models.NewError(models.ErrNotFound, "project %d has no tasks", projectID)
	}
	deps, err := store.ListDependencies(ctx, projectID)
	if err != nil {
		return nil, errors.Wrapf(err, "load dependencies of project %d", projectID)
	}
	return Build(projectID, tasks, deps)
}

// Build indexes already fetched rows. Parent links may reference tasks listed later.
func Build(projectID int64, tasks []models.Task, deps []models.Dependency) (*Graph, error) {
	g := New(projectID)
	for i := range tasks {
		t := tasks[i]
		if t.ProjectID != projectID {
			return nil, models.NewError(models.ErrCrossProjectEdge,
				"task %s belongs to project %d, not %d", t.ID, t.ProjectID, projectID).WithTasks(t.ID)
		}
		if _, exists := g.tasks[t.ID]; exists {
			return nil, models.NewError(models.ErrInvalidTask, "duplicate task id %s", t.ID).WithTasks(t.ID)
		}
		g.tasks[t.ID] = &t
	}
	for _, t := range g.tasks {
		if !t.HasParent() {
			continue
		}
		if _, ok := g.tasks[*t.ParentID]; !ok {
			return nil, unknownTask(*t.ParentID)
		}
		g.children[*t.ParentID] = insertSorted(g.children[*t.ParentID], t.ID)
	}
	for _, d := range deps {
		if err := g.AddEdge(d); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Clone returns a deep copy so a mutation can be attempted without touching the original.
func (g *Graph) Clone() *Graph {
	c := New(g.ProjectID)
	for id, t := range g.tasks {
		cp := *t
		if t.ParentID != nil {
			parent := *t.ParentID
			cp.ParentID = &parent
		}
		c.tasks[id] = &cp
	}
	for id, e := range g.edges {
		cp := *e
		c.edges[id] = &cp
	}
	for k, v := range g.out {
		c.out[k] = append([]string(nil), v...)
	}
	for k, v := range g.in {
		c.in[k] = append([]string(nil), v...)
	}
	for k, v := range g.children {
		c.children[k] = append([]string(nil), v...)
	}
	return c
}

// AddTask inserts a task. Its parent, if any, must already be in the graph.
func (g *Graph) AddTask(t models.Task) error {
	if _, exists := g.tasks[t.ID]; exists {
		return models.NewError(models.ErrInvalidTask, "task %s already exists", t.ID).WithTasks(t.ID)
	}
	if t.HasParent() {
		if _, ok := g.tasks[*t.ParentID]; !ok {
			return unknownTask(*t.ParentID)
		}
		g.children[*t.ParentID] = insertSorted(g.children[*t.ParentID], t.ID)
	}
	g.tasks[t.ID] = &t
	return nil
}

// UpdateTask replaces the attributes of an existing task, keeping its parent link.
func (g *Graph) UpdateTask(t models.Task) error {
	cur, ok := g.tasks[t.ID]
	if !ok {
		return unknownTask(t.ID)
	}
	t.ParentID = cur.ParentID
	*cur = t
	return nil
}

// RemoveTask deletes a task and every edge touching it. Tasks with children are refused.
func (g *Graph) RemoveTask(id string) error {
	t, ok := g.tasks[id]
	if !ok {
		return unknownTask(id)
	}
	if len(g.children[id]) > 0 {
		return models.NewError(models.ErrTaskHasChildren, "task %s still has %d subtasks", id, len(g.children[id])).WithTasks(id)
	}
	for _, eid := range append(append([]string(nil), g.out[id]...), g.in[id]...) {
		_ = g.RemoveEdge(eid)
	}
	if t.HasParent() {
		g.children[*t.ParentID] = removeString(g.children[*t.ParentID], id)
	}
	delete(g.tasks, id)
	delete(g.out, id)
	delete(g.in, id)
	delete(g.children, id)
	return nil
}

// AddEdge inserts a dependency. It rejects unknown endpoints and an edge duplicating an
// existing (predecessor, successor, type) triple, but does not look for cycles.
func (g *Graph) AddEdge(d models.Dependency) error {
	for _, id := range []string{d.PredecessorID, d.SuccessorID} {
		if _, ok := g.tasks[id]; !ok {
			return unknownTask(id)
		}
	}
	if _, exists := g.edges[d.ID]; exists {
		return models.NewError(models.ErrDuplicateEdge, "dependency id %s already exists", d.ID).
			WithTasks(d.PredecessorID, d.SuccessorID)
	}
	if dup := g.FindEdge(d.PredecessorID, d.SuccessorID, d.Type); dup != nil {
		return models.NewError(models.ErrDuplicateEdge, "%s dependency %s -> %s already exists as %s",
			d.Type, d.PredecessorID, d.SuccessorID, dup.ID).WithTasks(d.PredecessorID, d.SuccessorID)
	}
	e := d
	g.edges[d.ID] = &e
	g.out[d.PredecessorID] = insertSorted(g.out[d.PredecessorID], d.ID)
	g.in[d.SuccessorID] = insertSorted(g.in[d.SuccessorID], d.ID)
	return nil
}

// RemoveEdge deletes a dependency by id.
func (g *Graph) RemoveEdge(edgeID string) error {
	e, ok := g.edges[edgeID]
	if !ok {
		return models.NewError(models.ErrNotFound, "dependency %s not found in project %d", edgeID, g.ProjectID)
	}
	g.out[e.PredecessorID] = removeString(g.out[e.PredecessorID], edgeID)
	g.in[e.SuccessorID] = removeString(g.in[e.SuccessorID], edgeID)
	delete(g.edges, edgeID)
	return nil
}

// SetParent moves a task under parentID, or detaches it when parentID is nil.
func (g *Graph) SetParent(taskID string, parentID *string) error {
	t, ok := g.tasks[taskID]
	if !ok {
		return unknownTask(taskID)
	}
	if parentID != nil {
		if _, ok := g.tasks[*parentID]; !ok {
			return unknownTask(*parentID)
		}
	}
	if t.HasParent() {
		g.children[*t.ParentID] = removeString(g.children[*t.ParentID], taskID)
	}
	if parentID == nil || *parentID == "" {
		t.ParentID = nil
		return nil
	}
	p := *parentID
	t.ParentID = &p
	g.children[p] = insertSorted(g.children[p], taskID)
	return nil
}

// Task returns the task with the given id, or nil.
func (g *Graph) Task(id string) *models.Task {
	return g.tasks[id]
}

// Has reports whether the task exists in the graph.
func (g *Graph) Has(id string) bool {
	_, ok := g.tasks[id]
	return ok
}

// Len returns the number of tasks.
func (g *Graph) Len() int {
	return len(g.tasks)
}

// TaskIDs returns every task id, sorted.
func (g *Graph) TaskIDs() []string {
	ids := make([]string, 0, len(g.tasks))
	for id := range g.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Edge returns the dependency with the given id, or nil.
func (g *Graph) Edge(id string) *models.Dependency {
	return g.edges[id]
}

// Edges returns every dependency ordered by id.
func (g *Graph) Edges() []models.Dependency {
	ids := make([]string, 0, len(g.edges))
	for id := range g.edges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]models.Dependency, 0, len(ids))
	for _, id := range ids {
		out = append(out, *g.edges[id])
	}
	return out
}

// Incoming returns the explicit dependencies whose successor is id.
func (g *Graph) Incoming(id string) []models.Dependency {
	return g.collect(g.in[id])
}

// Children returns the direct subtasks of id, sorted.
func (g *Graph) Children(id string) []string {
	return append([]string(nil), g.children[id]...)
}

// HasChildren reports whether id contains subtasks.
func (g *Graph) HasChildren(id string) bool {
	return len(g.children[id]) > 0
}

// Parent returns the parent id of a task, or "".
func (g *Graph) Parent(id string) string {
	if t, ok := g.tasks[id]; ok && t.HasParent() {
		return *t.ParentID
	}
	return ""
}

// FindEdge returns the edge matching the triple, or nil.
func (g *Graph) FindEdge(pred, succ string, typ models.DependencyType) *models.Dependency {
	for _, eid := range g.out[pred] {
		if e := g.edges[eid]; e.SuccessorID == succ && e.Type == typ {
			return e
		}
	}
	return nil
}

// Predecessors returns the ids of explicit predecessors of id, sorted and unique.
func (g *Graph) Predecessors(id string) []string {
	var ids []string
	for _, eid := range g.in[id] {
		ids = insertSorted(ids, g.edges[eid].PredecessorID)
	}
	return ids
}

func (g *Graph) collect(edgeIDs []string) []models.Dependency {
	out := make([]models.Dependency, 0, len(edgeIDs))
	for _, eid := range edgeIDs {
		out = append(out, *g.edges[eid])
	}
	return out
}

func unknownTask(id string) error {
	return models.NewError(models.ErrUnknownTask, "task %s does not exist", id).WithTasks(id)
}

// insertSorted adds s to a sorted slice, keeping it sorted and free of duplicates.
func insertSorted(list []string, s string) []string {
	i := sort.SearchStrings(list, s)
	if i < len(list) && list[i] == s {
		return list
	}
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = s
	return list
}

func removeString(list []string, s string) []string {
	i := sort.SearchStrings(list, s)
	if i < len(list) && list[i] == s {
		return append(list[:i:i], list[i+1:]...)
	}
	return list
}
