// Package plan reads a project plan from TOML and replays it through the schedule service,
// so every task and dependency of the file passes the same validation as an interactive edit.
package plan

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ignatij/goschedule/pkg/models"
	toml "github.com/pelletier/go-toml/v2"
)

// Plan is the content of a plan file.
//
//	[project]
//	name  = "Riverside Block C"
//	start = "2024-01-01"
//
//	[[task]]
//	key   = "found"
//	name  = "Foundation"
//	start = "2024-01-01"
//	due   = "2024-01-05"
//
//	[[dependency]]
//	from = "found"
//	to   = "frame"
//	type = "FS"
//	lag  = 2
type Plan struct {
	Project      ProjectSpec      `toml:"project"`
	Tasks        []TaskSpec       `toml:"task"`
	Dependencies []DependencySpec `toml:"dependency"`
}

type ProjectSpec struct {
	Name  string `toml:"name"`
	Start string `toml:"start"`
	End   string `toml:"end"`
}

// TaskSpec describes one task. Key is local to the file; Parent refers to another key.
type TaskSpec struct {
	Key      string  `toml:"key"`
	Name     string  `toml:"name"`
	Start    string  `toml:"start"`
	Due      string  `toml:"due"`
	Parent   string  `toml:"parent"`
	Status   string  `toml:"status"`
	Priority string  `toml:"priority"`
	Progress float64 `toml:"progress"`
}

type DependencySpec struct {
	From string `toml:"from"`
	To   string `toml:"to"`
	Type string `toml:"type"`
	Lag  int    `toml:"lag"`
}

// Importer is the part of the schedule service a plan is replayed through.
type Importer interface {
	CreateProject(ctx context.Context, name string, start time.Time, end *time.Time) (int64, error)
	ProposeTask(ctx context.Context, projectID int64, attrs models.Task) (string, *models.ScheduleSnapshot, error)
	ProposeEdge(ctx context.Context, projectID int64, predecessor, successor string, typ models.DependencyType, lag int) (string, *models.ScheduleSnapshot, error)
}

// Result reports what an import created. On a failed import it holds everything created
// before the failure.
type Result struct {
	ProjectID int64
	TaskIDs   map[string]string // plan key -> task id
	EdgeIDs   []string
	Snapshot  *models.ScheduleSnapshot
}

// Load reads and parses a plan file.
func Load(path string) (*Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a plan and checks that its keys are consistent.
func Parse(r io.Reader) (*Plan, error) {
	var p Plan
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("parsing plan: %w", err)
	}
	if _, err := p.taskOrder(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Import creates the project, then its tasks with parents before children, then the
// dependencies in file order. It stops at the first rejected entry.
func Import(ctx context.Context, svc Importer, p *Plan) (*Result, error) {
	order, err := p.taskOrder()
	if err != nil {
		return nil, err
	}
	start, err := parseDate("project start", p.Project.Start)
	if err != nil {
		return nil, err
	}
	var end *time.Time
	if p.Project.End != "" {
		e, err := parseDate("project end", p.Project.End)
		if err != nil {
			return nil, err
		}
		end = &e
	}

	res := &Result{TaskIDs: make(map[string]string, len(p.Tasks))}
	res.ProjectID, err = svc.CreateProject(ctx, p.Project.Name, start, end)
	if err != nil {
		return nil, fmt.Errorf("creating project '%s': %w", p.Project.Name, err)
	}

	for _, ts := range order {
		t, err := ts.task()
		if err != nil {
			return res, err
		}
		if ts.Parent != "" {
			parent := res.TaskIDs[ts.Parent]
			t.ParentID = &parent
		}
		id, snap, err := svc.ProposeTask(ctx, res.ProjectID, t)
		if err != nil {
			return res, fmt.Errorf("task '%s': %w", ts.Key, err)
		}
		res.TaskIDs[ts.Key] = id
		res.Snapshot = snap
	}

	for i, ds := range p.Dependencies {
		pred, ok := res.TaskIDs[ds.From]
		if !ok {
			return res, fmt.Errorf("dependency %d: unknown task key '%s'", i+1, ds.From)
		}
		succ, ok := res.TaskIDs[ds.To]
		if !ok {
			return res, fmt.Errorf("dependency %d: unknown task key '%s'", i+1, ds.To)
		}
		typ, err := models.ParseDependencyType(ds.Type)
		if err != nil {
			return res, fmt.Errorf("dependency %s -> %s: %w", ds.From, ds.To, err)
		}
		id, snap, err := svc.ProposeEdge(ctx, res.ProjectID, pred, succ, typ, ds.Lag)
		if err != nil {
			return res, fmt.Errorf("dependency %s -> %s: %w", ds.From, ds.To, err)
		}
		res.EdgeIDs = append(res.EdgeIDs, id)
		res.Snapshot = snap
	}
	return res, nil
}

// taskOrder returns the tasks with every parent ahead of its children, otherwise in file order.
func (p *Plan) taskOrder() ([]TaskSpec, error) {
	byKey := make(map[string]TaskSpec, len(p.Tasks))
	for _, t := range p.Tasks {
		if t.Key == "" {
			return nil, fmt.Errorf("task '%s' has no key", t.Name)
		}
		if _, dup := byKey[t.Key]; dup {
			return nil, fmt.Errorf("duplicate task key '%s'", t.Key)
		}
		byKey[t.Key] = t
	}

	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int, len(p.Tasks))
	order := make([]TaskSpec, 0, len(p.Tasks))
	var visit func(key string, chain []string) error
	visit = func(key string, chain []string) error {
		switch state[key] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("parent cycle: %s", strings.Join(append(chain, key), " -> "))
		}
		t := byKey[key]
		state[key] = visiting
		if t.Parent != "" {
			if _, ok := byKey[t.Parent]; !ok {
				return fmt.Errorf("task '%s': unknown parent key '%s'", key, t.Parent)
			}
			if err := visit(t.Parent, append(chain, key)); err != nil {
				return err
			}
		}
		state[key] = done
		order = append(order, t)
		return nil
	}
	for _, t := range p.Tasks {
		if err := visit(t.Key, nil); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (ts TaskSpec) task() (models.Task, error) {
	start, err := parseDate(fmt.Sprintf("task '%s' start", ts.Key), ts.Start)
	if err != nil {
		return models.Task{}, err
	}
	due, err := parseDate(fmt.Sprintf("task '%s' due", ts.Key), ts.Due)
	if err != nil {
		return models.Task{}, err
	}
	t := models.Task{
		Name:      ts.Name,
		StartDate: start,
		DueDate:   due,
		Progress:  ts.Progress,
		Priority:  models.Priority(strings.ToUpper(strings.TrimSpace(ts.Priority))),
	}
	if ts.Status != "" {
		st, ok := models.ParseTaskStatus(ts.Status)
		if !ok {
			return models.Task{}, fmt.Errorf("task '%s': invalid status '%s'", ts.Key, ts.Status)
		}
		t.Status = st
	}
	return t, nil
}

func parseDate(what, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("%s is required", what)
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: invalid date '%s'", what, s)
	}
	return d, nil
}
