// Package progress rolls leaf progress and status up to parent tasks.
package progress

import (
	"math"
	"time"

	"github.com/ignatij/goschedule/pkg/cpm"
	"github.com/ignatij/goschedule/pkg/graph"
	"github.com/ignatij/goschedule/pkg/models"
)

// Rollup is the effective progress and status of a task. Derived is set for tasks with
// children, whose values are computed rather than stored.
type Rollup struct {
	Progress float64
	Status   models.TaskStatus
	Derived  bool
	// Blocking holds the explicit FS/SS dependencies whose window elapsed by the as-of
	// date without the predecessor meeting its side.
	Blocking []models.Dependency
}

// Aggregate computes the rollup of every task in g. Leaves keep their stored values; parents
// take the duration-weighted mean of their non-cancelled children, bottom-up along the
// reverse of res.Order. Blocked is decided in a second pass, once every predecessor's
// rollup is final. asOf decides which dependency windows have elapsed.
func Aggregate(g *graph.Graph, res *cpm.Result, asOf time.Time) map[string]Rollup {
	out := make(map[string]Rollup, len(res.Order))
	for _, id := range res.Order {
		t := g.Task(id)
		out[id] = Rollup{Progress: t.Progress, Status: t.Status}
	}

	for i := len(res.Order) - 1; i >= 0; i-- {
		id := res.Order[i]
		if children := g.Children(id); len(children) > 0 {
			out[id] = derive(res, out, children)
		}
	}

	// held marks tasks that hold their parent up: a blocked leaf, a parent with a held
	// child, or any task whose own FS/SS window has elapsed.
	today := models.DayNumber(asOf)
	held := make(map[string]bool, len(res.Order))
	var blockedParents []string
	blocking := make(map[string][]models.Dependency)
	for i := len(res.Order) - 1; i >= 0; i-- {
		id := res.Order[i]
		r := out[id]
		if r.Derived && r.Status != models.CompletedTaskStatus && r.Status != models.CancelledTaskStatus {
			for _, c := range g.Children(id) {
				if out[c].Status != models.CancelledTaskStatus && held[c] {
					blockedParents = append(blockedParents, id)
					held[id] = true
					break
				}
			}
		}
		if !r.Derived && r.Status == models.BlockedTaskStatus {
			held[id] = true
		}
		if edges := blockingEdges(g, res, out, id, today); len(edges) > 0 {
			blocking[id] = edges
			held[id] = true
		}
	}
	for id, edges := range blocking {
		r := out[id]
		r.Blocking = edges
		out[id] = r
	}
	for _, id := range blockedParents {
		r := out[id]
		r.Status = models.BlockedTaskStatus
		out[id] = r
	}
	return out
}

// derive rolls up progress and completion of a parent from its children's rollups.
func derive(res *cpm.Result, rollups map[string]Rollup, children []string) Rollup {
	var (
		weighted, weights, sum float64
		active                 int
		cancelled, completed   int
		started                bool
	)
	for _, c := range children {
		r := rollups[c]
		if r.Status == models.CancelledTaskStatus {
			cancelled++
			continue
		}
		w := float64(res.Tasks[c].Duration)
		weighted += w * r.Progress
		weights += w
		sum += r.Progress
		active++

		if r.Status == models.CompletedTaskStatus {
			completed++
		}
		if r.Progress > 0 || r.Status == models.InProgressTaskStatus {
			started = true
		}
	}

	r := Rollup{Derived: true}
	switch {
	case active == 0:
		r.Progress = 0
	case weights > 0:
		r.Progress = round(weighted / weights)
	default:
		r.Progress = round(sum / float64(active))
	}

	switch {
	case cancelled == len(children):
		r.Status = models.CancelledTaskStatus
	case completed == active:
		r.Status = models.CompletedTaskStatus
	case started:
		r.Status = models.InProgressTaskStatus
	default:
		r.Status = models.ToDoTaskStatus
	}
	return r
}

// blockingEdges returns the explicit FS and SS dependencies of taskID whose predecessor has
// not met its side of the constraint by today. Completed and cancelled tasks are never blocked.
func blockingEdges(g *graph.Graph, res *cpm.Result, rollups map[string]Rollup, taskID string, today int) []models.Dependency {
	if s := rollups[taskID].Status; s == models.CompletedTaskStatus || s == models.CancelledTaskStatus {
		return nil
	}
	var edges []models.Dependency
	for _, d := range g.Incoming(taskID) {
		if blocks(d, res, rollups, today) {
			edges = append(edges, d)
		}
	}
	return edges
}

func blocks(d models.Dependency, res *cpm.Result, rollups map[string]Rollup, today int) bool {
	pred, ok := res.Tasks[d.PredecessorID]
	if !ok {
		return false
	}
	p := rollups[d.PredecessorID]
	switch d.Type {
	case models.FinishToStart:
		done := p.Status == models.CompletedTaskStatus || p.Status == models.CancelledTaskStatus
		return !done && today >= pred.EF+d.Lag
	case models.StartToStart:
		notStarted := p.Status == models.ToDoTaskStatus && p.Progress == 0
		return notStarted && today >= pred.ES+d.Lag
	default:
		return false
	}
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}
