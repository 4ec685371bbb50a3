// Package cpm computes critical path schedules over a project's combined dependency graph,
// honouring the four dependency types and their lag.
package cpm

import (
	"github.com/ignatij/goschedule/pkg/graph"
	"github.com/ignatij/goschedule/pkg/models"
	"github.com/pkg/errors"
)

// Calculate runs the forward and backward passes over g. A graph that cannot be ordered
// topologically yields ErrInternalInconsistency: validation should have rejected the cycle.
func Calculate(g *graph.Graph, opts Options) (*Result, error) {
	order, err := g.TopologicalOrder()
	if err != nil {
		inconsistency := models.NewError(models.ErrInternalInconsistency,
			"project %d: dependency graph is not acyclic: %v", g.ProjectID, err)
		var se *models.ScheduleError
		if errors.As(err, &se) {
			inconsistency.WithTasks(se.TaskIDs...)
		}
		return nil, inconsistency
	}

	result := &Result{
		Tasks: make(map[string]*TaskSchedule, len(order)),
		Order: order,
	}
	for _, id := range order {
		result.Tasks[id] = &TaskSchedule{TaskID: id, Duration: g.Task(id).Duration()}
	}
	if len(order) == 0 {
		return result, nil
	}

	// Forward pass: ES = max over incoming constraints. Tasks without explicit
	// predecessors are also held at their stored start date.
	for _, id := range order {
		ts := result.Tasks[id]
		es, set := 0, false
		if len(g.Incoming(id)) == 0 {
			es, set = models.DayNumber(g.Task(id).StartDate), true
		}
		for _, l := range g.InLinks(id) {
			if b := result.startBound(l); !set || b > es {
				es, set = b, true
			}
		}
		ts.ES = es
		ts.EF = es + ts.Duration
	}

	result.Start, result.Finish = result.Tasks[order[0]].ES, result.Tasks[order[0]].EF
	for _, ts := range result.Tasks {
		result.Start = min(result.Start, ts.ES)
		result.Finish = max(result.Finish, ts.EF)
	}

	floor, hasFloor := 0, opts.ProjectEnd != nil
	if hasFloor {
		floor = models.DayNumber(*opts.ProjectEnd)
	}

	// Backward pass in reverse topological order.
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		ts := result.Tasks[id]
		out := g.OutLinks(id)
		if len(out) == 0 {
			ts.LF = ts.EF
			if hasFloor {
				ts.LF = max(ts.LF, floor)
			}
		} else {
			for j, l := range out {
				if b := result.finishBound(l); j == 0 || b < ts.LF {
					ts.LF = b
				}
			}
		}
		ts.LS = ts.LF - ts.Duration
		ts.Float = ts.LS - ts.ES
		ts.IsCritical = ts.Float == 0
	}

	for _, id := range order {
		if result.Tasks[id].IsCritical {
			result.Critical = append(result.Critical, id)
		}
	}
	result.CriticalChain = result.criticalChain(g)

	return result, nil
}

// StartBound returns the earliest start a link imposes on its target, given the computed
// dates of its source. ok is false when either end is unknown to the result.
func (r *Result) StartBound(l graph.Link) (bound int, ok bool) {
	if r.Tasks[l.From] == nil || r.Tasks[l.To] == nil {
		return 0, false
	}
	return r.startBound(l), true
}

// DurationDays is the span from the earliest start to the latest earliest finish.
func (r *Result) DurationDays() int {
	return r.Finish - r.Start
}

func (r *Result) startBound(l graph.Link) int {
	pred := r.Tasks[l.From]
	dur := r.Tasks[l.To].Duration
	switch l.Type {
	case models.StartToStart:
		return pred.ES + l.Lag
	case models.FinishToFinish:
		return pred.EF + l.Lag - dur
	case models.StartToFinish:
		return pred.ES + l.Lag - dur
	default:
		return pred.EF + l.Lag
	}
}

// finishBound is the mirror of startBound: the latest finish of the link's source that
// keeps its target at or after the target's latest dates.
func (r *Result) finishBound(l graph.Link) int {
	succ := r.Tasks[l.To]
	dur := r.Tasks[l.From].Duration
	switch l.Type {
	case models.StartToStart:
		return succ.LS - l.Lag + dur
	case models.FinishToFinish:
		return succ.LF - l.Lag
	case models.StartToFinish:
		return succ.LF - l.Lag + dur
	default:
		return succ.LS - l.Lag
	}
}

// criticalChain picks the critical task with the latest finish (lowest id on ties) and
// walks back through critical predecessors whose link drives its earliest start.
func (r *Result) criticalChain(g *graph.Graph) []string {
	end := ""
	for _, id := range r.Critical {
		ts := r.Tasks[id]
		if end == "" || ts.EF > r.Tasks[end].EF || (ts.EF == r.Tasks[end].EF && id < end) {
			end = id
		}
	}
	if end == "" {
		return nil
	}

	chain := []string{end}
	seen := map[string]bool{end: true}
	for cur := end; ; {
		next := ""
		for _, l := range g.InLinks(cur) {
			pred := r.Tasks[l.From]
			if !pred.IsCritical || seen[l.From] || r.startBound(l) != r.Tasks[cur].ES {
				continue
			}
			if next == "" || l.From < next {
				next = l.From
			}
		}
		if next == "" {
			break
		}
		chain = append(chain, next)
		seen[next] = true
		cur = next
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}
