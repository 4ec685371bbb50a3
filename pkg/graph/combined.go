package graph

import (
	"github.com/ignatij/goschedule/pkg/models"
)

// Link is an edge of the combined graph: either an explicit dependency or the implicit
// containment link from a parent to each of its children. Containment behaves as a
// start-to-start constraint with zero lag.
type Link struct {
	From     string
	To       string
	Type     models.DependencyType
	Lag      int
	EdgeID   string // empty for containment
	Implicit bool
}

// OutLinks returns the combined outgoing links of id: explicit edges first (by edge id),
// then containment links to children (by child id).
func (g *Graph) OutLinks(id string) []Link {
	links := make([]Link, 0, len(g.out[id])+len(g.children[id]))
	for _, eid := range g.out[id] {
		links = append(links, edgeLink(g.edges[eid]))
	}
	for _, child := range g.children[id] {
		links = append(links, containment(id, child))
	}
	return links
}

// InLinks returns the combined incoming links of id.
func (g *Graph) InLinks(id string) []Link {
	links := make([]Link, 0, len(g.in[id])+1)
	for _, eid := range g.in[id] {
		links = append(links, edgeLink(g.edges[eid]))
	}
	if parent := g.Parent(id); parent != "" {
		links = append(links, containment(parent, id))
	}
	return links
}

// TopologicalOrder returns every task in an order where each link's source precedes its
// target. Among ready tasks the smallest id goes first, so the order depends only on the
// graph content. A cycle yields ErrCycleDetected listing the tasks that could not be ordered.
func (g *Graph) TopologicalOrder() ([]string, error) {
	inDegree := make(map[string]int, len(g.tasks))
	var ready []string
	for _, id := range g.TaskIDs() {
		inDegree[id] = len(g.InLinks(id))
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]string, 0, len(g.tasks))
	for len(ready) > 0 {
		node := ready[0]
		ready = ready[1:]
		order = append(order, node)

		for _, l := range g.OutLinks(node) {
			inDegree[l.To]--
			if inDegree[l.To] == 0 {
				ready = insertSorted(ready, l.To)
			}
		}
	}

	if len(order) != len(g.tasks) {
		var stuck []string
		for _, id := range g.TaskIDs() {
			if inDegree[id] > 0 {
				stuck = append(stuck, id)
			}
		}
		return nil, models.NewError(models.ErrCycleDetected,
			"topological sort ordered %d of %d tasks", len(order), len(g.tasks)).WithTasks(stuck...)
	}
	return order, nil
}

func edgeLink(e *models.Dependency) Link {
	return Link{From: e.PredecessorID, To: e.SuccessorID, Type: e.Type, Lag: e.Lag, EdgeID: e.ID}
}

func containment(parent, child string) Link {
	return Link{From: parent, To: child, Type: models.StartToStart, Implicit: true}
}
