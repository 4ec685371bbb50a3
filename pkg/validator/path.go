package validator

import "github.com/ignatij/goschedule/pkg/graph"

// FindPath searches the combined graph (dependencies plus containment) depth-first from
// `from` and returns the first path reaching `to`, both ends included. Links are visited
// in graph order so the reported path is stable. It returns nil when `to` is unreachable.
func FindPath(g *graph.Graph, from, to string) []string {
	if !g.Has(from) || !g.Has(to) {
		return nil
	}
	visited := make(map[string]bool)
	var path []string

	var dfs func(node string) bool
	dfs = func(node string) bool {
		visited[node] = true
		path = append(path, node)
		if node == to {
			return true
		}
		for _, l := range g.OutLinks(node) {
			if visited[l.To] {
				continue
			}
			if dfs(l.To) {
				return true
			}
		}
		path = path[:len(path)-1]
		return false
	}

	if dfs(from) {
		return path
	}
	return nil
}
