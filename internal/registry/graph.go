package registry

import (
	"fmt"
	"sort"
)

// adjacency maps a feature id to the ids it depends on through edges accepted
// by keep. Targets are sorted so traversals are deterministic.
func adjacency(edges []DependencyEdge, keep func(DependencyEdge) bool) map[string][]string {
	adj := make(map[string][]string)
	for _, e := range edges {
		if keep(e) {
			adj[e.FeatureID] = append(adj[e.FeatureID], e.DependsOn)
		}
	}
	for id := range adj {
		sort.Strings(adj[id])
	}
	return adj
}

func requiredOnly(e DependencyEdge) bool { return e.Type == DependencyRequired }

// findPath returns a path from start to target following adj, or nil.
func findPath(adj map[string][]string, start, target string) []string {
	visited := make(map[string]bool)
	var path []string

	var walk func(id string) bool
	walk = func(id string) bool {
		visited[id] = true
		path = append(path, id)
		if id == target {
			return true
		}
		for _, next := range adj[id] {
			if !visited[next] && walk(next) {
				return true
			}
		}
		path = path[:len(path)-1]
		return false
	}

	if walk(start) {
		return path
	}
	return nil
}

// verifyAcyclic detects a cycle among adj using a DFS recursion stack.
func verifyAcyclic(ids []string, adj map[string][]string) error {
	visited := make(map[string]bool)
	recursionStack := make(map[string]bool)

	var checkCycle func(id string) error
	checkCycle = func(id string) error {
		visited[id] = true
		recursionStack[id] = true

		for _, dep := range adj[id] {
			if !visited[dep] {
				if err := checkCycle(dep); err != nil {
					return err
				}
			} else if recursionStack[dep] {
				return &CycleError{Path: []string{id, dep}}
			}
		}

		recursionStack[id] = false
		return nil
	}

	for _, id := range ids {
		if !visited[id] {
			if err := checkCycle(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// topologicalOrder returns ids so that each id follows everything it depends
// on in adj. Ids absent from the input are not emitted.
func topologicalOrder(ids []string, adj map[string][]string) ([]string, error) {
	if err := verifyAcyclic(ids, adj); err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}

	sorted := make([]string, 0, len(ids))
	visited := make(map[string]bool)

	var visit func(id string)
	visit = func(id string) {
		if visited[id] || !known[id] {
			return
		}
		visited[id] = true
		for _, dep := range adj[id] {
			visit(dep)
		}
		sorted = append(sorted, id)
	}

	for _, id := range ids {
		visit(id)
	}
	return sorted, nil
}

// buildGraph assembles the graph view from store contents.
func buildGraph(features []*FeatureDefinition, edges []DependencyEdge) (*Graph, error) {
	g := &Graph{
		Nodes: make([]GraphNode, 0, len(features)),
		Edges: edges,
	}
	ids := make([]string, 0, len(features))
	for _, f := range features {
		g.Nodes = append(g.Nodes, GraphNode{ID: f.ID, Name: f.Name, Enabled: f.Enabled})
		ids = append(ids, f.ID)
	}

	order, err := topologicalOrder(ids, adjacency(edges, requiredOnly))
	if err != nil {
		return nil, fmt.Errorf("order features: %w", err)
	}
	g.Order = order
	return g, nil
}
