// Package depgraph topologically orders the intra-document app dependency
// graph (depends_on) and resolves cross-document (deps) requirements
// against the state store (spec.md §4.3). The same Kahn's-algorithm
// primitive also orders hook task DAGs (internal/hook) since both are
// "named node depends on named node" graphs with the same determinism
// requirement (spec.md §8.1, testable property 6).
package depgraph

import (
	"sort"

	"github.com/pkg/errors"
)

// Node is anything with a stable name and a list of dependency names.
type Node interface {
	NodeName() string
	NodeDependsOn() []string
}

// TopoSort orders nodes so every dependency precedes its dependents.
// Ties are broken by lexical node name so the same graph always produces
// the same order (needed for deterministic --set argument ordering and
// reproducible AppDeployment timestamps). Returns an error naming every
// node on a cycle, or naming any dependency that isn't itself a node.
func TopoSort[T Node](nodes []T) ([]T, error) {
	byName := make(map[string]T, len(nodes))
	for _, n := range nodes {
		byName[n.NodeName()] = n
	}

	indegree := make(map[string]int, len(nodes))
	dependents := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		if _, ok := indegree[n.NodeName()]; !ok {
			indegree[n.NodeName()] = 0
		}
		for _, dep := range n.NodeDependsOn() {
			if _, ok := byName[dep]; !ok {
				return nil, errors.Errorf("%s depends on undefined node %q", n.NodeName(), dep)
			}
			indegree[n.NodeName()]++
			dependents[dep] = append(dependents[dep], n.NodeName())
		}
	}

	var ready []string
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	var order []T
	for len(ready) > 0 {
		sort.Strings(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, byName[next])

		children := append([]string(nil), dependents[next]...)
		sort.Strings(children)
		for _, child := range children {
			indegree[child]--
			if indegree[child] == 0 {
				ready = append(ready, child)
			}
		}
	}

	if len(order) != len(nodes) {
		cycle := findCycle(nodes)
		return nil, errors.Errorf("circular dependency: %s", joinCycle(cycle))
	}
	return order, nil
}

// findCycle performs a DFS to name every node on some cycle, for the error
// message; TopoSort already knows a cycle exists by the time this runs.
func findCycle[T Node](nodes []T) []string {
	byName := make(map[string]T, len(nodes))
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		byName[n.NodeName()] = n
		names = append(names, n.NodeName())
	}
	sort.Strings(names)

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(nodes))
	var path []string
	var result []string

	var visit func(string) bool
	visit = func(name string) bool {
		color[name] = gray
		path = append(path, name)
		deps := append([]string(nil), byName[name].NodeDependsOn()...)
		sort.Strings(deps)
		for _, d := range deps {
			if color[d] == gray {
				for i, p := range path {
					if p == d {
						result = append(append([]string{}, path[i:]...), d)
						return true
					}
				}
			}
			if color[d] == white {
				if visit(d) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		color[name] = black
		return false
	}

	for _, n := range names {
		if color[n] == white {
			if visit(n) {
				break
			}
		}
	}
	return result
}

func joinCycle(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += " -> "
		}
		out += p
	}
	return out
}
