package pipeline

import (
	"sort"

	"github.com/sbkube/sbkube/internal/config"
	"github.com/sbkube/sbkube/internal/depgraph"
)

// appNode adapts config.ResolvedApp to depgraph.Node over depends_on
// (intra-document ordering only; deps/app-group requirements are resolved
// separately against the state store before the pipeline ever runs).
type appNode struct {
	resolved config.ResolvedApp
}

func (n appNode) NodeName() string { return n.resolved.Name }

func (n appNode) NodeDependsOn() []string { return n.resolved.App.DependsOn }

// Levels groups apps into dependency waves: every app in level i depends
// only on apps in levels < i, and apps within the same level share no
// dependency relation and may run concurrently (spec.md §5 "apps with no
// mutual dependency may be processed in parallel by a worker pool").
func Levels(apps []config.ResolvedApp) ([][]config.ResolvedApp, error) {
	nodes := make([]appNode, len(apps))
	byName := make(map[string]config.ResolvedApp, len(apps))
	for i, a := range apps {
		nodes[i] = appNode{resolved: a}
		byName[a.Name] = a
	}

	order, err := depgraph.TopoSort(nodes)
	if err != nil {
		return nil, err
	}

	depth := make(map[string]int, len(order))
	for _, n := range order {
		max := -1
		for _, dep := range n.NodeDependsOn() {
			if depth[dep] > max {
				max = depth[dep]
			}
		}
		depth[n.NodeName()] = max + 1
	}

	maxDepth := 0
	for _, d := range depth {
		if d > maxDepth {
			maxDepth = d
		}
	}

	levels := make([][]config.ResolvedApp, maxDepth+1)
	for _, n := range order {
		d := depth[n.NodeName()]
		levels[d] = append(levels[d], byName[n.NodeName()])
	}
	for _, lvl := range levels {
		sort.Slice(lvl, func(i, j int) bool { return lvl[i].Name < lvl[j].Name })
	}
	return levels, nil
}
