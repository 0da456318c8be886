package hook

import (
	"fmt"

	"github.com/sbkube/sbkube/internal/config"
	"github.com/sbkube/sbkube/internal/depgraph"
)

// OrderTasks assigns synthetic names to anonymous tasks and topologically
// sorts the list by depends_on, so independent tasks still get a
// deterministic, reproducible order (spec.md §8.1).
func OrderTasks(tasks []config.HookTask) ([]config.HookTask, error) {
	named := make([]config.HookTask, len(tasks))
	copy(named, tasks)
	for i := range named {
		if named[i].Name == "" {
			named[i].Name = fmt.Sprintf("%s%d", unnamedTaskPrefix, i)
		}
	}

	nodes := make([]taskNode, len(named))
	for i, t := range named {
		nodes[i] = taskNode{task: t}
	}

	sorted, err := depgraph.TopoSort(nodes)
	if err != nil {
		return nil, err
	}

	out := make([]config.HookTask, len(sorted))
	for i, n := range sorted {
		out[i] = n.task
	}
	return out, nil
}
