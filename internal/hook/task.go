// Package hook executes the typed task lists attached to the five
// command/app lifecycle points (spec.md §4.5): ordering tasks within a list
// as a dependency DAG, running command/manifests/inline tasks, validating
// outcomes, and reversing applied manifests when a task's on_failure policy
// is "rollback".
package hook

import "github.com/sbkube/sbkube/internal/config"

// taskNode adapts config.HookTask to depgraph.Node so a hook list's
// depends_on edges can be ordered with the same topological sort used for
// app dependencies.
type taskNode struct {
	task config.HookTask
}

func (n taskNode) NodeName() string        { return n.task.Name }
func (n taskNode) NodeDependsOn() []string { return n.task.DependsOn }

// unnamedTaskPrefix gives every anonymous task a stable synthetic name so it
// can still participate in the DAG: _task_0, _task_1, ... by position in the
// list. A depends_on entry naming one resolves like any other task name.
const unnamedTaskPrefix = "_task_"
