package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/sbkube/sbkube/internal/config"
	"github.com/sbkube/sbkube/internal/errs"
	"github.com/sbkube/sbkube/internal/hook"
	"github.com/sbkube/sbkube/internal/log"
	"github.com/sbkube/sbkube/internal/state"
	"github.com/sbkube/sbkube/internal/tool"
)

// DefaultWorkerPoolSize is the default concurrency within one dependency
// level (spec.md §5: "worker pool (default size 4, configurable)").
const DefaultWorkerPoolSize = 4

// StageFunc is one app's unit of work for a given stage.
type StageFunc func(ctx context.Context, app config.ResolvedApp) error

// Orchestrator drives apps through prepare/build/template/deploy in
// dependency-topological order, bounded by a worker pool per level.
type Orchestrator struct {
	Driver         *tool.Driver
	Store          *state.Store
	HookExec       *hook.Executor
	Log            log.Logger
	WorkerPoolSize int
	DryRun         bool

	// Only set of app names to run (narrowed from the execution trace by
	// --retry-failed/--resume); nil means run every resolved app.
	Only map[string]bool
}

func (o *Orchestrator) poolSize() int {
	if o.WorkerPoolSize > 0 {
		return o.WorkerPoolSize
	}
	return DefaultWorkerPoolSize
}

// AppResult is one app's outcome within a stage run.
type AppResult struct {
	App     string
	Skipped bool
	Err     error
}

// StageResult aggregates one stage's run across every resolved app.
type StageResult struct {
	Results []AppResult
}

// Failed reports whether any app in the stage failed (skips don't count).
func (r StageResult) Failed() bool {
	for _, res := range r.Results {
		if res.Err != nil {
			return true
		}
	}
	return false
}

// RunStage runs fn over apps level-by-level: within a level, up to
// poolSize() apps run concurrently; an app whose transitive dependency
// failed is skipped rather than attempted (spec.md §8.1 testable property 1,
// §5 "Ordering guarantees").
func (o *Orchestrator) RunStage(ctx context.Context, stage Stage, apps []config.ResolvedApp, fn StageFunc) (*StageResult, error) {
	apps = o.filterEnabled(apps)

	levels, err := Levels(apps)
	if err != nil {
		return nil, errs.Wrap(errs.Validation, err, "cannot order apps for "+string(stage))
	}

	result := &StageResult{}
	failed := make(map[string]bool)

	for _, level := range levels {
		sem := make(chan struct{}, o.poolSize())
		var wg sync.WaitGroup
		var mu sync.Mutex

		for _, app := range level {
			app := app
			if o.Only != nil && !o.Only[app.Name] {
				continue
			}

			if dependencyFailed(app, failed) {
				mu.Lock()
				result.Results = append(result.Results, AppResult{App: app.Name, Skipped: true})
				failed[app.Name] = true
				mu.Unlock()
				continue
			}

			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()

				runErr := fn(ctx, app)

				mu.Lock()
				result.Results = append(result.Results, AppResult{App: app.Name, Err: runErr})
				if runErr != nil {
					failed[app.Name] = true
				}
				mu.Unlock()
			}()
		}
		wg.Wait()
	}

	return result, nil
}

func dependencyFailed(app config.ResolvedApp, failed map[string]bool) bool {
	for _, dep := range app.App.DependsOn {
		if failed[dep] {
			return true
		}
	}
	return false
}

func (o *Orchestrator) filterEnabled(apps []config.ResolvedApp) []config.ResolvedApp {
	out := make([]config.ResolvedApp, 0, len(apps))
	for _, a := range apps {
		if a.App.IsEnabled() {
			out = append(out, a)
		}
	}
	return out
}

// summarize renders a one-line failure summary for the CLI layer.
func summarize(stage Stage, result *StageResult) error {
	if !result.Failed() {
		return nil
	}
	var failedApps []string
	for _, r := range result.Results {
		if r.Err != nil {
			failedApps = append(failedApps, r.App)
		}
	}
	return errs.New(errs.Validation, fmt.Sprintf("%s failed for: %v", stage, failedApps))
}
