package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sbkube/sbkube/internal/config"
	"github.com/sbkube/sbkube/internal/errs"
	"github.com/sbkube/sbkube/internal/hook"
	"github.com/sbkube/sbkube/internal/pipeline"
	"github.com/sbkube/sbkube/internal/source"
	"github.com/sbkube/sbkube/internal/state"
	"github.com/sbkube/sbkube/internal/tool"
)

// env bundles everything a pipeline-stage command needs once the workspace
// is resolved: the source context, the parsed root document, the flattened
// app graph, and the shared Driver/Store/HookExecutor/Orchestrator trio
// every stage command drives (spec.md §4.4, component table).
type env struct {
	Source *source.Context
	Root   config.Document
	WS     *config.ResolvedWorkspace

	Driver   *tool.Driver
	Store    *state.Store
	HookExec *hook.Executor
	Orch     *pipeline.Orchestrator

	out io.Writer
}

// newEnv resolves TARGET/-f into a workspace and wires the shared runtime.
// openStore controls whether the local state store is opened: commands
// that neither read nor write deployment records pass false; anything that
// reads or writes state must pass true.
func newEnv(settings *Settings, target string, openStore bool) (*env, error) {
	srcCtx, err := source.Resolve(target, settings.ConfigFile)
	if err != nil {
		return nil, err
	}

	root, ws, err := config.LoadWorkspace(srcCtx.ConfigFile)
	if err != nil {
		return nil, err
	}
	ws = config.FilterByScope(ws, srcCtx.ScopePath)

	logger := settings.Logger()
	driver := tool.New(logger, settings.DryRun)

	var store *state.Store
	if openStore {
		path, err := state.DefaultPath()
		if err != nil {
			return nil, err
		}
		store, err = state.Open(path)
		if err != nil {
			return nil, err
		}
	}

	hookExec := hook.New(driver, logger, settings.DryRun)

	orch := &pipeline.Orchestrator{
		Driver:   driver,
		Store:    store,
		HookExec: hookExec,
		Log:      logger,
		DryRun:   settings.DryRun,
	}

	return &env{
		Source:   srcCtx,
		Root:     *root,
		WS:       ws,
		Driver:   driver,
		Store:    store,
		HookExec: hookExec,
		Orch:     orch,
		out:      os.Stdout,
	}, nil
}

func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// resolveResumeFilter computes the --retry-failed/--resume app-name filter
// from the prior execution trace for this exact workspace (keyed by a hash
// of the canonicalized root document) and, if one applies, narrows
// e.Orch.Only to it (spec.md §4.4 "Re-run semantics"). A first-ever run has
// no trace to resume from, so both flags are a no-op and the full app set
// runs. The returned hash is saved back via recordTrace once the run
// finishes.
func resolveResumeFilter(e *env, retryFailed, resume bool) (hash string, err error) {
	hash, err = pipeline.DocumentHash(&e.Root)
	if err != nil {
		return "", err
	}
	if !retryFailed && !resume {
		return hash, nil
	}
	trace, err := pipeline.LoadTrace(hash)
	if err != nil {
		return "", err
	}
	if trace == nil {
		return hash, nil
	}
	if retryFailed {
		e.Orch.Only = trace.FailedSet()
	} else {
		e.Orch.Only = complementOf(e.WS.Apps, trace.ResumeSet())
	}
	return hash, nil
}

func complementOf(apps []config.ResolvedApp, done map[string]bool) map[string]bool {
	out := map[string]bool{}
	for _, a := range apps {
		if !done[a.Name] {
			out[a.Name] = true
		}
	}
	return out
}

// recordTrace persists the execution trace for this run so a later
// --resume/--retry-failed invocation against the same workspace hash can
// pick up where it left off. Save failures are logged, not fatal: the trace
// is bookkeeping, not the system of record (the state store is).
func recordTrace(e *env, hash string, stageResults map[pipeline.Stage]*pipeline.StageResult, lastStage pipeline.Stage) {
	trace := &pipeline.Trace{Hash: hash, Stage: lastStage, StartedAt: time.Now()}
	for _, st := range pipeline.StageOrder {
		if sr, ok := stageResults[st]; ok {
			trace.RecordFrom(sr)
		}
	}
	if err := trace.Save(); err != nil {
		e.Orch.Log.Warn("cannot save execution trace", "error", err)
	}
}

// printResult writes one stage's per-app outcome, then returns an error iff
// any app failed (so the caller can set exit code 1 without re-deriving the
// failure list).
func printResult(w io.Writer, stage pipeline.Stage, result *pipeline.StageResult) error {
	var failures []string
	for _, r := range result.Results {
		switch {
		case r.Skipped:
			fmt.Fprintf(w, "%-8s %-24s skipped (dependency failed)\n", stage, r.App)
		case r.Err != nil:
			fmt.Fprintf(w, "%-8s %-24s failed: %v\n", stage, r.App, r.Err)
			failures = append(failures, r.App)
		default:
			fmt.Fprintf(w, "%-8s %-24s ok\n", stage, r.App)
		}
	}
	if len(failures) > 0 {
		return errs.New(errs.Validation, fmt.Sprintf("%s failed for: %v", stage, failures))
	}
	return nil
}

