package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sbkube/sbkube/internal/config"
	"github.com/sbkube/sbkube/internal/depgraph"
	"github.com/sbkube/sbkube/internal/pipeline"
	"github.com/sbkube/sbkube/internal/state"
	"github.com/sbkube/sbkube/pkg/cli/require"
)

func newDeployCmd(settings *Settings) *cobra.Command {
	var appName string
	var fromStep, toStep, only string
	var retryFailed, resume bool

	cmd := &cobra.Command{
		Use:   "deploy [TARGET]",
		Short: "Run the deploy stage (optionally widened to earlier stages via --from-step/--only): install/upgrade helm releases, apply manifests, run exec/hook apps",
		Args:  require.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(settings, firstArg(args), !settings.DryRun)
			if err != nil {
				return err
			}
			defer e.Close()

			apps, err := scopeApps(e.WS, appName)
			if err != nil {
				return err
			}

			if err := checkInterGroupDeps(e, apps, true); err != nil {
				return err
			}

			// deploy defaults to running only the deploy stage; --from-step,
			// --to-step, or --only widen that the same way they do for apply
			// (spec.md §4.4 "Re-run semantics").
			onlyStage := only
			if fromStep == "" && toStep == "" && only == "" {
				onlyStage = string(pipeline.StageDeploy)
			}
			stages, err := pipeline.ResolveStages(fromStep, toStep, onlyStage)
			if err != nil {
				return err
			}

			hash, err := resolveResumeFilter(e, retryFailed, resume)
			if err != nil {
				return err
			}

			stageResults, runDeploy, err := e.Orch.RunNonDeployStages(cmd.Context(), e.Source.WorkspaceRoot, apps, stages, false)
			for _, stage := range pipeline.StageOrder {
				if sr, ok := stageResults[stage]; ok {
					_ = printResult(e.out, stage, sr)
				}
			}
			if err != nil {
				recordTrace(e, hash, stageResults, lastRecorded(stageResults))
				return err
			}
			if !runDeploy {
				recordTrace(e, hash, stageResults, lastRecorded(stageResults))
				return nil
			}

			deploymentID, err := deploymentIDForCommand(e, apps, "deploy")
			if err != nil {
				return err
			}

			result, err := e.Orch.RunStage(cmd.Context(), pipeline.StageDeploy, apps, e.Orch.Deploy(e.Source.WorkspaceRoot, deploymentID, apps))
			stageResults[pipeline.StageDeploy] = result
			printErr := printResult(e.out, pipeline.StageDeploy, result)
			recordTrace(e, hash, stageResults, pipeline.StageDeploy)

			if e.Store != nil {
				status := terminalStatus(err, result)
				if finishErr := e.Store.FinishDeployment(deploymentID, status); finishErr != nil {
					return finishErr
				}
			}
			if err != nil {
				return err
			}
			return printErr
		},
	}
	cmd.Flags().StringVar(&appName, "app", "", "restrict to one app and its dependencies")
	cmd.Flags().StringVar(&fromStep, "from-step", "", "start at this stage instead of deploy")
	cmd.Flags().StringVar(&toStep, "to-step", "", "stop after this stage instead of deploy")
	cmd.Flags().StringVar(&only, "only", "", "run exactly this stage instead of deploy")
	cmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "restrict to apps the last run on this workspace left failed")
	cmd.Flags().BoolVar(&resume, "resume", false, "skip apps the last run on this workspace already completed")
	return cmd
}

// lastRecorded reports the latest stage (in StageOrder) that has a result in
// results, for trace bookkeeping when a run stops before reaching deploy.
func lastRecorded(results map[pipeline.Stage]*pipeline.StageResult) pipeline.Stage {
	last := pipeline.StagePrepare
	for _, st := range pipeline.StageOrder {
		if _, ok := results[st]; ok {
			last = st
		}
	}
	return last
}

// scopeApps narrows ws.Apps to a single app and its transitive depends_on
// when --app is set (spec.md §6.1).
func scopeApps(ws *config.ResolvedWorkspace, appName string) ([]config.ResolvedApp, error) {
	if appName == "" {
		return ws.Apps, nil
	}
	narrowed, err := config.FilterByApp(ws, appName)
	if err != nil {
		return nil, err
	}
	return narrowed.Apps, nil
}

// checkInterGroupDeps resolves every app's `deps` against the state store
// (spec.md §4.3). blocking=true fails the command on any unmet dependency;
// blocking=false (validate) only returns warnings.
func checkInterGroupDeps(e *env, apps []config.ResolvedApp, blocking bool) error {
	if e.Store == nil {
		return nil
	}
	var reqs []depgraph.GroupRequirement
	for _, a := range apps {
		if len(a.App.Deps) > 0 {
			reqs = append(reqs, depgraph.GroupRequirement{AppName: a.Name, AppGroup: a.AppGroup, Requires: a.App.Deps})
		}
	}
	_, err := depgraph.ResolveInterGroup(e.Store, reqs, blocking)
	return err
}

func clusterAndNamespace(apps []config.ResolvedApp) (cluster, namespace, appGroup string) {
	if len(apps) == 0 {
		return "", "", ""
	}
	return apps[0].Settings.Cluster, apps[0].Settings.Namespace, apps[0].AppGroup
}

// deploymentIDForCommand begins a new Deployment row (when a store is open)
// for commands that drive the deploy stage outside of `apply` (deploy,
// upgrade), and returns the id to pass to Orchestrator.Deploy.
func deploymentIDForCommand(e *env, apps []config.ResolvedApp, command string) (string, error) {
	deploymentID := uuid.NewString()
	if e.Store == nil {
		return deploymentID, nil
	}
	cluster, namespace, appGroup := clusterAndNamespace(apps)
	if _, err := e.Store.BeginDeployment(state.Deployment{
		ID: deploymentID, Cluster: cluster, Namespace: namespace,
		AppGroup: appGroup, Command: command,
	}); err != nil {
		return "", err
	}
	return deploymentID, nil
}

func terminalStatus(err error, result *pipeline.StageResult) state.DeploymentStatus {
	if err != nil {
		return state.DeploymentFailed
	}
	if result == nil || !result.Failed() {
		return state.DeploymentSuccess
	}
	succeeded := false
	for _, r := range result.Results {
		if r.Err == nil && !r.Skipped {
			succeeded = true
		}
	}
	if succeeded {
		return state.DeploymentPartialFailure
	}
	return state.DeploymentFailed
}
