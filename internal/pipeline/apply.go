package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/sbkube/sbkube/internal/config"
	"github.com/sbkube/sbkube/internal/hook"
	"github.com/sbkube/sbkube/internal/state"
)

// ApplyResult is the outcome of a full apply run across all four stages.
type ApplyResult struct {
	DeploymentID string
	Stages       map[Stage]*StageResult
}

// RunNonDeployStages runs every stage in stages other than StageDeploy (in
// StageOrder order), stopping at the first stage failure. It reports
// whether StageDeploy was present in stages, so callers that need to thread
// a deploymentID through the deploy stage (ApplyAll, and the `deploy`
// command when --from-step widens it to include earlier stages) know
// whether to continue into their own deploy-stage logic (spec.md §4.4
// "Re-run semantics").
func (o *Orchestrator) RunNonDeployStages(ctx context.Context, workspaceRoot string, apps []config.ResolvedApp, stages []Stage, force bool) (map[Stage]*StageResult, bool, error) {
	results := map[Stage]*StageResult{}
	runDeploy := false
	for _, stage := range stages {
		if stage == StageDeploy {
			runDeploy = true
			continue
		}
		var fn StageFunc
		switch stage {
		case StagePrepare:
			fn = o.Prepare(workspaceRoot, force)
		case StageBuild:
			fn = o.Build(workspaceRoot, force)
		case StageTemplate:
			fn = o.Template(workspaceRoot)
		}
		sr, err := o.RunStage(ctx, stage, apps, fn)
		if err != nil {
			return results, runDeploy, err
		}
		results[stage] = sr
		if err := summarize(stage, sr); err != nil {
			return results, runDeploy, err
		}
	}
	return results, runDeploy, nil
}

// ApplyAll runs the given ordered subset of StageOrder as one command
// (spec.md §4.4 "apply", spec.md §4.4 "Re-run semantics"): passing the full
// StageOrder runs prepare -> build -> template -> deploy; a narrower
// --from-step/--to-step/--only subset (internal/pipeline.ResolveStages)
// runs only those stages. Deploy-stage bookkeeping (command-level hooks, the
// Deployment row) only happens when StageDeploy is among stages.
func (o *Orchestrator) ApplyAll(ctx context.Context, ws *config.ResolvedWorkspace, root config.Document, workspaceRoot string, force bool, stages []Stage) (*ApplyResult, error) {
	apps := ws.Apps

	stageResults, runDeploy, err := o.RunNonDeployStages(ctx, workspaceRoot, apps, stages, force)
	result := &ApplyResult{Stages: stageResults}
	if err != nil {
		return result, err
	}
	if !runDeploy {
		return result, nil
	}

	deploymentID := uuid.NewString()
	cluster, namespace, appGroup := "", "", workspaceRoot
	if len(apps) > 0 {
		cluster = apps[0].Settings.Cluster
		namespace = apps[0].Settings.Namespace
		appGroup = apps[0].AppGroup
	}
	result.DeploymentID = deploymentID

	if o.Store != nil {
		if _, err := o.Store.BeginDeployment(state.Deployment{
			ID:        deploymentID,
			Cluster:   cluster,
			Namespace: namespace,
			AppGroup:  appGroup,
			Command:   "apply",
		}); err != nil {
			return result, err
		}
	}

	rootExecCtx := hook.ExecContext{Cluster: cluster, Namespace: namespace, WorkDir: workspaceRoot}
	if root.Settings.Namespace != "" {
		rootExecCtx.Namespace = root.Settings.Namespace
	}

	var preHook, postHook, onFailHook *config.HookList
	if root.Hooks != nil {
		preHook, postHook, onFailHook = root.Hooks.PreDeploy, root.Hooks.PostDeploy, root.Hooks.OnDeployFail
	}

	preErr := o.runCommandHook(ctx, preHook, rootExecCtx)
	var deploySR *StageResult
	var deployErr error
	if preErr == nil {
		deploySR, deployErr = o.RunStage(ctx, StageDeploy, apps, o.Deploy(workspaceRoot, deploymentID, apps))
		result.Stages[StageDeploy] = deploySR
	}

	overallStatus := state.DeploymentSuccess
	switch {
	case preErr != nil:
		overallStatus = state.DeploymentFailed
	case deployErr != nil:
		overallStatus = state.DeploymentFailed
	case deploySR != nil && deploySR.Failed():
		if allFailed(deploySR) {
			overallStatus = state.DeploymentFailed
		} else {
			overallStatus = state.DeploymentPartialFailure
		}
	}

	if overallStatus == state.DeploymentSuccess {
		_ = o.runCommandHook(ctx, postHook, rootExecCtx)
	} else {
		_ = o.runCommandHook(ctx, onFailHook, rootExecCtx)
	}

	if o.Store != nil {
		if err := o.Store.FinishDeployment(deploymentID, overallStatus); err != nil {
			return result, err
		}
	}

	if preErr != nil {
		return result, preErr
	}
	if deployErr != nil {
		return result, deployErr
	}
	if overallStatus == state.DeploymentFailed {
		return result, summarize(StageDeploy, deploySR)
	}
	return result, nil
}

func (o *Orchestrator) runCommandHook(ctx context.Context, list *config.HookList, execCtx hook.ExecContext) error {
	if list == nil || o.HookExec == nil {
		return nil
	}
	return o.HookExec.Run(ctx, list, execCtx)
}

func allFailed(sr *StageResult) bool {
	for _, r := range sr.Results {
		if r.Err == nil && !r.Skipped {
			return false
		}
	}
	return true
}
