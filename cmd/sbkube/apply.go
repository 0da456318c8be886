package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sbkube/sbkube/internal/config"
	"github.com/sbkube/sbkube/internal/errs"
	"github.com/sbkube/sbkube/internal/pipeline"
	"github.com/sbkube/sbkube/pkg/cli/require"
)

func newApplyCmd(settings *Settings) *cobra.Command {
	var force, retryFailed, resume bool
	var phase, appName, fromStep, toStep, only string

	cmd := &cobra.Command{
		Use:   "apply [TARGET]",
		Short: "Run prepare, build, template, and deploy as one command",
		Args:  require.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if phase != "" && len(args) > 0 {
				return errs.New(errs.Configuration, "--phase cannot be combined with a positional TARGET")
			}

			target := firstArg(args)
			if phase != "" {
				target = phase
			}
			e, err := newEnv(settings, target, !settings.DryRun)
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

			stages, err := pipeline.ResolveStages(fromStep, toStep, only)
			if err != nil {
				return err
			}

			hash, err := resolveResumeFilter(e, retryFailed, resume)
			if err != nil {
				return err
			}

			scopedWS := &config.ResolvedWorkspace{Apps: apps}
			result, applyErr := e.Orch.ApplyAll(cmd.Context(), scopedWS, e.Root, e.Source.WorkspaceRoot, force, stages)

			for _, stage := range pipeline.StageOrder {
				if sr, ok := result.Stages[stage]; ok {
					_ = printResult(e.out, stage, sr)
				}
			}
			if result.DeploymentID != "" {
				fmt.Fprintf(e.out, "deployment %s\n", result.DeploymentID)
			}

			lastStage := pipeline.StagePrepare
			if len(stages) > 0 {
				lastStage = stages[len(stages)-1]
			}
			recordTrace(e, hash, result.Stages, lastStage)

			return applyErr
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "re-download sources and rebuild artifacts already present")
	cmd.Flags().StringVar(&phase, "phase", "", "restrict to one phase subtree; mutually exclusive with a positional TARGET")
	cmd.Flags().StringVar(&appName, "app", "", "restrict to one app and its dependencies")
	cmd.Flags().StringVar(&fromStep, "from-step", "", "start at this stage instead of prepare")
	cmd.Flags().StringVar(&toStep, "to-step", "", "stop after this stage instead of deploy")
	cmd.Flags().StringVar(&only, "only", "", "run exactly this stage")
	cmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "restrict to apps the last run on this workspace left failed")
	cmd.Flags().BoolVar(&resume, "resume", false, "skip apps the last run on this workspace already completed")
	return cmd
}
