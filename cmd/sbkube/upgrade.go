package main

import (
	"github.com/spf13/cobra"

	"github.com/sbkube/sbkube/internal/config"
	"github.com/sbkube/sbkube/internal/pipeline"
	"github.com/sbkube/sbkube/pkg/cli/require"
)

// newUpgradeCmd runs only the deploy step (helm upgrade --install) for the
// helm apps in scope, skipping non-helm app types (spec.md §6.1 "upgrade
// (in-place helm upgrade)"). It does not check the state store for which
// apps were deployed before.
func newUpgradeCmd(settings *Settings) *cobra.Command {
	var appName string

	cmd := &cobra.Command{
		Use:   "upgrade [TARGET]",
		Short: "Run helm upgrade --install for the helm apps in scope",
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
			helmApps := filterAppType(apps, config.AppHelm)

			deploymentID, err := deploymentIDForCommand(e, helmApps, "upgrade")
			if err != nil {
				return err
			}

			result, err := e.Orch.RunStage(cmd.Context(), pipeline.StageDeploy, helmApps, e.Orch.Deploy(e.Source.WorkspaceRoot, deploymentID, apps))
			printErr := printResult(e.out, pipeline.StageDeploy, result)

			if e.Store != nil {
				if finishErr := e.Store.FinishDeployment(deploymentID, terminalStatus(err, result)); finishErr != nil {
					return finishErr
				}
			}
			if err != nil {
				return err
			}
			return printErr
		},
	}
	cmd.Flags().StringVar(&appName, "app", "", "restrict to one app and its dependencies (helm apps only)")
	return cmd
}

func filterAppType(apps []config.ResolvedApp, t config.AppType) []config.ResolvedApp {
	out := make([]config.ResolvedApp, 0, len(apps))
	for _, a := range apps {
		if a.App.Type == t {
			out = append(out, a)
		}
	}
	return out
}
