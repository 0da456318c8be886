package main

import (
	"github.com/spf13/cobra"

	"github.com/sbkube/sbkube/pkg/cli/require"
)

var globalUsage = `SBKube: a declarative deployment orchestrator for Kubernetes clusters.

Describe a fleet of Helm charts, raw manifests, Kustomize bases,
Git-sourced content, HTTP-fetched files, and scripted actions in a single
sbkube.yaml, and drive them through prepare -> build -> template -> deploy
with dependency ordering, partial re-execution, state tracking, and
rollback.

Environment:
  KUBECONFIG           fallback kubeconfig path when --kubeconfig is unset
  HTTP_PROXY/HTTPS_PROXY/NO_PROXY   passed through to helm/kubectl/git
`

func newRootCmd() *cobra.Command {
	settings := &Settings{}

	cmd := &cobra.Command{
		Use:          "sbkube",
		Short:        "Declarative deployment orchestrator for Kubernetes clusters",
		Long:         globalUsage,
		SilenceUsage: true,
		Args:         require.NoArgs,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			warnDeprecatedFlags(cmd.Flags())
		},
	}
	settings.AddFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newPrepareCmd(settings),
		newBuildCmd(settings),
		newTemplateCmd(settings),
		newDeployCmd(settings),
		newApplyCmd(settings),

		newStatusCmd(settings),
		newHistoryCmd(settings),
		newRollbackCmd(settings),
		newUpgradeCmd(settings),
		newDeleteCmd(settings),
		newCheckUpdatesCmd(settings),

		newInitCmd(settings),
		newValidateCmd(settings),
		newDoctorCmd(settings),
		newVersionCmd(settings),
		newWorkspaceCmd(settings),
	)

	return cmd
}
