package main

import (
	"github.com/spf13/cobra"

	"github.com/sbkube/sbkube/internal/pipeline"
	"github.com/sbkube/sbkube/pkg/cli/require"
)

func newBuildCmd(settings *Settings) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "build [TARGET]",
		Short: "Stage helm chart artifacts into build/{app-name}/",
		Args:  require.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(settings, firstArg(args), false)
			if err != nil {
				return err
			}
			defer e.Close()

			result, err := e.Orch.RunStage(cmd.Context(), pipeline.StageBuild, e.WS.Apps, e.Orch.Build(e.Source.WorkspaceRoot, force))
			if err != nil {
				return err
			}
			return printResult(e.out, pipeline.StageBuild, result)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "rebuild artifacts already present")
	return cmd
}
