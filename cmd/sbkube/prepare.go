package main

import (
	"github.com/spf13/cobra"

	"github.com/sbkube/sbkube/internal/pipeline"
	"github.com/sbkube/sbkube/pkg/cli/require"
)

func newPrepareCmd(settings *Settings) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "prepare [TARGET]",
		Short: "Materialize helm/git/http sources under the workspace",
		Args:  require.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := firstArg(args)
			e, err := newEnv(settings, target, false)
			if err != nil {
				return err
			}
			defer e.Close()

			result, err := e.Orch.RunStage(cmd.Context(), pipeline.StagePrepare, e.WS.Apps, e.Orch.Prepare(e.Source.WorkspaceRoot, force))
			if err != nil {
				return err
			}
			return printResult(e.out, pipeline.StagePrepare, result)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "re-download sources already present")
	return cmd
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
