package main

import (
	"github.com/spf13/cobra"

	"github.com/sbkube/sbkube/internal/pipeline"
	"github.com/sbkube/sbkube/pkg/cli/require"
)

func newTemplateCmd(settings *Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template [TARGET]",
		Short: "Render helm/kustomize apps into rendered/{app-name}/",
		Args:  require.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(settings, firstArg(args), false)
			if err != nil {
				return err
			}
			defer e.Close()

			result, err := e.Orch.RunStage(cmd.Context(), pipeline.StageTemplate, e.WS.Apps, e.Orch.Template(e.Source.WorkspaceRoot))
			if err != nil {
				return err
			}
			return printResult(e.out, pipeline.StageTemplate, result)
		},
	}
	return cmd
}
