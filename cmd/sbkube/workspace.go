package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sbkube/sbkube/internal/pipeline"
	"github.com/sbkube/sbkube/internal/report"
	"github.com/sbkube/sbkube/pkg/cli/require"
)

// newWorkspaceCmd groups the multi-phase operations spec.md §6.1 names
// under one parent command: graph (print dependency levels across the whole
// phase tree), validate (alias to the root validate command, unscoped), and
// status (alias to the root status command, unscoped).
func newWorkspaceCmd(settings *Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Multi-phase operations: graph, validate, status",
	}
	cmd.AddCommand(newWorkspaceGraphCmd(settings))
	cmd.AddCommand(newWorkspaceValidateCmd(settings))
	cmd.AddCommand(newWorkspaceStatusCmd(settings))
	return cmd
}

// newWorkspaceValidateCmd is `validate` with no positional TARGET, i.e. the
// root validate command run unscoped across the whole phase tree rather
// than a single phase/app (spec.md §6.1).
func newWorkspaceValidateCmd(settings *Settings) *cobra.Command {
	validate := newValidateCmd(settings)
	validate.Use = "validate"
	validate.Short = "Validate the whole phase tree's configuration, depends_on/deps, and (optionally) storage classes"
	validate.Args = require.NoArgs
	return validate
}

func newWorkspaceGraphCmd(settings *Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Print the resolved app dependency levels across the whole phase tree",
		Args:  require.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(settings, "", false)
			if err != nil {
				return err
			}
			defer e.Close()

			levels, err := pipeline.Levels(e.WS.Apps)
			if err != nil {
				return err
			}
			for i, level := range levels {
				names := make([]string, len(level))
				for j, a := range level {
					names[j] = a.Name
				}
				fmt.Fprintf(e.out, "level %d: %v\n", i, names)
			}
			return nil
		},
	}
}

func newWorkspaceStatusCmd(settings *Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the most recent deployment across the whole phase tree",
		Args:  require.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(settings, "", true)
			if err != nil {
				return err
			}
			defer e.Close()

			views, err := report.LoadStatus(e.Store, report.HistoryFilter{})
			if err != nil {
				return err
			}
			return report.WriteDeployments(e.out, views, settings.format())
		},
	}
}
