package main

import (
	"fmt"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/sbkube/sbkube/pkg/cli/require"
)

func newCheckUpdatesCmd(settings *Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-updates [TARGET]",
		Short: "Query each helm app's repo for a newer chart version than the one pinned",
		Args:  require.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(settings, firstArg(args), false)
			if err != nil {
				return err
			}
			defer e.Close()

			updates, err := e.Orch.CheckUpdates(cmd.Context(), e.WS.Apps)
			if err != nil {
				return err
			}
			if len(updates) == 0 {
				fmt.Fprintln(e.out, "all pinned chart versions are current")
				return nil
			}

			table := uitable.New()
			table.AddRow("APP", "CHART", "INSTALLED", "LATEST")
			for _, u := range updates {
				table.AddRow(u.App, u.Chart, u.InstalledVersion, u.LatestVersion)
			}
			fmt.Fprintln(e.out, table)
			return nil
		},
	}
	return cmd
}
