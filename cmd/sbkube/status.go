package main

import (
	"github.com/spf13/cobra"

	"github.com/sbkube/sbkube/internal/report"
	"github.com/sbkube/sbkube/pkg/cli/require"
)

func newStatusCmd(settings *Settings) *cobra.Command {
	var appName string

	cmd := &cobra.Command{
		Use:   "status [TARGET]",
		Short: "Show the most recent deployment recorded for this workspace",
		Args:  require.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(settings, firstArg(args), true)
			if err != nil {
				return err
			}
			defer e.Close()

			filter := report.HistoryFilter{App: appName}
			if len(e.WS.Apps) > 0 {
				filter.Cluster = e.WS.Apps[0].Settings.Cluster
				filter.Namespace = e.WS.Apps[0].Settings.Namespace
			}

			views, err := report.LoadStatus(e.Store, filter)
			if err != nil {
				return err
			}
			return report.WriteDeployments(e.out, views, settings.format())
		},
	}
	cmd.Flags().StringVar(&appName, "app", "", "restrict to deployments touching one app")
	return cmd
}
