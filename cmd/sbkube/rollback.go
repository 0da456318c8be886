package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sbkube/sbkube/internal/rollback"
	"github.com/sbkube/sbkube/pkg/cli/require"
)

func newRollbackCmd(settings *Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollback DEPLOYMENT_ID",
		Short: "Reverse a prior deployment's effects in reverse dependency order",
		Args:  require.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(settings, "", true)
			if err != nil {
				return err
			}
			defer e.Close()

			engine := rollback.New(e.Store, e.Driver, settings.Logger())
			newID, err := engine.Rollback(cmd.Context(), args[0])
			if newID != "" {
				fmt.Fprintf(e.out, "rollback %s recorded as deployment %s\n", args[0], newID)
			}
			return err
		},
	}
	return cmd
}
