package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sbkube/sbkube/internal/state"
	"github.com/sbkube/sbkube/internal/tool"
	"github.com/sbkube/sbkube/pkg/cli/require"
)

// newDoctorCmd runs the environment diagnostics spec.md §6.1 names:
// external tool presence and a writable state-store path, surfaced as a
// pass/fail checklist rather than the first failure aborting the command.
func newDoctorCmd(settings *Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that helm, kubectl, and the local state store are usable",
		Args:  require.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			ok := true
			check := func(name string, err error) {
				if err != nil {
					fmt.Fprintf(out, "FAIL %-12s %v\n", name, err)
					ok = false
					return
				}
				fmt.Fprintf(out, "OK   %-12s\n", name)
			}

			check("helm", tool.ProbeHelm(ctx, "helm"))
			check("kubectl", tool.ProbeKubectl(ctx, "kubectl"))

			kubeconfig := settings.effectiveKubeconfig()
			if kubeconfig == "" {
				fmt.Fprintf(out, "WARN %-12s no --kubeconfig or $KUBECONFIG set\n", "kubeconfig")
			} else if _, err := os.Stat(kubeconfig); err != nil {
				check("kubeconfig", err)
			} else {
				fmt.Fprintf(out, "OK   %-12s %s\n", "kubeconfig", kubeconfig)
			}

			path, err := state.DefaultPath()
			if err == nil {
				store, openErr := state.Open(path)
				if openErr == nil {
					_ = store.Close()
				}
				check("state store", openErr)
			} else {
				check("state store", err)
			}

			if !ok {
				return fmt.Errorf("one or more environment checks failed")
			}
			return nil
		},
	}
	return cmd
}
