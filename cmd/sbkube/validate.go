package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sbkube/sbkube/internal/depgraph"
	"github.com/sbkube/sbkube/internal/errs"
	"github.com/sbkube/sbkube/pkg/cli/require"
)

// warningExit satisfies main's exitCoder so validate can exit 2 when
// warnings were found rather than the generic 1 (spec.md §6.1 "Exit codes").
type warningExit struct{ error }

func (warningExit) ExitCode() int { return 2 }

func newValidateCmd(settings *Settings) *cobra.Command {
	var skipStorageCheck, strictStorageCheck bool

	cmd := &cobra.Command{
		Use:   "validate [TARGET]",
		Short: "Validate configuration syntax, depends_on/deps resolvability, and (optionally) PV/PVC storage classes",
		Args:  require.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// newEnv already runs config.Validate on every document it loads
			// (internal/config.LoadWorkspace), so reaching here means schema
			// and intra-document depends_on validation already passed.
			e, err := newEnv(settings, firstArg(args), true)
			if err != nil {
				return err
			}
			defer e.Close()

			var warnings []string

			groupWarnings, err := checkInterGroupDepsWarnings(e)
			if err != nil {
				return err
			}
			warnings = append(warnings, groupWarnings...)

			if !skipStorageCheck {
				storageWarnings, err := e.Orch.ValidateStorage(cmd.Context(), e.WS.Apps, strictStorageCheck)
				if err != nil {
					return err
				}
				warnings = append(warnings, storageWarnings...)
			}

			if len(warnings) == 0 {
				fmt.Fprintln(e.out, "configuration is valid")
				return nil
			}
			for _, w := range warnings {
				fmt.Fprintln(e.out, "warning:", w)
			}
			return warningExit{errs.New(errs.Validation, fmt.Sprintf("%d warning(s)", len(warnings)))}
		},
	}
	cmd.Flags().BoolVar(&skipStorageCheck, "skip-storage-check", false, "skip PV/PVC storage class validation")
	cmd.Flags().BoolVar(&strictStorageCheck, "strict-storage-check", false, "treat a missing storage class as an error")
	return cmd
}

func checkInterGroupDepsWarnings(e *env) ([]string, error) {
	if e.Store == nil {
		return nil, nil
	}
	var reqs []depgraph.GroupRequirement
	for _, a := range e.WS.Apps {
		if len(a.App.Deps) > 0 {
			reqs = append(reqs, depgraph.GroupRequirement{AppName: a.Name, AppGroup: a.AppGroup, Requires: a.App.Deps})
		}
	}
	return depgraph.ResolveInterGroup(e.Store, reqs, false)
}
