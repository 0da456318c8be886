package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sbkube/sbkube/internal/config"
	"github.com/sbkube/sbkube/internal/errs"
	"github.com/sbkube/sbkube/internal/pipeline"
	"github.com/sbkube/sbkube/pkg/cli/require"
)

// newDeleteCmd uninstalls helm releases and deletes applied manifests for
// the resolved scope (spec.md §6.1 "delete (uninstall resources)"), walking
// apps in reverse dependency order so dependents are removed first.
func newDeleteCmd(settings *Settings) *cobra.Command {
	var appName string

	cmd := &cobra.Command{
		Use:   "delete [TARGET]",
		Short: "Uninstall helm releases and delete applied manifests for the resolved scope",
		Args:  require.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(settings, firstArg(args), false)
			if err != nil {
				return err
			}
			defer e.Close()

			apps, err := scopeApps(e.WS, appName)
			if err != nil {
				return err
			}
			apps, err = deleteOrder(apps)
			if err != nil {
				return err
			}

			var failures []string
			for _, app := range apps {
				if !app.App.IsEnabled() {
					continue
				}
				if derr := deleteApp(cmd.Context(), e, app); derr != nil {
					fmt.Fprintf(e.out, "delete %-24s failed: %v\n", app.Name, derr)
					failures = append(failures, app.Name)
					continue
				}
				fmt.Fprintf(e.out, "delete %-24s ok\n", app.Name)
			}
			if len(failures) > 0 {
				return errs.New(errs.Validation, fmt.Sprintf("delete failed for: %v", failures))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&appName, "app", "", "restrict to one app and its dependencies")
	return cmd
}

// deleteOrder reverses the dependency-level order deploy uses, so a
// dependent app is deleted before the app it depends on.
func deleteOrder(apps []config.ResolvedApp) ([]config.ResolvedApp, error) {
	levels, err := pipeline.Levels(apps)
	if err != nil {
		return nil, err
	}
	var out []config.ResolvedApp
	for i := len(levels) - 1; i >= 0; i-- {
		out = append(out, levels[i]...)
	}
	return out, nil
}

func deleteApp(ctx context.Context, e *env, app config.ResolvedApp) error {
	ns := app.Settings.Namespace
	switch app.App.Type {
	case config.AppHelm:
		release := app.App.EffectiveReleaseName(app.Name)
		_, err := e.Driver.Helm(ctx, "uninstall", release, "--namespace", ns, "--ignore-not-found")
		return err
	case config.AppYAML:
		for _, f := range app.App.Files {
			if _, err := e.Driver.Kubectl(ctx, "delete", "-f", f, "-n", ns, "--ignore-not-found"); err != nil {
				return err
			}
		}
		return nil
	case config.AppKustomize:
		_, err := e.Driver.Kubectl(ctx, "delete", "-k", app.App.Path, "-n", ns, "--ignore-not-found")
		return err
	case config.AppAction:
		for i := len(app.App.Actions) - 1; i >= 0; i-- {
			a := app.App.Actions[i]
			if _, err := e.Driver.Kubectl(ctx, "delete", "-f", a.Path, "-n", ns, "--ignore-not-found"); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}
