package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"github.com/sbkube/sbkube/internal/config"
	"github.com/sbkube/sbkube/internal/errs"
	"github.com/sbkube/sbkube/internal/values"
)

// Template renders an app's manifests into rendered/{app-name}/ without
// applying them (spec.md §6.2); helm apps run `helm template`, kustomize
// apps run `kustomize build` (via kubectl's built-in support). Nothing is
// rendered or written for the remaining types.
func (o *Orchestrator) Template(workspaceRoot string) StageFunc {
	return func(ctx context.Context, app config.ResolvedApp) error {
		switch app.App.Type {
		case config.AppHelm:
			return o.templateHelm(ctx, workspaceRoot, app)
		case config.AppKustomize:
			return o.templateKustomize(ctx, workspaceRoot, app)
		default:
			return nil
		}
	}
}

func (o *Orchestrator) templateHelm(ctx context.Context, workspaceRoot string, app config.ResolvedApp) error {
	chartPath := ChartPath(workspaceRoot, app)
	renderedDir := filepath.Join(workspaceRoot, "rendered", app.Name)

	resolved, err := values.Resolve(app, workspaceRoot)
	if err != nil {
		return err
	}

	args := append([]string{"template", app.App.EffectiveReleaseName(app.Name), chartPath}, resolved.Args()...)
	if app.App.Namespace != "" {
		args = append(args, "--namespace", app.App.Namespace)
	}

	result, err := o.Driver.Helm(ctx, args...)
	if err != nil {
		return errs.Wrap(errs.Helm, err, "helm template failed for "+app.Name)
	}
	if err := os.MkdirAll(renderedDir, 0o755); err != nil {
		return errs.Wrap(errs.Filesystem, err, "cannot create rendered directory for "+app.Name)
	}
	return os.WriteFile(filepath.Join(renderedDir, "manifest.yaml"), []byte(result.Stdout), 0o644)
}

func (o *Orchestrator) templateKustomize(ctx context.Context, workspaceRoot string, app config.ResolvedApp) error {
	renderedDir := filepath.Join(workspaceRoot, "rendered", app.Name)
	result, err := o.Driver.Kubectl(ctx, "kustomize", app.App.Path)
	if err != nil {
		return errs.Wrap(errs.Kubernetes, err, "kustomize build failed for "+app.Name)
	}
	if err := os.MkdirAll(renderedDir, 0o755); err != nil {
		return errs.Wrap(errs.Filesystem, err, "cannot create rendered directory for "+app.Name)
	}
	return os.WriteFile(filepath.Join(renderedDir, "manifest.yaml"), []byte(result.Stdout), 0o644)
}
