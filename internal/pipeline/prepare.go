package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/sbkube/sbkube/internal/config"
	"github.com/sbkube/sbkube/internal/errs"
	"github.com/sbkube/sbkube/internal/tool"
)

// Prepare materializes an app's external source into the workspace's
// rebuildable caches (spec.md §4.4 "prepare", §6.2 charts/repos layout):
// helm charts are pulled into charts/{repo}/{chart}-{version}/, git sources
// cloned into repos/{name}/, http sources downloaded to their `dest`. Other
// app types have nothing to prepare.
func (o *Orchestrator) Prepare(workspaceRoot string, force bool) StageFunc {
	return func(ctx context.Context, app config.ResolvedApp) error {
		switch app.App.Type {
		case config.AppHelm:
			return o.prepareHelm(ctx, workspaceRoot, app, force)
		case config.AppGit:
			if force && !o.Driver.DryRun {
				if err := os.RemoveAll(filepath.Join(workspaceRoot, "repos", app.Name)); err != nil {
					return errs.Wrap(errs.Filesystem, err, "cannot clear git checkout for "+app.Name)
				}
			}
			return o.prepareGit(ctx, workspaceRoot, app)
		case config.AppHTTP:
			if force && !o.Driver.DryRun && app.App.Dest != "" {
				if err := os.RemoveAll(app.App.Dest); err != nil {
					return errs.Wrap(errs.Filesystem, err, "cannot remove "+app.App.Dest)
				}
			}
			return o.prepareHTTP(ctx, app)
		default:
			return nil
		}
	}
}

// chartDir is charts/{repo}/{chart}-{version}/, disjoint per (repo, chart,
// version) so two apps sharing the same chart+version share one fetch
// while differing repo or version never collide (spec.md §8.1 testable
// property 3).
func chartDir(workspaceRoot string, repo, chart, version string) string {
	return filepath.Join(workspaceRoot, "charts", repo, fmt.Sprintf("%s-%s", chart, version))
}

func splitChartRef(ref string) (repo, chart string) {
	for i := 0; i < len(ref); i++ {
		if ref[i] == '/' {
			return ref[:i], ref[i+1:]
		}
	}
	return "", ref
}

// prepareHelm materializes a remote or OCI chart; a local chart takes no
// action (spec.md §4.4 "helm (local): no action").
func (o *Orchestrator) prepareHelm(ctx context.Context, workspaceRoot string, app config.ResolvedApp, force bool) error {
	origin, repo, chart := ClassifyChart(app)
	if origin == ChartLocal {
		o.Log.Debug("local chart, nothing to prepare", "app", app.Name, "chart", app.App.Chart)
		return nil
	}

	dest := preparedChartDir(workspaceRoot, repo, chart, app.App.Version)
	if !force {
		if info, err := os.Stat(dest); err == nil && info.IsDir() {
			o.Log.Debug("chart already prepared, skipping pull", "app", app.Name, "chart", app.App.Chart)
			return nil
		}
	}

	tmp := dest + ".tmp-" + uuid.NewString()
	defer os.RemoveAll(tmp)

	var args []string
	switch origin {
	case ChartOCI:
		registryURL := app.Settings.OCIRegistries[repo].Registry
		ref := "oci://" + strings.TrimSuffix(registryURL, "/") + "/" + chart
		args = []string{"pull", ref, "--untar", "--untardir", tmp}
	default: // ChartRepo
		registryURL := app.Settings.HelmRepos[repo]
		args = []string{"pull", chart, "--repo", registryURL, "--untar", "--untardir", tmp}
	}
	if app.App.Version != "" {
		args = append(args, "--version", app.App.Version)
	}
	if _, err := o.Driver.Helm(ctx, args...); err != nil {
		return errs.Wrap(errs.Helm, err, "helm pull failed for "+app.App.Chart)
	}

	// Atomic materialization: pull into a unique temp dir, then rename into
	// place, so two concurrent prepares never corrupt each other's working
	// copy (spec.md §9 "Chart path versioning").
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errs.Wrap(errs.Filesystem, err, "cannot create charts directory")
	}
	if err := os.RemoveAll(dest); err != nil {
		return errs.Wrap(errs.Filesystem, err, "cannot clear stale chart directory "+dest)
	}
	if err := os.Rename(filepath.Join(tmp, chart), dest); err != nil {
		return errs.Wrap(errs.Filesystem, err, "cannot materialize chart at "+dest)
	}
	return nil
}

func (o *Orchestrator) prepareGit(ctx context.Context, workspaceRoot string, app config.ResolvedApp) error {
	dest := filepath.Join(workspaceRoot, "repos", app.Name)
	repoCfg := app.Settings.GitRepos[app.App.Repo]
	src := tool.GitSource{
		URL: repoCfg.URL,
		Ref: app.App.Ref,
	}
	if src.URL == "" {
		src.URL = app.App.Repo
	}
	if src.Ref == "" {
		src.Ref = app.App.Branch
	}
	if src.Ref == "" {
		src.Ref = repoCfg.Ref
	}
	_, err := o.Driver.EnsureGitCheckout(ctx, src, dest)
	return err
}

func (o *Orchestrator) prepareHTTP(ctx context.Context, app config.ResolvedApp) error {
	_, err := o.Driver.HTTPGet(ctx, tool.HTTPSource{
		URL:     app.App.URL,
		Dest:    app.App.Dest,
		Headers: app.App.Headers,
	})
	return err
}
