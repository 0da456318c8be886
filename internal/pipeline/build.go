package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/sbkube/sbkube/internal/config"
	"github.com/sbkube/sbkube/internal/errs"
)

// Build stages a built artifact for the app under build/{app-name}/
// (spec.md §6.2). For helm apps this is the prepared chart with
// `overrides` copied in and `removes` deleted (spec.md §8.2 scenario S3);
// other app types have nothing further to build beyond what prepare staged.
func (o *Orchestrator) Build(workspaceRoot string, force bool) StageFunc {
	return func(ctx context.Context, app config.ResolvedApp) error {
		if app.App.Type != config.AppHelm {
			return nil
		}
		return o.buildHelm(workspaceRoot, app, force)
	}
}

func (o *Orchestrator) buildHelm(workspaceRoot string, app config.ResolvedApp, force bool) error {
	origin, repo, chart := ClassifyChart(app)

	// Skip rule: a local chart with no overrides and no removes needs no
	// build artifact; template/deploy read the chart source directly via
	// ChartPath (spec.md §4.4 "build", §8.2 scenario S3 contrast).
	if origin == ChartLocal && len(app.App.Overrides) == 0 && len(app.App.Removes) == 0 {
		o.Log.Debug("local chart with no overrides/removes, skipping build", "app", app.Name)
		return nil
	}

	var src string
	if origin == ChartLocal {
		src = localChartPath(workspaceRoot, app)
	} else {
		src = preparedChartDir(workspaceRoot, repo, chart, app.App.Version)
	}
	dest := filepath.Join(workspaceRoot, "build", app.Name)

	if !force {
		if info, err := os.Stat(dest); err == nil && info.IsDir() {
			o.Log.Debug("build artifact already present, skipping", "app", app.Name)
			return nil
		}
	}

	if err := os.RemoveAll(dest); err != nil {
		return errs.Wrap(errs.Filesystem, err, "cannot clear stale build directory "+dest)
	}
	if err := copyDir(src, dest); err != nil {
		return errs.Wrap(errs.Filesystem, err, "cannot copy chart "+src+" into "+dest)
	}

	overridesRoot := filepath.Join(workspaceRoot, "overrides", app.Name)
	for _, rel := range app.App.Overrides {
		if err := copyFile(filepath.Join(overridesRoot, rel), filepath.Join(dest, rel)); err != nil {
			return errs.Wrap(errs.Filesystem, err, "cannot apply override "+rel+" for "+app.Name)
		}
	}

	for _, rel := range app.App.Removes {
		if err := os.RemoveAll(filepath.Join(dest, rel)); err != nil {
			return errs.Wrap(errs.Filesystem, err, "cannot remove "+rel+" for "+app.Name)
		}
	}
	return nil
}

func copyDir(src, dest string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
