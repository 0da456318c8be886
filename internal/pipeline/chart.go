package pipeline

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sbkube/sbkube/internal/config"
)

// ChartOrigin classifies a helm app's `chart` field into the three
// variants spec.md §3.1 ("helm") and §4.4 ("prepare") distinguish.
type ChartOrigin int

const (
	// ChartLocal is a filesystem chart root; prepare takes no action and
	// template/deploy read it directly (spec.md §4.4 "helm (local): no
	// action").
	ChartLocal ChartOrigin = iota
	// ChartRepo is `repo/chartname` with repo registered under
	// settings.helm_repos.
	ChartRepo
	// ChartOCI is `registry/chartname` with registry registered under
	// settings.oci_registries (never a raw oci:// URL in chart, per
	// spec.md §3.1 invariants).
	ChartOCI
)

// ClassifyChart determines whether app's chart is local, repo-sourced, or
// OCI-sourced by checking the ref's prefix against the registered repos;
// anything not matching either registry is treated as a local path.
func ClassifyChart(app config.ResolvedApp) (origin ChartOrigin, repo, chart string) {
	repo, chart = splitChartRef(app.App.Chart)
	if _, ok := app.Settings.HelmRepos[repo]; ok {
		return ChartRepo, repo, chart
	}
	if _, ok := app.Settings.OCIRegistries[repo]; ok {
		return ChartOCI, repo, chart
	}
	return ChartLocal, "", ""
}

// effectiveChartVersion defaults an unpinned chart version to "latest" for
// the prepared chart directory name (spec.md §4.4: "If version omitted,
// the directory is {chart}-latest and the latest version at resolution
// time is pulled").
func effectiveChartVersion(v string) string {
	if v == "" {
		return "latest"
	}
	return v
}

// preparedChartDir is the charts/{repo}/{chart}-{version}/ materialization
// path for a repo- or OCI-sourced chart (spec.md §8.1 testable property 3).
func preparedChartDir(workspaceRoot string, repo, chart, version string) string {
	return chartDir(workspaceRoot, repo, chart, effectiveChartVersion(version))
}

// localChartPath resolves a local chart reference against the workspace
// root (relative paths are chart-root-relative to the workspace, matching
// where overrides/removes paths are resolved for the build stage).
func localChartPath(workspaceRoot string, app config.ResolvedApp) string {
	if filepath.IsAbs(app.App.Chart) {
		return app.App.Chart
	}
	return filepath.Join(workspaceRoot, app.App.Chart)
}

// ChartPath is the directory template and deploy read a helm app's chart
// from: build/{app-name} when the build stage produced one, otherwise the
// chart's source directly — the prepared cache for a remote/OCI chart, or
// the chart root itself for a local chart (spec.md §4.4 "build" skip rule:
// "a local chart with no overrides and no removes...downstream stages read
// directly from the chart source").
func ChartPath(workspaceRoot string, app config.ResolvedApp) string {
	buildDir := filepath.Join(workspaceRoot, "build", app.Name)
	if info, err := os.Stat(buildDir); err == nil && info.IsDir() {
		return buildDir
	}
	origin, repo, chart := ClassifyChart(app)
	if origin == ChartLocal {
		return localChartPath(workspaceRoot, app)
	}
	return preparedChartDir(workspaceRoot, repo, chart, app.App.Version)
}

// localChartRootDirs returns the cleaned, absolute local chart directories
// of every helm app in apps whose chart is filesystem-local (spec.md §4.4
// step 3: "git/http: ...deploy is a no-op unless the content serves as a
// chart root for a sibling helm app"). A git/http app's deploy step checks
// its materialized directory against this set before applying anything.
func localChartRootDirs(workspaceRoot string, apps []config.ResolvedApp) []string {
	var dirs []string
	for _, a := range apps {
		if a.App.Type != config.AppHelm {
			continue
		}
		if origin, _, _ := ClassifyChart(a); origin != ChartLocal {
			continue
		}
		dirs = append(dirs, filepath.Clean(localChartPath(workspaceRoot, a)))
	}
	return dirs
}

// servesAsChartRoot reports whether dir is, or contains, one of chartDirs —
// i.e. whether a sibling helm app's chart is rooted inside this git/http
// app's materialized directory.
func servesAsChartRoot(dir string, chartDirs []string) bool {
	dir = filepath.Clean(dir)
	for _, cd := range chartDirs {
		if cd == dir || strings.HasPrefix(cd, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
