package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/sbkube/sbkube/internal/config"
	"github.com/sbkube/sbkube/internal/errs"
)

// ChartUpdate is one helm app whose pinned chart version is no longer the
// newest version its registered repo advertises (spec.md §6.1
// "check-updates (query helm repos for newer versions)"), grounded on the
// teacher's own `helm outdated` (cmd/helm/outdated.go), adapted from
// comparing installed releases to comparing pinned config versions since
// SBKube apps are declared in a config file rather than installed directly.
type ChartUpdate struct {
	App              string
	Chart            string
	InstalledVersion string
	LatestVersion    string
}

// searchResult mirrors the fields `helm search repo -o json` emits that we
// need; helm's own search.Result carries more, all ignored here.
type searchResult struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// CheckUpdates queries each helm app's repo for its newest published
// version and reports every app whose pinned version is strictly older
// (spec.md §9, design decision: chart updates are discovered by config
// version, never implicitly adopted).
func (o *Orchestrator) CheckUpdates(ctx context.Context, apps []config.ResolvedApp) ([]ChartUpdate, error) {
	var updates []ChartUpdate
	for _, app := range apps {
		if app.App.Type != config.AppHelm || !app.App.IsEnabled() {
			continue
		}
		// helm search repo only resolves repo-registered charts; local
		// charts have no repo to query and OCI registries aren't searchable
		// this way (spec.md §3.1, §4.4).
		if origin, _, _ := ClassifyChart(app); origin != ChartRepo {
			continue
		}
		update, err := o.checkChartUpdate(ctx, app)
		if err != nil {
			o.Log.Warn("check-updates failed for app", "app", app.Name, "error", err)
			continue
		}
		if update != nil {
			updates = append(updates, *update)
		}
	}
	return updates, nil
}

func (o *Orchestrator) checkChartUpdate(ctx context.Context, app config.ResolvedApp) (*ChartUpdate, error) {
	_, chart := splitChartRef(app.App.Chart)
	ref := app.App.Chart

	res, err := o.Driver.Helm(ctx, "search", "repo", ref, "--versions", "-o", "json")
	if err != nil {
		return nil, errs.Wrap(errs.Helm, err, "helm search repo failed for "+ref)
	}

	var results []searchResult
	if err := json.Unmarshal([]byte(res.Stdout), &results); err != nil {
		return nil, errs.Wrap(errs.Helm, err, "cannot parse helm search repo output for "+ref)
	}

	installed, err := semver.NewVersion(app.App.Version)
	if err != nil {
		return nil, errs.Wrap(errs.Configuration, err, "invalid chart version "+app.App.Version+" for app "+app.Name)
	}

	var latest *semver.Version
	var latestRaw string
	for _, r := range results {
		if !strings.EqualFold(r.Name, ref) && !strings.HasSuffix(strings.ToLower(r.Name), strings.ToLower(chart)) {
			continue
		}
		v, err := semver.NewVersion(r.Version)
		if err != nil {
			continue
		}
		if latest == nil || v.GreaterThan(latest) {
			latest = v
			latestRaw = r.Version
		}
	}

	if latest == nil || !latest.GreaterThan(installed) {
		return nil, nil
	}
	return &ChartUpdate{
		App:              app.Name,
		Chart:            app.App.Chart,
		InstalledVersion: app.App.Version,
		LatestVersion:    latestRaw,
	}, nil
}
