package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sbkube/sbkube/internal/config"
	"github.com/sbkube/sbkube/internal/log"
	"github.com/sbkube/sbkube/internal/state"
	"github.com/sbkube/sbkube/internal/tool"
)

func openTestStore(t *testing.T) *state.Store {
	t.Helper()
	s, err := state.Open(filepath.Join(t.TempDir(), "deployments.db"))
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func dryRunOrchestrator(store *state.Store) *Orchestrator {
	return &Orchestrator{
		Driver: tool.New(log.NopLogger{}, true),
		Store:  store,
		Log:    log.NopLogger{},
	}
}

func beginAppDeployment(t *testing.T, o *Orchestrator, appName string) string {
	t.Helper()
	depID, err := o.Store.BeginDeployment(state.Deployment{ID: "dep-" + appName, Command: "deploy"})
	if err != nil {
		t.Fatalf("BeginDeployment: %v", err)
	}
	appID, err := o.Store.BeginAppDeployment(state.AppDeployment{ID: "appdep-" + appName, DeploymentID: depID, AppName: appName})
	if err != nil {
		t.Fatalf("BeginAppDeployment: %v", err)
	}
	return appID
}

// A git app whose materialized checkout is also a sibling helm app's local
// chart root must not be applied directly: the helm app deploys it via
// `helm upgrade --install` against that same directory (spec.md §4.4 step 3).
func TestDeployOneGitAppNoOpWhenServesAsChartRoot(t *testing.T) {
	root := t.TempDir()
	gitApp := config.ResolvedApp{Name: "charts-repo", App: config.App{Type: config.AppGit}}
	helmApp := config.ResolvedApp{Name: "my-release", App: config.App{Type: config.AppHelm, Chart: "repos/charts-repo/stable"}}

	if err := os.MkdirAll(filepath.Join(root, "repos", "charts-repo", "stable"), 0o755); err != nil {
		t.Fatal(err)
	}

	o := dryRunOrchestrator(openTestStore(t))
	appID := beginAppDeployment(t, o, gitApp.Name)
	chartDirs := localChartRootDirs(root, []config.ResolvedApp{gitApp, helmApp})

	if err := o.deployOne(context.Background(), root, gitApp, "default", appID, chartDirs); err != nil {
		t.Fatalf("deployOne returned error: %v", err)
	}

	resources, err := o.Store.DeployedResourcesFor(appID)
	if err != nil {
		t.Fatalf("DeployedResourcesFor: %v", err)
	}
	if len(resources) != 0 {
		t.Fatalf("expected no DeployedResource rows for a chart-root git app, got %+v", resources)
	}
}

// A git app whose checkout is NOT consumed as a chart root is plain
// materialized manifests and must still be applied.
func TestDeployOneGitAppAppliesWhenNotAChartRoot(t *testing.T) {
	root := t.TempDir()
	gitApp := config.ResolvedApp{Name: "raw-manifests", App: config.App{Type: config.AppGit}}

	o := dryRunOrchestrator(openTestStore(t))
	appID := beginAppDeployment(t, o, gitApp.Name)

	if err := o.deployOne(context.Background(), root, gitApp, "default", appID, nil); err != nil {
		t.Fatalf("deployOne returned error: %v", err)
	}

	resources, err := o.Store.DeployedResourcesFor(appID)
	if err != nil {
		t.Fatalf("DeployedResourcesFor: %v", err)
	}
	if len(resources) != 1 || resources[0].Kind != "Directory" {
		t.Fatalf("expected one Directory DeployedResource row, got %+v", resources)
	}
}

// Same no-op/apply split for http apps, keyed on app.App.Dest instead of the
// git repos/ directory.
func TestDeployOneHTTPAppNoOpWhenServesAsChartRoot(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, "downloads", "bundle")
	httpApp := config.ResolvedApp{Name: "bundle", App: config.App{Type: config.AppHTTP, Dest: dest}}
	helmApp := config.ResolvedApp{Name: "my-release", App: config.App{Type: config.AppHelm, Chart: dest}}

	o := dryRunOrchestrator(openTestStore(t))
	appID := beginAppDeployment(t, o, httpApp.Name)
	chartDirs := localChartRootDirs(root, []config.ResolvedApp{httpApp, helmApp})

	if err := o.deployOne(context.Background(), root, httpApp, "default", appID, chartDirs); err != nil {
		t.Fatalf("deployOne returned error: %v", err)
	}

	resources, err := o.Store.DeployedResourcesFor(appID)
	if err != nil {
		t.Fatalf("DeployedResourcesFor: %v", err)
	}
	if len(resources) != 0 {
		t.Fatalf("expected no DeployedResource rows for a chart-root http app, got %+v", resources)
	}
}

func TestDeployOneHTTPAppAppliesWhenNotAChartRoot(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, "downloads", "manifest.yaml")
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dest, []byte("apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: from-http\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	httpApp := config.ResolvedApp{Name: "bundle", App: config.App{Type: config.AppHTTP, Dest: dest}}

	o := dryRunOrchestrator(openTestStore(t))
	appID := beginAppDeployment(t, o, httpApp.Name)

	if err := o.deployOne(context.Background(), root, httpApp, "default", appID, nil); err != nil {
		t.Fatalf("deployOne returned error: %v", err)
	}

	resources, err := o.Store.DeployedResourcesFor(appID)
	if err != nil {
		t.Fatalf("DeployedResourcesFor: %v", err)
	}
	if len(resources) != 1 || resources[0].Name != "from-http" {
		t.Fatalf("expected one DeployedResource row for the applied manifest, got %+v", resources)
	}
}

func TestServesAsChartRootMatchesDirAndSubdir(t *testing.T) {
	if !servesAsChartRoot("/ws/repos/a", []string{"/ws/repos/a"}) {
		t.Fatal("expected exact dir match")
	}
	if !servesAsChartRoot("/ws/repos/a", []string{"/ws/repos/a/charts/sub"}) {
		t.Fatal("expected subdirectory match")
	}
	if servesAsChartRoot("/ws/repos/a", []string{"/ws/repos/b"}) {
		t.Fatal("expected no match for an unrelated directory")
	}
	if servesAsChartRoot("/ws/repos/a", []string{"/ws/repos/ab"}) {
		t.Fatal("expected no match for a sibling dir sharing a path prefix without a separator")
	}
}
