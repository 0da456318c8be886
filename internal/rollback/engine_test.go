package rollback

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sbkube/sbkube/internal/log"
	"github.com/sbkube/sbkube/internal/state"
	"github.com/sbkube/sbkube/internal/tool"
)

func openTestStore(t *testing.T) *state.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := state.Open(filepath.Join(dir, "deployments.db"))
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Dry-run exercises the same command-assembly path as a live rollback
// without shelling out, so the engine's ordering and per-action dispatch
// logic is testable without helm/kubectl installed.
func dryRunDriver() *tool.Driver {
	return tool.New(log.NopLogger{}, true)
}

func TestRollbackRecordsRolledBackDeployment(t *testing.T) {
	store := openTestStore(t)
	engine := New(store, dryRunDriver(), log.NopLogger{})

	depID, err := store.BeginDeployment(state.Deployment{
		ID: "dep-1", Cluster: "prod", Namespace: "demo", AppGroup: "/workspace", Command: "apply",
	})
	if err != nil {
		t.Fatalf("BeginDeployment: %v", err)
	}

	appID, err := store.BeginAppDeployment(state.AppDeployment{
		ID: "app-1", DeploymentID: depID, Cluster: "prod", Namespace: "demo", AppName: "manifests-app", AppGroup: "/workspace",
	})
	if err != nil {
		t.Fatalf("BeginAppDeployment: %v", err)
	}

	if err := store.RecordDeployedResource(state.DeployedResource{
		ID: "res-1", AppDeploymentID: appID, Kind: "Deployment", Name: "web", Namespace: "demo",
		Action: string(state.ActionCreate),
	}); err != nil {
		t.Fatalf("RecordDeployedResource: %v", err)
	}
	if err := store.RecordDeployedResource(state.DeployedResource{
		ID: "res-2", AppDeploymentID: appID, Kind: "ConfigMap", Name: "web-config", Namespace: "demo",
		Action: string(state.ActionUpdate), PreviousState: "apiVersion: v1\nkind: ConfigMap\n",
	}); err != nil {
		t.Fatalf("RecordDeployedResource: %v", err)
	}

	if err := store.FinishAppDeployment(appID, state.AppSuccess, ""); err != nil {
		t.Fatalf("FinishAppDeployment: %v", err)
	}
	if err := store.FinishDeployment(depID, state.DeploymentSuccess); err != nil {
		t.Fatalf("FinishDeployment: %v", err)
	}

	newID, err := engine.Rollback(context.Background(), depID)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if newID == "" {
		t.Fatal("expected a new deployment id for the rollback record")
	}

	rollbackDeployments, err := store.History("prod", "demo", "", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	var found *state.Deployment
	for i := range rollbackDeployments {
		if rollbackDeployments[i].ID == newID {
			found = &rollbackDeployments[i]
		}
	}
	if found == nil {
		t.Fatal("expected the rollback to be recorded as a new Deployment row")
	}
	if found.Status != string(state.DeploymentRolledBack) {
		t.Fatalf("expected status rolled_back, got %q", found.Status)
	}
	if found.Command != "rollback" {
		t.Fatalf("expected command \"rollback\", got %q", found.Command)
	}
}

func TestRollbackHelmReleaseFallsBackToUninstallOnInitialRevision(t *testing.T) {
	store := openTestStore(t)
	engine := New(store, dryRunDriver(), log.NopLogger{})

	depID, _ := store.BeginDeployment(state.Deployment{ID: "dep-1", Cluster: "prod", Namespace: "demo", AppGroup: "/workspace", Command: "apply"})
	appID, _ := store.BeginAppDeployment(state.AppDeployment{ID: "app-1", DeploymentID: depID, Cluster: "prod", Namespace: "demo", AppName: "redis", AppGroup: "/workspace"})
	if err := store.RecordHelmRelease(state.HelmRelease{
		ID: "rel-1", AppDeploymentID: appID, ReleaseName: "redis", Chart: "bitnami/redis", ChartVersion: "17.13.2", Revision: 1, Namespace: "demo",
	}); err != nil {
		t.Fatalf("RecordHelmRelease: %v", err)
	}
	store.FinishAppDeployment(appID, state.AppSuccess, "")
	store.FinishDeployment(depID, state.DeploymentSuccess)

	// Dry-run mode never actually executes helm, so this only exercises
	// that rollback of a revision-1 release takes the uninstall path
	// without erroring.
	if _, err := engine.Rollback(context.Background(), depID); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
}

func TestRollbackRejectsDeploymentWithNoAppDeployments(t *testing.T) {
	store := openTestStore(t)
	engine := New(store, dryRunDriver(), log.NopLogger{})

	depID, _ := store.BeginDeployment(state.Deployment{ID: "dep-empty", Cluster: "prod", Namespace: "demo", AppGroup: "/workspace", Command: "apply"})
	store.FinishDeployment(depID, state.DeploymentSuccess)

	if _, err := engine.Rollback(context.Background(), depID); err == nil {
		t.Fatal("expected an error rolling back a deployment with no recorded app deployments")
	}
}
