package state

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "deployments.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBeginAndFinishDeploymentRoundTrip(t *testing.T) {
	s := openTestStore(t)

	id, err := s.BeginDeployment(Deployment{
		ID:        "dep-1",
		Cluster:   "prod",
		Namespace: "demo",
		AppGroup:  "/workspace",
		Command:   "apply",
	})
	if err != nil {
		t.Fatalf("BeginDeployment: %v", err)
	}
	if id != "dep-1" {
		t.Fatalf("expected id dep-1, got %q", id)
	}

	if err := s.FinishDeployment(id, DeploymentSuccess); err != nil {
		t.Fatalf("FinishDeployment: %v", err)
	}

	history, err := s.History("prod", "demo", "", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 deployment in history, got %d", len(history))
	}
	if history[0].Status != string(DeploymentSuccess) {
		t.Fatalf("expected status success, got %q", history[0].Status)
	}
	if history[0].CompletedAt == nil {
		t.Fatal("expected completed_at to be set after FinishDeployment")
	}
}

func TestAppDeploymentTreeAndHelmRelease(t *testing.T) {
	s := openTestStore(t)

	depID, err := s.BeginDeployment(Deployment{ID: "dep-1", Cluster: "prod", Namespace: "demo", AppGroup: "/workspace", Command: "apply"})
	if err != nil {
		t.Fatalf("BeginDeployment: %v", err)
	}

	appID, err := s.BeginAppDeployment(AppDeployment{
		ID:           "app-1",
		DeploymentID: depID,
		Cluster:      "prod",
		Namespace:    "demo",
		AppName:      "redis",
		AppGroup:     "/workspace",
	})
	if err != nil {
		t.Fatalf("BeginAppDeployment: %v", err)
	}

	if err := s.RecordHelmRelease(HelmRelease{
		ID:              "rel-1",
		AppDeploymentID: appID,
		ReleaseName:     "redis",
		Chart:           "bitnami/redis",
		ChartVersion:    "17.13.2",
		Revision:        1,
		Namespace:       "demo",
	}); err != nil {
		t.Fatalf("RecordHelmRelease: %v", err)
	}

	if err := s.FinishAppDeployment(appID, AppSuccess, ""); err != nil {
		t.Fatalf("FinishAppDeployment: %v", err)
	}
	if err := s.FinishDeployment(depID, DeploymentSuccess); err != nil {
		t.Fatalf("FinishDeployment: %v", err)
	}

	apps, err := s.AppDeploymentsFor(depID)
	if err != nil {
		t.Fatalf("AppDeploymentsFor: %v", err)
	}
	if len(apps) != 1 || apps[0].AppName != "redis" {
		t.Fatalf("expected one app deployment for redis, got %+v", apps)
	}

	release, err := s.HelmReleaseFor(appID)
	if err != nil {
		t.Fatalf("HelmReleaseFor: %v", err)
	}
	if release == nil || release.ChartVersion != "17.13.2" {
		t.Fatalf("expected helm release with chart_version 17.13.2, got %+v", release)
	}

	resources, err := s.DeployedResourcesFor(appID)
	if err != nil {
		t.Fatalf("DeployedResourcesFor: %v", err)
	}
	if len(resources) != 0 {
		t.Fatalf("expected no deployed resources for a helm app, got %d", len(resources))
	}
}

func TestDeployedResourceRoundTripForRollback(t *testing.T) {
	s := openTestStore(t)

	depID, _ := s.BeginDeployment(Deployment{ID: "dep-1", Cluster: "prod", Namespace: "demo", AppGroup: "/workspace", Command: "apply"})
	appID, _ := s.BeginAppDeployment(AppDeployment{ID: "app-1", DeploymentID: depID, Cluster: "prod", Namespace: "demo", AppName: "configmap-app", AppGroup: "/workspace"})

	if err := s.RecordDeployedResource(DeployedResource{
		ID:              "res-1",
		AppDeploymentID: appID,
		Kind:            "ConfigMap",
		Name:            "app-config",
		Namespace:       "demo",
		Action:          string(ActionUpdate),
		PreviousState:   "apiVersion: v1\nkind: ConfigMap\n",
		CurrentState:    "apiVersion: v1\nkind: ConfigMap\ndata: {replicas: \"5\"}\n",
	}); err != nil {
		t.Fatalf("RecordDeployedResource: %v", err)
	}

	resources, err := s.DeployedResourcesFor(appID)
	if err != nil {
		t.Fatalf("DeployedResourcesFor: %v", err)
	}
	if len(resources) != 1 {
		t.Fatalf("expected 1 deployed resource, got %d", len(resources))
	}
	if resources[0].PreviousState == "" {
		t.Fatal("expected previous_state to be recorded for an update action (required for rollback)")
	}
}

func TestLatestSuccessfulGroupDeploymentIsNamespaceNeutral(t *testing.T) {
	s := openTestStore(t)

	// No deployment for a000_infra yet.
	info, ok, err := s.LatestSuccessfulGroupDeployment("a000_infra")
	if err != nil {
		t.Fatalf("LatestSuccessfulGroupDeployment: %v", err)
	}
	if ok {
		t.Fatalf("expected no prior deployment, got %+v", info)
	}

	depID, err := s.BeginDeployment(Deployment{ID: "dep-infra", Cluster: "prod", Namespace: "infra", AppGroup: "a000_infra", Command: "apply"})
	if err != nil {
		t.Fatalf("BeginDeployment: %v", err)
	}
	if err := s.FinishDeployment(depID, DeploymentSuccess); err != nil {
		t.Fatalf("FinishDeployment: %v", err)
	}

	// A later command targeting a different namespace should still observe
	// the infra group's deployment (spec.md §4.3, §8.2 scenario S6).
	info, ok, err = s.LatestSuccessfulGroupDeployment("a000_infra")
	if err != nil {
		t.Fatalf("LatestSuccessfulGroupDeployment: %v", err)
	}
	if !ok {
		t.Fatal("expected a000_infra to be found regardless of current command namespace")
	}
	if info.Namespace != "infra" {
		t.Fatalf("expected namespace infra recorded, got %q", info.Namespace)
	}
}

func TestHistoryFiltersByAppName(t *testing.T) {
	s := openTestStore(t)

	depA, _ := s.BeginDeployment(Deployment{ID: "dep-a", Cluster: "prod", Namespace: "demo", AppGroup: "/workspace", Command: "apply"})
	s.FinishDeployment(depA, DeploymentSuccess)
	if _, err := s.BeginAppDeployment(AppDeployment{ID: "app-a", DeploymentID: depA, Cluster: "prod", Namespace: "demo", AppName: "redis", AppGroup: "/workspace"}); err != nil {
		t.Fatalf("BeginAppDeployment: %v", err)
	}

	depB, _ := s.BeginDeployment(Deployment{ID: "dep-b", Cluster: "prod", Namespace: "demo", AppGroup: "/workspace", Command: "apply"})
	s.FinishDeployment(depB, DeploymentSuccess)
	if _, err := s.BeginAppDeployment(AppDeployment{ID: "app-b", DeploymentID: depB, Cluster: "prod", Namespace: "demo", AppName: "postgres", AppGroup: "/workspace"}); err != nil {
		t.Fatalf("BeginAppDeployment: %v", err)
	}

	history, err := s.History("", "", "redis", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 || history[0].ID != depA {
		t.Fatalf("expected only dep-a for app redis, got %+v", history)
	}
}
