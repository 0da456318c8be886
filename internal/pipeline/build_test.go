package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sbkube/sbkube/internal/config"
	"github.com/sbkube/sbkube/internal/log"
	"github.com/sbkube/sbkube/internal/tool"
)

func TestBuildHelmSkipsLocalChartWithoutOverrides(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "local-chart"), 0o755); err != nil {
		t.Fatal(err)
	}
	app := helmApp("app", "local-chart", "", config.EffectiveSettings{})
	o := &Orchestrator{Log: log.NopLogger{}, Driver: tool.New(log.NopLogger{}, true)}

	if err := o.buildHelm(root, app, false); err != nil {
		t.Fatalf("buildHelm returned error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "build", "app")); !os.IsNotExist(err) {
		t.Fatalf("expected no build artifact for a local chart with no overrides/removes, stat err=%v", err)
	}
}

func TestBuildHelmCopiesLocalChartWithOverrides(t *testing.T) {
	root := t.TempDir()
	chartDir := filepath.Join(root, "local-chart")
	if err := os.MkdirAll(chartDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(chartDir, "Chart.yaml"), []byte("name: app\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	overridesDir := filepath.Join(root, "overrides", "app")
	if err := os.MkdirAll(overridesDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(overridesDir, "values.yaml"), []byte("replicas: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	app := config.ResolvedApp{
		Name: "app",
		App: config.App{
			Type:      config.AppHelm,
			Chart:     "local-chart",
			Overrides: []string{"values.yaml"},
		},
	}
	o := &Orchestrator{Log: log.NopLogger{}, Driver: tool.New(log.NopLogger{}, true)}

	if err := o.buildHelm(root, app, false); err != nil {
		t.Fatalf("buildHelm returned error: %v", err)
	}
	buildDir := filepath.Join(root, "build", "app")
	if _, err := os.Stat(filepath.Join(buildDir, "Chart.yaml")); err != nil {
		t.Fatalf("expected chart source copied into build dir: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(buildDir, "values.yaml"))
	if err != nil {
		t.Fatalf("expected override applied into build dir: %v", err)
	}
	if string(data) != "replicas: 3\n" {
		t.Fatalf("expected override content, got %q", string(data))
	}
}
