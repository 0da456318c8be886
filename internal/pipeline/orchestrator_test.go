package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/sbkube/sbkube/internal/config"
	"github.com/sbkube/sbkube/internal/log"
)

func TestRunStageSkipsAppsWithFailedDependency(t *testing.T) {
	o := &Orchestrator{Log: log.NopLogger{}}
	apps := []config.ResolvedApp{
		appWithDeps("db"),
		appWithDeps("api", "db"),
	}

	fn := func(_ context.Context, app config.ResolvedApp) error {
		if app.Name == "db" {
			return errors.New("db failed")
		}
		return nil
	}

	sr, err := o.RunStage(context.Background(), StagePrepare, apps, fn)
	if err != nil {
		t.Fatalf("RunStage returned error: %v", err)
	}
	if !sr.Failed() {
		t.Fatal("expected StageResult.Failed() to be true")
	}

	var apiResult *AppResult
	for i := range sr.Results {
		if sr.Results[i].App == "api" {
			apiResult = &sr.Results[i]
		}
	}
	if apiResult == nil {
		t.Fatal("expected a result for app \"api\"")
	}
	if !apiResult.Skipped {
		t.Fatal("expected \"api\" to be skipped since its dependency \"db\" failed")
	}
}

func TestRunStageSkipsDisabledApps(t *testing.T) {
	o := &Orchestrator{Log: log.NopLogger{}}
	disabled := false
	apps := []config.ResolvedApp{
		{Name: "off", App: config.App{Type: config.AppNoop, Enabled: &disabled}},
		{Name: "on", App: config.App{Type: config.AppNoop}},
	}

	var ran []string
	fn := func(_ context.Context, app config.ResolvedApp) error {
		ran = append(ran, app.Name)
		return nil
	}

	sr, err := o.RunStage(context.Background(), StagePrepare, apps, fn)
	if err != nil {
		t.Fatalf("RunStage returned error: %v", err)
	}
	if len(sr.Results) != 1 || sr.Results[0].App != "on" {
		t.Fatalf("expected only the enabled app to have a result, got %+v", sr.Results)
	}
	if len(ran) != 1 || ran[0] != "on" {
		t.Fatalf("expected only \"on\" to run, got %+v", ran)
	}
}
