package pipeline

import (
	"testing"

	"github.com/sbkube/sbkube/internal/config"
)

func appWithDeps(name string, deps ...string) config.ResolvedApp {
	return config.ResolvedApp{
		Name: name,
		App:  config.App{Type: config.AppNoop, DependsOn: deps},
	}
}

func TestLevelsGroupsByDependencyDepth(t *testing.T) {
	apps := []config.ResolvedApp{
		appWithDeps("db"),
		appWithDeps("cache"),
		appWithDeps("api", "db", "cache"),
		appWithDeps("web", "api"),
	}

	levels, err := Levels(apps)
	if err != nil {
		t.Fatalf("Levels returned error: %v", err)
	}
	if len(levels) != 3 {
		t.Fatalf("expected 3 levels, got %d: %+v", len(levels), levels)
	}
	if len(levels[0]) != 2 || levels[0][0].Name != "cache" || levels[0][1].Name != "db" {
		t.Fatalf("expected level 0 = [cache, db] (lexical), got %+v", levels[0])
	}
	if len(levels[1]) != 1 || levels[1][0].Name != "api" {
		t.Fatalf("expected level 1 = [api], got %+v", levels[1])
	}
	if len(levels[2]) != 1 || levels[2][0].Name != "web" {
		t.Fatalf("expected level 2 = [web], got %+v", levels[2])
	}
}

func TestLevelsRejectsCycle(t *testing.T) {
	apps := []config.ResolvedApp{
		appWithDeps("a", "b"),
		appWithDeps("b", "a"),
	}
	if _, err := Levels(apps); err == nil {
		t.Fatal("expected error for cyclic depends_on, got nil")
	}
}
