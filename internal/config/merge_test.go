package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMergeSettingsScalarOverride(t *testing.T) {
	parent := EffectiveSettings{Namespace: "infra", Cluster: "prod"}
	child := Settings{Namespace: "apps"}

	got := mergeSettings(parent, child)

	want := EffectiveSettings{Namespace: "apps", Cluster: "prod", HelmRepos: map[string]string{}, OCIRegistries: map[string]OCIRegistry{}, GitRepos: map[string]GitRepoRef{}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mergeSettings scalar override mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeSettingsRepoMapUnionChildWins(t *testing.T) {
	parent := EffectiveSettings{
		HelmRepos: map[string]string{"bitnami": "https://old.example/bitnami"},
	}
	child := Settings{
		HelmRepos: map[string]string{
			"bitnami": "https://new.example/bitnami",
			"jetstack": "https://charts.jetstack.io",
		},
	}

	got := mergeSettings(parent, child)

	want := map[string]string{
		"bitnami":  "https://new.example/bitnami",
		"jetstack": "https://charts.jetstack.io",
	}
	if diff := cmp.Diff(want, got.HelmRepos); diff != "" {
		t.Fatalf("helm_repos union mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeSettingsAccumulatesValueLayersRootToLeaf(t *testing.T) {
	root := EffectiveSettings{}
	mid := mergeSettings(root, Settings{
		ClusterValuesFile: "root-values.yaml",
		GlobalValues:      map[string]interface{}{"a": 1},
	})
	leaf := mergeSettings(mid, Settings{
		ClusterValuesFile: "leaf-values.yaml",
		GlobalValues:      map[string]interface{}{"b": 2},
	})

	wantFiles := []string{"root-values.yaml", "leaf-values.yaml"}
	if diff := cmp.Diff(wantFiles, leaf.ClusterValuesFiles); diff != "" {
		t.Fatalf("cluster values files not accumulated root-to-leaf (-want +got):\n%s", diff)
	}
	if len(leaf.GlobalValuesLayers) != 2 {
		t.Fatalf("expected 2 accumulated global_values layers, got %d", len(leaf.GlobalValuesLayers))
	}
}

func TestResolveTreeFlattensPhasesWithInheritedSettings(t *testing.T) {
	root := &Document{
		Settings: Settings{Namespace: "default-ns", HelmRepos: map[string]string{"bitnami": "https://charts.bitnami.com/bitnami"}},
		Apps: map[string]App{
			"root-app": {Type: AppNoop},
		},
		Phases: map[string]Phase{
			"child": {Inline: &Document{
				Settings: Settings{Namespace: "child-ns"},
				Apps: map[string]App{
					"child-app": {Type: AppHelm, Chart: "bitnami/redis"},
				},
			}},
		},
	}

	ws, err := ResolveTree(root, "/workspace", func(ref, fromDir string) (*Document, string, error) {
		t.Fatalf("unexpected disk phase load for ref %q", ref)
		return nil, "", nil
	})
	if err != nil {
		t.Fatalf("ResolveTree: %v", err)
	}

	byName := map[string]ResolvedApp{}
	for _, a := range ws.Apps {
		byName[a.Name] = a
	}

	if byName["root-app"].Settings.Namespace != "default-ns" {
		t.Fatalf("root app should see root namespace, got %+v", byName["root-app"].Settings)
	}
	child, ok := byName["child-app"]
	if !ok {
		t.Fatalf("expected child-app to be resolved from the inline phase")
	}
	if child.Settings.Namespace != "child-ns" {
		t.Fatalf("child app should see overridden namespace, got %q", child.Settings.Namespace)
	}
	if child.Settings.HelmRepos["bitnami"] == "" {
		t.Fatalf("child app should inherit parent's helm_repos, got %+v", child.Settings.HelmRepos)
	}
	if child.PhasePath != "child" {
		t.Fatalf("expected phase path \"child\", got %q", child.PhasePath)
	}
}

func TestResolveTreeRejectsAncestorCycle(t *testing.T) {
	root := &Document{
		Phases: map[string]Phase{
			"child": {Ref: "./child"},
		},
	}
	child := &Document{
		Phases: map[string]Phase{
			// Resolves back to the workspace root directory: a genuine
			// ancestor cycle through filesystem refs.
			"back": {Ref: "./.."},
		},
	}

	_, err := ResolveTree(root, "/workspace", func(ref, fromDir string) (*Document, string, error) {
		if ref == "./child" {
			return child, "/workspace/child", nil
		}
		if ref == "./.." {
			return root, "/workspace", nil
		}
		t.Fatalf("unexpected ref %q from %q", ref, fromDir)
		return nil, "", nil
	})
	if err == nil {
		t.Fatal("expected a phase pointing back at its own ancestor to be rejected")
	}
}

func TestResolveTreeAllowsRepeatedInlinePhaseShape(t *testing.T) {
	// Two sibling inline phases share the parent's directory by
	// construction; that must not be mistaken for an ancestor cycle.
	root := &Document{
		Phases: map[string]Phase{
			"a": {Inline: &Document{Apps: map[string]App{"x": {Type: AppNoop}}}},
			"b": {Inline: &Document{Apps: map[string]App{"y": {Type: AppNoop}}}},
		},
	}
	ws, err := ResolveTree(root, "/workspace", func(ref, fromDir string) (*Document, string, error) {
		t.Fatalf("unexpected disk phase load for ref %q", ref)
		return nil, "", nil
	})
	if err != nil {
		t.Fatalf("ResolveTree: %v", err)
	}
	if len(ws.Apps) != 2 {
		t.Fatalf("expected both inline phases to resolve, got %d apps", len(ws.Apps))
	}
}
