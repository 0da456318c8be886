package depgraph

import "testing"

type testNode struct {
	name      string
	dependsOn []string
}

func (n testNode) NodeName() string          { return n.name }
func (n testNode) NodeDependsOn() []string    { return n.dependsOn }

func TestTopoSortOrdersDependenciesFirst(t *testing.T) {
	nodes := []testNode{
		{name: "backend", dependsOn: []string{"postgres", "cache"}},
		{name: "postgres"},
		{name: "cache"},
	}

	order, err := TopoSort(nodes)
	if err != nil {
		t.Fatalf("TopoSort: %v", err)
	}

	pos := map[string]int{}
	for i, n := range order {
		pos[n.name] = i
	}
	if pos["postgres"] >= pos["backend"] || pos["cache"] >= pos["backend"] {
		t.Fatalf("expected postgres and cache before backend, got order %+v", order)
	}
}

func TestTopoSortDeterministicTieBreak(t *testing.T) {
	nodes := []testNode{
		{name: "charlie"},
		{name: "alpha"},
		{name: "bravo"},
	}
	order1, err := TopoSort(nodes)
	if err != nil {
		t.Fatalf("TopoSort: %v", err)
	}
	order2, err := TopoSort(nodes)
	if err != nil {
		t.Fatalf("TopoSort: %v", err)
	}
	for i := range order1 {
		if order1[i].name != order2[i].name {
			t.Fatalf("expected deterministic ordering, got %+v then %+v", order1, order2)
		}
	}
	if order1[0].name != "alpha" || order1[1].name != "bravo" || order1[2].name != "charlie" {
		t.Fatalf("expected lexical tie-break order alpha,bravo,charlie, got %+v", order1)
	}
}

func TestTopoSortDetectsCycle(t *testing.T) {
	nodes := []testNode{
		{name: "a", dependsOn: []string{"b"}},
		{name: "b", dependsOn: []string{"c"}},
		{name: "c", dependsOn: []string{"a"}},
	}
	_, err := TopoSort(nodes)
	if err == nil {
		t.Fatal("expected cycle detection error")
	}
}

func TestTopoSortRejectsUndefinedDependency(t *testing.T) {
	nodes := []testNode{
		{name: "a", dependsOn: []string{"ghost"}},
	}
	_, err := TopoSort(nodes)
	if err == nil {
		t.Fatal("expected error for a dependency on an undefined node")
	}
}
