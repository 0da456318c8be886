package config

import "testing"

func TestValidateRejectsOCIURLInChart(t *testing.T) {
	doc := &Document{Apps: map[string]App{
		"bad": {Type: AppHelm, Chart: "oci://registry.example.com/charts/redis"},
	}}
	err := Validate(doc)
	if err == nil {
		t.Fatal("expected rejection of raw oci:// chart reference")
	}
}

func TestValidateRejectsCircularDependsOn(t *testing.T) {
	doc := &Document{Apps: map[string]App{
		"a": {Type: AppNoop, DependsOn: []string{"b"}},
		"b": {Type: AppNoop, DependsOn: []string{"c"}},
		"c": {Type: AppNoop, DependsOn: []string{"a"}},
	}}
	err := Validate(doc)
	if err == nil {
		t.Fatal("expected circular depends_on to be rejected")
	}
}

func TestValidateRejectsUnresolvedDependsOn(t *testing.T) {
	doc := &Document{Apps: map[string]App{
		"a": {Type: AppNoop, DependsOn: []string{"ghost"}},
	}}
	err := Validate(doc)
	if err == nil {
		t.Fatal("expected error for depends_on referencing an undefined app")
	}
}

func TestValidateAppFieldsRejectsCrossTypeFields(t *testing.T) {
	doc := &Document{Apps: map[string]App{
		"yamlapp": {Type: AppYAML, Files: []string{"a.yaml"}, Chart: "bitnami/redis"},
	}}
	err := Validate(doc)
	if err == nil {
		t.Fatal("expected rejection of a helm-only field on a yaml app")
	}
}

func TestValidateAcceptsWellFormedDocument(t *testing.T) {
	doc := &Document{Apps: map[string]App{
		"postgres": {Type: AppHelm, Chart: "bitnami/postgresql"},
		"backend": {
			Type:      AppHelm,
			Chart:     "./local/backend",
			DependsOn: []string{"postgres"},
		},
	}}
	if err := Validate(doc); err != nil {
		t.Fatalf("expected a well-formed document to validate cleanly, got %v", err)
	}
}

func TestValidateActionTypeDiscriminator(t *testing.T) {
	doc := &Document{Apps: map[string]App{
		"bad": {Type: AppAction, Actions: []Action{{Type: "patch", Path: "x.yaml"}}},
	}}
	if err := Validate(doc); err == nil {
		t.Fatal("expected rejection of unknown action type")
	}
}
