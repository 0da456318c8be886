package config

import (
	"testing"
)

func TestParseUnifiedHelmApp(t *testing.T) {
	data := []byte(`
apiVersion: sbkube/v1
settings:
  namespace: demo
  helm_repos:
    bitnami: https://charts.bitnami.com/bitnami
apps:
  redis:
    type: helm
    chart: bitnami/redis
    version: "17.13.2"
    namespace: demo
`)
	doc, err := ParseUnified("sbkube.yaml", data)
	if err != nil {
		t.Fatalf("ParseUnified: %v", err)
	}
	app, ok := doc.Apps["redis"]
	if !ok {
		t.Fatalf("expected apps.redis to be present")
	}
	if app.Type != AppHelm {
		t.Fatalf("expected type helm, got %q", app.Type)
	}
	if app.Chart != "bitnami/redis" || app.Version != "17.13.2" {
		t.Fatalf("unexpected chart/version: %+v", app)
	}
	if doc.Settings.HelmRepos["bitnami"] != "https://charts.bitnami.com/bitnami" {
		t.Fatalf("helm_repos not parsed: %+v", doc.Settings.HelmRepos)
	}
}

func TestParseUnifiedUnknownFieldRejected(t *testing.T) {
	data := []byte(`
apiVersion: sbkube/v1
apps:
  redis:
    type: helm
    chart: bitnami/redis
    totallyBogusField: true
`)
	_, err := ParseUnified("sbkube.yaml", data)
	if err == nil {
		t.Fatal("expected strict schema rejection of unknown field")
	}
}

func TestParseUnifiedMissingType(t *testing.T) {
	data := []byte(`
apiVersion: sbkube/v1
apps:
  redis:
    chart: bitnami/redis
`)
	_, err := ParseUnified("sbkube.yaml", data)
	if err == nil {
		t.Fatal("expected error for app with no type discriminator")
	}
}

func TestParseUnifiedRejectsWrongAPIVersion(t *testing.T) {
	data := []byte(`
apiVersion: sbkube/v2
apps: {}
`)
	_, err := ParseUnified("sbkube.yaml", data)
	if err == nil {
		t.Fatal("expected rejection of unsupported apiVersion")
	}
}

func TestDecodePhaseRefVsInline(t *testing.T) {
	data := []byte(`
apiVersion: sbkube/v1
phases:
  infra: ./infra/sbkube.yaml
  apps:
    settings:
      namespace: apps-ns
    apps:
      noop1:
        type: noop
`)
	doc, err := ParseUnified("sbkube.yaml", data)
	if err != nil {
		t.Fatalf("ParseUnified: %v", err)
	}
	infra := doc.Phases["infra"]
	if infra.Ref != "./infra/sbkube.yaml" || infra.Inline != nil {
		t.Fatalf("expected infra phase to be a filesystem ref, got %+v", infra)
	}
	apps := doc.Phases["apps"]
	if apps.Inline == nil || apps.Ref != "" {
		t.Fatalf("expected apps phase to be inline, got %+v", apps)
	}
	if apps.Inline.Settings.Namespace != "apps-ns" {
		t.Fatalf("inline phase settings not parsed: %+v", apps.Inline.Settings)
	}
	if _, ok := apps.Inline.Apps["noop1"]; !ok {
		t.Fatalf("inline phase apps not parsed: %+v", apps.Inline.Apps)
	}
}
