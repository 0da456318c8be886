package pipeline

import (
	"context"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/sbkube/sbkube/internal/config"
	"github.com/sbkube/sbkube/internal/errs"
)

type pvcManifest struct {
	Kind string `json:"kind"`
	Spec struct {
		StorageClassName *string `json:"storageClassName"`
	} `json:"spec"`
}

// ValidateStorage checks that every storageClassName referenced by a
// PersistentVolumeClaim manifest in a yaml-type app names a StorageClass
// that actually exists in the target cluster (spec.md §6.1 "validate:
// --skip-storage-check, --strict-storage-check"). strict turns a missing
// class into an error instead of a warning.
func (o *Orchestrator) ValidateStorage(ctx context.Context, apps []config.ResolvedApp, strict bool) (warnings []string, err error) {
	classes := map[string]bool{}
	for _, app := range apps {
		if app.App.Type != config.AppYAML {
			continue
		}
		for _, f := range app.App.Files {
			names, ferr := storageClassesIn(f)
			if ferr != nil {
				continue
			}
			for _, n := range names {
				classes[n] = true
			}
		}
	}

	for name := range classes {
		if _, cerr := o.Driver.Kubectl(ctx, "get", "storageclass", name, "-o", "name"); cerr != nil {
			msg := fmt.Sprintf("storage class %q is referenced by a PersistentVolumeClaim but does not exist in the target cluster", name)
			if strict {
				return warnings, errs.New(errs.Kubernetes, msg)
			}
			warnings = append(warnings, msg)
		}
	}
	return warnings, nil
}

func storageClassesIn(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, doc := range splitYAMLDocs(string(data)) {
		var m pvcManifest
		if err := yaml.Unmarshal([]byte(doc), &m); err != nil {
			continue
		}
		if m.Kind != "PersistentVolumeClaim" {
			continue
		}
		if m.Spec.StorageClassName != nil && *m.Spec.StorageClassName != "" {
			names = append(names, *m.Spec.StorageClassName)
		}
	}
	return names, nil
}

func splitYAMLDocs(s string) []string {
	var docs []string
	var cur string
	for _, line := range splitLines(s) {
		if line == "---" {
			docs = append(docs, cur)
			cur = ""
			continue
		}
		cur += line + "\n"
	}
	docs = append(docs, cur)
	return docs
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
