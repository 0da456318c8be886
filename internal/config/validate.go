package config

import (
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/sbkube/sbkube/internal/errs"
)

// Validate checks a single Document in isolation (no phase-tree or
// inter-group context): app name validity, discriminator/field
// consistency, depends_on resolvability and acyclicity, and the OCI chart
// guard (spec.md §3.1, §4.2).
func Validate(doc *Document) error {
	var agg *multierror.Error

	for name, app := range doc.Apps {
		for _, msg := range validation.IsDNS1123Label(name) {
			agg = multierror.Append(agg, errors.Errorf("apps.%s: invalid app name: %s", name, msg))
		}
		if err := validateAppFields(name, app); err != nil {
			agg = multierror.Append(agg, err)
		}
		for _, dep := range app.DependsOn {
			if _, ok := doc.Apps[dep]; !ok {
				agg = multierror.Append(agg, errors.Errorf(
					"apps.%s.depends_on: %q is not defined in this document", name, dep))
			}
		}
	}

	if cyclePath, ok := findDependsOnCycle(doc.Apps); ok {
		agg = multierror.Append(agg, errors.Errorf(
			"circular depends_on: %s", strings.Join(cyclePath, " -> ")))
	}

	if err := agg.ErrorOrNil(); err != nil {
		return errs.Wrap(errs.Configuration, err, "configuration validation failed")
	}
	return nil
}

// validateAppFields checks each app type's required fields and rejects some
// fields that belong to other app types: helm apps reject files, path,
// repo, url, actions, commands and tasks; yaml apps reject chart and path;
// kustomize and noop apps reject chart and files. Fields of other types on
// git, http, action, exec and hook apps are not checked and are accepted.
func validateAppFields(name string, app App) error {
	var agg *multierror.Error
	reject := func(set bool, field string) {
		if set {
			agg = multierror.Append(agg, errors.Errorf(
				"apps.%s: field %q is not valid for type %q", name, field, app.Type))
		}
	}

	switch app.Type {
	case AppHelm:
		if app.Chart == "" {
			agg = multierror.Append(agg, errors.Errorf("apps.%s: helm app requires \"chart\"", name))
		}
		if strings.HasPrefix(app.Chart, "oci://") {
			agg = multierror.Append(agg, errors.Errorf(
				"apps.%s: chart must not be a raw oci:// URL; register the registry under "+
					"settings.oci_registries and reference it as \"<registry>/<chart>\"", name))
		}
		reject(len(app.Files) > 0, "files")
		reject(app.Path != "", "path")
		reject(app.Repo != "", "repo")
		reject(app.URL != "", "url")
		reject(len(app.Actions) > 0, "actions")
		reject(len(app.Commands) > 0, "commands")
		reject(len(app.Tasks) > 0, "tasks")
	case AppYAML:
		if len(app.Files) == 0 {
			agg = multierror.Append(agg, errors.Errorf("apps.%s: yaml app requires \"files\"", name))
		}
		reject(app.Chart != "", "chart")
		reject(app.Path != "", "path")
	case AppKustomize:
		if app.Path == "" {
			agg = multierror.Append(agg, errors.Errorf("apps.%s: kustomize app requires \"path\"", name))
		}
		reject(app.Chart != "", "chart")
		reject(len(app.Files) > 0, "files")
	case AppGit:
		if app.Repo == "" {
			agg = multierror.Append(agg, errors.Errorf("apps.%s: git app requires \"repo\"", name))
		}
	case AppHTTP:
		if app.URL == "" {
			agg = multierror.Append(agg, errors.Errorf("apps.%s: http app requires \"url\"", name))
		}
		if app.Dest == "" {
			agg = multierror.Append(agg, errors.Errorf("apps.%s: http app requires \"dest\"", name))
		}
	case AppAction:
		if len(app.Actions) == 0 {
			agg = multierror.Append(agg, errors.Errorf("apps.%s: action app requires \"actions\"", name))
		}
		for i, a := range app.Actions {
			switch a.Type {
			case "apply", "create", "delete":
			default:
				agg = multierror.Append(agg, errors.Errorf(
					"apps.%s.actions[%d]: unknown action type %q", name, i, a.Type))
			}
		}
	case AppExec:
		if len(app.Commands) == 0 {
			agg = multierror.Append(agg, errors.Errorf("apps.%s: exec app requires \"commands\"", name))
		}
	case AppNoop:
		reject(app.Chart != "", "chart")
		reject(len(app.Files) > 0, "files")
	case AppHook:
		if len(app.Tasks) == 0 {
			agg = multierror.Append(agg, errors.Errorf("apps.%s: hook app requires \"tasks\"", name))
		}
	}
	return agg.ErrorOrNil()
}

// findDependsOnCycle runs a depth-first search over the intra-document
// depends_on graph and returns the first cycle encountered, named node by
// node, for a readable error message. Deterministic: apps are visited in
// lexical order so repeated runs report the same cycle (spec.md §8.1,
// testable property 1).
func findDependsOnCycle(apps map[string]App) ([]string, bool) {
	names := make([]string, 0, len(apps))
	for n := range apps {
		names = append(names, n)
	}
	sort.Strings(names)

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(apps))
	var path []string

	var visit func(n string) ([]string, bool)
	visit = func(n string) ([]string, bool) {
		color[n] = gray
		path = append(path, n)
		deps := append([]string(nil), apps[n].DependsOn...)
		sort.Strings(deps)
		for _, d := range deps {
			if _, ok := apps[d]; !ok {
				continue // missing reference is reported separately
			}
			switch color[d] {
			case gray:
				// cycle found; slice path from d's first occurrence
				for i, p := range path {
					if p == d {
						return append(append([]string{}, path[i:]...), d), true
					}
				}
			case white:
				if cyc, found := visit(d); found {
					return cyc, true
				}
			}
		}
		path = path[:len(path)-1]
		color[n] = black
		return nil, false
	}

	for _, n := range names {
		if color[n] == white {
			if cyc, found := visit(n); found {
				return cyc, true
			}
		}
	}
	return nil, false
}
