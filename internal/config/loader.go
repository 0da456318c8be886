package config

import (
	"os"
	"path/filepath"

	"github.com/sbkube/sbkube/internal/errs"
)

// DiskPhaseLoader implements PhaseLoader against the real filesystem: ref is
// resolved relative to fromDir, and may name either a directory containing
// sbkube.yaml or the file itself (spec.md §3.1 "a filesystem reference to
// another sbkube.yaml").
func DiskPhaseLoader(ref string, fromDir string) (*Document, string, error) {
	candidate := ref
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(fromDir, ref)
	}

	configFile := candidate
	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		configFile = filepath.Join(candidate, "sbkube.yaml")
	}

	doc, err := LoadFile(configFile)
	if err != nil {
		return nil, "", err
	}
	if err := Validate(doc); err != nil {
		return nil, "", err
	}
	return doc, filepath.Dir(configFile), nil
}

// LoadWorkspace loads the unified config at configFile, validates it, and
// resolves its full phase tree (spec.md §4.1, §4.2). It is the entry point
// the CLI layer uses for every command that needs the resolved app graph.
func LoadWorkspace(configFile string) (*Document, *ResolvedWorkspace, error) {
	root, err := LoadFile(configFile)
	if err != nil {
		return nil, nil, err
	}
	if err := Validate(root); err != nil {
		return nil, nil, err
	}
	ws, err := ResolveTree(root, filepath.Dir(configFile), DiskPhaseLoader)
	if err != nil {
		return nil, nil, err
	}
	return root, ws, nil
}

// FilterByScope restricts ws to apps whose PhasePath is scope or nested
// under it (spec.md §4.1 "Scope (filter)"); an empty scope is a no-op.
func FilterByScope(ws *ResolvedWorkspace, scope string) *ResolvedWorkspace {
	if scope == "" {
		return ws
	}
	out := &ResolvedWorkspace{}
	for _, app := range ws.Apps {
		if app.PhasePath == scope || hasPrefixSegment(app.PhasePath, scope) {
			out.Apps = append(out.Apps, app)
		}
	}
	return out
}

func hasPrefixSegment(path, prefix string) bool {
	if len(path) <= len(prefix) {
		return false
	}
	return path[:len(prefix)] == prefix && path[len(prefix)] == '/'
}

// FilterByApp restricts ws to appName and every app it transitively depends
// on (spec.md §6.1 "--app NAME": restrict to one app and its dependencies).
func FilterByApp(ws *ResolvedWorkspace, appName string) (*ResolvedWorkspace, error) {
	byName := make(map[string]ResolvedApp, len(ws.Apps))
	for _, a := range ws.Apps {
		byName[a.Name] = a
	}
	if _, ok := byName[appName]; !ok {
		return nil, errs.New(errs.Configuration, "no such app: "+appName)
	}

	keep := map[string]bool{}
	var visit func(name string)
	visit = func(name string) {
		if keep[name] {
			return
		}
		keep[name] = true
		for _, dep := range byName[name].App.DependsOn {
			visit(dep)
		}
	}
	visit(appName)

	out := &ResolvedWorkspace{}
	for _, a := range ws.Apps {
		if keep[a.Name] {
			out.Apps = append(out.Apps, a)
		}
	}
	return out, nil
}
