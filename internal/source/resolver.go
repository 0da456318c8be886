// Package source implements the Source Resolver (spec.md §4.1): turning a
// positional target plus an optional -f flag into a workspace root, the
// config file to load, and an optional scope filter restricting execution
// to one phase subtree.
package source

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sbkube/sbkube/internal/errs"
)

// ConfigFileName is the unified config's canonical filename.
const ConfigFileName = "sbkube.yaml"

// Context is the resolved invocation context.
type Context struct {
	WorkspaceRoot string
	ConfigFile    string
	ScopePath     string // "" means no scope restriction
}

// Resolve implements the three-step algorithm from spec.md §4.1.
func Resolve(target string, explicitFile string) (*Context, error) {
	if explicitFile != "" {
		abs, err := filepath.Abs(explicitFile)
		if err != nil {
			return nil, errs.Wrap(errs.Filesystem, err, "cannot resolve -f path")
		}
		return &Context{
			WorkspaceRoot: filepath.Dir(abs),
			ConfigFile:    abs,
		}, nil
	}

	if target == "" {
		target = "."
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, errs.Wrap(errs.Filesystem, err, "cannot resolve target path")
	}

	if strings.HasSuffix(abs, ConfigFileName) {
		return &Context{
			WorkspaceRoot: filepath.Dir(abs),
			ConfigFile:    abs,
		}, nil
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		if candidate := filepath.Join(abs, ConfigFileName); fileExists(candidate) {
			return &Context{WorkspaceRoot: abs, ConfigFile: candidate}, nil
		}
	}

	root, configFile, err := searchUpward(abs)
	if err != nil {
		return nil, err
	}
	scope := relativeScope(root, abs)
	return &Context{WorkspaceRoot: root, ConfigFile: configFile, ScopePath: scope}, nil
}

// searchUpward walks parent directories of start looking for sbkube.yaml.
func searchUpward(start string) (root string, configFile string, err error) {
	dir := start
	if info, statErr := os.Stat(dir); statErr == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if fileExists(candidate) {
			return dir, candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", "", errs.New(errs.Configuration,
		"no "+ConfigFileName+" found searching upward from "+start).
		WithHint("run sbkube init, or pass -f to point at a config file directly")
}

func relativeScope(root, target string) string {
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
