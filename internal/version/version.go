// Package version reports sbkube's own build version, adapted from the
// teacher's internal/version package (grounded on
// _examples/helm-helm/internal/version/version.go); the client-go
// introspection helper it also carries has no home here since sbkube never
// imports client-go (SPEC_FULL.md DOMAIN STACK).
package version

import (
	"runtime"
	"strings"
)

var (
	// version is the current release version. Set at build time via
	// -ldflags "-X github.com/sbkube/sbkube/internal/version.version=...".
	version = "v0.1.0"

	// metadata is extra build time data appended after a "+".
	metadata = ""
	// gitCommit is the git sha1 sbkube was built from.
	gitCommit = ""
	// gitTreeState is "clean" or "dirty" at build time.
	gitTreeState = ""
)

// BuildInfo describes the compile-time information the version command
// reports.
type BuildInfo struct {
	Version      string `json:"version,omitempty"`
	GitCommit    string `json:"git_commit,omitempty"`
	GitTreeState string `json:"git_tree_state,omitempty"`
	GoVersion    string `json:"go_version,omitempty"`
}

// GetVersion returns the semver string, with build metadata appended when set.
func GetVersion() string {
	if metadata == "" {
		return version
	}
	return version + "+" + metadata
}

// GetUserAgent returns a user agent string of the form "sbkube/<version>",
// without the version's leading "v". The http source fetcher in
// internal/tool does not send it.
func GetUserAgent() string {
	return "sbkube/" + strings.TrimPrefix(GetVersion(), "v")
}

// Get returns the full build info.
func Get() BuildInfo {
	return BuildInfo{
		Version:      GetVersion(),
		GitCommit:    gitCommit,
		GitTreeState: gitTreeState,
		GoVersion:    runtime.Version(),
	}
}
