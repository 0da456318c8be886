package pipeline

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sbkube/sbkube/internal/config"
	"github.com/sbkube/sbkube/internal/errs"
)

// Trace is the per-invocation execution record backing --resume and
// --retry-failed (spec.md §6.2 "runs/ # per-invocation execution traces"):
// which apps had already succeeded by the time a prior invocation stopped,
// keyed by a hash of the canonicalized config so an edited workspace
// doesn't silently resume against stale app state.
type Trace struct {
	Hash      string            `json:"hash"`
	Stage     Stage             `json:"stage"`
	StartedAt time.Time         `json:"started_at"`
	AppStatus map[string]string `json:"app_status"` // app name -> "success"|"failed"|"skipped"
}

// RunsDir is ~/.sbkube/runs (spec.md §6.2).
func RunsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errs.Wrap(errs.Filesystem, err, "cannot resolve home directory")
	}
	return filepath.Join(home, ".sbkube", "runs"), nil
}

// DocumentHash hashes a canonical JSON re-encoding of doc so the same
// workspace always hashes identically regardless of map key iteration
// order or source formatting.
func DocumentHash(doc *config.Document) (string, error) {
	canonical, err := json.Marshal(doc)
	if err != nil {
		return "", errs.Wrap(errs.Configuration, err, "cannot canonicalize document for trace hashing")
	}
	sum := sha256.Sum256(canonical)
	return fmt.Sprintf("%x", sum), nil
}

// Save writes the trace to ~/.sbkube/runs/<hash>.json.
func (t *Trace) Save() error {
	dir, err := RunsDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(errs.Filesystem, err, "cannot create runs directory")
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return errs.Wrap(errs.State, err, "cannot marshal execution trace")
	}
	path := filepath.Join(dir, t.Hash+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errs.Wrap(errs.Filesystem, err, "cannot write execution trace to "+path)
	}
	return nil
}

// LoadTrace reads a prior trace for hash, if one exists. A missing trace is
// not an error: --resume on a first-ever run simply runs everything.
func LoadTrace(hash string) (*Trace, error) {
	dir, err := RunsDir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, hash+".json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.Filesystem, err, "cannot read execution trace "+path)
	}
	var t Trace
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, errs.Wrap(errs.State, err, "corrupt execution trace "+path)
	}
	return &t, nil
}

// ResumeSet returns the app names LoadTrace's previous run already
// completed successfully, so the CLI's --resume flag can fold them into
// Orchestrator.Only's complement (skip what already succeeded).
func (t *Trace) ResumeSet() map[string]bool {
	out := map[string]bool{}
	if t == nil {
		return out
	}
	for app, status := range t.AppStatus {
		if status == "success" {
			out[app] = true
		}
	}
	return out
}

// FailedSet returns the app names LoadTrace's previous run left failed, so
// --retry-failed can restrict this invocation to exactly those apps rather
// than redoing every app the prior run already completed successfully.
func (t *Trace) FailedSet() map[string]bool {
	out := map[string]bool{}
	if t == nil {
		return out
	}
	for app, status := range t.AppStatus {
		if status == "failed" {
			out[app] = true
		}
	}
	return out
}

// RecordFrom populates AppStatus from one stage's StageResult; an app's
// entry from an earlier call is overwritten.
func (t *Trace) RecordFrom(sr *StageResult) {
	if t.AppStatus == nil {
		t.AppStatus = map[string]string{}
	}
	for _, r := range sr.Results {
		switch {
		case r.Skipped:
			t.AppStatus[r.App] = "skipped"
		case r.Err != nil:
			t.AppStatus[r.App] = "failed"
		default:
			t.AppStatus[r.App] = "success"
		}
	}
}
