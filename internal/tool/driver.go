// Package tool implements the External Tool Driver (spec.md §4.6): argv-only
// subprocess execution of helm and kubectl (no shell interpolation), a
// data-driven retry classifier layered with exponential backoff, and
// pre-flight tool discovery. Git and HTTP sources are handled in-process
// (go-git, go-retryablehttp) rather than shelling to git(1)/curl(1); see
// git.go and http.go.
package tool

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/cenkalti/backoff/v4"

	"github.com/sbkube/sbkube/internal/errs"
	"github.com/sbkube/sbkube/internal/log"
)

// Result captures a completed (or dry-run-logged) subprocess invocation.
type Result struct {
	Args     []string
	Stdout   string
	Stderr   string
	ExitCode int
	Attempts int
}

// Driver wraps helm/kubectl subprocess execution with the retry policy and
// dry-run semantics described in spec.md §4.4 ("Dry-run") and §4.6.
type Driver struct {
	Log        log.Logger
	DryRun     bool
	HelmBin    string
	KubectlBin string

	// Policy overrides the default retry policy; tests substitute a faster one.
	Policy RetryPolicy
}

// New creates a Driver with the default binaries ("helm", "kubectl" on
// $PATH) and the default retry policy (spec.md §4.6: up to 3 attempts,
// base 1-2s, cap 15-30s, jittered).
func New(logger log.Logger, dryRun bool) *Driver {
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &Driver{
		Log:        logger,
		DryRun:     dryRun,
		HelmBin:    "helm",
		KubectlBin: "kubectl",
		Policy:     DefaultRetryPolicy(),
	}
}

// Helm runs `helm <args...>` with the retry policy applied.
func (d *Driver) Helm(ctx context.Context, args ...string) (*Result, error) {
	return d.run(ctx, ToolHelm, d.HelmBin, args)
}

// Kubectl runs `kubectl <args...>` with the retry policy applied.
func (d *Driver) Kubectl(ctx context.Context, args ...string) (*Result, error) {
	return d.run(ctx, ToolKubectl, d.KubectlBin, args)
}

func (d *Driver) run(ctx context.Context, which Tool, bin string, args []string) (*Result, error) {
	full := append([]string{bin}, args...)
	if d.DryRun {
		d.Log.Info("dry-run: would execute", "command", joinArgs(full))
		return &Result{Args: full}, nil
	}

	var result *Result
	attempts := 0
	op := func() error {
		attempts++
		res, err := execOnce(ctx, bin, args)
		res.Attempts = attempts
		result = res
		if err == nil {
			return nil
		}
		kind := classify(which, res, err)
		if kind == nil {
			return backoff.Permanent(err)
		}
		if !kind.retryable {
			return backoff.Permanent(err)
		}
		d.Log.Warn("retrying external tool invocation", "tool", which, "attempt", attempts, "reason", kind.reason)
		return err
	}

	bo := d.Policy.newBackOff()
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return result, classifyError(which, result, err)
	}
	return result, nil
}

func execOnce(ctx context.Context, bin string, args []string) (*Result, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &Result{
		Args:   append([]string{bin}, args...),
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		res.ExitCode = exitErr.ExitCode()
	} else if err == nil {
		res.ExitCode = 0
	}
	return res, err
}

func classifyError(which Tool, res *Result, err error) error {
	kind := errs.Tool
	switch which {
	case ToolHelm:
		kind = errs.Helm
	case ToolKubectl:
		kind = errs.Kubernetes
	case ToolGit:
		kind = errs.Git
	}
	summary := which.String() + " command failed"
	if res != nil {
		summary = which.String() + " command failed: " + joinArgs(res.Args)
	}
	e := errs.Wrap(kind, err, summary)
	if res != nil && res.Stderr != "" {
		e = e.WithHint(firstLine(res.Stderr))
	}
	return e
}

func joinArgs(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

// Tool identifies which external binary a Result/invocation belongs to.
type Tool int

const (
	// ToolAny is the zero value, used by retry rules that apply regardless
	// of which binary failed (e.g. generic network errors).
	ToolAny Tool = iota
	ToolHelm
	ToolKubectl
	ToolGit
)

func (t Tool) String() string {
	switch t {
	case ToolHelm:
		return "helm"
	case ToolKubectl:
		return "kubectl"
	case ToolGit:
		return "git"
	default:
		return "tool"
	}
}
