package tool

import (
	"context"
	"os/exec"
	"sync"

	"github.com/sbkube/sbkube/internal/errs"
)

// probeCache avoids re-invoking `helm version`/`kubectl version` once per
// process; a deploy touching forty apps only probes each tool once.
var probeCache sync.Map // map[string]error

// Probe validates that bin is installed and responds to a cheap version
// check, caching the result for the process lifetime. A missing tool
// produces a CliToolNotFoundError-equivalent with an install hint
// (spec.md §4.6).
func Probe(ctx context.Context, bin string, versionArgs ...string) error {
	if cached, ok := probeCache.Load(bin); ok {
		if cached == nil {
			return nil
		}
		return cached.(error)
	}

	path, err := exec.LookPath(bin)
	if err != nil {
		wrapped := errs.Wrap(errs.Tool, err, bin+" is not installed or not on $PATH").
			WithHint(installHint(bin))
		probeCache.Store(bin, wrapped)
		return wrapped
	}

	cmd := exec.CommandContext(ctx, path, versionArgs...)
	if err := cmd.Run(); err != nil {
		wrapped := errs.Wrap(errs.Tool, err, bin+" is installed but did not respond to a version check").
			WithHint(installHint(bin))
		probeCache.Store(bin, wrapped)
		return wrapped
	}

	probeCache.Store(bin, nil)
	return nil
}

func installHint(bin string) string {
	switch bin {
	case "helm":
		return "install Helm: https://helm.sh/docs/intro/install/"
	case "kubectl":
		return "install kubectl: https://kubernetes.io/docs/tasks/tools/"
	case "git":
		return "install git from your platform's package manager"
	default:
		return "install " + bin + " and ensure it is on $PATH"
	}
}

// ProbeHelm and ProbeKubectl are the two tools the Pipeline Orchestrator
// needs before it can run prepare/build/template/deploy.
func ProbeHelm(ctx context.Context, bin string) error {
	return Probe(ctx, bin, "version", "--short")
}

func ProbeKubectl(ctx context.Context, bin string) error {
	return Probe(ctx, bin, "version", "--client")
}
