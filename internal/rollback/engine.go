// Package rollback implements the Rollback Engine (spec.md §4.8): given a
// deployment id, walks its AppDeployment rows in reverse topological order
// and reverses each HelmRelease or DeployedResource.
package rollback

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/sbkube/sbkube/internal/errs"
	"github.com/sbkube/sbkube/internal/log"
	"github.com/sbkube/sbkube/internal/state"
	"github.com/sbkube/sbkube/internal/tool"
)

// Engine reverses a prior Deployment's effects.
type Engine struct {
	Store  *state.Store
	Driver *tool.Driver
	Log    log.Logger
}

// New creates a rollback Engine sharing the pipeline's store and driver.
func New(store *state.Store, driver *tool.Driver, logger log.Logger) *Engine {
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &Engine{Store: store, Driver: driver, Log: logger}
}

// Rollback reverses every AppDeployment of deploymentID in reverse
// topological order and records the rollback itself as a new Deployment row
// with status rolled_back (spec.md §4.8). Per-resource failures are
// collected; a partial rollback yields status partially_failed instead of
// failing the whole operation.
func (e *Engine) Rollback(ctx context.Context, deploymentID string) (newDeploymentID string, err error) {
	apps, err := e.Store.AppDeploymentsFor(deploymentID)
	if err != nil {
		return "", err
	}
	if len(apps) == 0 {
		return "", errs.New(errs.State, "deployment "+deploymentID+" has no recorded app deployments")
	}

	reversed := reverseTopological(apps)

	rollbackID := uuid.NewString()
	if _, err := e.Store.BeginDeployment(state.Deployment{
		ID:        rollbackID,
		Cluster:   apps[0].Cluster,
		Namespace: apps[0].Namespace,
		AppGroup:  apps[0].AppGroup,
		Command:   "rollback",
		Metadata:  fmt.Sprintf(`{"rolled_back_from":%q}`, deploymentID),
	}); err != nil {
		return "", err
	}

	var agg *multierror.Error
	for _, app := range reversed {
		if rbErr := e.rollbackApp(ctx, app); rbErr != nil {
			agg = multierror.Append(agg, fmt.Errorf("%s: %w", app.AppName, rbErr))
			e.Log.Error("rollback failed for app", "app", app.AppName, "error", rbErr)
		}
	}

	status := state.DeploymentRolledBack
	if agg.ErrorOrNil() != nil {
		status = state.DeploymentPartialFailure
	}
	if err := e.Store.FinishDeployment(rollbackID, status); err != nil {
		return rollbackID, err
	}

	if agg.ErrorOrNil() != nil {
		return rollbackID, errs.Wrap(errs.Kubernetes, agg.ErrorOrNil(), "rollback completed with errors").
			WithHint("inspect `sbkube history` for per-app detail")
	}
	return rollbackID, nil
}

func (e *Engine) rollbackApp(ctx context.Context, app state.AppDeployment) error {
	if release, err := e.Store.HelmReleaseFor(app.ID); err != nil {
		return err
	} else if release != nil {
		return e.rollbackHelm(ctx, *release)
	}

	resources, err := e.Store.DeployedResourcesFor(app.ID)
	if err != nil {
		return err
	}

	var agg *multierror.Error
	for i := len(resources) - 1; i >= 0; i-- {
		if rbErr := e.rollbackResource(ctx, resources[i]); rbErr != nil {
			agg = multierror.Append(agg, rbErr)
		}
	}
	return agg.ErrorOrNil()
}

func (e *Engine) rollbackHelm(ctx context.Context, r state.HelmRelease) error {
	if r.Revision > 1 {
		_, err := e.Driver.Helm(ctx, "rollback", r.ReleaseName, fmt.Sprintf("%d", r.Revision-1), "--namespace", r.Namespace)
		if err != nil {
			return errs.Wrap(errs.Helm, err, "helm rollback failed for "+r.ReleaseName)
		}
		return nil
	}
	// No previous revision: the deployment being rolled back was the
	// initial install (spec.md §4.8).
	_, err := e.Driver.Helm(ctx, "uninstall", r.ReleaseName, "--namespace", r.Namespace)
	if err != nil {
		return errs.Wrap(errs.Helm, err, "helm uninstall failed for "+r.ReleaseName)
	}
	return nil
}

func (e *Engine) rollbackResource(ctx context.Context, r state.DeployedResource) error {
	switch state.ResourceAction(r.Action) {
	case state.ActionCreate:
		_, err := e.Driver.Kubectl(ctx, "delete", r.Kind, r.Name, "-n", r.Namespace, "--ignore-not-found")
		if err != nil {
			return errs.Wrap(errs.Kubernetes, err, "rollback delete failed for "+r.Kind+"/"+r.Name)
		}
	case state.ActionUpdate, state.ActionDelete:
		if r.PreviousState == "" {
			return errs.New(errs.State, "no previous_state recorded for "+r.Kind+"/"+r.Name+"; cannot reverse")
		}
		tmp, err := writeTempManifest(r.PreviousState)
		if err != nil {
			return err
		}
		if _, err := e.Driver.Kubectl(ctx, "apply", "-n", r.Namespace, "-f", tmp); err != nil {
			return errs.Wrap(errs.Kubernetes, err, "rollback apply failed for "+r.Kind+"/"+r.Name)
		}
	case state.ActionApply:
		// Directory/Kustomization applies have no per-object previous_state
		// (spec.md §4.4 step 3 "no-op" note) — Name holds the directory or
		// kustomization path that was applied, so reversal is a delete of
		// that same path rather than a per-object diff.
		flag := "-f"
		if r.Kind == "Kustomization" {
			flag = "-k"
		}
		if _, err := e.Driver.Kubectl(ctx, "delete", flag, r.Name, "-n", r.Namespace, "--ignore-not-found"); err != nil {
			return errs.Wrap(errs.Kubernetes, err, "rollback delete failed for "+r.Kind+"/"+r.Name)
		}
	}
	return nil
}

// reverseTopological orders AppDeployments newest-started-last reversed,
// which for a Deployment already recorded in dependency order (spec.md
// §8.1 testable property 1) is the correct rollback order: dependents are
// reversed before their dependencies.
func reverseTopological(apps []state.AppDeployment) []state.AppDeployment {
	out := make([]state.AppDeployment, len(apps))
	for i, a := range apps {
		out[len(apps)-1-i] = a
	}
	return out
}

func writeTempManifest(content string) (string, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("sbkube-rollback-%d-%s.yaml", time.Now().UnixNano(), uuid.NewString()[:8]))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", errs.Wrap(errs.Filesystem, err, "cannot write rollback manifest")
	}
	return path, nil
}
