package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-shellwords"
	"sigs.k8s.io/yaml"

	"github.com/sbkube/sbkube/internal/config"
	"github.com/sbkube/sbkube/internal/errs"
	"github.com/sbkube/sbkube/internal/hook"
	"github.com/sbkube/sbkube/internal/state"
	"github.com/sbkube/sbkube/internal/values"
)

// manifestIdentity is the subset of a Kubernetes manifest's fields the
// state store needs to record a DeployedResource row.
type manifestIdentity struct {
	APIVersion string `json:"apiVersion"`
	Kind       string `json:"kind"`
	Metadata   struct {
		Name      string `json:"name"`
		Namespace string `json:"namespace"`
	} `json:"metadata"`
}

// checksumOf returns the sha256 hex digest of data, stored alongside a
// DeployedResource's current_state so drift can be detected without
// re-diffing the full manifest (spec.md §3.2).
func checksumOf(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)
}

// Deploy applies an app's manifests/release to the cluster and records the
// outcome in the state store (spec.md §4.4 "deploy", §4.7). deploymentID
// must already have a Deployment row (Orchestrator.ApplyAll creates it).
// apps is the full stage app set, used only to detect whether a git/http
// app's materialized content serves as a sibling helm app's chart root.
func (o *Orchestrator) Deploy(workspaceRoot, deploymentID string, apps []config.ResolvedApp) StageFunc {
	chartDirs := localChartRootDirs(workspaceRoot, apps)
	return func(ctx context.Context, app config.ResolvedApp) error {
		cluster := app.Settings.Cluster
		namespace := app.App.Namespace
		if namespace == "" {
			namespace = app.Settings.Namespace
		}

		appDeploymentID := uuid.NewString()
		if o.Store != nil {
			if _, err := o.Store.BeginAppDeployment(state.AppDeployment{
				ID:           appDeploymentID,
				DeploymentID: deploymentID,
				Cluster:      cluster,
				Namespace:    namespace,
				AppName:      app.Name,
				AppGroup:     app.AppGroup,
			}); err != nil {
				return err
			}
		}

		execCtx := hook.ExecContext{
			AppName:     app.Name,
			Namespace:   namespace,
			ReleaseName: app.App.EffectiveReleaseName(app.Name),
			Cluster:     cluster,
			WorkDir:     workspaceRoot,
		}

		var preDeploy, postDeploy, onDeployFail *config.HookList
		if app.App.Hooks != nil {
			preDeploy = app.App.Hooks.PreDeploy
			postDeploy = app.App.Hooks.PostDeploy
			onDeployFail = app.App.Hooks.OnDeployFail
		}

		runErr := o.runAppHook(ctx, preDeploy, execCtx)
		if runErr == nil {
			runErr = o.deployOne(ctx, workspaceRoot, app, namespace, appDeploymentID, chartDirs)
		}

		if runErr == nil {
			runErr = o.runAppHook(ctx, postDeploy, execCtx)
		} else {
			_ = o.runAppHook(ctx, onDeployFail, execCtx)
		}

		if o.Store != nil {
			status := state.AppSuccess
			errText := ""
			if runErr != nil {
				status = state.AppFailed
				errText = runErr.Error()
			}
			if finishErr := o.Store.FinishAppDeployment(appDeploymentID, status, errText); finishErr != nil {
				return finishErr
			}
		}
		return runErr
	}
}

func (o *Orchestrator) runAppHook(ctx context.Context, list *config.HookList, execCtx hook.ExecContext) error {
	if list == nil || o.HookExec == nil {
		return nil
	}
	return o.HookExec.Run(ctx, list, execCtx)
}

func (o *Orchestrator) deployOne(ctx context.Context, workspaceRoot string, app config.ResolvedApp, namespace, appDeploymentID string, chartDirs []string) error {
	switch app.App.Type {
	case config.AppHelm:
		return o.deployHelm(ctx, workspaceRoot, app, namespace, appDeploymentID)
	case config.AppYAML:
		return o.deployFiles(ctx, app.App.Files, namespace, appDeploymentID)
	case config.AppKustomize:
		return o.deployKustomize(ctx, app, namespace, appDeploymentID)
	case config.AppGit:
		dir := filepath.Join(workspaceRoot, "repos", app.Name)
		if servesAsChartRoot(dir, chartDirs) {
			o.Log.Debug("git source serves as a sibling helm app's chart root, nothing to apply directly", "app", app.Name)
			return nil
		}
		return o.deployDir(ctx, dir, namespace, appDeploymentID)
	case config.AppHTTP:
		if servesAsChartRoot(app.App.Dest, chartDirs) {
			o.Log.Debug("http source serves as a sibling helm app's chart root, nothing to apply directly", "app", app.Name)
			return nil
		}
		return o.deployFiles(ctx, []string{app.App.Dest}, namespace, appDeploymentID)
	case config.AppAction:
		return o.deployActions(ctx, app, namespace, appDeploymentID)
	case config.AppExec:
		return o.deployExec(ctx, app, namespace)
	case config.AppHook:
		return o.deployHookApp(ctx, app, namespace)
	case config.AppNoop:
		return nil
	default:
		return errs.New(errs.Configuration, "unknown app type: "+string(app.App.Type))
	}
}

func (o *Orchestrator) deployHelm(ctx context.Context, workspaceRoot string, app config.ResolvedApp, namespace, appDeploymentID string) error {
	chartPath := ChartPath(workspaceRoot, app)
	release := app.App.EffectiveReleaseName(app.Name)

	resolved, err := values.Resolve(app, workspaceRoot)
	if err != nil {
		return err
	}

	args := append([]string{"upgrade", "--install", release, chartPath}, resolved.Args()...)
	if namespace != "" {
		args = append(args, "--namespace", namespace)
	}
	if app.App.CreateNamespace {
		args = append(args, "--create-namespace")
	}
	if app.App.Wait {
		args = append(args, "--wait")
	}
	if app.App.Atomic {
		args = append(args, "--atomic")
	}
	timeout := app.App.Timeout
	if timeout == "" {
		timeout = "10m"
	}
	args = append(args, "--timeout", timeout)

	if _, err := o.Driver.Helm(ctx, args...); err != nil {
		return errs.Wrap(errs.Helm, err, "helm upgrade --install failed for "+release)
	}

	revision := 1
	if result, err := o.Driver.Helm(ctx, "history", release, "--namespace", namespace, "--max", "1", "-o", "json"); err == nil {
		revision = parseHelmRevision(result.Stdout)
	}

	// "helm get values -o json" returns exactly what Helm merged and
	// installed, rather than re-deriving it from the values chain (which
	// could have since been edited on disk) — spec.md §3.2.
	mergedValues := ""
	if result, err := o.Driver.Helm(ctx, "get", "values", release, "--namespace", namespace, "-o", "json"); err == nil {
		mergedValues = result.Stdout
	}

	if o.Store != nil {
		return o.Store.RecordHelmRelease(state.HelmRelease{
			ID:              uuid.NewString(),
			AppDeploymentID: appDeploymentID,
			ReleaseName:     release,
			Chart:           app.App.Chart,
			ChartVersion:    app.App.Version,
			Revision:        revision,
			Namespace:       namespace,
			Values:          mergedValues,
			Status:          "deployed",
			CreatedAt:       time.Now(),
		})
	}
	return nil
}

func parseHelmRevision(stdout string) int {
	var rows []struct {
		Revision int `json:"revision"`
	}
	if err := json.Unmarshal([]byte(stdout), &rows); err != nil || len(rows) == 0 {
		return 1
	}
	return rows[len(rows)-1].Revision
}

func (o *Orchestrator) deployFiles(ctx context.Context, files []string, namespace, appDeploymentID string) error {
	for _, f := range files {
		if err := o.applyAndRecordFile(ctx, f, namespace, appDeploymentID); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) deployDir(ctx context.Context, dir, namespace, appDeploymentID string) error {
	args := []string{"apply", "-f", dir, "-R"}
	if namespace != "" {
		args = append(args, "-n", namespace)
	}
	if _, err := o.Driver.Kubectl(ctx, args...); err != nil {
		return errs.Wrap(errs.Kubernetes, err, "kubectl apply failed for "+dir)
	}
	if o.Store != nil {
		return o.Store.RecordDeployedResource(state.DeployedResource{
			ID:              uuid.NewString(),
			AppDeploymentID: appDeploymentID,
			Kind:            "Directory",
			Name:            dir,
			Namespace:       namespace,
			Action:          string(state.ActionApply),
		})
	}
	return nil
}

func (o *Orchestrator) deployKustomize(ctx context.Context, app config.ResolvedApp, namespace, appDeploymentID string) error {
	args := []string{"apply", "-k", app.App.Path}
	if namespace != "" {
		args = append(args, "-n", namespace)
	}
	if _, err := o.Driver.Kubectl(ctx, args...); err != nil {
		return errs.Wrap(errs.Kubernetes, err, "kubectl apply -k failed for "+app.Name)
	}
	if o.Store != nil {
		return o.Store.RecordDeployedResource(state.DeployedResource{
			ID:              uuid.NewString(),
			AppDeploymentID: appDeploymentID,
			Kind:            "Kustomization",
			Name:            app.App.Path,
			Namespace:       namespace,
			Action:          string(state.ActionApply),
		})
	}
	return nil
}

// applyAndRecordFile captures the object's previous state (if it already
// exists) before applying, so the Rollback Engine can reverse an update
// versus a fresh create (spec.md §4.8).
func (o *Orchestrator) applyAndRecordFile(ctx context.Context, file, namespace, appDeploymentID string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return errs.Wrap(errs.Filesystem, err, "cannot read manifest "+file)
	}
	var identity manifestIdentity
	_ = yaml.Unmarshal(data, &identity)
	ns := identity.Metadata.Namespace
	if ns == "" {
		ns = namespace
	}

	action := state.ActionCreate
	var previousState string
	getArgs := []string{"get", identity.Kind, identity.Metadata.Name, "-o", "yaml"}
	if ns != "" {
		getArgs = append(getArgs, "-n", ns)
	}
	if result, err := o.Driver.Kubectl(ctx, getArgs...); err == nil {
		previousState = result.Stdout
		action = state.ActionUpdate
	}

	applyArgs := []string{"apply", "-f", file}
	if ns != "" {
		applyArgs = append(applyArgs, "-n", ns)
	}
	if _, err := o.Driver.Kubectl(ctx, applyArgs...); err != nil {
		return errs.Wrap(errs.Kubernetes, err, "kubectl apply failed for "+file)
	}

	if o.Store == nil {
		return nil
	}
	return o.Store.RecordDeployedResource(state.DeployedResource{
		ID:              uuid.NewString(),
		AppDeploymentID: appDeploymentID,
		APIVersion:      identity.APIVersion,
		Kind:            identity.Kind,
		Name:            identity.Metadata.Name,
		Namespace:       ns,
		Action:          string(action),
		PreviousState:   previousState,
		CurrentState:    string(data),
		Checksum:        checksumOf(data),
	})
}

func (o *Orchestrator) deployActions(ctx context.Context, app config.ResolvedApp, namespace, appDeploymentID string) error {
	for _, a := range app.App.Actions {
		switch a.Type {
		case "apply", "create":
			if err := o.applyAndRecordFile(ctx, a.Path, namespace, appDeploymentID); err != nil {
				return err
			}
		case "delete":
			args := []string{"delete", "-f", a.Path, "--ignore-not-found"}
			if namespace != "" {
				args = append(args, "-n", namespace)
			}
			if _, err := o.Driver.Kubectl(ctx, args...); err != nil {
				return errs.Wrap(errs.Kubernetes, err, "kubectl delete failed for "+a.Path)
			}
		default:
			return errs.New(errs.Configuration, "unknown action type: "+a.Type)
		}
	}
	return nil
}

func (o *Orchestrator) deployExec(ctx context.Context, app config.ResolvedApp, namespace string) error {
	for _, line := range app.App.Commands {
		args, err := shellwords.Parse(line)
		if err != nil || len(args) == 0 {
			return errs.Wrap(errs.Configuration, err, "cannot parse exec command: "+line)
		}
		cmd := exec.CommandContext(ctx, args[0], args[1:]...)
		cmd.Env = append(os.Environ(),
			"SBKUBE_APP_NAME="+app.Name,
			"SBKUBE_NAMESPACE="+namespace,
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			return errs.Wrap(errs.Tool, err, fmt.Sprintf("exec command failed: %s: %s", line, string(out)))
		}
	}
	return nil
}

func (o *Orchestrator) deployHookApp(ctx context.Context, app config.ResolvedApp, namespace string) error {
	if o.HookExec == nil {
		return nil
	}
	list := &config.HookList{Tasks: app.App.Tasks}
	return o.HookExec.Run(ctx, list, hook.ExecContext{
		AppName:   app.Name,
		Namespace: namespace,
	})
}
