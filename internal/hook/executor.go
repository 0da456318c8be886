package hook

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/mattn/go-shellwords"

	"github.com/sbkube/sbkube/internal/config"
	"github.com/sbkube/sbkube/internal/errs"
	"github.com/sbkube/sbkube/internal/log"
	"github.com/sbkube/sbkube/internal/tool"
)

// ExecContext is the per-invocation environment a hook list runs against:
// the SBKUBE_* environment variables injected into command tasks (spec.md
// §4.5) and the working directory manifest/inline paths are resolved
// relative to.
type ExecContext struct {
	AppName     string
	Namespace   string
	ReleaseName string
	Cluster     string
	WorkDir     string
}

func (c ExecContext) env() []string {
	return append(os.Environ(),
		"SBKUBE_APP_NAME="+c.AppName,
		"SBKUBE_NAMESPACE="+c.Namespace,
		"SBKUBE_RELEASE_NAME="+c.ReleaseName,
		"SBKUBE_CLUSTER="+c.Cluster,
	)
}

// expandVars implements the `${VAR}` expansion spec.md §6.3 documents for
// hook contents and inline YAML: arbitrary user-defined variables are
// resolved from the process environment, including the SBKUBE_* vars env()
// injects above, never from the configuration schema itself.
func expandVars(s string, execCtx ExecContext) string {
	lookup := make(map[string]string, len(execCtx.env()))
	for _, kv := range execCtx.env() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			lookup[kv[:i]] = kv[i+1:]
		}
	}
	return os.Expand(s, func(name string) string { return lookup[name] })
}

// templateData exposes a hook task's execution context to inline manifest
// templates, rendered with sprig's function map before `${VAR}` expansion
// runs (spec.md §6.3, grounded on the teacher's own sprig-powered chart
// template rendering in pkg/engine).
type templateData struct {
	AppName     string
	Namespace   string
	ReleaseName string
	Cluster     string
}

func renderInline(name, content string, data templateData) (string, error) {
	tmpl, err := template.New(name).Funcs(sprig.TxtFuncMap()).Parse(content)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const defaultCommandTimeout = 300 * time.Second

// Executor runs a HookList's tasks, honoring depends_on ordering and each
// task's on_failure policy.
type Executor struct {
	Driver *tool.Driver
	Log    log.Logger
	DryRun bool
}

// New creates an Executor sharing the pipeline's external tool driver so
// manifest/inline tasks apply through the same retry-classified kubectl
// invocation as deploy-stage manifests.
func New(driver *tool.Driver, logger log.Logger, dryRun bool) *Executor {
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &Executor{Driver: driver, Log: logger, DryRun: dryRun}
}

// appliedManifest records one kubectl-applied file so a later task's
// "rollback" on_failure can delete it again.
type appliedManifest struct {
	taskName string
	path     string
}

// Run executes every task in list in dependency order. The first task whose
// failure policy isn't "continue"/"warn" stops the list; a "rollback" policy
// additionally reverses every manifest/inline task applied earlier in this
// same list before returning the error.
func (e *Executor) Run(ctx context.Context, list *config.HookList, execCtx ExecContext) error {
	if list == nil || len(list.Tasks) == 0 {
		return nil
	}

	ordered, err := OrderTasks(list.Tasks)
	if err != nil {
		return errs.Wrap(errs.Hook, err, "cannot order hook tasks")
	}

	var applied []appliedManifest
	for _, task := range ordered {
		taskErr := e.runTask(ctx, task, execCtx, &applied)
		if taskErr == nil {
			continue
		}

		switch task.EffectiveOnFailure() {
		case config.OnFailureContinue:
			e.Log.Warn("hook task failed, continuing", "task", task.Name, "error", taskErr)
			continue
		case config.OnFailureWarn:
			e.Log.Warn("hook task failed", "task", task.Name, "error", taskErr)
			continue
		case config.OnFailureRollback:
			e.Log.Error("hook task failed, rolling back prior tasks in this list", "task", task.Name, "error", taskErr)
			if rbErr := e.rollback(ctx, applied); rbErr != nil {
				e.Log.Error("hook rollback incomplete", "error", rbErr)
				return errs.Wrap(errs.Hook, rbErr, fmt.Sprintf("hook task %q failed and rollback also failed", task.Name)).
					WithHint(fmt.Sprintf("original failure: %v", taskErr))
			}
			return errs.Wrap(errs.Hook, taskErr, fmt.Sprintf("hook task %q failed; rolled back prior tasks", task.Name))
		default: // stop
			return errs.Wrap(errs.Hook, taskErr, fmt.Sprintf("hook task %q failed", task.Name))
		}
	}
	return nil
}

func (e *Executor) runTask(ctx context.Context, task config.HookTask, execCtx ExecContext, applied *[]appliedManifest) error {
	var err error
	switch task.Type {
	case config.TaskCommand:
		err = e.runCommand(ctx, task, execCtx)
	case config.TaskManifests:
		err = e.applyManifests(ctx, task.Files, execCtx)
		if err == nil {
			for _, f := range task.Files {
				*applied = append(*applied, appliedManifest{taskName: task.Name, path: f})
			}
		}
	case config.TaskInline:
		var path string
		path, err = e.writeInline(execCtx, task)
		if err == nil {
			err = e.applyManifests(ctx, []string{path}, execCtx)
		}
		if err == nil {
			*applied = append(*applied, appliedManifest{taskName: task.Name, path: path})
		}
	default:
		err = errs.New(errs.Hook, "unknown hook task type: "+string(task.Type))
	}
	if err != nil {
		return err
	}
	return e.validate(ctx, task)
}

func (e *Executor) runCommand(ctx context.Context, task config.HookTask, execCtx ExecContext) error {
	if len(task.Commands) == 0 {
		return nil
	}
	timeout := defaultCommandTimeout
	if task.Timeout != "" {
		if d, err := time.ParseDuration(task.Timeout); err == nil {
			timeout = d
		}
	}

	if e.DryRun {
		e.Log.Info("dry-run: would run hook commands", "task", task.Name, "commands", task.Commands)
		return nil
	}

	for _, line := range task.Commands {
		line = expandVars(line, execCtx)
		args, err := shellwords.Parse(line)
		if err != nil || len(args) == 0 {
			return errs.Wrap(errs.Hook, err, "cannot parse command: "+line)
		}

		runCtx, cancel := context.WithTimeout(ctx, timeout)
		cmd := exec.CommandContext(runCtx, args[0], args[1:]...)
		cmd.Env = execCtx.env()
		if task.WorkingDir != "" {
			cmd.Dir = task.WorkingDir
		} else if execCtx.WorkDir != "" {
			cmd.Dir = execCtx.WorkDir
		}
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		runErr := cmd.Run()
		cancel()
		if runErr != nil {
			return errs.Wrap(errs.Hook, runErr, "command failed: "+line).WithHint(firstNonEmptyLine(stderr.String()))
		}
	}
	return nil
}

func (e *Executor) applyManifests(ctx context.Context, files []string, execCtx ExecContext) error {
	if e.Driver == nil || len(files) == 0 {
		return nil
	}
	args := []string{"apply"}
	if execCtx.Namespace != "" {
		args = append(args, "-n", execCtx.Namespace)
	}
	for _, f := range files {
		args = append(args, "-f", f)
	}
	_, err := e.Driver.Kubectl(ctx, args...)
	return err
}

func (e *Executor) writeInline(execCtx ExecContext, task config.HookTask) (string, error) {
	dir := execCtx.WorkDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, fmt.Sprintf(".sbkube-hook-%s.yaml", task.Name))
	if e.DryRun {
		return path, nil
	}

	rendered, err := renderInline(task.Name, task.Content, templateData{
		AppName:     execCtx.AppName,
		Namespace:   execCtx.Namespace,
		ReleaseName: execCtx.ReleaseName,
		Cluster:     execCtx.Cluster,
	})
	if err != nil {
		return "", errs.Wrap(errs.Hook, err, "cannot render inline manifest template for task "+task.Name)
	}
	rendered = expandVars(rendered, execCtx)

	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		return "", errs.Wrap(errs.Filesystem, err, "cannot write inline manifest for task "+task.Name)
	}
	return path, nil
}

func (e *Executor) validate(ctx context.Context, task config.HookTask) error {
	if task.Validation == nil || e.DryRun {
		return nil
	}
	v := task.Validation
	timeout := "60s"
	if v.Timeout != "" {
		timeout = v.Timeout
	}
	switch v.Type {
	case config.ValidationResourceReady:
		_, err := e.Driver.Kubectl(ctx, "wait", "--for=condition=ready", v.Resource, "--timeout="+timeout)
		if err != nil {
			return errs.Wrap(errs.Hook, err, "validation failed: resource not ready: "+v.Resource)
		}
	case config.ValidationResourceExists:
		_, err := e.Driver.Kubectl(ctx, "get", v.Resource)
		if err != nil {
			return errs.Wrap(errs.Hook, err, "validation failed: resource does not exist: "+v.Resource)
		}
	case config.ValidationCommandExit0:
		// Evaluated as part of runCommand's error return; nothing further to check here.
	}
	return nil
}

// rollback deletes, in reverse order, every manifest/inline task applied
// earlier in the same hook list (spec.md §4.5 "Rollback").
func (e *Executor) rollback(ctx context.Context, applied []appliedManifest) error {
	var lastErr error
	for i := len(applied) - 1; i >= 0; i-- {
		if _, err := e.Driver.Kubectl(ctx, "delete", "-f", applied[i].path, "--ignore-not-found"); err != nil {
			e.Log.Error("rollback delete failed", "task", applied[i].taskName, "file", applied[i].path, "error", err)
			lastErr = err
		}
	}
	return lastErr
}

func firstNonEmptyLine(s string) string {
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			if i > start {
				return s[start:i]
			}
			start = i + 1
		}
	}
	if start < len(s) {
		return s[start:]
	}
	return ""
}
