package hook

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbkube/sbkube/internal/config"
)

func TestWriteInlineRendersSprigTemplateAndExpandsVars(t *testing.T) {
	t.Setenv("HOOK_TEST_VAR", "from-env")

	e := &Executor{}
	execCtx := ExecContext{
		AppName:     "payments",
		Namespace:   "prod",
		ReleaseName: "payments-release",
		Cluster:     "primary",
		WorkDir:     t.TempDir(),
	}
	task := config.HookTask{
		Name: "annotate",
		Type: config.TaskInline,
		Content: "metadata:\n" +
			"  name: {{ .AppName | upper }}\n" +
			"  namespace: {{ .Namespace }}\n" +
			"  annotations:\n" +
			"    custom: ${HOOK_TEST_VAR}\n",
	}

	path, err := e.writeInline(execCtx, task)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(path) })

	rendered := string(data)
	assert.Contains(t, rendered, "name: PAYMENTS")
	assert.Contains(t, rendered, "namespace: prod")
	assert.Contains(t, rendered, "custom: from-env")
	assert.Equal(t, filepath.Join(execCtx.WorkDir, ".sbkube-hook-annotate.yaml"), path)
}

func TestWriteInlineDryRunSkipsRendering(t *testing.T) {
	e := &Executor{DryRun: true}
	execCtx := ExecContext{WorkDir: t.TempDir()}
	task := config.HookTask{Name: "noop", Type: config.TaskInline, Content: "{{ .Invalid"}

	path, err := e.writeInline(execCtx, task)
	require.NoError(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "dry-run must not write the inline manifest to disk")
}

func TestExpandVarsUsesSBKubeAndProcessEnv(t *testing.T) {
	t.Setenv("HOOK_TEST_VAR2", "process-env-value")
	execCtx := ExecContext{AppName: "api", Namespace: "default"}

	got := expandVars("app=${SBKUBE_APP_NAME} ns=${SBKUBE_NAMESPACE} extra=${HOOK_TEST_VAR2}", execCtx)
	assert.Equal(t, "app=api ns=default extra=process-env-value", got)
}
