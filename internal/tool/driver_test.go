package tool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbkube/sbkube/internal/log"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2, BaseInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
}

func TestDriverDryRunDoesNotExecute(t *testing.T) {
	d := New(log.DefaultLogger, true)
	d.HelmBin = "definitely-not-a-real-binary"

	res, err := d.Helm(context.Background(), "upgrade", "--install", "app", "chart")
	require.NoError(t, err)
	assert.Equal(t, []string{"definitely-not-a-real-binary", "upgrade", "--install", "app", "chart"}, res.Args)
	assert.Zero(t, res.Attempts)
}

func TestDriverRunSuccess(t *testing.T) {
	d := New(log.DefaultLogger, false)
	d.HelmBin = "echo"
	d.Policy = fastPolicy()

	res, err := d.Helm(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "hello\n", res.Stdout)
}

func TestDriverRunUnclassifiedFailureIsNotRetried(t *testing.T) {
	d := New(log.DefaultLogger, false)
	d.KubectlBin = "false"
	d.Policy = fastPolicy()

	res, err := d.Kubectl(context.Background(), "get", "pods")
	require.Error(t, err)
	assert.Equal(t, 1, res.Attempts)
}

func TestToolString(t *testing.T) {
	assert.Equal(t, "helm", ToolHelm.String())
	assert.Equal(t, "kubectl", ToolKubectl.String())
	assert.Equal(t, "git", ToolGit.String())
	assert.Equal(t, "tool", ToolAny.String())
}

func TestJoinArgsAndFirstLine(t *testing.T) {
	assert.Equal(t, "helm upgrade --install", joinArgs([]string{"helm", "upgrade", "--install"}))
	assert.Equal(t, "", joinArgs(nil))
	assert.Equal(t, "first", firstLine("first\nsecond\nthird"))
	assert.Equal(t, "onlyline", firstLine("onlyline"))
}
