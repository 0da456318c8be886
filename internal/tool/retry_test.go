package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	for _, tc := range []struct {
		name      string
		which     Tool
		stderr    string
		wantNil   bool
		retryable bool
	}{
		{name: "connection refused is retryable regardless of tool", which: ToolKubectl, stderr: "dial tcp: connection refused", retryable: true},
		{name: "helm chart repository unreachable is retryable", which: ToolHelm, stderr: "failed to fetch chart", retryable: true},
		{name: "helm concurrent operation is retryable", which: ToolHelm, stderr: "another operation (install/upgrade/rollback) is in progress", retryable: true},
		{name: "helm chart not found is not retryable", which: ToolHelm, stderr: "chart not found", retryable: false},
		{name: "kubectl rbac forbidden is not retryable", which: ToolKubectl, stderr: "Error from server (Forbidden): ...", retryable: false},
		{name: "helm stderr does not match a kubectl-only rule", which: ToolHelm, stderr: "Error from server (Forbidden): ...", wantNil: true},
		{name: "unrecognized stderr matches nothing", which: ToolKubectl, stderr: "some made up failure", wantNil: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			res := &Result{Stderr: tc.stderr}
			got := classify(tc.which, res, nil)
			if tc.wantNil {
				assert.Nil(t, got)
				return
			}
			if assert.NotNil(t, got) {
				assert.Equal(t, tc.retryable, got.retryable)
			}
		})
	}
}

func TestClassifyNilResult(t *testing.T) {
	assert.Nil(t, classify(ToolHelm, nil, nil))
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 3, p.MaxAttempts)
	bo := p.newBackOff()
	assert.NotNil(t, bo)
}
