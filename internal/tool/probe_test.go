package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProbeMissingBinary(t *testing.T) {
	err := Probe(context.Background(), "definitely-not-a-real-binary-xyz")
	assert.Error(t, err)
}

func TestProbeCachesResult(t *testing.T) {
	bin := "definitely-not-a-real-binary-abc"
	err1 := Probe(context.Background(), bin)
	err2 := Probe(context.Background(), bin)
	assert.Error(t, err1)
	assert.Error(t, err2)
	assert.Equal(t, err1.Error(), err2.Error())
}

func TestInstallHintKnownTools(t *testing.T) {
	assert.Contains(t, installHint("helm"), "helm.sh")
	assert.Contains(t, installHint("kubectl"), "kubernetes.io")
	assert.Contains(t, installHint("git"), "git")
	assert.Contains(t, installHint("mystery-tool"), "mystery-tool")
}
