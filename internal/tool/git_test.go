package tool

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbkube/sbkube/internal/log"
)

func initSourceRepo(t *testing.T) string {
	t.Helper()
	srcDir := t.TempDir()
	repo, err := git.PlainInit(srcDir, false)
	require.NoError(t, err)

	wt, err := repo.Worktree()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "values.yaml"), []byte("replicas: 1\n"), 0o644))
	_, err = wt.Add("values.yaml")
	require.NoError(t, err)

	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Unix(0, 0)},
	})
	require.NoError(t, err)

	headRef, err := repo.Head()
	require.NoError(t, err)
	require.NoError(t, repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), headRef.Hash())))

	return srcDir
}

func TestEnsureGitCheckoutDryRun(t *testing.T) {
	d := New(log.DefaultLogger, true)
	dest := filepath.Join(t.TempDir(), "checkout")

	changed, err := d.EnsureGitCheckout(context.Background(), GitSource{URL: "https://example.invalid/repo.git"}, dest)
	require.NoError(t, err)
	assert.False(t, changed)
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestEnsureGitCheckoutClonesThenSkipsWhenAtRef(t *testing.T) {
	srcDir := initSourceRepo(t)
	dest := filepath.Join(t.TempDir(), "checkout")

	d := New(log.DefaultLogger, false)
	src := GitSource{URL: srcDir, Ref: "main"}

	changed, err := d.EnsureGitCheckout(context.Background(), src, dest)
	require.NoError(t, err)
	assert.True(t, changed)
	content, err := os.ReadFile(filepath.Join(dest, "values.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "replicas: 1\n", string(content))

	changed, err = d.EnsureGitCheckout(context.Background(), src, dest)
	require.NoError(t, err)
	assert.False(t, changed, "second call at the same ref should be a no-op")
}

func TestGitAuth(t *testing.T) {
	assert.Nil(t, gitAuth(GitSource{}))
	auth := gitAuth(GitSource{Username: "u", Password: "p"})
	require.NotNil(t, auth)
	assert.Equal(t, "u", auth.Username)
	assert.Equal(t, "p", auth.Password)
}
