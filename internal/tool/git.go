package tool

import (
	"context"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/sbkube/sbkube/internal/errs"
)

// GitSource names one settings.git_repos entry resolved against an app's
// git-type fields (spec.md §3.1 "git").
type GitSource struct {
	URL      string
	Ref      string // branch, tag, or commit; "" means the repo's default branch
	Username string
	Password string
}

// EnsureGitCheckout materializes dest at the requested ref: clones if dest
// doesn't exist, otherwise fetches and checks out only if the current HEAD
// doesn't already match (spec.md §4.4 "prepare" — "A repository already at
// the requested ref is left alone; mismatched ref triggers fetch+checkout",
// and idempotent-prepare testable property 8.1.2).
func (d *Driver) EnsureGitCheckout(ctx context.Context, src GitSource, dest string) (changed bool, err error) {
	if d.DryRun {
		d.Log.Info("dry-run: would materialize git source", "url", src.URL, "ref", src.Ref, "dest", dest)
		return false, nil
	}

	auth := gitAuth(src)

	if _, statErr := os.Stat(dest); os.IsNotExist(statErr) {
		opts := &git.CloneOptions{URL: src.URL, Auth: auth}
		if src.Ref != "" {
			opts.ReferenceName = plumbing.NewBranchReferenceName(src.Ref)
		}
		if _, err := git.PlainCloneContext(ctx, dest, false, opts); err != nil {
			// Branch name might actually be a tag or bare commit; retry
			// without pinning a ref and let checkoutRef below land on it.
			if _, err2 := git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{URL: src.URL, Auth: auth}); err2 != nil {
				return false, errs.Wrap(errs.Git, err, "git clone failed for "+src.URL)
			}
		}
		if src.Ref != "" {
			if err := checkoutRef(dest, src.Ref); err != nil {
				return false, err
			}
		}
		return true, nil
	}

	repo, err := git.PlainOpen(dest)
	if err != nil {
		return false, errs.Wrap(errs.Git, err, "existing checkout at "+dest+" is not a git repository")
	}

	if src.Ref != "" {
		if atRef(repo, src.Ref) {
			return false, nil
		}
	}

	wt, err := repo.Worktree()
	if err != nil {
		return false, errs.Wrap(errs.Git, err, "cannot open worktree at "+dest)
	}
	remote, err := repo.Remote("origin")
	if err != nil {
		return false, errs.Wrap(errs.Git, err, "no origin remote at "+dest)
	}
	if err := remote.FetchContext(ctx, &git.FetchOptions{Auth: auth}); err != nil && err != git.NoErrAlreadyUpToDate {
		return false, errs.Wrap(errs.Git, err, "git fetch failed for "+src.URL)
	}
	if err := checkoutRefOnWorktree(wt, src.Ref); err != nil {
		return false, err
	}
	return true, nil
}

func gitAuth(src GitSource) *http.BasicAuth {
	if src.Username == "" && src.Password == "" {
		return nil
	}
	return &http.BasicAuth{Username: src.Username, Password: src.Password}
}

func atRef(repo *git.Repository, ref string) bool {
	head, err := repo.Head()
	if err != nil {
		return false
	}
	if head.Name().Short() == ref {
		return true
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(ref))
	return err == nil && *resolved == head.Hash()
}

func checkoutRef(dest, ref string) error {
	repo, err := git.PlainOpen(dest)
	if err != nil {
		return errs.Wrap(errs.Git, err, "cannot open "+dest)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return errs.Wrap(errs.Git, err, "cannot open worktree at "+dest)
	}
	return checkoutRefOnWorktree(wt, ref)
}

func checkoutRefOnWorktree(wt *git.Worktree, ref string) error {
	if ref == "" {
		return nil
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName(ref)}); err == nil {
		return nil
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: plumbing.NewHash(ref)}); err == nil {
		return nil
	}
	return errs.New(errs.Git, "ref not found: "+ref).
		WithHint("check the branch, tag, or commit exists on the remote")
}
