package git

import (
	"errors"
	"fmt"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Result identifies the commit a bundle is built from.
type Result struct {
	Commit string
	Ref    string
	// Dirty is set when the worktree has uncommitted changes.
	Dirty bool
}

// ErrNotRepository is returned when path is not inside a git checkout.
var ErrNotRepository = errors.New("not a git repository")

// Resolve opens the checkout containing path and resolves ref to a commit.
// An empty ref resolves HEAD.
func Resolve(path, ref string) (Result, error) {
	repo, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return Result{}, fmt.Errorf("%s: %w", path, ErrNotRepository)
		}
		return Result{}, fmt.Errorf("opening repo at %s: %w", path, err)
	}

	hash, name, err := resolveRef(repo, ref)
	if err != nil {
		return Result{}, err
	}

	res := Result{Commit: hash.String(), Ref: name}
	if wt, err := repo.Worktree(); err == nil {
		if status, err := wt.Status(); err == nil {
			res.Dirty = !status.IsClean()
		}
	}
	return res, nil
}

// resolveRef tries to resolve a ref as: HEAD, exact commit SHA, tag, then branch.
func resolveRef(repo *gogit.Repository, ref string) (plumbing.Hash, string, error) {
	if ref == "" || ref == "HEAD" {
		head, err := repo.Head()
		if err != nil {
			return plumbing.ZeroHash, "", fmt.Errorf("resolving HEAD: %w", err)
		}
		name := head.Name().Short()
		if !head.Name().IsBranch() {
			name = "HEAD"
		}
		return head.Hash(), name, nil
	}

	if plumbing.IsHash(ref) {
		return plumbing.NewHash(ref), ref, nil
	}

	// Peel annotated tags to their commit.
	if tagRef, err := repo.Tag(ref); err == nil {
		if tagObj, err := repo.TagObject(tagRef.Hash()); err == nil {
			if commit, err := tagObj.Commit(); err == nil {
				return commit.Hash, ref, nil
			}
		}
		return tagRef.Hash(), ref, nil
	}

	if resolved, err := repo.ResolveRevision(plumbing.Revision("refs/heads/" + ref)); err == nil {
		return *resolved, ref, nil
	}

	resolved, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return plumbing.ZeroHash, "", fmt.Errorf("cannot resolve ref %q: %w", ref, err)
	}
	return *resolved, ref, nil
}
