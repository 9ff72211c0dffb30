package worktree

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/majorcontext/ccs/internal/log"
)

// RepoNamePlaceholder is substituted with the repository name in worktree
// path templates.
const RepoNamePlaceholder = "{repo_name}"

// lockFileName lives in the shared git directory.
const lockFileName = "ccs-worktree.lock"

// Spec describes a worktree to provision.
type Spec struct {
	Branch       string
	TargetDir    string
	CreateBranch bool
}

// Result is the outcome of Provision.
type Result struct {
	*Context
	// Reused is true when the worktree already existed for the branch.
	Reused bool
}

// ExpandTemplate substitutes {repo_name} in template and resolves the result
// against root. A leading ~ expands to home.
func ExpandTemplate(template, repoName, root, home string) string {
	p := strings.ReplaceAll(template, RepoNamePlaceholder, repoName)
	if p == "~" {
		p = home
	} else if rest, ok := strings.CutPrefix(p, "~/"); ok {
		p = filepath.Join(home, rest)
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	return filepath.Clean(p)
}

// NewSpec builds a Spec for branch in repo, placing the worktree under the
// expanded template directory.
func NewSpec(repo *Context, template, branch string, create bool) (Spec, error) {
	if strings.TrimSpace(branch) == "" {
		return Spec{}, errors.New("branch name is required")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return Spec{}, fmt.Errorf("getting home directory: %w", err)
	}
	base := ExpandTemplate(template, repo.RepoName, repo.MainRoot(), home)
	return Spec{
		Branch:       branch,
		TargetDir:    filepath.Join(base, filepath.FromSlash(branch)),
		CreateBranch: create,
	}, nil
}

// Provision creates or reuses the worktree described by spec. repo must be a
// main working tree. Created branches and directories are left in place if
// a later step of the run fails.
func Provision(ctx context.Context, repo *Context, spec Spec) (*Result, error) {
	if repo.IsWorktree {
		return nil, ErrInsideWorktree
	}
	if _, err := runGit(ctx, repo.Root, "check-ref-format", "--branch", spec.Branch); err != nil {
		return nil, fmt.Errorf("invalid branch name %q: %w", spec.Branch, err)
	}

	unlock, err := lockPath(filepath.Join(repo.GitDir(), lockFileName))
	if err != nil {
		return nil, err
	}
	defer unlock()

	entries, err := List(ctx, repo.Root)
	if err != nil {
		return nil, err
	}
	if hasPrunable(entries) {
		if _, err := runGit(ctx, repo.Root, "worktree", "prune"); err != nil {
			return nil, err
		}
		if entries, err = List(ctx, repo.Root); err != nil {
			return nil, err
		}
	}

	for _, e := range entries {
		if !samePath(e.Path, spec.TargetDir) {
			continue
		}
		if e.Branch == spec.Branch {
			log.Debug("reusing existing worktree", "path", e.Path, "branch", e.Branch)
			wt, err := ResolveContext(e.Path)
			if err != nil {
				return nil, err
			}
			return &Result{Context: wt, Reused: true}, nil
		}
		return nil, &ConflictError{
			Branch: spec.Branch,
			Path:   e.Path,
			Reason: fmt.Sprintf("directory is already a worktree for branch %q", e.Branch),
		}
	}

	for _, e := range entries {
		if e.Branch == spec.Branch {
			return nil, &ConflictError{
				Branch: spec.Branch,
				Path:   e.Path,
				Reason: "branch is checked out in another worktree",
				Fix:    "Run from that worktree with --here, or pick another branch name.",
			}
		}
	}

	if nonEmptyDir(spec.TargetDir) {
		return nil, &ConflictError{
			Branch: spec.Branch,
			Path:   spec.TargetDir,
			Reason: "directory already exists and is not a worktree for this branch",
			Fix:    "Remove it or change worktree.base_path.",
		}
	}

	if err := ensureBranch(repo, spec); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(spec.TargetDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating worktree parent directory: %w", err)
	}
	if _, err := runGit(ctx, repo.Root, "worktree", "add", spec.TargetDir, spec.Branch); err != nil {
		return nil, fmt.Errorf("creating worktree: %w", err)
	}
	log.Info("created worktree", "path", spec.TargetDir, "branch", spec.Branch)

	wt, err := ResolveContext(spec.TargetDir)
	if err != nil {
		return nil, err
	}
	return &Result{Context: wt}, nil
}

// ensureBranch checks the branch against spec.CreateBranch and creates it
// from HEAD when requested.
func ensureBranch(repo *Context, spec Spec) error {
	r, err := git.PlainOpenWithOptions(repo.Root, &git.PlainOpenOptions{EnableDotGitCommonDir: true})
	if err != nil {
		return &GitError{Kind: NotARepository, Path: repo.Root, Err: err}
	}

	name := plumbing.NewBranchReferenceName(spec.Branch)
	_, err = r.Reference(name, false)
	exists := err == nil
	if err != nil && !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return fmt.Errorf("looking up branch %q: %w", spec.Branch, err)
	}

	switch {
	case exists && spec.CreateBranch:
		return &ConflictError{
			Branch: spec.Branch,
			Reason: "branch already exists",
			Fix:    "Drop -b/--branch to check out the existing branch.",
		}
	case exists:
		return nil
	case !spec.CreateBranch:
		return &GitError{
			Kind:   BranchNotFound,
			Path:   repo.Root,
			Detail: spec.Branch + "; pass -b/--branch to create it",
		}
	}

	head, err := r.Head()
	if err != nil {
		return fmt.Errorf("resolving HEAD: %w", err)
	}
	if err := r.Storer.SetReference(plumbing.NewHashReference(name, head.Hash())); err != nil {
		return fmt.Errorf("creating branch %q: %w", spec.Branch, err)
	}
	log.Debug("created branch", "branch", spec.Branch, "from", head.Hash().String())
	return nil
}

func nonEmptyDir(path string) bool {
	entries, err := os.ReadDir(path)
	if err != nil {
		_, statErr := os.Stat(path)
		return statErr == nil // exists but is a file
	}
	return len(entries) > 0
}

func hasPrunable(entries []Entry) bool {
	for _, e := range entries {
		if e.Prunable {
			return true
		}
	}
	return false
}
