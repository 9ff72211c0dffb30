package worktree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// GeneratedBranchPrefix marks branches created by default worktree mode.
const GeneratedBranchPrefix = "ccs-"

// Decision records what Sweep did with one worktree.
type Decision struct {
	Entry
	Removed bool
	Reason  string
}

// SweepOptions configures Sweep.
type SweepOptions struct {
	// Base is the directory holding this repository's worktrees.
	Base string
	// InUse reports whether a running session uses the worktree path.
	InUse func(path string) bool
	// MinAge keeps worktrees modified more recently than this.
	MinAge time.Duration
	// DryRun reports decisions without removing anything.
	DryRun bool
}

// Sweep removes worktrees under opts.Base that have no running session, no
// uncommitted changes, no commits missing from the main branch and have not
// been touched for opts.MinAge.
func Sweep(ctx context.Context, repo *Context, opts SweepOptions) ([]Decision, error) {
	main := repo.MainRoot()
	entries, err := List(ctx, main)
	if err != nil {
		return nil, err
	}

	base := canonical(opts.Base)
	var out []Decision
	for _, e := range entries {
		if e.Bare || !strings.HasPrefix(canonical(e.Path), base+string(filepath.Separator)) {
			continue
		}
		d := Decision{Entry: e}
		d.Reason = keepReason(ctx, main, e, opts)
		if d.Reason == "" {
			d.Reason = "idle, no changes"
			if !opts.DryRun {
				if err := Remove(ctx, main, e.Path); err != nil {
					d.Reason = err.Error()
					out = append(out, d)
					continue
				}
				if strings.HasPrefix(e.Branch, GeneratedBranchPrefix) {
					_, _ = runGit(ctx, main, "branch", "-d", e.Branch)
				}
			}
			d.Removed = true
		}
		out = append(out, d)
	}
	return out, nil
}

func keepReason(ctx context.Context, main string, e Entry, opts SweepOptions) string {
	if opts.InUse != nil && opts.InUse(e.Path) {
		return "session is running"
	}
	if e.Prunable {
		return ""
	}
	status, err := runGit(ctx, e.Path, "status", "--porcelain", "--untracked-files=all")
	if err != nil || status != "" {
		return "has uncommitted changes"
	}
	if e.Branch != "" {
		count, err := runGit(ctx, main, "rev-list", "--count", "HEAD.."+e.Branch)
		if n, convErr := strconv.Atoi(count); err != nil || convErr != nil || n > 0 {
			return "branch has commits not in the main branch"
		}
	}
	if info, err := os.Stat(e.Path); err == nil && opts.MinAge > 0 && time.Since(info.ModTime()) < opts.MinAge {
		return "recently modified"
	}
	return ""
}

// Remove deletes a worktree directory and prunes its registration.
func Remove(ctx context.Context, repoRoot, wtPath string) error {
	if _, err := os.Stat(wtPath); os.IsNotExist(err) {
		_, err := runGit(ctx, repoRoot, "worktree", "prune")
		return err
	}

	// Remove the worktree using git (handles lock files, etc.)
	if _, err := runGit(ctx, repoRoot, "worktree", "remove", wtPath); err != nil {
		// Fall back to manual removal + prune if git worktree remove fails
		if rmErr := os.RemoveAll(wtPath); rmErr != nil {
			return fmt.Errorf("removing worktree: %w (git error: %v)", rmErr, err)
		}
		_, _ = runGit(ctx, repoRoot, "worktree", "prune") // best effort
	}
	return nil
}
