// Package worktree resolves repository context (main working tree vs linked
// worktree) and provisions branches and worktrees for ccs runs.
package worktree

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// Context describes the repository a run operates on.
type Context struct {
	// Root is the absolute path of the working tree.
	Root string
	// RepoName is the basename of the main working tree.
	RepoName string
	// IsWorktree is true when Root is a linked worktree.
	IsWorktree bool
	// CommonGitDir is the shared git directory of a linked worktree.
	// Empty unless IsWorktree.
	CommonGitDir string
	// Branch is the checked-out branch, empty when HEAD is detached.
	Branch string

	gitDir string // git directory holding refs and objects
}

// MainRoot returns the main working tree of the repository.
func (c *Context) MainRoot() string {
	if !c.IsWorktree {
		return c.Root
	}
	return mainRootFromCommonDir(c.CommonGitDir)
}

// GitDir returns the repository's shared git directory.
func (c *Context) GitDir() string {
	return c.gitDir
}

// ResolveContext inspects the filesystem at path and returns the repository
// context enclosing it.
func ResolveContext(path string) (*Context, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	root, info, err := findDotGit(abs)
	if err != nil {
		return nil, err
	}
	dotGit := filepath.Join(root, ".git")

	c := &Context{Root: root}
	switch {
	case info.IsDir():
		c.gitDir = dotGit
	case info.Mode().IsRegular():
		gitDir, err := readGitDirPointer(dotGit, root)
		if err != nil {
			return nil, err
		}
		common, err := commonDirFor(gitDir)
		if err != nil {
			return nil, err
		}
		c.IsWorktree = true
		c.CommonGitDir = common
		c.gitDir = common
	default:
		return nil, &GitError{Kind: BrokenPointer, Path: dotGit, Detail: "not a file or directory"}
	}

	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{EnableDotGitCommonDir: true})
	if err != nil {
		return nil, &GitError{Kind: NotARepository, Path: root, Err: err}
	}
	if head, err := repo.Head(); err == nil && head.Name().IsBranch() {
		c.Branch = head.Name().Short()
	}

	if c.IsWorktree {
		c.RepoName = strings.TrimSuffix(filepath.Base(mainRootFromCommonDir(c.CommonGitDir)), ".git")
	} else {
		c.RepoName = filepath.Base(root)
	}
	return c, nil
}

// findDotGit walks up from dir to the nearest directory containing a .git
// entry.
func findDotGit(dir string) (string, fs.FileInfo, error) {
	for cur := dir; ; {
		info, err := os.Stat(filepath.Join(cur, ".git"))
		if err == nil {
			return cur, info, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", nil, &GitError{Kind: BrokenPointer, Path: filepath.Join(cur, ".git"), Err: err}
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", nil, &GitError{Kind: NotARepository, Path: dir}
		}
		cur = parent
	}
}

// readGitDirPointer parses the "gitdir: <path>" line of a linked worktree's
// .git file. Relative targets are resolved against root.
func readGitDirPointer(dotGit, root string) (string, error) {
	data, err := os.ReadFile(dotGit)
	if err != nil {
		return "", &GitError{Kind: BrokenPointer, Path: dotGit, Err: err}
	}
	line, _, _ := strings.Cut(string(data), "\n")
	target, ok := strings.CutPrefix(strings.TrimSpace(line), "gitdir:")
	target = strings.TrimSpace(target)
	if !ok || target == "" {
		return "", &GitError{Kind: BrokenPointer, Path: dotGit, Detail: "missing gitdir line"}
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}
	target = filepath.Clean(target)

	info, err := os.Stat(target)
	if err != nil {
		return "", &GitError{Kind: BrokenPointer, Path: dotGit, Detail: "target " + target + " is missing", Err: err}
	}
	if !info.IsDir() {
		return "", &GitError{Kind: BrokenPointer, Path: dotGit, Detail: "target " + target + " is not a directory"}
	}
	return target, nil
}

// commonDirFor returns the shared git directory for a per-worktree git dir,
// using the commondir file when present and the .git/worktrees/<name>
// layout otherwise.
func commonDirFor(gitDir string) (string, error) {
	if data, err := os.ReadFile(filepath.Join(gitDir, "commondir")); err == nil {
		common := strings.TrimSpace(string(data))
		if !filepath.IsAbs(common) {
			common = filepath.Join(gitDir, common)
		}
		common = filepath.Clean(common)
		if _, err := os.Stat(common); err != nil {
			return "", &GitError{Kind: BrokenPointer, Path: gitDir, Detail: "common dir " + common + " is missing", Err: err}
		}
		return common, nil
	}

	parent := filepath.Dir(gitDir)
	if filepath.Base(parent) != "worktrees" {
		return "", &GitError{Kind: BrokenPointer, Path: gitDir, Detail: "cannot locate shared git directory"}
	}
	return filepath.Dir(parent), nil
}

// mainRootFromCommonDir maps /src/proj/.git to /src/proj. Bare
// repositories (/src/proj.git) map to themselves.
func mainRootFromCommonDir(common string) string {
	if filepath.Base(common) == ".git" {
		return filepath.Dir(common)
	}
	return common
}
