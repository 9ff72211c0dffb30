package worktree

import (
	"context"
	"path/filepath"
	"strings"
)

// Entry is one worktree registered with a repository.
type Entry struct {
	Path     string
	Branch   string // empty when detached
	Bare     bool
	Prunable bool
}

// List returns every worktree registered with the repository at dir,
// including the main working tree.
func List(ctx context.Context, dir string) ([]Entry, error) {
	out, err := runGit(ctx, dir, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parseWorktreeList(out), nil
}

func parseWorktreeList(out string) []Entry {
	var res []Entry
	var cur Entry

	flush := func() {
		if cur.Path != "" {
			res = append(res, cur)
		}
		cur = Entry{}
	}

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		switch {
		case strings.HasPrefix(line, "worktree "):
			cur.Path = filepath.Clean(strings.TrimPrefix(line, "worktree "))
		case strings.HasPrefix(line, "branch refs/heads/"):
			cur.Branch = strings.TrimPrefix(line, "branch refs/heads/")
		case line == "bare":
			cur.Bare = true
		case strings.HasPrefix(line, "prunable"):
			cur.Prunable = true
		}
	}
	flush()
	return res
}

// samePath compares paths after resolving symlinks where possible.
func samePath(a, b string) bool {
	return canonical(a) == canonical(b)
}

func canonical(p string) string {
	if r, err := filepath.EvalSymlinks(p); err == nil {
		return r
	}
	// The leaf may not exist yet; resolve the parent instead.
	if r, err := filepath.EvalSymlinks(filepath.Dir(p)); err == nil {
		return filepath.Join(r, filepath.Base(p))
	}
	return filepath.Clean(p)
}
