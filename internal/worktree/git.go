package worktree

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
)

// runGit runs git -C dir args... and returns trimmed stdout.
func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &GitError{
			Kind:   CommandFailed,
			Path:   dir,
			Detail: "git " + strings.Join(args, " ") + ": " + strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	return strings.TrimSpace(stdout.String()), nil
}
