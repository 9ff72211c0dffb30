package worktree

import (
	"errors"
	"fmt"
)

// GitErrorKind classifies repository failures.
type GitErrorKind int

const (
	// NotARepository means no repository encloses the path.
	NotARepository GitErrorKind = iota + 1
	// BrokenPointer means a linked worktree's .git file is unreadable or
	// points at a directory that does not exist.
	BrokenPointer
	// BranchNotFound means the requested branch does not exist and
	// creation was not requested.
	BranchNotFound
	// CommandFailed means a git subprocess exited non-zero.
	CommandFailed
)

func (k GitErrorKind) String() string {
	switch k {
	case NotARepository:
		return "not a git repository"
	case BrokenPointer:
		return "broken worktree pointer"
	case BranchNotFound:
		return "branch not found"
	case CommandFailed:
		return "git command failed"
	}
	return "git error"
}

// GitError is a fatal repository error.
type GitError struct {
	Kind   GitErrorKind
	Path   string
	Detail string
	Err    error
}

func (e *GitError) Error() string {
	msg := e.Kind.String()
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GitError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a *GitError of kind k.
func IsKind(err error, k GitErrorKind) bool {
	var ge *GitError
	return errors.As(err, &ge) && ge.Kind == k
}

// ConflictError means a branch or directory is already in use in a way
// that is incompatible with the request.
type ConflictError struct {
	Branch string
	Path   string
	Reason string
	Fix    string
}

func (e *ConflictError) Error() string {
	msg := fmt.Sprintf("worktree conflict for branch %q", e.Branch)
	if e.Path != "" {
		msg += fmt.Sprintf(" at %s", e.Path)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Fix != "" {
		msg += "\n\n  " + e.Fix
	}
	return msg
}

// ErrInsideWorktree is returned when provisioning is requested from inside
// a linked worktree.
var ErrInsideWorktree = errors.New("cannot create a worktree from inside another worktree; run from the main repository")
