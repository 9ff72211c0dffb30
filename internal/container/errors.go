package container

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when the runtime has no container by that name.
var ErrNotFound = errors.New("container not found")

// RuntimeError means no usable runtime is available or the runtime could
// not be started.
type RuntimeError struct {
	Runtime string
	Reason  string
	Fix     string
	Err     error
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString("container runtime")
	if e.Runtime != "" {
		b.WriteString(" " + e.Runtime)
	}
	b.WriteString(": " + e.Reason)
	if e.Fix != "" {
		b.WriteString("\n\n" + e.Fix)
	}
	return b.String()
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// ExitError is a non-zero exit from the runtime process. Code becomes the
// exit status of ccs itself.
type ExitError struct {
	Runtime string
	Code    int
	// Stderr is captured only for non-interactive invocations.
	Stderr string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Runtime, e.Code)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// ExitCode returns the code carried by err if it is an *ExitError.
func ExitCode(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}
