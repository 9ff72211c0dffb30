package secrets

import (
	"context"
	"errors"
	"os/exec"
)

type fakeCall struct {
	name string
	args []string
}

// fakeExec serves canned output for backend CLIs.
type fakeExec struct {
	installed map[string]bool
	stdout    string
	stderr    string
	err       error
	calls     []fakeCall
}

func (f *fakeExec) LookPath(file string) (string, error) {
	if f.installed[file] {
		return "/usr/local/bin/" + file, nil
	}
	return "", &exec.Error{Name: file, Err: exec.ErrNotFound}
}

func (f *fakeExec) Output(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, fakeCall{name: name, args: args})
	return []byte(f.stdout), []byte(f.stderr), f.err
}

var errExit = errors.New("exit status 1")
