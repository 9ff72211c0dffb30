package secrets

import (
	"bytes"
	"context"
	"os/exec"
)

// Exec runs backend command-line tools. Tests substitute a fake.
type Exec interface {
	LookPath(file string) (string, error)
	Output(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// OSExec runs real processes.
type OSExec struct{}

// LookPath implements Exec.
func (OSExec) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

// Output implements Exec.
func (OSExec) Output(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

func execOrDefault(e Exec) Exec {
	if e == nil {
		return OSExec{}
	}
	return e
}
