package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/majorcontext/ccs/internal/log"
)

// Streams are the standard streams handed to the runtime process.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StdStreams returns the process's own standard streams.
func StdStreams() Streams {
	return Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

func (r Runtime) command(ctx context.Context, args, env []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, r.Path, args...)
	cmd.Env = env
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	return cmd
}

// Run executes the runtime in the foreground with the given streams and
// waits for it. SIGINT and SIGTERM received by ccs are forwarded to the
// runtime process. env is the complete environment for the runtime
// process; nil inherits the current environment.
func (r Runtime) Run(ctx context.Context, args, env []string, streams Streams) error {
	cmd := r.command(ctx, args, env)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = streams.In, streams.Out, streams.Err

	log.Debug("running runtime", "runtime", r.Kind, "args", args)
	if err := cmd.Start(); err != nil {
		return &RuntimeError{Runtime: string(r.Kind), Reason: "failed to start", Err: err}
	}

	stop := forwardSignals(cmd.Process)
	err := cmd.Wait()
	stop()
	return r.exitError(err, "")
}

// Output executes the runtime non-interactively and returns its trimmed
// stdout. A non-zero exit returns an *ExitError carrying stderr.
func (r Runtime) Output(ctx context.Context, args, env []string) (string, error) {
	cmd := r.command(ctx, args, env)
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr

	log.Debug("running runtime", "runtime", r.Kind, "args", args)
	if err := cmd.Run(); err != nil {
		return "", r.exitError(err, stderr.String())
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (r Runtime) exitError(err error, stderr string) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			// Terminated by a signal.
			code = 1
		}
		return &ExitError{Runtime: string(r.Kind), Code: code, Stderr: stderr}
	}
	return &RuntimeError{Runtime: string(r.Kind), Reason: "failed to run", Err: err}
}

// forwardSignals relays SIGINT and SIGTERM to p until the returned stop
// function is called.
func forwardSignals(p *os.Process) (stop func()) {
	sigCh := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		for {
			select {
			case sig := <-sigCh:
				log.Debug("forwarding signal to runtime", "signal", sig)
				_ = p.Signal(sig)
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

// State returns the container's status ("running", "exited", ...).
// ErrNotFound is returned when no such container exists.
func (r Runtime) State(ctx context.Context, name string) (string, error) {
	out, err := r.Output(ctx, []string{"inspect", "--format", "{{.State.Status}}", name}, nil)
	if err != nil {
		if isNoSuchContainer(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("inspecting %s: %w", name, err)
	}
	return out, nil
}

// Attach connects the streams to a running container.
func (r Runtime) Attach(ctx context.Context, name string, streams Streams) error {
	return r.Run(ctx, []string{"attach", name}, nil, streams)
}

// Logs writes the container's output to streams, following when follow is
// set.
func (r Runtime) Logs(ctx context.Context, name string, follow bool, streams Streams) error {
	args := []string{"logs"}
	if follow {
		args = append(args, "--follow")
	}
	args = append(args, name)
	return r.Run(ctx, args, nil, Streams{Out: streams.Out, Err: streams.Err})
}

// Remove stops and removes a container. A container that no longer exists
// is not an error.
func (r Runtime) Remove(ctx context.Context, name string) error {
	if _, err := r.Output(ctx, []string{"stop", name}, nil); err != nil && !isNoSuchContainer(err) {
		return fmt.Errorf("stopping %s: %w", name, err)
	}
	if _, err := r.Output(ctx, []string{"rm", "--force", name}, nil); err != nil && !isNoSuchContainer(err) {
		return fmt.Errorf("removing %s: %w", name, err)
	}
	return nil
}

func isNoSuchContainer(err error) bool {
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		return false
	}
	s := strings.ToLower(exitErr.Stderr)
	return strings.Contains(s, "no such container") ||
		strings.Contains(s, "no such object") ||
		strings.Contains(s, "no container with name or id")
}
