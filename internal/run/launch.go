package run

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/majorcontext/ccs/internal/container"
	"github.com/majorcontext/ccs/internal/log"
	"github.com/majorcontext/ccs/internal/session"
)

// Result describes a started launch.
type Result struct {
	// Args is the runtime argument vector, identical for dry and real runs.
	Args []string
	// ContainerID is set for detached runs.
	ContainerID string
	// Session is the registry record for detached runs.
	Session *session.Session
}

// Launcher executes plans.
type Launcher struct {
	// Streams are handed to foreground runs.
	Streams container.Streams
	// Preview receives the dry-run description.
	Preview io.Writer
	// OpenRegistry defaults to session.Open(session.DefaultPath()).
	OpenRegistry func() (*session.Store, error)
	// Environ defaults to os.Environ.
	Environ func() []string
	Now     func() time.Time
}

// NewLauncher returns a Launcher on the process's own streams.
func NewLauncher() *Launcher {
	return &Launcher{
		Streams: container.StdStreams(),
		Preview: os.Stdout,
	}
}

// Launch runs the plan. With dryRun it only writes the preview and returns
// the argument vector it would have used, without touching the runtime or
// the registry.
func (l *Launcher) Launch(ctx context.Context, p *Plan, dryRun bool) (*Result, error) {
	args := p.Args()
	if dryRun {
		out := l.Preview
		if out == nil {
			out = os.Stdout
		}
		return &Result{Args: args}, p.WritePreview(out)
	}

	environ := l.Environ
	if environ == nil {
		environ = os.Environ
	}
	env := p.Environ(environ())

	if err := p.WritePluginFile(); err != nil {
		return nil, err
	}

	if !p.Detach {
		defer l.removePluginFile(p)
		log.Info("starting container", "name", p.Name, "runtime", p.Runtime.Kind)
		if err := p.Runtime.Run(ctx, args, env, l.Streams); err != nil {
			return nil, err
		}
		return &Result{Args: args}, nil
	}

	// A detached container keeps reading its plugin file until it is
	// stopped; the file is removed with the session.
	id, err := p.Runtime.Output(ctx, args, env)
	if err != nil {
		l.removePluginFile(p)
		return nil, err
	}
	if len(id) > 12 {
		id = id[:12]
	}

	now := time.Now()
	if l.Now != nil {
		now = l.Now()
	}
	sess := session.New(p.Name, p.RepoName, p.Workspace, now)
	if err := l.register(ctx, sess); err != nil {
		// The container is running; it can still be reached by name.
		log.Warn("container started but session was not recorded", "name", p.Name, "error", err)
		return &Result{Args: args, ContainerID: id}, fmt.Errorf("recording session for %s: %w", p.Name, err)
	}
	log.Info("started detached session", "id", sess.ID, "name", p.Name, "container", id)
	return &Result{Args: args, ContainerID: id, Session: sess}, nil
}

func (l *Launcher) removePluginFile(p *Plan) {
	if p.PluginFile == "" {
		return
	}
	if err := os.Remove(p.PluginFile); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to remove plugin file", "path", p.PluginFile, "error", err)
	}
}

func (l *Launcher) register(ctx context.Context, sess *session.Session) error {
	open := l.OpenRegistry
	if open == nil {
		open = func() (*session.Store, error) { return session.Open(session.DefaultPath()) }
	}
	store, err := open()
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Add(ctx, sess)
}
