package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/majorcontext/ccs/internal/container"
	"github.com/majorcontext/ccs/internal/docker"
	"github.com/majorcontext/ccs/internal/log"
	"github.com/majorcontext/ccs/internal/run"
	"github.com/majorcontext/ccs/internal/session"
)

// formatAge formats a time as a human-readable age string.
func formatAge(t time.Time) string {
	return formatAgeAt(t, time.Now())
}

func formatAgeAt(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// sessionLookup finds a session by reference.
type sessionLookup interface {
	Get(ctx context.Context, ref string) (*session.Session, error)
}

// resolveContainer maps a user-supplied reference to a container name.
// Registered sessions win; an unregistered reference is taken as a
// container name, with the ccs- prefix added when missing.
func resolveContainer(ctx context.Context, store sessionLookup, ref string) (name string, sess *session.Session, err error) {
	if ref == "" {
		return "", nil, errors.New("container name required")
	}
	if store != nil {
		sess, err = store.Get(ctx, ref)
		switch {
		case err == nil:
			return sess.ContainerName, sess, nil
		case !errors.Is(err, session.ErrNotFound):
			return "", nil, err
		}
	}
	if !strings.HasPrefix(ref, session.ContainerPrefix) {
		ref = session.ContainerPrefix + ref
	}
	return ref, nil, nil
}

// openSessions opens the session registry.
// refreshSessions prunes the registry through probe and removes the plugin
// documents of the sessions it dropped.
func refreshSessions(ctx context.Context, store *session.Store, probe session.ProbeFunc, pluginDir string) ([]session.Status, error) {
	before, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	live, err := store.Refresh(ctx, probe)
	if err != nil {
		return nil, err
	}
	kept := make(map[string]bool, len(live))
	for _, st := range live {
		kept[st.ContainerName] = true
	}
	for _, sess := range before {
		if kept[sess.ContainerName] {
			continue
		}
		if err := run.RemovePluginFile(pluginDir, sess.ContainerName); err != nil {
			log.Warn("failed to remove plugin file", "container", sess.ContainerName, "error", err)
		}
	}
	return live, nil
}

func openSessions() (*session.Store, error) {
	return session.Open(session.DefaultPath())
}

// detectRuntime loads the config and finds the container runtime.
func detectRuntime() (container.Runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return container.Runtime{}, err
	}
	return container.Detect(cfg.Runtime)
}

// sessionProbe returns a state probe for registered sessions. The engine
// API answers in one round trip per container; when it is unreachable the
// runtime CLI is used instead. The returned func releases the probe.
func sessionProbe(ctx context.Context, rt container.Runtime) (session.ProbeFunc, func()) {
	cli, err := docker.NewClient(rt.Kind == container.KindPodman)
	if err == nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err = cli.Ping(pingCtx)
		cancel()
		if err == nil {
			return cli.ContainerState, func() { cli.Close() }
		}
		cli.Close()
	}
	log.Debug("engine API unavailable, probing with runtime CLI", "error", err)
	return stateProbe(rt), func() {}
}

// stateProbe adapts a runtime to session.ProbeFunc.
func stateProbe(rt container.Runtime) session.ProbeFunc {
	return func(ctx context.Context, name string) (string, bool, error) {
		state, err := rt.State(ctx, name)
		if errors.Is(err, container.ErrNotFound) {
			return "", false, nil
		}
		if err != nil {
			return "", false, err
		}
		return state, true, nil
	}
}

// lookupContainer resolves ref against the session registry.
func lookupContainer(cmd *cobra.Command, ref string) (string, error) {
	store, err := openSessions()
	if err != nil {
		return "", err
	}
	defer store.Close()
	name, _, err := resolveContainer(cmd.Context(), store, ref)
	return name, err
}
