package session

import (
	"context"

	"github.com/majorcontext/ccs/internal/log"
	"golang.org/x/sync/errgroup"
)

// probeLimit bounds concurrent runtime probes.
const probeLimit = 8

// StateUnknown marks a session whose container state could not be read.
const StateUnknown = "unknown"

// Status is a session with the container state observed by a probe.
type Status struct {
	*Session
	State string
}

// ProbeFunc reports a container's state. found is false when the runtime
// has no such container.
type ProbeFunc func(ctx context.Context, containerName string) (state string, found bool, err error)

// Refresh probes every session's container concurrently, removes sessions
// whose container is gone or has exited, and returns the rest newest first.
// A session whose state cannot be read is kept with StateUnknown.
func (s *Store) Refresh(ctx context.Context, probe ProbeFunc) ([]Status, error) {
	sessions, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]Status, len(sessions))
	gone := make([]bool, len(sessions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(probeLimit)
	for i, sess := range sessions {
		g.Go(func() error {
			state, found, err := probe(gctx, sess.ContainerName)
			if err != nil {
				log.Warn("reading container state failed", "container", sess.ContainerName, "error", err)
				statuses[i] = Status{Session: sess, State: StateUnknown}
				return nil
			}
			statuses[i] = Status{Session: sess, State: state}
			gone[i] = !found || isFinished(state)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var live []Status
	var stale []string
	for i, st := range statuses {
		if gone[i] {
			stale = append(stale, st.ID)
			continue
		}
		live = append(live, st)
	}
	if err := s.Remove(ctx, stale...); err != nil {
		return nil, err
	}
	return live, nil
}

func isFinished(state string) bool {
	switch state {
	case "exited", "dead", "stopped":
		return true
	}
	return false
}
