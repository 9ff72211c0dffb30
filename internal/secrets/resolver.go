// Package secrets resolves scheme-tagged secret references against external
// stores: the process environment, pass, 1Password, Bitwarden Secrets
// Manager and AWS Secrets Manager.
package secrets

import (
	"context"
	"fmt"

	"github.com/majorcontext/ccs/internal/log"
)

// Backend resolves references for one scheme.
type Backend interface {
	// Scheme returns the scheme this backend handles.
	Scheme() Scheme

	// Resolve fetches the secret addressed by ref. Implementations make
	// exactly one external call and do not cache.
	Resolve(ctx context.Context, ref Reference) (Value, error)
}

// Resolver dispatches references to the backend for their scheme.
type Resolver struct {
	backends map[Scheme]Backend
}

// DefaultBackends returns the production backend for every scheme.
func DefaultBackends() []Backend {
	return []Backend{
		&EnvBackend{},
		&PassBackend{},
		&OnePasswordBackend{},
		&BitwardenBackend{},
		&AWSBackend{},
	}
}

// NewResolver creates a Resolver. With no arguments the default backends are
// used; otherwise only the given backends are registered.
func NewResolver(backends ...Backend) *Resolver {
	if len(backends) == 0 {
		backends = DefaultBackends()
	}
	r := &Resolver{backends: make(map[Scheme]Backend, len(backends))}
	for _, b := range backends {
		if !b.Scheme().Valid() {
			panic(fmt.Sprintf("secrets: backend registered for unsupported scheme %q", b.Scheme()))
		}
		r.backends[b.Scheme()] = b
	}
	return r
}

// Resolve fetches the value for ref.
func (r *Resolver) Resolve(ctx context.Context, ref Reference) (Resolved, error) {
	if err := ctx.Err(); err != nil {
		return Resolved{}, err
	}
	if !ref.Scheme.Valid() {
		return Resolved{}, malformed(ref.String(), string(ref.Scheme), "unsupported scheme "+string(ref.Scheme))
	}
	b, ok := r.backends[ref.Scheme]
	if !ok {
		return Resolved{}, &Error{
			Kind:      KindBackendUnavailable,
			Backend:   string(ref.Scheme),
			Reference: ref.String(),
			Reason:    "no backend configured for scheme",
		}
	}

	log.Debug("resolving secret", "scheme", ref.Scheme, "reference", ref.String())
	v, err := b.Resolve(ctx, ref)
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{Value: v, Scheme: ref.Scheme}, nil
}

// ResolveString parses s and resolves it.
func (r *Resolver) ResolveString(ctx context.Context, s string) (Resolved, error) {
	ref, err := ParseReference(s)
	if err != nil {
		return Resolved{}, err
	}
	return r.Resolve(ctx, ref)
}
