package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/majorcontext/ccs/internal/log"
	"github.com/majorcontext/ccs/internal/secrets"
)

// SecretResolver resolves a parsed secret reference.
type SecretResolver interface {
	Resolve(ctx context.Context, ref secrets.Reference) (secrets.Resolved, error)
}

// Failure records one environment variable that could not be resolved.
type Failure struct {
	Server   string
	Variable string
	Err      error
}

// Report lists every resolution failure from one assembly.
type Report struct {
	Failures []Failure
}

// Err returns the report as an error when any server failed.
func (r *Report) Err() error {
	if r == nil || len(r.Failures) == 0 {
		return nil
	}
	return r
}

// Error lists each failing server and variable.
func (r *Report) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "plugin server configuration failed (%d unresolved)", len(r.Failures))
	for _, f := range r.Failures {
		fmt.Fprintf(&b, "\n  %s: %s: %v", f.Server, f.Variable, f.Err)
	}
	return b.String()
}

// Failed reports whether server had any unresolved variable.
func (r *Report) Failed(server string) bool {
	for _, f := range r.Failures {
		if f.Server == server {
			return true
		}
	}
	return false
}

// Assemble resolves every server's environment and builds the document.
// Servers with any failing variable are left out of the document; all
// failures are collected in the report rather than stopping at the first.
func Assemble(ctx context.Context, resolver SecretResolver, servers []Server) (*Document, *Report) {
	doc := &Document{}
	report := &Report{}

	for _, s := range servers {
		fields := strings.Fields(s.Command)
		if len(fields) == 0 {
			report.Failures = append(report.Failures, Failure{
				Server: s.Name,
				Err:    errors.New("empty command"),
			})
			continue
		}

		resolved := ResolvedServer{
			Name:    s.Name,
			Command: fields[0],
			Args:    append(append([]string{}, fields[1:]...), s.Args...),
		}
		failed := false
		for _, e := range s.Env {
			v, secret, err := resolveValue(ctx, resolver, e.Value)
			if err != nil {
				failed = true
				report.Failures = append(report.Failures, Failure{Server: s.Name, Variable: e.Name, Err: err})
				continue
			}
			resolved.Env = append(resolved.Env, ResolvedEnv{Name: e.Name, Value: v, Secret: secret})
		}
		if failed {
			log.Debug("excluding plugin server", "server", s.Name)
			continue
		}
		doc.Servers = append(doc.Servers, resolved)
	}

	log.Debug("assembled plugin servers", "servers", len(doc.Servers), "failures", len(report.Failures))
	return doc, report
}

func resolveValue(ctx context.Context, resolver SecretResolver, raw string) (secrets.Value, bool, error) {
	if !secrets.IsReference(raw) {
		return secrets.NewValue(raw), false, nil
	}
	ref, err := secrets.ParseReference(raw)
	if err != nil {
		return secrets.Value{}, true, err
	}
	res, err := resolver.Resolve(ctx, ref)
	if err != nil {
		return secrets.Value{}, true, err
	}
	return res.Value, true, nil
}
