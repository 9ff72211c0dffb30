package secrets

import (
	"context"
	"errors"
	"testing"
)

type countingBackend struct {
	scheme Scheme
	values map[string]string
	calls  int
}

func (b *countingBackend) Scheme() Scheme { return b.scheme }

func (b *countingBackend) Resolve(ctx context.Context, ref Reference) (Value, error) {
	b.calls++
	if v, ok := b.values[ref.Locator]; ok {
		return NewValue(v), nil
	}
	return Value{}, &Error{Kind: KindSecretNotFound, Reference: ref.String()}
}

func TestResolver_Dispatches(t *testing.T) {
	env := &countingBackend{scheme: SchemeEnv, values: map[string]string{"TOKEN": "t-1"}}
	op := &countingBackend{scheme: SchemeOnePassword, values: map[string]string{"Dev/App/key": "k-1"}}
	r := NewResolver(env, op)

	got, err := r.ResolveString(context.Background(), "op://Dev/App/key")
	if err != nil {
		t.Fatal(err)
	}
	if got.Value.Reveal() != "k-1" || got.Scheme != SchemeOnePassword {
		t.Errorf("got %q from %s", got.Value.Reveal(), got.Scheme)
	}
	if env.calls != 0 || op.calls != 1 {
		t.Errorf("calls env=%d op=%d, want 0 and 1", env.calls, op.calls)
	}
}

func TestResolver_Idempotent(t *testing.T) {
	b := &countingBackend{scheme: SchemeEnv, values: map[string]string{"TOKEN": "t-1"}}
	r := NewResolver(b)
	ref := Reference{Scheme: SchemeEnv, Locator: "TOKEN"}

	first, err := r.Resolve(context.Background(), ref)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Resolve(context.Background(), ref)
	if err != nil {
		t.Fatal(err)
	}
	if first.Value.Reveal() != second.Value.Reveal() {
		t.Errorf("values differ between resolutions")
	}
	if b.calls != 2 {
		t.Errorf("backend calls = %d, want 2 (no caching)", b.calls)
	}
}

func TestResolver_MissingBackend(t *testing.T) {
	r := NewResolver(&countingBackend{scheme: SchemeEnv})

	_, err := r.ResolveString(context.Background(), "bws://abc")
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("error = %v, want backend unavailable", err)
	}

	_, err = r.Resolve(context.Background(), Reference{Scheme: "vault", Locator: "x"})
	if KindOf(err) != KindMalformedReference {
		t.Errorf("KindOf = %v, want malformed reference", KindOf(err))
	}
}

func TestResolver_CanceledContext(t *testing.T) {
	r := NewResolver(&countingBackend{scheme: SchemeEnv})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.ResolveString(ctx, "env://X"); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestDefaultBackends_CoverEveryScheme(t *testing.T) {
	seen := map[Scheme]bool{}
	for _, b := range DefaultBackends() {
		seen[b.Scheme()] = true
	}
	for _, s := range Schemes() {
		if !seen[s] {
			t.Errorf("no default backend for %s", s)
		}
	}
}
