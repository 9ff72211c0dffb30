package secrets

import (
	"context"
	"os"
)

// EnvBackend resolves env://NAME from the process environment.
type EnvBackend struct {
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Scheme returns SchemeEnv.
func (b *EnvBackend) Scheme() Scheme { return SchemeEnv }

// Resolve looks up the variable named by the locator. An unset variable is
// SecretNotFound; a set but empty variable resolves to the empty string.
func (b *EnvBackend) Resolve(ctx context.Context, ref Reference) (Value, error) {
	lookup := b.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, ok := lookup(ref.Locator)
	if !ok {
		return Value{}, &Error{
			Kind:      KindSecretNotFound,
			Backend:   "environment",
			Reference: ref.String(),
			Reason:    ref.Locator + " is not set",
			Fix:       "Export it before running: export " + ref.Locator + "=...",
		}
	}
	return NewValue(v), nil
}
