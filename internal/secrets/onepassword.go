package secrets

import (
	"context"
	"strings"
)

// OnePasswordBackend resolves op://vault/item/field using the op CLI.
type OnePasswordBackend struct {
	Exec Exec
}

// Scheme returns SchemeOnePassword.
func (b *OnePasswordBackend) Scheme() Scheme { return SchemeOnePassword }

// Resolve fetches a secret using `op read`.
func (b *OnePasswordBackend) Resolve(ctx context.Context, ref Reference) (Value, error) {
	x := execOrDefault(b.Exec)
	if _, err := x.LookPath("op"); err != nil {
		return Value{}, &Error{
			Kind:      KindBackendUnavailable,
			Backend:   "1Password",
			Reference: ref.String(),
			Reason:    "op CLI not found in PATH",
			Fix:       "Install from https://1password.com/downloads/command-line/\nThen run: op signin",
		}
	}

	stdout, stderr, err := x.Output(ctx, "op", "read", "--no-newline", ref.String())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Value{}, ctxErr
		}
		return Value{}, parseOpError(stderr, ref)
	}

	return NewValue(strings.TrimRight(string(stdout), "\r\n")), nil
}

// parseOpError converts op CLI errors to resolution errors.
func parseOpError(stderr []byte, ref Reference) error {
	msg := string(stderr)

	// Not signed in or session expired
	if strings.Contains(msg, "not currently signed in") || strings.Contains(msg, "not signed in") ||
		strings.Contains(msg, "session expired") || strings.Contains(msg, "authorization") {
		return &Error{
			Kind:      KindBackendAuthFailed,
			Backend:   "1Password",
			Reference: ref.String(),
			Reason:    "not signed in",
			Fix:       "Run: eval $(op signin)\n\nOr for CI/automation, set OP_SERVICE_ACCOUNT_TOKEN.",
		}
	}

	// Item or field not found
	if strings.Contains(msg, "isn't an item") || strings.Contains(msg, "could not be found") ||
		strings.Contains(msg, "isn't a field") || strings.Contains(msg, "does not have a field") {
		return &Error{
			Kind:      KindSecretNotFound,
			Backend:   "1Password",
			Reference: ref.String(),
		}
	}

	// Vault not found
	if strings.Contains(msg, "isn't a vault") || (strings.Contains(msg, "vault") && strings.Contains(msg, "not found")) {
		vaultName, _, _ := strings.Cut(ref.Locator, "/")
		return &Error{
			Kind:      KindSecretNotFound,
			Backend:   "1Password",
			Reference: ref.String(),
			Reason:    "vault not found or not accessible",
			Fix:       "Vault \"" + vaultName + "\" not found.\n\nList available vaults with: op vault list",
		}
	}

	return &Error{
		Kind:      KindBackendUnavailable,
		Backend:   "1Password",
		Reference: ref.String(),
		Reason:    strings.TrimSpace(msg),
	}
}
