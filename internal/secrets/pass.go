package secrets

import (
	"context"
	"strings"
)

// PassBackend resolves pass://path/to/entry using the pass CLI.
type PassBackend struct {
	Exec Exec
}

// Scheme returns SchemePass.
func (b *PassBackend) Scheme() Scheme { return SchemePass }

// Resolve runs `pass show <path>` and returns the first line, which by pass
// convention holds the password.
func (b *PassBackend) Resolve(ctx context.Context, ref Reference) (Value, error) {
	x := execOrDefault(b.Exec)
	if _, err := x.LookPath("pass"); err != nil {
		return Value{}, &Error{
			Kind:      KindBackendUnavailable,
			Backend:   "pass",
			Reference: ref.String(),
			Reason:    "pass CLI not found in PATH",
			Fix:       "Install from https://www.passwordstore.org/",
		}
	}

	stdout, stderr, err := x.Output(ctx, "pass", "show", ref.Locator)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Value{}, ctxErr
		}
		return Value{}, parsePassError(stderr, ref)
	}

	first, _, _ := strings.Cut(string(stdout), "\n")
	return NewValue(strings.TrimRight(first, "\r")), nil
}

func parsePassError(stderr []byte, ref Reference) error {
	msg := strings.TrimSpace(string(stderr))
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "is not in the password store"):
		return &Error{
			Kind:      KindSecretNotFound,
			Backend:   "pass",
			Reference: ref.String(),
			Fix:       "List entries with: pass ls",
		}
	case strings.Contains(lower, "decryption failed"),
		strings.Contains(lower, "no secret key"),
		strings.Contains(lower, "inappropriate ioctl"),
		strings.Contains(lower, "operation cancelled"):
		return &Error{
			Kind:      KindBackendAuthFailed,
			Backend:   "pass",
			Reference: ref.String(),
			Reason:    "gpg could not decrypt the entry",
			Fix:       "Unlock your gpg key (for example: gpg-connect-agent reloadagent /bye) and retry.",
		}
	case strings.Contains(lower, "pass init"):
		return &Error{
			Kind:      KindBackendUnavailable,
			Backend:   "pass",
			Reference: ref.String(),
			Reason:    "password store is not initialized",
			Fix:       "Run: pass init <gpg-id>",
		}
	}
	return &Error{
		Kind:      KindBackendUnavailable,
		Backend:   "pass",
		Reference: ref.String(),
		Reason:    msg,
	}
}
