package secrets

import (
	"context"
	"encoding/json"
	"strings"
)

// BitwardenBackend resolves bws://<secret-id> using the Bitwarden Secrets
// Manager CLI.
type BitwardenBackend struct {
	Exec Exec
}

// Scheme returns SchemeBitwarden.
func (b *BitwardenBackend) Scheme() Scheme { return SchemeBitwarden }

// Resolve runs `bws secret get <id> --output json` and returns the value
// field of the response.
func (b *BitwardenBackend) Resolve(ctx context.Context, ref Reference) (Value, error) {
	x := execOrDefault(b.Exec)
	if _, err := x.LookPath("bws"); err != nil {
		return Value{}, &Error{
			Kind:      KindBackendUnavailable,
			Backend:   "Bitwarden",
			Reference: ref.String(),
			Reason:    "bws CLI not found in PATH",
			Fix:       "Install from https://bitwarden.com/help/secrets-manager-cli/\nThen export BWS_ACCESS_TOKEN.",
		}
	}

	stdout, stderr, err := x.Output(ctx, "bws", "secret", "get", ref.Locator, "--output", "json")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Value{}, ctxErr
		}
		return Value{}, parseBwsError(stderr, ref)
	}

	var secret struct {
		Value *string `json:"value"`
	}
	if err := json.Unmarshal(stdout, &secret); err != nil || secret.Value == nil {
		// The raw output may contain the secret, so it is not included.
		return Value{}, &Error{
			Kind:      KindBackendUnavailable,
			Backend:   "Bitwarden",
			Reference: ref.String(),
			Reason:    "unexpected bws output (expected a JSON object with a value field)",
		}
	}
	return NewValue(*secret.Value), nil
}

func parseBwsError(stderr []byte, ref Reference) error {
	msg := strings.TrimSpace(string(stderr))
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "access token"), strings.Contains(lower, "unauthorized"),
		strings.Contains(lower, "401"), strings.Contains(lower, "forbidden"):
		return &Error{
			Kind:      KindBackendAuthFailed,
			Backend:   "Bitwarden",
			Reference: ref.String(),
			Reason:    "access token missing, expired or not permitted",
			Fix:       "Export a machine-account token: export BWS_ACCESS_TOKEN=...",
		}
	case strings.Contains(lower, "not found"), strings.Contains(lower, "404"),
		strings.Contains(lower, "invalid uuid"):
		return &Error{
			Kind:      KindSecretNotFound,
			Backend:   "Bitwarden",
			Reference: ref.String(),
			Fix:       "List secrets with: bws secret list",
		}
	}
	return &Error{
		Kind:      KindBackendUnavailable,
		Backend:   "Bitwarden",
		Reference: ref.String(),
		Reason:    msg,
	}
}
