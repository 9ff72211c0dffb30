package credential

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// errKeychainUnsupported marks the keychain probe as skipped.
var errKeychainUnsupported = errors.New("keychain lookup only supported on macOS")

// keychainGet reads the Claude Code keychain entry for user.
func keychainGet(service, user string) (string, error) {
	secret, err := keyring.Get(service, user)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("no %q keychain entry for %s", service, user)
	}
	return secret, err
}

// credentialFromKeychain accepts either the JSON document Claude Code
// stores or a bare token.
func credentialFromKeychain(payload string) (*Credential, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, errors.New("empty keychain entry")
	}
	if strings.HasPrefix(payload, "{") {
		token, err := parseClaudeOAuth([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("keychain entry: %w", err)
		}
		return oauthCredential(SourceKeychain, token, ""), nil
	}
	return &Credential{
		Kind:   KindOAuth,
		Source: SourceKeychain,
		Token:  newToken(payload),
	}, nil
}
