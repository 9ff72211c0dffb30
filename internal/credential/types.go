// Package credential discovers the agent's own authentication material on
// the host: an API key in the environment, Claude Code's OAuth credential
// file, the macOS keychain, or a legacy auth file.
package credential

import (
	"path/filepath"
	"time"

	"github.com/majorcontext/ccs/internal/secrets"
)

// Kind is the type of credential the agent receives.
type Kind string

const (
	KindAPIKey Kind = "api_key"
	KindOAuth  Kind = "oauth"
)

// Environment variable names the agent reads its credential from.
const (
	EnvAPIKey     = "ANTHROPIC_API_KEY"
	EnvOAuthToken = "CLAUDE_CODE_OAUTH_TOKEN"
)

// Source names where a credential was found, in probe order.
type Source string

const (
	SourceEnvironment     Source = "environment"
	SourceCredentialsFile Source = "credentials-file"
	SourceKeychain        Source = "keychain"
	SourceAuthFile        Source = "auth-file"
)

// Credential is the agent's authentication material.
type Credential struct {
	Kind   Kind
	Source Source
	Token  secrets.Value
	// Path is the file the token was read from, empty for environment and
	// keychain sources.
	Path      string
	ExpiresAt time.Time
}

// EnvVar returns the variable name the agent expects the token in.
func (c *Credential) EnvVar() string {
	if c.Kind == KindAPIKey {
		return EnvAPIKey
	}
	return EnvOAuthToken
}

// Dir returns the directory holding the credential file, or "" when the
// credential did not come from a file.
func (c *Credential) Dir() string {
	if c.Path == "" {
		return ""
	}
	return filepath.Dir(c.Path)
}

// Expired reports whether the credential carries an expiry in the past.
func (c *Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}
