package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	// ClaudeCodeKeychainService is the macOS Keychain service name for Claude Code credentials.
	ClaudeCodeKeychainService = "Claude Code-credentials"

	// ClaudeCredentialsFile is the path to Claude Code's OAuth credentials, relative to $HOME.
	ClaudeCredentialsFile = ".claude/.credentials.json"

	// LegacyAuthFile is the path to the older auth file, relative to $HOME.
	LegacyAuthFile = ".config/claude/auth.json"

	// LegacyCodeAuthFile is the older auth file written by the claude-code
	// package, tried after LegacyAuthFile.
	LegacyCodeAuthFile = ".config/claude-code/auth.json"
)

// ClaudeOAuthCredentials represents the OAuth credentials stored by Claude Code.
type ClaudeOAuthCredentials struct {
	ClaudeAiOauth *ClaudeOAuthToken `json:"claudeAiOauth,omitempty"`
}

// ClaudeOAuthToken represents an individual OAuth token from Claude Code.
type ClaudeOAuthToken struct {
	AccessToken      string   `json:"accessToken"`
	RefreshToken     string   `json:"refreshToken"`
	ExpiresAt        int64    `json:"expiresAt"` // Unix timestamp in milliseconds
	Scopes           []string `json:"scopes"`
	SubscriptionType string   `json:"subscriptionType,omitempty"`
}

// ExpiresAtTime returns the expiration time, or the zero time if unset.
func (t *ClaudeOAuthToken) ExpiresAtTime() time.Time {
	if t.ExpiresAt <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(t.ExpiresAt)
}

// legacyAuth is the shape of LegacyAuthFile.
type legacyAuth struct {
	AccessToken string `json:"access_token"`
}

// parseClaudeOAuth extracts the OAuth token from a credentials document.
func parseClaudeOAuth(data []byte) (*ClaudeOAuthToken, error) {
	var creds ClaudeOAuthCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	if creds.ClaudeAiOauth == nil || creds.ClaudeAiOauth.AccessToken == "" {
		return nil, errors.New("no OAuth access token present")
	}
	return creds.ClaudeAiOauth, nil
}

func readClaudeCredentialsFile(path string) (*Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	token, err := parseClaudeOAuth(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return oauthCredential(SourceCredentialsFile, token, path), nil
}

func readLegacyAuthFile(path string) (*Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var auth legacyAuth
	if err := json.Unmarshal(data, &auth); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if strings.TrimSpace(auth.AccessToken) == "" {
		return nil, fmt.Errorf("%s: no access_token present", path)
	}
	return &Credential{
		Kind:   KindOAuth,
		Source: SourceAuthFile,
		Token:  newToken(auth.AccessToken),
		Path:   path,
	}, nil
}

func oauthCredential(source Source, token *ClaudeOAuthToken, path string) *Credential {
	return &Credential{
		Kind:      KindOAuth,
		Source:    source,
		Token:     newToken(token.AccessToken),
		Path:      path,
		ExpiresAt: token.ExpiresAtTime(),
	}
}
