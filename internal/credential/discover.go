package credential

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/majorcontext/ccs/internal/log"
	"github.com/majorcontext/ccs/internal/secrets"
)

// Discoverer probes credential sources in fixed priority order. The zero
// value is not usable; call NewDiscoverer.
type Discoverer struct {
	Home     string
	Username string
	GOOS     string
	Getenv   func(string) string
	// Keychain reads a generic password entry. Defaults to go-keyring.
	Keychain func(service, user string) (string, error)
	Now      func() time.Time
}

// NewDiscoverer returns a Discoverer wired to the real host.
func NewDiscoverer() *Discoverer {
	home, _ := os.UserHomeDir()
	username := os.Getenv("USER")
	if u, err := user.Current(); err == nil {
		username = u.Username
	}
	return &Discoverer{
		Home:     home,
		Username: username,
		GOOS:     runtime.GOOS,
		Getenv:   os.Getenv,
		Keychain: keychainGet,
		Now:      time.Now,
	}
}

// Attempt records why one source did not yield a credential.
type Attempt struct {
	Source Source
	Err    error
}

// ExhaustedError is returned when no source produced a credential.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	var b strings.Builder
	b.WriteString("no agent credentials found")
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "\n  %s: %v", a.Source, a.Err)
	}
	b.WriteString("\n\n  Log in by running 'claude' on the host, or export " + EnvAPIKey + ".")
	return b.String()
}

type probe struct {
	source Source
	fn     func() (*Credential, error)
}

func (d *Discoverer) probes() []probe {
	return []probe{
		{SourceEnvironment, d.fromEnv},
		{SourceCredentialsFile, func() (*Credential, error) {
			return readClaudeCredentialsFile(filepath.Join(d.Home, ClaudeCredentialsFile))
		}},
		{SourceKeychain, d.fromKeychain},
		{SourceAuthFile, d.fromAuthFiles},
	}
}

// Discover returns the credential from the first source that yields one.
// Per-source failures are swallowed; only when every source fails is an
// *ExhaustedError returned.
func (d *Discoverer) Discover(ctx context.Context) (*Credential, error) {
	var attempts []Attempt
	for _, p := range d.probes() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cred, err := p.fn()
		if err != nil {
			log.Debug("credential source unavailable", "source", p.source, "error", err)
			attempts = append(attempts, Attempt{Source: p.source, Err: err})
			continue
		}
		now := time.Now
		if d.Now != nil {
			now = d.Now
		}
		if cred.Expired(now()) {
			log.Warn("agent OAuth token has expired; the agent may need to log in again",
				"source", cred.Source, "expires_at", cred.ExpiresAt)
		}
		log.Debug("found agent credential", "source", cred.Source, "kind", cred.Kind)
		return cred, nil
	}
	return nil, &ExhaustedError{Attempts: attempts}
}

func (d *Discoverer) fromEnv() (*Credential, error) {
	getenv := d.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	key := strings.TrimSpace(getenv(EnvAPIKey))
	if key == "" {
		return nil, fmt.Errorf("%s not set", EnvAPIKey)
	}
	return &Credential{
		Kind:   KindAPIKey,
		Source: SourceEnvironment,
		Token:  secrets.NewValue(key),
	}, nil
}

// fromAuthFiles tries each legacy auth file in order. When none yields a
// token the error names every path tried.
func (d *Discoverer) fromAuthFiles() (*Credential, error) {
	var errs []error
	for _, rel := range []string{LegacyAuthFile, LegacyCodeAuthFile} {
		cred, err := readLegacyAuthFile(filepath.Join(d.Home, rel))
		if err == nil {
			return cred, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}

func (d *Discoverer) fromKeychain() (*Credential, error) {
	if d.GOOS != "darwin" {
		return nil, errKeychainUnsupported
	}
	if d.Keychain == nil {
		return nil, errors.New("no keychain reader configured")
	}
	payload, err := d.Keychain(ClaudeCodeKeychainService, d.Username)
	if err != nil {
		return nil, err
	}
	return credentialFromKeychain(payload)
}

func newToken(s string) secrets.Value {
	return secrets.NewValue(strings.TrimSpace(s))
}
