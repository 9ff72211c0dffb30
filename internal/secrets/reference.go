package secrets

import (
	"regexp"
	"strings"
)

// Scheme identifies the backend a reference is resolved against.
type Scheme string

// Supported schemes. The set is closed: references naming any other scheme
// are malformed.
const (
	SchemeEnv         Scheme = "env"
	SchemePass        Scheme = "pass"
	SchemeOnePassword Scheme = "op"
	SchemeBitwarden   Scheme = "bws"
	SchemeAWS         Scheme = "awssm"
)

// Schemes returns every supported scheme in dispatch order.
func Schemes() []Scheme {
	return []Scheme{SchemeEnv, SchemePass, SchemeOnePassword, SchemeBitwarden, SchemeAWS}
}

// Valid reports whether s is one of the supported schemes.
func (s Scheme) Valid() bool {
	switch s {
	case SchemeEnv, SchemePass, SchemeOnePassword, SchemeBitwarden, SchemeAWS:
		return true
	}
	return false
}

// Reference is an unresolved pointer into a secret backend,
// written as <scheme>://<locator>.
type Reference struct {
	Scheme  Scheme
	Locator string
}

func (r Reference) String() string {
	return string(r.Scheme) + "://" + r.Locator
}

var envNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// IsReference reports whether s is written with one of the supported scheme
// prefixes. Strings with any other prefix (for example https://) are literals.
func IsReference(s string) bool {
	scheme, _, ok := strings.Cut(s, "://")
	return ok && Scheme(scheme).Valid()
}

// ParseReference parses s into a Reference. It returns an *Error of kind
// KindMalformedReference when the scheme is missing or unknown, or when the
// locator does not fit the backend's addressing rules.
func ParseReference(s string) (Reference, error) {
	scheme, locator, ok := strings.Cut(s, "://")
	if !ok || scheme == "" {
		return Reference{}, malformed(s, "", "missing scheme (expected <scheme>://<locator>)")
	}
	ref := Reference{Scheme: Scheme(scheme), Locator: locator}
	if !ref.Scheme.Valid() {
		return Reference{}, malformed(s, scheme, "unsupported scheme "+scheme)
	}
	if locator == "" {
		return Reference{}, malformed(s, scheme, "empty locator")
	}

	switch ref.Scheme {
	case SchemeEnv:
		if !envNamePattern.MatchString(locator) {
			return Reference{}, malformed(s, scheme, "invalid environment variable name")
		}
	case SchemeOnePassword:
		parts := strings.Split(locator, "/")
		if len(parts) < 3 {
			return Reference{}, malformed(s, scheme, "expected op://vault/item/field")
		}
		for _, p := range parts {
			if p == "" {
				return Reference{}, malformed(s, scheme, "expected op://vault/item/field")
			}
		}
	case SchemeBitwarden:
		if strings.ContainsAny(locator, "/ ") {
			return Reference{}, malformed(s, scheme, "expected bws://<secret-id>")
		}
	case SchemePass:
		if strings.HasSuffix(locator, "/") {
			return Reference{}, malformed(s, scheme, "pass path names a directory")
		}
	case SchemeAWS:
		if _, _, _, err := parseAWSLocator(locator); err != nil {
			return Reference{}, malformed(s, scheme, err.Error())
		}
	}
	return ref, nil
}

func malformed(ref, backend, reason string) *Error {
	return &Error{
		Kind:      KindMalformedReference,
		Backend:   backend,
		Reference: ref,
		Reason:    reason,
	}
}
