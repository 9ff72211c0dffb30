package secrets

// Error types for secret resolution failures. Every failure carries a Kind
// so callers can decide whether to drop a single plugin server or abort the
// run, plus a Fix hint for the user. Errors never include secret values.

import (
	"errors"
	"fmt"
)

// Kind classifies a resolution failure.
type Kind int

const (
	// KindBackendUnavailable means the backend tool or SDK could not be used.
	KindBackendUnavailable Kind = iota + 1
	// KindBackendAuthFailed means the backend refused the caller.
	KindBackendAuthFailed
	// KindSecretNotFound means the locator names nothing in the backend.
	KindSecretNotFound
	// KindMalformedReference means the reference could not be parsed.
	KindMalformedReference
)

func (k Kind) String() string {
	switch k {
	case KindBackendUnavailable:
		return "backend unavailable"
	case KindBackendAuthFailed:
		return "backend authentication failed"
	case KindSecretNotFound:
		return "secret not found"
	case KindMalformedReference:
		return "malformed reference"
	}
	return "unknown"
}

// Sentinels for errors.Is matching against an *Error's Kind.
var (
	ErrBackendUnavailable = errors.New("secret backend unavailable")
	ErrBackendAuthFailed  = errors.New("secret backend authentication failed")
	ErrSecretNotFound     = errors.New("secret not found")
	ErrMalformedReference = errors.New("malformed secret reference")
)

func (k Kind) sentinel() error {
	switch k {
	case KindBackendUnavailable:
		return ErrBackendUnavailable
	case KindBackendAuthFailed:
		return ErrBackendAuthFailed
	case KindSecretNotFound:
		return ErrSecretNotFound
	case KindMalformedReference:
		return ErrMalformedReference
	}
	return nil
}

// Error is a secret resolution failure.
type Error struct {
	Kind      Kind
	Backend   string
	Reference string
	Reason    string
	Fix       string
	// Err is the underlying backend error, if any.
	Err error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Backend != "" {
		msg = e.Backend + ": " + msg
	}
	if e.Reference != "" {
		msg += fmt.Sprintf(" (%s)", e.Reference)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Fix != "" {
		msg += "\n\n  " + e.Fix
	}
	return msg
}

// Is matches the Kind sentinels.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or 0 if err is not a resolution error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
