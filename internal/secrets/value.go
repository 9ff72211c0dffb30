package secrets

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
)

// Mask is the fixed-width placeholder printed in place of every secret.
const Mask = "********"

// Value holds a resolved secret. Every formatting path (fmt verbs, slog,
// JSON) renders Mask; only Reveal returns the plaintext.
type Value struct {
	s string
}

// NewValue wraps a plaintext secret.
func NewValue(s string) Value {
	return Value{s: s}
}

// Reveal returns the plaintext.
func (v Value) Reveal() string {
	return v.s
}

func (v Value) String() string   { return Mask }
func (v Value) GoString() string { return Mask }

// Format implements fmt.Formatter so that %x, %q and friends cannot bypass
// String.
func (v Value) Format(f fmt.State, _ rune) {
	_, _ = io.WriteString(f, Mask)
}

// LogValue implements slog.LogValuer.
func (v Value) LogValue() slog.Value {
	return slog.StringValue(Mask)
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(Mask)
}

// Resolved is the outcome of resolving a Reference.
type Resolved struct {
	Value  Value
	Scheme Scheme
}
