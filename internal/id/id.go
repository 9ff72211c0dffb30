// Package id generates short random identifiers for sessions, branches and
// containers.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

// Hex returns n random bytes encoded as 2n lowercase hex characters.
func Hex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// Fallback to the clock if crypto/rand fails (extremely unlikely)
		ts := strconv.FormatInt(time.Now().UnixNano(), 16)
		for len(ts) < 2*n {
			ts = "0" + ts
		}
		return ts[len(ts)-2*n:]
	}
	return hex.EncodeToString(b)
}

// Generate creates a unique identifier with the given prefix.
// Format: <prefix>_<8 hex chars> (e.g., "ses_abc12345").
func Generate(prefix string) string {
	return prefix + "_" + Hex(4)
}
