package run

import (
	"fmt"
	"strings"
	"time"

	"github.com/majorcontext/ccs/internal/session"
)

// ContainerName returns ccs-<repo>-<unix seconds mod 1e6>. Characters the
// runtimes reject in names are replaced with '-'.
func ContainerName(repoName string, now time.Time) string {
	return fmt.Sprintf("%s%s-%06d", session.ContainerPrefix, sanitizeName(repoName), now.Unix()%1000000)
}

func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	name := strings.Trim(b.String(), "-.")
	if name == "" {
		return "repo"
	}
	return name
}
