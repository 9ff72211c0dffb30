package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Mount is one entry of the volumes list.
type Mount struct {
	Source   string
	Target   string
	ReadOnly bool
}

// ParseMount parses "host:container[:ro|rw]". A leading ~ in the host path
// is expanded; relative host paths are left for the runtime to resolve.
func ParseMount(s string) (*Mount, error) {
	source, rest, ok := strings.Cut(s, ":")
	if !ok || source == "" {
		return nil, fmt.Errorf("invalid volume %q: want host:container[:ro]", s)
	}
	target, mode, _ := strings.Cut(rest, ":")
	if target == "" || strings.Contains(mode, ":") {
		return nil, fmt.Errorf("invalid volume %q: want host:container[:ro]", s)
	}

	m := &Mount{Source: expandHome(source), Target: target}
	switch mode {
	case "", "rw":
	case "ro":
		m.ReadOnly = true
	default:
		return nil, fmt.Errorf("invalid volume %q: unknown mode %q (ro or rw)", s, mode)
	}
	return m, nil
}

func expandHome(p string) string {
	rest, ok := strings.CutPrefix(p, "~")
	if !ok || (rest != "" && !strings.HasPrefix(rest, "/")) {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, rest)
}
