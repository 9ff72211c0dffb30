// Package container drives the container runtime CLI (podman or docker).
// Every invocation goes through the runtime binary so the argv shown by a
// dry run is exactly what the runtime receives.
package container

import (
	"errors"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/majorcontext/ccs/internal/log"
)

// Kind identifies the runtime CLI.
type Kind string

const (
	KindPodman Kind = "podman"
	KindDocker Kind = "docker"
)

// preferred lists runtimes in probe order. Podman runs rootless by default,
// so it wins when both are installed.
var preferred = []Kind{KindPodman, KindDocker}

// Runtime is a resolved runtime binary.
type Runtime struct {
	Kind Kind
	Path string
}

func (r Runtime) String() string {
	return string(r.Kind)
}

// Detect finds the runtime to use. A non-empty override (a runtime name or
// a path to its binary) is used as-is; otherwise podman then docker are
// probed on PATH.
func Detect(override string) (Runtime, error) {
	return detect(override, exec.LookPath)
}

func detect(override string, lookPath func(string) (string, error)) (Runtime, error) {
	if override != "" {
		path, err := lookPath(override)
		if err != nil {
			return Runtime{}, &RuntimeError{
				Runtime: override,
				Reason:  "configured runtime not found",
				Fix:     "Install " + override + " or change 'runtime' in the ccs config.",
				Err:     err,
			}
		}
		rt := Runtime{Kind: kindOf(override), Path: path}
		log.Debug("using configured runtime", "runtime", rt.Kind, "path", path)
		return rt, nil
	}

	var errs []error
	for _, k := range preferred {
		path, err := lookPath(string(k))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		log.Debug("detected runtime", "runtime", k, "path", path)
		return Runtime{Kind: k, Path: path}, nil
	}
	return Runtime{}, &RuntimeError{
		Reason: "no container runtime installed (looked for podman and docker)",
		Fix:    "Install podman (https://podman.io) or docker, then re-run.",
		Err:    errors.Join(errs...),
	}
}

// kindOf infers the runtime kind from a name or path. Anything that is not
// podman is driven with docker-compatible flags.
func kindOf(nameOrPath string) Kind {
	base := strings.TrimSuffix(filepath.Base(nameOrPath), ".exe")
	if strings.Contains(base, "podman") {
		return KindPodman
	}
	return KindDocker
}
