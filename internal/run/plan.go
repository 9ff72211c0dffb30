// Package run turns a repository context, resolved plugin servers, the
// agent credential and user configuration into a launch plan, and executes
// that plan against the container runtime.
package run

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/majorcontext/ccs/internal/container"
	"github.com/majorcontext/ccs/internal/mcp"
	"github.com/majorcontext/ccs/internal/secrets"
)

const (
	// ContainerWorkspace is where the project root is mounted.
	ContainerWorkspace = "/workspace"
	// PluginConfigPath is where the plugin-server document is mounted
	// read-only inside the container.
	PluginConfigPath = "/run/ccs/mcp.json"
	// PluginConfigFlag points the agent at the plugin-server document.
	PluginConfigFlag = "--mcp-config"
	// SkipPermissionsFlag lets the agent run without interactive approval.
	// The container is the sandbox.
	SkipPermissionsFlag = "--dangerously-skip-permissions"
)

// Mount is a bind mount.
type Mount struct {
	Host      string
	Container string
	ReadOnly  bool
}

// Spec returns the host:container[:ro] form used by --volume.
func (m Mount) Spec() string {
	s := m.Host + ":" + m.Container
	if m.ReadOnly {
		s += ":ro"
	}
	return s
}

// EnvVar is an environment variable for the container. Only the name
// appears on the runtime command line; the value reaches the runtime
// through its own process environment.
type EnvVar struct {
	Name   string
	Value  secrets.Value
	Secret bool
}

// Limits are optional resource caps.
type Limits struct {
	Memory string
	CPUs   string
}

// Plan is a fully resolved launch. It is built fresh for every invocation.
type Plan struct {
	Runtime container.Runtime
	Name    string
	// RepoName and Workspace describe the project for the session record.
	RepoName  string
	Workspace string
	Mounts    []Mount
	Env       []EnvVar
	// EnvFile is a host path handed to the runtime with --env-file.
	EnvFile string
	Limits  Limits
	Workdir string
	User    string
	Image   string
	Detach  bool
	// TTY allocates a terminal for foreground runs.
	TTY     bool
	Plugins *mcp.Document
	// PluginFile is the host file the plugin document is written to just
	// before the runtime starts. It is mounted at PluginConfigPath.
	PluginFile string
	ExtraArgs  []string
	// Command follows the image: the skip-permissions flag and any
	// passthrough arguments.
	Command []string
}

// Args returns the exact argument vector for the runtime binary.
func (p *Plan) Args() []string {
	args := []string{"run", "--name", p.Name}
	if p.Detach {
		args = append(args, "-d")
	} else {
		args = append(args, "--rm")
		if p.TTY {
			args = append(args, "-it")
		} else {
			args = append(args, "-i")
		}
	}
	if p.Limits.Memory != "" {
		args = append(args, "--memory", p.Limits.Memory)
	}
	if p.Limits.CPUs != "" {
		args = append(args, "--cpus", p.Limits.CPUs)
	}
	if p.EnvFile != "" {
		args = append(args, "--env-file", p.EnvFile)
	}
	for _, m := range p.Mounts {
		args = append(args, "--volume", m.Spec())
	}
	for _, e := range p.Env {
		args = append(args, "--env", e.Name)
	}
	args = append(args, "--workdir", p.Workdir)
	if p.User != "" {
		args = append(args, "--user", p.User)
	}
	args = append(args, p.ExtraArgs...)
	args = append(args, p.Image)
	args = append(args, p.Command...)
	return args
}

// Environ returns base extended with the plan's variables. It is the
// environment of the runtime process, never printed.
func (p *Plan) Environ(base []string) []string {
	env := make([]string, 0, len(base)+len(p.Env))
	env = append(env, base...)
	for _, e := range p.Env {
		env = append(env, e.Name+"="+e.Value.Reveal())
	}
	return env
}

// WritePluginFile writes the plugin document to PluginFile with mode 0600.
// It is a no-op for plans without plugin servers.
func (p *Plan) WritePluginFile() error {
	if p.Plugins.Empty() || p.PluginFile == "" {
		return nil
	}
	doc, err := json.Marshal(p.Plugins)
	if err != nil {
		return fmt.Errorf("serializing plugin servers: %w", err)
	}
	dir := filepath.Dir(p.PluginFile)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating plugin directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".mcp-*.json")
	if err != nil {
		return fmt.Errorf("writing plugin servers: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		return fmt.Errorf("writing plugin servers: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing plugin servers: %w", err)
	}
	if err := os.Rename(tmp.Name(), p.PluginFile); err != nil {
		return fmt.Errorf("writing plugin servers: %w", err)
	}
	return nil
}

// PluginDir is the per-user directory plugin documents are written to. It
// lives under $XDG_RUNTIME_DIR when set so the files stay off persistent
// disk.
func PluginDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "ccs")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("ccs-%d", os.Getuid()))
}

// PluginFileFor returns the plugin document path for a container name.
func PluginFileFor(dir, containerName string) string {
	return filepath.Join(dir, containerName+"-mcp.json")
}

// RemovePluginFile deletes the plugin document of a container, if any.
func RemovePluginFile(dir, containerName string) error {
	err := os.Remove(PluginFileFor(dir, containerName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
