// Package config loads ccs settings from ~/.ccs/config.yaml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/majorcontext/ccs/internal/secrets"
	"gopkg.in/yaml.v3"
)

// Config holds user settings.
type Config struct {
	// Image is the container image the agent runs in.
	Image string `yaml:"image"`
	// Runtime forces "podman" or "docker". Empty means autodetect.
	Runtime string `yaml:"runtime,omitempty"`
	// User is the account inside the container.
	User string `yaml:"user"`
	// Workdir is the working directory inside the container.
	Workdir string `yaml:"workdir"`

	Worktree  WorktreeConfig `yaml:"worktree"`
	EnvFile   EnvFileConfig  `yaml:"env_file"`
	Resources ResourceConfig `yaml:"resources,omitempty"`

	// Volumes are extra host:container[:ro] mounts, mounted after the
	// project, git and credential mounts.
	Volumes []string `yaml:"volumes,omitempty"`
	// Env is extra container environment. Values may be secret references.
	Env map[string]string `yaml:"env,omitempty"`
	// ExtraArgs are passed to the runtime's run command before the image.
	ExtraArgs []string `yaml:"extra_args,omitempty"`

	// MCPFile is the plugin-server definition file. Empty means
	// mcp.yaml (or mcp.json) next to the config file.
	MCPFile string `yaml:"mcp_file,omitempty"`

	Debug DebugConfig `yaml:"debug"`

	path string
}

// WorktreeConfig configures worktree provisioning.
type WorktreeConfig struct {
	// BasePath is the directory template for new worktrees. {repo_name}
	// is replaced with the repository name; relative paths resolve
	// against the repository root.
	BasePath string `yaml:"base_path"`
	// Auto creates a worktree with a generated branch when no branch is
	// requested. --here disables it per run.
	Auto bool `yaml:"auto"`
}

// EnvFileConfig controls passing the project's .env file to the runtime.
type EnvFileConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ResourceConfig holds optional container limits.
type ResourceConfig struct {
	Memory string `yaml:"memory,omitempty"` // e.g. "8g"
	CPUs   string `yaml:"cpus,omitempty"`   // e.g. "4" or "1.5"
}

// DebugConfig holds debug logging settings.
type DebugConfig struct {
	RetentionDays int `yaml:"retention_days"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Image:   "ccs:latest",
		User:    "claude",
		Workdir: "/workspace",
		Worktree: WorktreeConfig{
			BasePath: "../{repo_name}-worktrees",
			Auto:     true,
		},
		EnvFile: EnvFileConfig{
			Enabled: true,
			Path:    ".env",
		},
		Debug: DebugConfig{
			RetentionDays: 14,
		},
	}
}

// Error is a malformed configuration.
type Error struct {
	Path  string
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("invalid configuration")
	if e.Path != "" {
		b.WriteString(" in " + e.Path)
	}
	if e.Field != "" {
		b.WriteString(": " + e.Field)
	}
	if e.Msg != "" {
		b.WriteString(": " + e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Dir returns the ccs home directory: $CCS_HOME, else ~/.ccs.
func Dir() string {
	if dir := os.Getenv("CCS_HOME"); dir != "" {
		return dir
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".ccs")
	}
	return filepath.Join(homeDir, ".ccs")
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Load reads the config file at path (DefaultPath when empty), applies
// environment overrides and validates the result. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, &Error{Path: path, Msg: "reading file", Err: err}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &Error{Path: path, Msg: "parsing YAML", Err: err}
		}
	}

	if v := os.Getenv("CCS_IMAGE"); v != "" {
		cfg.Image = v
	}
	if v := os.Getenv("CCS_RUNTIME"); v != "" {
		cfg.Runtime = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// MCPPath returns the plugin-server definition file, preferring mcp.yaml
// over mcp.json when neither is configured explicitly.
func (c *Config) MCPPath() string {
	if c.MCPFile != "" {
		return expandHome(c.MCPFile)
	}
	dir := filepath.Dir(c.path)
	if dir == "" || dir == "." {
		dir = Dir()
	}
	yamlPath := filepath.Join(dir, "mcp.yaml")
	if fileExists(yamlPath) {
		return yamlPath
	}
	if jsonPath := filepath.Join(dir, "mcp.json"); fileExists(jsonPath) {
		return jsonPath
	}
	return yamlPath
}

// EnvNames returns the keys of Env in sorted order.
func (c *Config) EnvNames() []string {
	names := make([]string, 0, len(c.Env))
	for k := range c.Env {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

var (
	envNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	memoryPattern  = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?[bkmgBKMG]?$`)
)

// Validate checks the configuration for values the runtime would reject.
func (c *Config) Validate() error {
	fail := func(field, msg string) error {
		return &Error{Path: c.path, Field: field, Msg: msg}
	}

	if strings.TrimSpace(c.Image) == "" {
		return fail("image", "must not be empty")
	}
	switch c.Runtime {
	case "", "podman", "docker":
	default:
		return fail("runtime", fmt.Sprintf("unknown runtime %q (expected podman or docker)", c.Runtime))
	}
	if !strings.HasPrefix(c.Workdir, "/") {
		return fail("workdir", "must be an absolute container path")
	}
	if strings.TrimSpace(c.Worktree.BasePath) == "" {
		return fail("worktree.base_path", "must not be empty")
	}
	if c.EnvFile.Enabled && strings.TrimSpace(c.EnvFile.Path) == "" {
		return fail("env_file.path", "must not be empty when env_file is enabled")
	}
	if m := c.Resources.Memory; m != "" && !memoryPattern.MatchString(m) {
		return fail("resources.memory", fmt.Sprintf("invalid size %q (examples: 512m, 8g)", m))
	}
	if cpus := c.Resources.CPUs; cpus != "" {
		if n, err := strconv.ParseFloat(cpus, 64); err != nil || n <= 0 {
			return fail("resources.cpus", fmt.Sprintf("invalid CPU count %q", cpus))
		}
	}
	for i, v := range c.Volumes {
		m, err := ParseMount(v)
		if err != nil {
			return &Error{Path: c.path, Field: fmt.Sprintf("volumes[%d]", i), Err: err}
		}
		if !strings.HasPrefix(m.Target, "/") {
			return fail(fmt.Sprintf("volumes[%d]", i), "container path must be absolute")
		}
	}
	for _, name := range c.EnvNames() {
		if !envNamePattern.MatchString(name) {
			return fail("env", fmt.Sprintf("invalid variable name %q", name))
		}
		if v := c.Env[name]; secrets.IsReference(v) {
			if _, err := secrets.ParseReference(v); err != nil {
				return &Error{Path: c.path, Field: "env." + name, Err: err}
			}
		}
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
