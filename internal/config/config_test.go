package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/majorcontext/ccs/internal/secrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("CCS_IMAGE", "")
	t.Setenv("CCS_RUNTIME", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "ccs:latest", cfg.Image)
	assert.Equal(t, "claude", cfg.User)
	assert.Equal(t, "/workspace", cfg.Workdir)
	assert.Equal(t, "../{repo_name}-worktrees", cfg.Worktree.BasePath)
	assert.True(t, cfg.Worktree.Auto)
	assert.True(t, cfg.EnvFile.Enabled)
	assert.Equal(t, ".env", cfg.EnvFile.Path)
}

func TestLoad_File(t *testing.T) {
	t.Setenv("CCS_IMAGE", "")
	t.Setenv("CCS_RUNTIME", "")
	path := writeConfig(t, `
image: ghcr.io/acme/agent:1.2
runtime: docker
worktree:
  base_path: ~/worktrees/{repo_name}
  auto: false
env_file:
  enabled: false
resources:
  memory: 8g
  cpus: "2.5"
volumes:
  - ~/.gitconfig:/home/claude/.gitconfig:ro
env:
  ZED: z
  ALPHA: op://Dev/App/key
extra_args: ["--network", "host"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ghcr.io/acme/agent:1.2", cfg.Image)
	assert.Equal(t, "docker", cfg.Runtime)
	assert.False(t, cfg.Worktree.Auto)
	assert.False(t, cfg.EnvFile.Enabled)
	assert.Equal(t, "8g", cfg.Resources.Memory)
	assert.Equal(t, "2.5", cfg.Resources.CPUs)
	assert.Equal(t, []string{"ALPHA", "ZED"}, cfg.EnvNames())
	assert.Equal(t, []string{"--network", "host"}, cfg.ExtraArgs)
	assert.Equal(t, path, cfg.Path())
	// Unset fields keep their defaults.
	assert.Equal(t, "claude", cfg.User)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CCS_IMAGE", "override:dev")
	t.Setenv("CCS_RUNTIME", "podman")

	cfg, err := Load(writeConfig(t, "image: from-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "override:dev", cfg.Image)
	assert.Equal(t, "podman", cfg.Runtime)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("CCS_IMAGE", "")
	t.Setenv("CCS_RUNTIME", "")

	tests := map[string]string{
		"bad yaml":      "image: [unclosed\n",
		"runtime":       "runtime: lxc\n",
		"workdir":       "workdir: relative\n",
		"memory":        "resources:\n  memory: lots\n",
		"cpus":          "resources:\n  cpus: \"-1\"\n",
		"volume":        "volumes: [\"nocolon\"]\n",
		"volume target": "volumes: [\"./a:relative\"]\n",
		"env name":      "env:\n  BAD-NAME: x\n",
		"empty image":   "image: \"\"\n",
		"env reference": "env:\n  TOKEN: \"env://\"\n",
		"op reference":  "env:\n  TOKEN: \"op://vault-only\"\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			require.Error(t, err)
			var cfgErr *Error
			assert.True(t, errors.As(err, &cfgErr), "want *config.Error, got %T", err)
		})
	}
}

func TestLoad_MalformedEnvReference(t *testing.T) {
	t.Setenv("CCS_IMAGE", "")
	t.Setenv("CCS_RUNTIME", "")

	_, err := Load(writeConfig(t, "env:\n  TOKEN: \"env://\"\n  PLAIN: hello\n"))
	var cfgErr *Error
	require.True(t, errors.As(err, &cfgErr), "want *config.Error, got %T", err)
	assert.Equal(t, "env.TOKEN", cfgErr.Field)

	var secErr *secrets.Error
	require.True(t, errors.As(err, &secErr))
	assert.Equal(t, secrets.KindMalformedReference, secErr.Kind)
}

func TestMCPPath(t *testing.T) {
	t.Setenv("CCS_IMAGE", "")
	t.Setenv("CCS_RUNTIME", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "mcp.yaml"), cfg.MCPPath())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "mcp.json"), []byte("{}"), 0o644))
	assert.Equal(t, filepath.Join(dir, "mcp.json"), cfg.MCPPath())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "mcp.yaml"), []byte("servers: {}"), 0o644))
	assert.Equal(t, filepath.Join(dir, "mcp.yaml"), cfg.MCPPath())
}

func TestDir(t *testing.T) {
	t.Setenv("CCS_HOME", "/tmp/ccs-home")
	assert.Equal(t, "/tmp/ccs-home", Dir())
	assert.Equal(t, "/tmp/ccs-home/config.yaml", DefaultPath())
}
