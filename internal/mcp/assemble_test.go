package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/majorcontext/ccs/internal/secrets"
)

func envResolver(vars map[string]string) *secrets.Resolver {
	return secrets.NewResolver(&secrets.EnvBackend{
		LookupEnv: func(name string) (string, bool) {
			v, ok := vars[name]
			return v, ok
		},
	})
}

func TestAssemble_PartialFailure(t *testing.T) {
	servers := []Server{
		{Name: "broken", Command: "npx broken-server", Env: []EnvVar{{Name: "TOKEN", Value: "env://MISSING_VAR"}}},
		{Name: "plain", Command: "plain-server --stdio", Env: []EnvVar{{Name: "MODE", Value: "readonly"}}},
	}

	doc, report := Assemble(context.Background(), envResolver(nil), servers)

	require.Len(t, report.Failures, 1)
	f := report.Failures[0]
	assert.Equal(t, "broken", f.Server)
	assert.Equal(t, "TOKEN", f.Variable)
	assert.True(t, errors.Is(f.Err, secrets.ErrSecretNotFound))
	assert.Equal(t, secrets.KindSecretNotFound, secrets.KindOf(f.Err))
	assert.True(t, report.Failed("broken"))
	assert.False(t, report.Failed("plain"))
	require.Error(t, report.Err())
	assert.Contains(t, report.Err().Error(), "broken: TOKEN")

	require.Len(t, doc.Servers, 1)
	got := doc.Servers[0]
	assert.Equal(t, "plain", got.Name)
	assert.Equal(t, "plain-server", got.Command)
	assert.Equal(t, []string{"--stdio"}, got.Args)
	require.Len(t, got.Env, 1)
	assert.Equal(t, "readonly", got.Env[0].Value.Reveal())
	assert.False(t, got.Env[0].Secret)
}

func TestAssemble_CollectsAllFailures(t *testing.T) {
	servers := []Server{
		{Name: "a", Command: "a", Env: []EnvVar{
			{Name: "ONE", Value: "env://NOPE_ONE"},
			{Name: "TWO", Value: "op://only-two-parts/x"},
		}},
		{Name: "b", Command: "b", Env: []EnvVar{{Name: "THREE", Value: "env://NOPE_THREE"}}},
	}
	doc, report := Assemble(context.Background(), envResolver(nil), servers)

	assert.True(t, doc.Empty())
	require.Len(t, report.Failures, 3)
	assert.Equal(t, secrets.KindMalformedReference, secrets.KindOf(report.Failures[1].Err))
	assert.Equal(t, "b", report.Failures[2].Server)
}

func TestAssemble_TokenizesCommand(t *testing.T) {
	servers := []Server{{
		Name:    "fs",
		Command: "  npx   -y @modelcontextprotocol/server-filesystem ",
		Args:    []string{"/workspace", "path with spaces"},
	}}
	doc, report := Assemble(context.Background(), envResolver(nil), servers)
	require.NoError(t, report.Err())
	require.Len(t, doc.Servers, 1)
	assert.Equal(t, "npx", doc.Servers[0].Command)
	assert.Equal(t, []string{"-y", "@modelcontextprotocol/server-filesystem", "/workspace", "path with spaces"}, doc.Servers[0].Args)
}

func TestAssemble_LiteralWithOtherScheme(t *testing.T) {
	servers := []Server{{Name: "web", Command: "web", Env: []EnvVar{{Name: "URL", Value: "https://example.com"}}}}
	doc, report := Assemble(context.Background(), envResolver(nil), servers)
	require.NoError(t, report.Err())
	assert.Equal(t, "https://example.com", doc.Servers[0].Env[0].Value.Reveal())
}

func TestDocument_JSONOrderAndRedaction(t *testing.T) {
	const secret = "ghp_supersecretvalue"
	servers := []Server{
		{Name: "zeta", Command: "zeta-server", Env: []EnvVar{
			{Name: "Z_TOKEN", Value: "env://GH_TOKEN"},
			{Name: "A_MODE", Value: "fast"},
		}},
		{Name: "alpha", Command: "alpha-server"},
	}
	doc, report := Assemble(context.Background(), envResolver(map[string]string{"GH_TOKEN": secret}), servers)
	require.NoError(t, report.Err())
	assert.Equal(t, []string{"zeta", "alpha"}, doc.Names())

	payload, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Equal(t,
		`{"mcpServers":{"zeta":{"command":"zeta-server","env":{"Z_TOKEN":"`+secret+`","A_MODE":"fast"}},"alpha":{"command":"alpha-server"}}}`,
		string(payload))

	preview, err := doc.Redacted()
	require.NoError(t, err)
	assert.NotContains(t, string(preview), secret)
	for i := 4; i <= len(secret); i++ {
		assert.False(t, strings.Contains(string(preview), secret[:i]), "preview leaks prefix %q", secret[:i])
	}
	assert.Contains(t, string(preview), secrets.Mask)
	assert.Contains(t, string(preview), `"A_MODE": "fast"`)
}

func TestDocument_Empty(t *testing.T) {
	var doc *Document
	assert.True(t, doc.Empty())
	out, err := (&Document{}).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"mcpServers":{}}`, string(out))
}
