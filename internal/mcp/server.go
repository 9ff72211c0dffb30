// Package mcp assembles the plugin-server (MCP) configuration handed to the
// agent: server definitions are loaded in declaration order and every
// secret reference in their environment is resolved.
package mcp

import (
	"bytes"
	"encoding/json"

	"github.com/majorcontext/ccs/internal/secrets"
)

// EnvVar is a declared environment entry. Value is either a literal or a
// secret reference such as op://Dev/GitHub/token.
type EnvVar struct {
	Name  string
	Value string
}

// Server is a plugin server as declared by the user.
type Server struct {
	Name string
	// Command is split on whitespace; the first field is the executable.
	// Quoting is not interpreted, so arguments containing spaces belong in
	// Args.
	Command string
	Args    []string
	Env     []EnvVar
}

// ResolvedEnv is an environment entry with its final value. Secret marks
// values that came from a secret reference.
type ResolvedEnv struct {
	Name   string
	Value  secrets.Value
	Secret bool
}

// ResolvedServer is a server ready to serialize for the agent.
type ResolvedServer struct {
	Name    string
	Command string
	Args    []string
	Env     []ResolvedEnv
}

// Document is the resolved server set, in declaration order.
type Document struct {
	Servers []ResolvedServer
}

// Names returns the server names in order.
func (d *Document) Names() []string {
	names := make([]string, len(d.Servers))
	for i, s := range d.Servers {
		names[i] = s.Name
	}
	return names
}

// Empty reports whether the document has no servers.
func (d *Document) Empty() bool {
	return d == nil || len(d.Servers) == 0
}

// MarshalJSON renders the agent payload {"mcpServers": {...}} with every
// value in plaintext.
func (d *Document) MarshalJSON() ([]byte, error) {
	return d.render(true)
}

// Redacted renders the same document with every secret-derived value
// replaced by secrets.Mask, indented for display.
func (d *Document) Redacted() ([]byte, error) {
	out, err := d.render(false)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, out, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type serverJSON struct {
	Command string     `json:"command"`
	Args    []string   `json:"args,omitempty"`
	Env     orderedEnv `json:"env,omitempty"`
}

type envPair struct {
	name  string
	value string
}

// orderedEnv marshals as a JSON object preserving declaration order.
type orderedEnv []envPair

func (o orderedEnv) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKeyValue(&buf, p.name, p.value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (d *Document) render(reveal bool) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"mcpServers":{`)
	if d != nil {
		for i, s := range d.Servers {
			if i > 0 {
				buf.WriteByte(',')
			}
			entry := serverJSON{Command: s.Command, Args: s.Args}
			for _, e := range s.Env {
				v := e.Value.Reveal()
				if e.Secret && !reveal {
					v = secrets.Mask
				}
				entry.Env = append(entry.Env, envPair{name: e.Name, value: v})
			}
			if err := writeKeyValue(&buf, s.Name, entry); err != nil {
				return nil, err
			}
		}
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

func writeKeyValue(buf *bytes.Buffer, key string, value any) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}
