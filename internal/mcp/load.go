package mcp

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/majorcontext/ccs/internal/config"
)

var envNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Load reads server definitions from path. YAML files use a top-level
// "servers" mapping; JSON files (comments allowed) may use "mcpServers" as
// written by the agent itself. Declaration order is preserved. A missing
// file yields no servers.
func Load(path string) ([]Server, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data = jsonc.ToJSON(data)
	}
	servers, err := Parse(data)
	if err != nil {
		var cerr *config.Error
		if errors.As(err, &cerr) {
			cerr.Path = path
			return nil, cerr
		}
		return nil, &config.Error{Path: path, Err: err}
	}
	return servers, nil
}

// Parse decodes server definitions from YAML (or JSON, which is valid YAML).
func Parse(data []byte) ([]Server, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &config.Error{Msg: "parsing plugin servers", Err: err}
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &config.Error{Msg: "expected a mapping at the top level"}
	}

	serversNode := lookup(root, "servers")
	if serversNode == nil {
		serversNode = lookup(root, "mcpServers")
	}
	if serversNode == nil || (serversNode.Kind == yaml.ScalarNode && serversNode.Tag == "!!null") {
		return nil, nil
	}
	if serversNode.Kind != yaml.MappingNode {
		return nil, &config.Error{Field: "servers", Msg: "expected a mapping of server name to definition"}
	}

	var servers []Server
	seen := make(map[string]bool)
	for i := 0; i+1 < len(serversNode.Content); i += 2 {
		name := serversNode.Content[i].Value
		field := "servers." + name
		if name == "" {
			return nil, &config.Error{Field: "servers", Msg: "server name is empty"}
		}
		if seen[name] {
			return nil, &config.Error{Field: field, Msg: "duplicate server name"}
		}
		seen[name] = true

		s, err := decodeServer(name, serversNode.Content[i+1])
		if err != nil {
			return nil, err
		}
		servers = append(servers, s)
	}
	return servers, nil
}

func decodeServer(name string, node *yaml.Node) (Server, error) {
	field := "servers." + name
	var raw struct {
		Command string    `yaml:"command"`
		Args    []string  `yaml:"args"`
		Env     yaml.Node `yaml:"env"`
	}
	if err := node.Decode(&raw); err != nil {
		return Server{}, &config.Error{Field: field, Err: err}
	}
	if strings.TrimSpace(raw.Command) == "" {
		return Server{}, &config.Error{Field: field + ".command", Msg: "command is required"}
	}

	s := Server{Name: name, Command: raw.Command, Args: raw.Args}
	switch raw.Env.Kind {
	case 0:
	case yaml.MappingNode:
		seen := make(map[string]bool)
		for i := 0; i+1 < len(raw.Env.Content); i += 2 {
			key, val := raw.Env.Content[i].Value, raw.Env.Content[i+1]
			if !envNamePattern.MatchString(key) {
				return Server{}, &config.Error{Field: field + ".env", Msg: fmt.Sprintf("invalid variable name %q", key)}
			}
			if seen[key] {
				return Server{}, &config.Error{Field: field + ".env." + key, Msg: "duplicate variable"}
			}
			seen[key] = true
			if val.Kind != yaml.ScalarNode {
				return Server{}, &config.Error{Field: field + ".env." + key, Msg: "value must be a string"}
			}
			s.Env = append(s.Env, EnvVar{Name: key, Value: val.Value})
		}
	default:
		if raw.Env.Tag != "!!null" {
			return Server{}, &config.Error{Field: field + ".env", Msg: "expected a mapping"}
		}
	}
	return s, nil
}

func lookup(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}
