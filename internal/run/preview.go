package run

import (
	"fmt"
	"io"
	"strings"

	"al.essio.dev/pkg/shellescape"

	"github.com/majorcontext/ccs/internal/secrets"
)

// CommandLine returns the runtime invocation shell-quoted for display.
func (p *Plan) CommandLine() string {
	return shellescape.QuoteCommand(append([]string{string(p.Runtime.Kind)}, p.Args()...))
}

// WritePreview describes the plan without revealing any secret value.
func (p *Plan) WritePreview(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Runtime:   %s (%s)\n", p.Runtime.Kind, p.Runtime.Path)
	fmt.Fprintf(&b, "Container: %s\n", p.Name)
	fmt.Fprintf(&b, "Image:     %s\n", p.Image)
	fmt.Fprintf(&b, "Workspace: %s\n", p.Workspace)
	if p.Limits.Memory != "" {
		fmt.Fprintf(&b, "Memory:    %s\n", p.Limits.Memory)
	}
	if p.Limits.CPUs != "" {
		fmt.Fprintf(&b, "CPUs:      %s\n", p.Limits.CPUs)
	}

	b.WriteString("\nMounts:\n")
	for _, m := range p.Mounts {
		mode := "rw"
		if m.ReadOnly {
			mode = "ro"
		}
		fmt.Fprintf(&b, "  %s -> %s (%s)\n", m.Host, m.Container, mode)
	}

	if len(p.Env) > 0 || p.EnvFile != "" {
		b.WriteString("\nEnvironment:\n")
		for _, e := range p.Env {
			v := e.Value.Reveal()
			if e.Secret {
				v = secrets.Mask
			}
			fmt.Fprintf(&b, "  %s=%s\n", e.Name, v)
		}
		if p.EnvFile != "" {
			fmt.Fprintf(&b, "  (env file %s)\n", p.EnvFile)
		}
	}

	if !p.Plugins.Empty() {
		doc, err := p.Plugins.Redacted()
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "\nPlugin servers (%s -> %s):\n%s\n", p.PluginFile, PluginConfigPath, doc)
	}

	fmt.Fprintf(&b, "\nCommand:\n  %s\n", p.CommandLine())
	_, err := io.WriteString(w, b.String())
	return err
}
