// Package doctor runs environment checks for `ccs status`.
package doctor

import "context"

// Check is one line of diagnostic output.
type Check struct {
	Label  string `json:"label"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

// Section groups related checks.
type Section interface {
	// Name returns the section heading (e.g., "Runtime").
	Name() string

	// Checks runs the section's probes. Probe failures are reported as
	// failed checks, not errors.
	Checks(ctx context.Context) []Check
}

// Result is a section after its checks have run.
type Result struct {
	Name   string  `json:"name"`
	Checks []Check `json:"checks"`
}

// Registry holds sections in display order.
type Registry struct {
	sections []Section
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a section to the registry.
func (r *Registry) Register(s Section) {
	r.sections = append(r.sections, s)
}

// Sections returns all registered sections.
func (r *Registry) Sections() []Section {
	return r.sections
}

// Run runs every section in order. Sections with no checks are omitted.
func (r *Registry) Run(ctx context.Context) []Result {
	var out []Result
	for _, s := range r.sections {
		checks := s.Checks(ctx)
		if len(checks) == 0 {
			continue
		}
		out = append(out, Result{Name: s.Name(), Checks: checks})
	}
	return out
}

// Healthy reports whether every check passed.
func Healthy(results []Result) bool {
	for _, r := range results {
		for _, c := range r.Checks {
			if !c.OK {
				return false
			}
		}
	}
	return true
}
