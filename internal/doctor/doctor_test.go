package doctor

import (
	"context"
	"testing"
)

type fakeSection struct {
	name   string
	checks []Check
	calls  int
}

func (f *fakeSection) Name() string { return f.name }

func (f *fakeSection) Checks(context.Context) []Check {
	f.calls++
	return f.checks
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	if len(reg.Sections()) != 0 {
		t.Errorf("new registry should be empty, got %d sections", len(reg.Sections()))
	}

	reg.Register(&fakeSection{name: "Runtime"})
	reg.Register(&fakeSection{name: "Credentials"})

	sections := reg.Sections()
	if len(sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(sections))
	}
	if sections[0].Name() != "Runtime" {
		t.Errorf("first section name = %q, want %q", sections[0].Name(), "Runtime")
	}
	if sections[1].Name() != "Credentials" {
		t.Errorf("second section name = %q, want %q", sections[1].Name(), "Credentials")
	}
}

func TestRun(t *testing.T) {
	runtime := &fakeSection{name: "Runtime", checks: []Check{{Label: "runtime", OK: true, Detail: "podman"}}}
	empty := &fakeSection{name: "Containers"}
	creds := &fakeSection{name: "Credentials", checks: []Check{{Label: "agent", OK: false, Detail: "none"}}}

	reg := NewRegistry()
	reg.Register(runtime)
	reg.Register(empty)
	reg.Register(creds)

	results := reg.Run(context.Background())
	if len(results) != 2 {
		t.Fatalf("Run() returned %d results, want 2 (empty section omitted)", len(results))
	}
	if results[0].Name != "Runtime" || results[1].Name != "Credentials" {
		t.Errorf("Run() order = %q, %q", results[0].Name, results[1].Name)
	}
	if empty.calls != 1 {
		t.Errorf("empty section ran %d times, want 1", empty.calls)
	}
}

func TestHealthy(t *testing.T) {
	tests := []struct {
		name    string
		results []Result
		want    bool
	}{
		{name: "no results", want: true},
		{name: "all ok", results: []Result{{Checks: []Check{{OK: true}, {OK: true}}}}, want: true},
		{name: "one failure", results: []Result{{Checks: []Check{{OK: true}}}, {Checks: []Check{{OK: false}}}}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Healthy(tt.results); got != tt.want {
				t.Errorf("Healthy() = %v, want %v", got, tt.want)
			}
		})
	}
}
