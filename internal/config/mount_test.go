package config

import (
	"path/filepath"
	"testing"
)

func TestParseMount(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Mount
		wantErr bool
	}{
		{name: "read-write default", in: "/srv/cache:/cache", want: Mount{Source: "/srv/cache", Target: "/cache"}},
		{name: "read-only", in: "/etc/ssl/certs:/etc/ssl/certs:ro", want: Mount{Source: "/etc/ssl/certs", Target: "/etc/ssl/certs", ReadOnly: true}},
		{name: "explicit rw", in: "./out:/out:rw", want: Mount{Source: "./out", Target: "/out"}},
		{name: "tilde user form untouched", in: "~bob/x:/x", want: Mount{Source: "~bob/x", Target: "/x"}},
		{name: "no target", in: "/srv/cache", wantErr: true},
		{name: "empty target", in: "/srv/cache:", wantErr: true},
		{name: "empty source", in: ":/cache", wantErr: true},
		{name: "bad mode", in: "/a:/b:rx", wantErr: true},
		{name: "too many fields", in: "/a:/b:ro:z", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseMount(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseMount(%q) = %+v, want error", tt.in, m)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMount(%q): %v", tt.in, err)
			}
			if *m != tt.want {
				t.Errorf("ParseMount(%q) = %+v, want %+v", tt.in, *m, tt.want)
			}
		})
	}
}

func TestParseMountExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	for in, want := range map[string]string{
		"~/.gitconfig:/home/claude/.gitconfig:ro": filepath.Join(home, ".gitconfig"),
		"~:/host-home":                            home,
	} {
		m, err := ParseMount(in)
		if err != nil {
			t.Fatalf("ParseMount(%q): %v", in, err)
		}
		if m.Source != want {
			t.Errorf("ParseMount(%q).Source = %q, want %q", in, m.Source, want)
		}
	}
}
