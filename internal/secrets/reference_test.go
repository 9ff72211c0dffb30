package secrets

import (
	"errors"
	"testing"
)

func TestParseReference(t *testing.T) {
	tests := []struct {
		in      string
		want    Reference
		wantErr bool
	}{
		{in: "env://GITHUB_TOKEN", want: Reference{SchemeEnv, "GITHUB_TOKEN"}},
		{in: "pass://work/github", want: Reference{SchemePass, "work/github"}},
		{in: "op://Dev/GitHub/token", want: Reference{SchemeOnePassword, "Dev/GitHub/token"}},
		{in: "op://Dev/GitHub/section/token", want: Reference{SchemeOnePassword, "Dev/GitHub/section/token"}},
		{in: "bws://be8e0ad8-d545-4017-a55a-b02f014d4158", want: Reference{SchemeBitwarden, "be8e0ad8-d545-4017-a55a-b02f014d4158"}},
		{in: "awssm:///prod/db", want: Reference{SchemeAWS, "/prod/db"}},
		{in: "awssm://eu-west-1/prod/db#password", want: Reference{SchemeAWS, "eu-west-1/prod/db#password"}},

		{in: "GITHUB_TOKEN", wantErr: true},
		{in: "://x", wantErr: true},
		{in: "vault://a/b", wantErr: true},
		{in: "env://", wantErr: true},
		{in: "env://1BAD", wantErr: true},
		{in: "env://HAS-DASH", wantErr: true},
		{in: "op://Dev/GitHub", wantErr: true},
		{in: "op://Dev//token", wantErr: true},
		{in: "bws://a/b", wantErr: true},
		{in: "pass://dir/", wantErr: true},
		{in: "awssm://prod", wantErr: true},
		{in: "awssm:///prod#", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseReference(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedReference) {
					t.Fatalf("ParseReference(%q) error = %v, want malformed reference", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseReference(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseReference(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
			if got.String() != tt.in {
				t.Errorf("String() = %q, want %q", got.String(), tt.in)
			}
		})
	}
}

func TestIsReference(t *testing.T) {
	for _, s := range []string{"env://X", "pass://a", "op://a/b/c", "bws://id", "awssm:///x"} {
		if !IsReference(s) {
			t.Errorf("IsReference(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"plain", "https://api.example.com", "", "env:/X", "ENV://X"} {
		if IsReference(s) {
			t.Errorf("IsReference(%q) = true, want false", s)
		}
	}
}
