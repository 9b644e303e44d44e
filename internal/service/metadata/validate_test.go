package metadata

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantErr  bool
		wantHost string
	}{
		{name: "https URL", raw: "https://example.com/path?q=1", wantHost: "example.com"},
		{name: "http URL with port", raw: "http://example.com:8080", wantHost: "example.com"},
		{name: "surrounding whitespace trimmed", raw: "  https://example.com  ", wantHost: "example.com"},
		{name: "uppercase scheme", raw: "HTTPS://Example.com", wantHost: "Example.com"},
		{name: "empty", raw: "", wantErr: true},
		{name: "no scheme", raw: "not-a-url", wantErr: true},
		{name: "host without scheme", raw: "example.com/page", wantErr: true},
		{name: "ftp scheme", raw: "ftp://example.com/file", wantErr: true},
		{name: "javascript scheme", raw: "javascript:alert(1)", wantErr: true},
		{name: "mailto scheme", raw: "mailto:someone@example.com", wantErr: true},
		{name: "missing host", raw: "https:///path", wantErr: true},
		{name: "unparseable", raw: "http://[::1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := Validate(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Validate(%q) expected error, got %v", tt.raw, u)
				}
				if !errors.Is(err, ErrInvalidURL) {
					t.Errorf("expected ErrInvalidURL, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate(%q) unexpected error: %v", tt.raw, err)
			}
			if u.Hostname() != tt.wantHost {
				t.Errorf("host = %q, want %q", u.Hostname(), tt.wantHost)
			}
		})
	}
}
