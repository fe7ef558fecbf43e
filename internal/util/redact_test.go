package util

import (
	"strings"
	"testing"
)

func TestRedact(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		check func(string) bool
	}{
		{name: "empty", in: "", check: func(s string) bool { return s == "" }},
		{name: "short fully masked", in: "abc", check: func(s string) bool { return s == "****" }},
		{name: "long keeps prefix only", in: "eyJhbGciOiJSUzI1NiJ9.secret.sig", check: func(s string) bool {
			return strings.HasPrefix(s, "eyJhbGci") && !strings.Contains(s, "secret")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Redact(tt.in); !tt.check(got) {
				t.Fatalf("unexpected redaction: %q", got)
			}
		})
	}
}
