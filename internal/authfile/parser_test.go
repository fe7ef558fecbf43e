package authfile

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeAuthFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "auth.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write auth file: %v", err)
	}
	return path
}

func TestParse(t *testing.T) {
	idToken := makeToken(t, map[string]any{
		"email": "alice@example.com",
		"https://api.openai.com/auth": map[string]any{
			"chatgpt_account_id": "acct-1",
			"chatgpt_plan_type":  "pro",
		},
	})
	raw := map[string]any{
		"OPENAI_API_KEY": nil,
		"tokens": map[string]any{
			"id_token":      idToken,
			"access_token":  "at",
			"refresh_token": "rt",
			"account_id":    "acct-1",
		},
		"last_refresh": "2026-01-01T00:00:00Z",
	}
	payload, _ := json.Marshal(raw)

	cred, err := Parse(writeAuthFile(t, string(payload)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cred.AccessToken != "at" || cred.RefreshToken != "rt" || cred.IDToken != idToken {
		t.Fatalf("token mismatch: %+v", cred)
	}
	if cred.Email != "alice@example.com" || cred.PlanType != "pro" || cred.AccountID != "acct-1" {
		t.Fatalf("identity mismatch: %+v", cred)
	}
	if cred.Raw == nil {
		t.Fatal("expected raw payload to be preserved")
	}
	if _, ok := cred.Raw["last_refresh"]; !ok {
		t.Fatal("expected unrelated fields in raw payload")
	}
}

func TestParse_BadIDTokenDefaultsIdentity(t *testing.T) {
	cred, err := Parse(writeAuthFile(t, `{"tokens":{"id_token":"garbage","access_token":"at","refresh_token":"rt"}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cred.Email != UnknownValue || cred.PlanType != UnknownValue {
		t.Fatalf("expected Unknown sentinels, got %q / %q", cred.Email, cred.PlanType)
	}
}

func TestParse_NoCredential(t *testing.T) {
	tests := []struct {
		name    string
		content string
		missing bool
	}{
		{name: "missing file", missing: true},
		{name: "not json", content: "{nope"},
		{name: "no tokens object", content: `{"OPENAI_API_KEY":"sk-x"}`},
		{name: "tokens not object", content: `{"tokens":"sk-x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "auth.json")
			if !tt.missing {
				path = writeAuthFile(t, tt.content)
			}
			if _, err := Parse(path); !errors.Is(err, ErrNoCredential) {
				t.Fatalf("expected ErrNoCredential, got %v", err)
			}
		})
	}
}

func TestCloneRawIsDeep(t *testing.T) {
	cred := &Credential{Raw: map[string]any{
		"tokens": map[string]any{"id_token": "original"},
		"list":   []any{"a"},
	}}
	clone := cred.CloneRaw()
	clone["tokens"].(map[string]any)["id_token"] = "mutated"
	clone["list"].([]any)[0] = "mutated"

	if cred.Raw["tokens"].(map[string]any)["id_token"] != "original" {
		t.Fatal("map mutation leaked into the original payload")
	}
	if cred.Raw["list"].([]any)[0] != "a" {
		t.Fatal("slice mutation leaked into the original payload")
	}
}
