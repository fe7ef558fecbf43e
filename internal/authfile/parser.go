package authfile

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
)

// ErrNoCredential is returned when the file is missing, unreadable, not
// JSON, or has no tokens object. Callers treat it as "nothing to import",
// not as a failure.
var ErrNoCredential = errors.New("no credential found")

// Parse reads an external auth.json and normalizes it into a Credential.
// Any malformed input degrades to ErrNoCredential; a bad id_token only
// degrades the identity claims, never the whole parse.
func Parse(path string) (*Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ErrNoCredential
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, ErrNoCredential
	}

	tokens, ok := raw["tokens"].(map[string]any)
	if !ok {
		return nil, ErrNoCredential
	}

	cred := &Credential{
		IDToken:      stringField(tokens, "id_token"),
		AccessToken:  stringField(tokens, "access_token"),
		RefreshToken: stringField(tokens, "refresh_token"),
		AccountID:    stringField(tokens, "account_id"),
		Email:        UnknownValue,
		PlanType:     UnknownValue,
		Raw:          raw,
	}

	if claims, err := DecodeIDClaims(cred.IDToken); err == nil {
		if email := strings.TrimSpace(claims.Email); email != "" {
			cred.Email = email
		}
		if plan := strings.TrimSpace(claims.AuthInfo.PlanType); plan != "" {
			cred.PlanType = plan
		}
		if cred.AccountID == "" {
			cred.AccountID = claims.AuthInfo.AccountID
		}
	}

	return cred, nil
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
