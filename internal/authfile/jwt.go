package authfile

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// IDClaims is the subset of id_token claims the switcher cares about.
// The token is never verified here; only the payload segment is decoded.
type IDClaims struct {
	Email    string   `json:"email"`
	Exp      int64    `json:"exp"`
	Iat      int64    `json:"iat"`
	AuthInfo AuthInfo `json:"https://api.openai.com/auth"`
}

// AuthInfo carries the ChatGPT account details nested in the id_token.
type AuthInfo struct {
	AccountID string `json:"chatgpt_account_id"`
	PlanType  string `json:"chatgpt_plan_type"` // plus, pro, team
	UserID    string `json:"chatgpt_user_id"`
}

// DecodeIDClaims extracts the claims from a JWT without verifying the
// signature. The payload is the middle of three dot-separated segments,
// base64url-encoded JSON.
func DecodeIDClaims(token string) (*IDClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid JWT format: expected 3 parts, got %d", len(parts))
	}

	payload := parts[1]
	switch len(payload) % 4 {
	case 2:
		payload += "=="
	case 3:
		payload += "="
	}

	data, err := base64.URLEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode JWT payload: %w", err)
	}

	var claims IDClaims
	if err := json.Unmarshal(data, &claims); err != nil {
		return nil, fmt.Errorf("failed to parse JWT claims: %w", err)
	}
	return &claims, nil
}
