// Package profile implements the durable registry of named credential
// profiles: non-secret metadata in a JSON file, token payloads in the
// secret store.
package profile

import (
	"time"

	"github.com/pysugar/codex-profiles/internal/authfile"
)

// Profile is the durable, non-secret metadata for one account.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	PlanType  string    `json:"planType"`
	AccountID string    `json:"accountId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AuthData is the secret payload stored per profile, keyed by profile id.
// It never appears in the plaintext registry file.
type AuthData struct {
	IDToken      string         `json:"idToken"`
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
	AccountID    string         `json:"accountId,omitempty"`
	RawPayload   map[string]any `json:"rawPayload,omitempty"`
}

// NewAuthData captures the secret parts of a credential.
func NewAuthData(cred *authfile.Credential) AuthData {
	return AuthData{
		IDToken:      cred.IDToken,
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		AccountID:    cred.AccountID,
		RawPayload:   cred.CloneRaw(),
	}
}

// Credential rebuilds a writable credential from stored auth data.
func (a AuthData) Credential() *authfile.Credential {
	return &authfile.Credential{
		IDToken:      a.IDToken,
		AccessToken:  a.AccessToken,
		RefreshToken: a.RefreshToken,
		AccountID:    a.AccountID,
		Email:        authfile.UnknownValue,
		PlanType:     authfile.UnknownValue,
		Raw:          a.RawPayload,
	}
}
