package authfile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	// TokenURL is the OpenAI OAuth token endpoint.
	TokenURL = "https://auth.openai.com/oauth/token"
	// ClientID is the Codex CLI OAuth client id.
	ClientID = "app_EMoamEEZ73f0CkXaXp7hrann"

	refreshTimeout = 30 * time.Second
)

// Refresh exchanges the credential's refresh token for fresh tokens and
// returns a new Credential carrying them. The input credential and its raw
// payload are left untouched; identity claims are re-derived from the new
// id_token.
func Refresh(ctx context.Context, cred *Credential) (*Credential, error) {
	if strings.TrimSpace(cred.RefreshToken) == "" {
		return nil, fmt.Errorf("credential has no refresh token")
	}

	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	conf := &oauth2.Config{
		ClientID: ClientID,
		Endpoint: oauth2.Endpoint{TokenURL: TokenURL},
		Scopes:   []string{"openid", "profile", "email"},
	}
	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}

	next := &Credential{
		IDToken:      cred.IDToken,
		AccessToken:  tok.AccessToken,
		RefreshToken: cred.RefreshToken,
		AccountID:    cred.AccountID,
		Email:        cred.Email,
		PlanType:     cred.PlanType,
		Raw:          cred.CloneRaw(),
	}
	if id, ok := tok.Extra("id_token").(string); ok && id != "" {
		next.IDToken = id
	}
	if tok.RefreshToken != "" {
		next.RefreshToken = tok.RefreshToken
	}
	if next.Raw != nil {
		next.Raw["last_refresh"] = time.Now().UTC().Format(time.RFC3339Nano)
	}

	if claims, err := DecodeIDClaims(next.IDToken); err == nil {
		if email := strings.TrimSpace(claims.Email); email != "" {
			next.Email = email
		}
		if plan := strings.TrimSpace(claims.AuthInfo.PlanType); plan != "" {
			next.PlanType = plan
		}
		if next.AccountID == "" {
			next.AccountID = claims.AuthInfo.AccountID
		}
	}
	return next, nil
}
