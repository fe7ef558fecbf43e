// Package switcher glues the profile store, pointer state, and sync
// orchestrator into the operations the CLI and control API expose.
package switcher

import (
	"context"
	"errors"
	"time"

	"github.com/pysugar/codex-profiles/internal/authfile"
	"github.com/pysugar/codex-profiles/internal/profile"
	"github.com/pysugar/codex-profiles/internal/state"
	"github.com/pysugar/codex-profiles/internal/syncer"
	"github.com/pysugar/codex-profiles/internal/util"
	"go.uber.org/zap"
)

// ErrNoLastProfile is returned by ToggleLast when no previous profile is
// recorded; callers fall back to manual selection.
var ErrNoLastProfile = errors.New("no previous profile to toggle to")

// ErrDuplicateProfile is returned by Import when the credential matches an
// existing profile and replacement was not requested. The result carries
// the matched profile so the caller can prompt.
var ErrDuplicateProfile = errors.New("credential matches an existing profile")

// Manager coordinates profile and pointer mutations with auth file syncs.
type Manager struct {
	profiles *profile.Store
	pointers *state.Pointers
	syncer   *syncer.Syncer
	log      *zap.Logger
}

// New wires a manager and installs the delete cascade on the store.
func New(profiles *profile.Store, pointers *state.Pointers, sy *syncer.Syncer, log *zap.Logger) *Manager {
	profiles.SetPointerCleaner(pointers)
	return &Manager{profiles: profiles, pointers: pointers, syncer: sy, log: log}
}

// Profiles exposes the underlying store for read-side callers.
func (m *Manager) Profiles() *profile.Store { return m.profiles }

// List returns all profiles, name-sorted.
func (m *Manager) List() []profile.Profile { return m.profiles.List() }

// Active resolves the active pointer against the registry. A pointer left
// behind by a deleted profile is treated as unset and cleaned up.
func (m *Manager) Active() (profile.Profile, bool) {
	id := m.pointers.Active()
	if id == "" {
		return profile.Profile{}, false
	}
	p, ok := m.profiles.Get(id)
	if !ok {
		m.pointers.ClearProfile(id)
		return profile.Profile{}, false
	}
	return p, true
}

// SetActive switches the active profile. The profile's tokens must load
// before any state changes; a profile with missing tokens rejects the
// transition with profile.ErrMissingTokens and leaves everything untouched.
// An empty id clears the active pointer without touching the auth file.
func (m *Manager) SetActive(id string) error {
	if id == "" {
		m.pointers.SetActive("")
		return nil
	}

	if _, ok := m.profiles.Get(id); !ok {
		return profile.ErrProfileNotFound
	}
	data, err := m.profiles.LoadAuthData(id)
	if err != nil {
		return err
	}

	prev := m.pointers.Active()
	if prev != "" && prev != id {
		m.pointers.SetLast(prev)
	}
	m.pointers.SetActive(id)

	// Tokens are already in hand; sync without a second secret read.
	if err := m.syncer.Sync(id, data.Credential(), false); err != nil {
		m.log.Warn("auth file sync failed", zap.String("profile", id), zap.Error(err))
	}
	return nil
}

// ToggleLast swaps the active profile with the previously-active one, so a
// second toggle undoes the first.
func (m *Manager) ToggleLast() (profile.Profile, error) {
	last := m.pointers.Last()
	if last == "" {
		return profile.Profile{}, ErrNoLastProfile
	}

	prev := m.pointers.Active()
	if err := m.SetActive(last); err != nil {
		return profile.Profile{}, err
	}
	m.pointers.SetLast(prev)

	p, _ := m.profiles.Get(last)
	return p, nil
}

// ImportResult reports what an import did.
type ImportResult struct {
	Profile  profile.Profile
	Replaced bool
}

// Import parses an external credential file and either creates a profile
// or, when the credential matches an existing one and replace is set,
// overwrites that profile's tokens. Without replace a duplicate surfaces
// as ErrDuplicateProfile with the matched profile in the result.
func (m *Manager) Import(path, name string, replace bool) (ImportResult, error) {
	cred, err := authfile.Parse(path)
	if err != nil {
		return ImportResult{}, err
	}
	m.log.Debug("parsed credential file",
		zap.String("email", cred.Email),
		zap.String("plan", cred.PlanType),
		zap.String("idToken", util.Redact(cred.IDToken)),
	)

	if dup, ok := m.profiles.FindDuplicate(cred); ok {
		if !replace {
			return ImportResult{Profile: dup}, ErrDuplicateProfile
		}
		p, err := m.profiles.ReplaceAuth(dup.ID, cred)
		if err != nil {
			return ImportResult{}, err
		}
		return ImportResult{Profile: p, Replaced: true}, nil
	}

	p, err := m.profiles.Create(name, cred)
	if err != nil {
		return ImportResult{}, err
	}
	return ImportResult{Profile: p}, nil
}

// Rename changes a profile's display name.
func (m *Manager) Rename(id, name string) (profile.Profile, error) {
	return m.profiles.Rename(id, name)
}

// Delete removes a profile; secret storage and pointers cascade.
func (m *Manager) Delete(id string) error {
	return m.profiles.Delete(id)
}

// StartupSync performs the one unconditional sync for whatever profile is
// active when the process starts. Failures are logged and swallowed.
func (m *Manager) StartupSync() {
	if err := m.SyncNow(); err != nil && !errors.Is(err, profile.ErrMissingTokens) {
		m.log.Warn("startup sync failed", zap.Error(err))
	}
}

// SyncNow forces a sync of the active profile, bypassing the de-dup
// cache. With no active profile it is a no-op.
func (m *Manager) SyncNow() error {
	p, ok := m.Active()
	if !ok {
		return nil
	}
	data, err := m.profiles.LoadAuthData(p.ID)
	if err != nil {
		return err
	}
	return m.syncer.Sync(p.ID, data.Credential(), true)
}

// RefreshActive exchanges the active profile's refresh token for fresh
// tokens, stores them, and re-syncs the auth file. Storage is only touched
// after a successful grant.
func (m *Manager) RefreshActive(ctx context.Context) (profile.Profile, error) {
	p, ok := m.Active()
	if !ok {
		return profile.Profile{}, profile.ErrProfileNotFound
	}
	data, err := m.profiles.LoadAuthData(p.ID)
	if err != nil {
		return profile.Profile{}, err
	}

	cred := data.Credential()
	cred.Email = p.Email
	cred.PlanType = p.PlanType

	refreshed, err := authfile.Refresh(ctx, cred)
	if err != nil {
		return profile.Profile{}, err
	}

	updated, err := m.profiles.ReplaceAuth(p.ID, refreshed)
	if err != nil {
		return profile.Profile{}, err
	}
	if err := m.syncer.Sync(p.ID, refreshed, true); err != nil {
		m.log.Warn("auth file sync failed after refresh", zap.String("profile", p.ID), zap.Error(err))
	}
	return updated, nil
}

// Status describes the active profile for display.
type Status struct {
	Profile   profile.Profile
	Active    bool
	ExpiresAt time.Time // zero when the access token carries no exp claim
}

// Status reports the active profile and, when the stored access token
// decodes, its expiry.
func (m *Manager) Status() Status {
	p, ok := m.Active()
	if !ok {
		return Status{}
	}
	st := Status{Profile: p, Active: true}
	if data, err := m.profiles.LoadAuthData(p.ID); err == nil {
		if claims, err := authfile.DecodeIDClaims(data.AccessToken); err == nil && claims.Exp > 0 {
			st.ExpiresAt = time.Unix(claims.Exp, 0)
		}
	}
	return st
}
