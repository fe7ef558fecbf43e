package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pysugar/codex-profiles/internal/authfile"
	"github.com/pysugar/codex-profiles/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// ErrProfileNotFound is returned when an id has no registry entry.
var ErrProfileNotFound = errors.New("profile not found")

// ErrMissingTokens is returned when a profile exists but its secret
// storage is empty; the caller should prompt for a re-import.
var ErrMissingTokens = errors.New("profile has no stored tokens")

// Legacy storage directory suffixes, newest naming scheme first. The
// one-time migration adopts profile metadata (never secrets) from the
// first sibling directory matching one of these.
var legacyDirSuffixes = []string{".codex-profile-switcher", ".codex-account-switcher"}

const migrationFlagKey = "legacyProfilesMigrated"

// PointerCleaner clears active/last pointers that reference a deleted
// profile id.
type PointerCleaner interface {
	ClearProfile(id string)
}

// Store is the durable profile registry plus per-profile secret storage.
type Store struct {
	dir      string
	secrets  *storage.Secrets
	states   *storage.States
	pointers PointerCleaner
	log      *zap.Logger
}

// NewStore creates a profile store rooted at dir. The registry file lives
// in dir; secrets and the migration flag live in the shared database.
func NewStore(dir string, secrets *storage.Secrets, states *storage.States, log *zap.Logger) *Store {
	return &Store{dir: dir, secrets: secrets, states: states, log: log}
}

// SetPointerCleaner wires the delete cascade for active/last pointers.
func (s *Store) SetPointerCleaner(pc PointerCleaner) { s.pointers = pc }

func (s *Store) registryPath() string {
	return filepath.Join(s.dir, RegistryFileName)
}

// List returns all profiles sorted by name, locale-aware ascending. The
// first listing of an empty registry triggers the one-time legacy
// migration.
func (s *Store) List() []Profile {
	profiles := loadRegistry(s.registryPath())
	if len(profiles) == 0 {
		if migrated := s.migrateLegacy(); migrated != nil {
			profiles = migrated
		}
	}

	c := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(profiles, func(i, j int) bool {
		return c.CompareString(profiles[i].Name, profiles[j].Name) < 0
	})
	return profiles
}

// Get returns the profile with the given id.
func (s *Store) Get(id string) (Profile, bool) {
	for _, p := range loadRegistry(s.registryPath()) {
		if p.ID == id {
			return p, true
		}
	}
	return Profile{}, false
}

// FindDuplicate locates an existing profile for an imported credential.
// A non-empty account id match wins over everything; normalized emails are
// the fallback, with the Unknown sentinel never matching anything.
func (s *Store) FindDuplicate(cred *authfile.Credential) (Profile, bool) {
	profiles := loadRegistry(s.registryPath())

	if cred.AccountID != "" {
		for _, p := range profiles {
			if p.AccountID != "" && p.AccountID == cred.AccountID {
				return p, true
			}
		}
	}

	email := normalizeEmail(cred.Email)
	if email == "" {
		return Profile{}, false
	}
	for _, p := range profiles {
		if normalizeEmail(p.Email) == email {
			return p, true
		}
	}
	return Profile{}, false
}

// normalizeEmail trims and lower-cases; the Unknown sentinel maps to empty
// so two credential-less profiles never match each other.
func normalizeEmail(email string) string {
	e := strings.ToLower(strings.TrimSpace(email))
	if e == "unknown" {
		return ""
	}
	return e
}

// Create registers a new profile for the credential under a fresh id and
// stores its tokens. Duplicate detection is the caller's decision, made
// via FindDuplicate before calling this.
func (s *Store) Create(name string, cred *authfile.Credential) (Profile, error) {
	now := time.Now().UTC()
	p := Profile{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     cred.Email,
		PlanType:  cred.PlanType,
		AccountID: cred.AccountID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.storeAuthData(p.ID, NewAuthData(cred)); err != nil {
		return Profile{}, err
	}

	profiles := append(loadRegistry(s.registryPath()), p)
	if err := saveRegistry(s.registryPath(), profiles); err != nil {
		return Profile{}, fmt.Errorf("failed to save profile registry: %w", err)
	}
	return p, nil
}

// ReplaceAuth overwrites the matched profile's credential: metadata fields
// in place, token storage replaced, raw payload preserved with it.
func (s *Store) ReplaceAuth(id string, cred *authfile.Credential) (Profile, error) {
	profiles := loadRegistry(s.registryPath())
	idx := indexOf(profiles, id)
	if idx < 0 {
		return Profile{}, ErrProfileNotFound
	}

	if err := s.storeAuthData(id, NewAuthData(cred)); err != nil {
		return Profile{}, err
	}

	profiles[idx].Email = cred.Email
	profiles[idx].PlanType = cred.PlanType
	profiles[idx].AccountID = cred.AccountID
	profiles[idx].UpdatedAt = time.Now().UTC()
	if err := saveRegistry(s.registryPath(), profiles); err != nil {
		return Profile{}, fmt.Errorf("failed to save profile registry: %w", err)
	}
	return profiles[idx], nil
}

// Rename changes a profile's display name. Names need not be unique.
func (s *Store) Rename(id, newName string) (Profile, error) {
	profiles := loadRegistry(s.registryPath())
	idx := indexOf(profiles, id)
	if idx < 0 {
		return Profile{}, ErrProfileNotFound
	}
	profiles[idx].Name = newName
	profiles[idx].UpdatedAt = time.Now().UTC()
	if err := saveRegistry(s.registryPath(), profiles); err != nil {
		return Profile{}, fmt.Errorf("failed to save profile registry: %w", err)
	}
	return profiles[idx], nil
}

// Delete removes a profile, its secret entries under both key schemes,
// and any active/last pointer referencing it.
func (s *Store) Delete(id string) error {
	profiles := loadRegistry(s.registryPath())
	idx := indexOf(profiles, id)
	if idx < 0 {
		return ErrProfileNotFound
	}

	profiles = append(profiles[:idx], profiles[idx+1:]...)
	if err := saveRegistry(s.registryPath(), profiles); err != nil {
		return fmt.Errorf("failed to save profile registry: %w", err)
	}

	if err := s.secrets.Delete(storage.ProfileSecretKey(id)); err != nil {
		s.log.Warn("failed to delete profile tokens", zap.String("profile", id), zap.Error(err))
	}
	// The legacy key may never have existed; absence is fine.
	if err := s.secrets.Delete(storage.LegacyProfileSecretKey(id)); err != nil {
		s.log.Warn("failed to delete legacy profile tokens", zap.String("profile", id), zap.Error(err))
	}

	if s.pointers != nil {
		s.pointers.ClearProfile(id)
	}
	return nil
}

// LoadAuthData reads a profile's stored tokens, falling back to the legacy
// key scheme and migrating it forward on first read.
func (s *Store) LoadAuthData(id string) (*AuthData, error) {
	value, found, err := s.secrets.Get(storage.ProfileSecretKey(id))
	if err != nil {
		return nil, err
	}
	if !found {
		value, found, err = s.secrets.Get(storage.LegacyProfileSecretKey(id))
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, ErrMissingTokens
		}
		// Migrate forward so the next read hits the current key.
		if err := s.secrets.Set(storage.ProfileSecretKey(id), value); err == nil {
			if err := s.secrets.Delete(storage.LegacyProfileSecretKey(id)); err != nil {
				s.log.Warn("failed to clear legacy secret key", zap.String("profile", id), zap.Error(err))
			}
		}
	}

	var data AuthData
	if err := json.Unmarshal([]byte(value), &data); err != nil {
		return nil, ErrMissingTokens
	}
	return &data, nil
}

func (s *Store) storeAuthData(id string, data AuthData) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode profile tokens: %w", err)
	}
	if err := s.secrets.Set(storage.ProfileSecretKey(id), string(payload)); err != nil {
		return fmt.Errorf("failed to store profile tokens: %w", err)
	}
	return nil
}

func indexOf(profiles []Profile, id string) int {
	for i, p := range profiles {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// migrateLegacy adopts profile metadata from a prior installation's
// storage directory, once per installation. Secrets are bound to the old
// installation and are never migrated; affected profiles report missing
// tokens until re-imported. Every failure path still marks the flag so the
// read path is never retried into the same failure.
func (s *Store) migrateLegacy() []Profile {
	if s.states == nil {
		return nil
	}
	if _, done, err := s.states.Get(storage.GlobalBucket, migrationFlagKey); err != nil || done {
		return nil
	}
	defer func() {
		if err := s.states.Set(storage.GlobalBucket, migrationFlagKey, "1"); err != nil {
			s.log.Warn("failed to mark legacy migration", zap.Error(err))
		}
	}()

	source := s.findLegacyDir()
	if source == "" {
		return nil
	}

	adopted := loadRegistry(filepath.Join(source, RegistryFileName))
	if len(adopted) == 0 {
		return nil
	}
	if err := saveRegistry(s.registryPath(), adopted); err != nil {
		s.log.Warn("failed to save migrated registry", zap.Error(err))
		return nil
	}
	s.log.Info("migrated legacy profiles",
		zap.String("source", source),
		zap.Int("profiles", len(adopted)),
	)
	return adopted
}

// findLegacyDir scans siblings of the storage directory for historical
// installation directories, preferring the newer naming scheme.
func (s *Store) findLegacyDir() string {
	entries, err := os.ReadDir(filepath.Dir(s.dir))
	if err != nil {
		return ""
	}
	for _, suffix := range legacyDirSuffixes {
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			name := e.Name()
			if strings.HasSuffix(name, suffix) && filepath.Join(filepath.Dir(s.dir), name) != s.dir {
				return filepath.Join(filepath.Dir(s.dir), name)
			}
		}
	}
	return ""
}
