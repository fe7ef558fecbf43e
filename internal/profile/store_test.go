package profile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pysugar/codex-profiles/internal/authfile"
	"github.com/pysugar/codex-profiles/internal/storage"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	base := t.TempDir()
	dir := filepath.Join(base, "storage")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	db, err := storage.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return NewStore(dir, storage.NewSecrets(db), storage.NewStates(db), zap.NewNop())
}

func testCred(accountID, email string) *authfile.Credential {
	return &authfile.Credential{
		IDToken:      "id-" + accountID + email,
		AccessToken:  "access",
		RefreshToken: "refresh",
		AccountID:    accountID,
		Email:        email,
		PlanType:     "pro",
		Raw:          map[string]any{"tokens": map[string]any{}, "foo": float64(1)},
	}
}

func TestCreateAndListSorted(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"zeta", "Alpha", "beta"} {
		if _, err := s.Create(name, testCred("", name+"@x.com")); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	got := s.List()
	if len(got) != 3 {
		t.Fatalf("expected 3 profiles, got %d", len(got))
	}
	if got[0].Name != "Alpha" || got[1].Name != "beta" || got[2].Name != "zeta" {
		t.Fatalf("unexpected order: %s, %s, %s", got[0].Name, got[1].Name, got[2].Name)
	}
}

func TestCreateStoresTokens(t *testing.T) {
	s := newTestStore(t)
	p, err := s.Create("work", testCred("acct-1", "a@x.com"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	data, err := s.LoadAuthData(p.ID)
	if err != nil {
		t.Fatalf("load auth data: %v", err)
	}
	if data.AccessToken != "access" || data.AccountID != "acct-1" {
		t.Fatalf("unexpected auth data: %+v", data)
	}
	if data.RawPayload["foo"] != float64(1) {
		t.Fatal("raw payload not preserved in secret storage")
	}
}

func TestFindDuplicate(t *testing.T) {
	s := newTestStore(t)
	byAccount, err := s.Create("acct", testCred("A1", "someone@else.com"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	byEmail, err := s.Create("mail", testCred("", "bob@x.com"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Create("blank", testCred("", "Unknown")); err != nil {
		t.Fatalf("create: %v", err)
	}

	tests := []struct {
		name   string
		cred   *authfile.Credential
		wantID string
		found  bool
	}{
		{name: "account id match ignores email", cred: testCred("A1", "different@x.com"), wantID: byAccount.ID, found: true},
		{name: "email match case-insensitive", cred: testCred("", "Bob@X.com"), wantID: byEmail.ID, found: true},
		{name: "unknown emails never match", cred: testCred("", "Unknown"), found: false},
		{name: "no match", cred: testCred("A2", "nobody@x.com"), found: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.FindDuplicate(tt.cred)
			if ok != tt.found {
				t.Fatalf("found=%v, expected %v", ok, tt.found)
			}
			if ok && got.ID != tt.wantID {
				t.Fatalf("matched %s, expected %s", got.ID, tt.wantID)
			}
		})
	}
}

func TestReplaceAuthKeepsIDUpdatesMetadata(t *testing.T) {
	s := newTestStore(t)
	p, err := s.Create("work", testCred("A1", "a@x.com"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := s.ReplaceAuth(p.ID, &authfile.Credential{
		IDToken:      "id2",
		AccessToken:  "access2",
		RefreshToken: "refresh2",
		AccountID:    "A1",
		Email:        "a@x.com",
		PlanType:     "plus",
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if updated.ID != p.ID {
		t.Fatalf("replace changed the profile id: %s != %s", updated.ID, p.ID)
	}
	if updated.PlanType != "plus" {
		t.Fatalf("metadata not updated: %+v", updated)
	}
	if !updated.UpdatedAt.After(p.UpdatedAt) && !updated.UpdatedAt.Equal(p.UpdatedAt) {
		t.Fatal("updatedAt went backwards")
	}
	if len(s.List()) != 1 {
		t.Fatalf("registry size changed: %d", len(s.List()))
	}

	data, err := s.LoadAuthData(p.ID)
	if err != nil {
		t.Fatalf("load auth data: %v", err)
	}
	if data.AccessToken != "access2" {
		t.Fatalf("tokens not replaced: %+v", data)
	}
}

func TestRename(t *testing.T) {
	s := newTestStore(t)
	p, _ := s.Create("old", testCred("", "a@x.com"))

	renamed, err := s.Rename(p.ID, "new")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.Name != "new" {
		t.Fatalf("unexpected name: %s", renamed.Name)
	}
	if _, err := s.Rename("missing", "x"); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

type fakeCleaner struct{ cleared []string }

func (f *fakeCleaner) ClearProfile(id string) { f.cleared = append(f.cleared, id) }

func TestDeleteCascades(t *testing.T) {
	s := newTestStore(t)
	cleaner := &fakeCleaner{}
	s.SetPointerCleaner(cleaner)

	p, _ := s.Create("work", testCred("A1", "a@x.com"))
	if err := s.Delete(p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if len(s.List()) != 0 {
		t.Fatal("registry entry survived delete")
	}
	if _, err := s.LoadAuthData(p.ID); !errors.Is(err, ErrMissingTokens) {
		t.Fatalf("expected missing tokens after delete, got %v", err)
	}
	if len(cleaner.cleared) != 1 || cleaner.cleared[0] != p.ID {
		t.Fatalf("pointer cleanup not invoked: %v", cleaner.cleared)
	}
}

func TestLoadAuthDataLegacyKeyMigration(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "storage")
	os.MkdirAll(dir, 0o700)
	db, err := storage.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	secrets := storage.NewSecrets(db)
	s := NewStore(dir, secrets, storage.NewStates(db), zap.NewNop())

	if err := secrets.Set(storage.LegacyProfileSecretKey("p1"), `{"idToken":"id","accessToken":"a","refreshToken":"r"}`); err != nil {
		t.Fatalf("seed legacy secret: %v", err)
	}

	data, err := s.LoadAuthData("p1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if data.AccessToken != "a" {
		t.Fatalf("unexpected data: %+v", data)
	}

	// Migrated forward and cleared.
	if _, found, _ := secrets.Get(storage.ProfileSecretKey("p1")); !found {
		t.Fatal("secret not migrated to current key")
	}
	if _, found, _ := secrets.Get(storage.LegacyProfileSecretKey("p1")); found {
		t.Fatal("legacy key not cleared")
	}
}

func TestCorruptRegistryYieldsEmptyList(t *testing.T) {
	s := newTestStore(t)
	if err := os.WriteFile(s.registryPath(), []byte("{corrupt"), 0o600); err != nil {
		t.Fatalf("write corrupt registry: %v", err)
	}
	if got := s.List(); len(got) != 0 {
		t.Fatalf("expected empty list, got %v", got)
	}
}

func TestLegacyDirMigrationRunsOnce(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "storage")
	os.MkdirAll(dir, 0o700)

	// Older and newer legacy installations side by side; the newer naming
	// scheme wins.
	oldDir := filepath.Join(base, "vendor.codex-account-switcher")
	newDir := filepath.Join(base, "vendor.codex-profile-switcher")
	os.MkdirAll(oldDir, 0o700)
	os.MkdirAll(newDir, 0o700)
	os.WriteFile(filepath.Join(oldDir, RegistryFileName), []byte(`[{"id":"old","name":"old"}]`), 0o600)
	os.WriteFile(filepath.Join(newDir, RegistryFileName), []byte(`[{"id":"new","name":"new"}]`), 0o600)

	db, err := storage.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	s := NewStore(dir, storage.NewSecrets(db), storage.NewStates(db), zap.NewNop())

	got := s.List()
	if len(got) != 1 || got[0].ID != "new" {
		t.Fatalf("expected migration from newer scheme, got %v", got)
	}

	// Secrets are never migrated; the adopted profile needs a re-import.
	if _, err := s.LoadAuthData("new"); !errors.Is(err, ErrMissingTokens) {
		t.Fatalf("expected missing tokens for migrated profile, got %v", err)
	}

	// A second empty registry never re-triggers migration.
	os.Remove(s.registryPath())
	if got := s.List(); len(got) != 0 {
		t.Fatalf("migration ran twice: %v", got)
	}
}
