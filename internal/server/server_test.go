package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pysugar/codex-profiles/internal/authfile"
	"github.com/pysugar/codex-profiles/internal/config"
	"github.com/pysugar/codex-profiles/internal/profile"
	"github.com/pysugar/codex-profiles/internal/state"
	"github.com/pysugar/codex-profiles/internal/storage"
	"github.com/pysugar/codex-profiles/internal/switcher"
	"github.com/pysugar/codex-profiles/internal/syncer"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (http.Handler, *switcher.Manager, *profile.Store) {
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

	log := zap.NewNop()
	store := profile.NewStore(dir, storage.NewSecrets(db), storage.NewStates(db), log)
	pointers := state.NewPointers(storage.NewStates(db), config.ScopeGlobal, "", log)
	sy := syncer.New(authfile.NewWriter(filepath.Join(base, "auth.json"), 0, log), log)
	mgr := switcher.New(store, pointers, sy, log)

	return NewRouter(mgr, log), mgr, store
}

func addProfile(t *testing.T, store *profile.Store, name, accountID string) profile.Profile {
	t.Helper()
	p, err := store.Create(name, &authfile.Credential{
		IDToken:      "id",
		AccessToken:  "access",
		RefreshToken: "refresh",
		AccountID:    accountID,
		Email:        name + "@x.com",
		PlanType:     "pro",
	})
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	return p
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	h, _, _ := newTestServer(t)
	rec := doJSON(t, h, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestListProfilesNeverExposesTokens(t *testing.T) {
	h, _, store := newTestServer(t)
	addProfile(t, store, "work", "A1")

	rec := doJSON(t, h, http.MethodGet, "/api/profiles", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("access")) || bytes.Contains(rec.Body.Bytes(), []byte("refresh")) {
		t.Fatalf("secret material leaked: %s", rec.Body.String())
	}

	var resp struct {
		Profiles []struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"profiles"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Profiles) != 1 || resp.Profiles[0].Name != "work" {
		t.Fatalf("unexpected profiles: %+v", resp.Profiles)
	}
}

func TestSetActiveAndToggleEndpoints(t *testing.T) {
	h, _, store := newTestServer(t)
	p1 := addProfile(t, store, "one", "A1")
	p2 := addProfile(t, store, "two", "A2")

	if rec := doJSON(t, h, http.MethodPut, "/api/active", map[string]string{"id": p1.ID}); rec.Code != http.StatusOK {
		t.Fatalf("set active p1: %d %s", rec.Code, rec.Body.String())
	}
	if rec := doJSON(t, h, http.MethodPut, "/api/active", map[string]string{"id": p2.ID}); rec.Code != http.StatusOK {
		t.Fatalf("set active p2: %d", rec.Code)
	}

	rec := doJSON(t, h, http.MethodPost, "/api/active/toggle", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle: %d %s", rec.Code, rec.Body.String())
	}
	var toggled struct {
		ID string `json:"id"`
	}
	json.Unmarshal(rec.Body.Bytes(), &toggled)
	if toggled.ID != p1.ID {
		t.Fatalf("toggle switched to %s, expected %s", toggled.ID, p1.ID)
	}
}

func TestSetActiveMissingProfile(t *testing.T) {
	h, _, _ := newTestServer(t)
	rec := doJSON(t, h, http.MethodPut, "/api/active", map[string]string{"id": "nope"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestToggleWithoutLast(t *testing.T) {
	h, _, _ := newTestServer(t)
	rec := doJSON(t, h, http.MethodPost, "/api/active/toggle", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestDeleteEndpointCascades(t *testing.T) {
	h, mgr, store := newTestServer(t)
	p := addProfile(t, store, "work", "A1")
	if err := mgr.SetActive(p.ID); err != nil {
		t.Fatalf("set active: %v", err)
	}

	rec := doJSON(t, h, http.MethodDelete, "/api/profiles/"+p.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: %d", rec.Code)
	}
	if _, ok := mgr.Active(); ok {
		t.Fatal("active pointer survived delete")
	}
}

func TestImportEndpointRejectsInvalidFile(t *testing.T) {
	h, _, _ := newTestServer(t)
	path := filepath.Join(t.TempDir(), "auth.json")
	os.WriteFile(path, []byte("nope"), 0o600)

	rec := doJSON(t, h, http.MethodPost, "/api/profiles/import", map[string]any{"path": path, "name": "x"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}
