package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pysugar/codex-profiles/internal/authfile"
	"github.com/pysugar/codex-profiles/internal/profile"
	"github.com/pysugar/codex-profiles/internal/switcher"
)

// profileView is the non-secret wire form of a profile.
type profileView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	PlanType  string    `json:"planType"`
	AccountID string    `json:"accountId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Active    bool      `json:"active"`
}

func toView(p profile.Profile, activeID string) profileView {
	return profileView{
		ID:        p.ID,
		Name:      p.Name,
		Email:     p.Email,
		PlanType:  p.PlanType,
		AccountID: p.AccountID,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		Active:    p.ID == activeID,
	}
}

// HealthHandler reports liveness.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ListProfilesHandler returns all profiles, name-sorted, active flagged.
func ListProfilesHandler(mgr *switcher.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		active, _ := mgr.Active()
		views := make([]profileView, 0)
		for _, p := range mgr.List() {
			views = append(views, toView(p, active.ID))
		}
		writeJSON(w, http.StatusOK, map[string]any{"profiles": views})
	}
}

// ImportHandler imports a credential file as a new or replaced profile.
func ImportHandler(mgr *switcher.Manager) http.HandlerFunc {
	type request struct {
		Path    string `json:"path"`
		Name    string `json:"name"`
		Replace bool   `json:"replace"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
			return
		}
		if req.Path == "" {
			req.Path = authfile.DefaultAuthPath()
		}

		result, err := mgr.Import(req.Path, req.Name, req.Replace)
		if errors.Is(err, switcher.ErrDuplicateProfile) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":     "duplicate_profile",
				"duplicate": toView(result.Profile, ""),
			})
			return
		}
		if errors.Is(err, authfile.ErrNoCredential) {
			writeError(w, http.StatusUnprocessableEntity, "no_credential", "not a valid credential file")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"profile":  toView(result.Profile, ""),
			"replaced": result.Replaced,
		})
	}
}

// RenameHandler updates a profile's display name.
func RenameHandler(mgr *switcher.Manager) http.HandlerFunc {
	type request struct {
		Name string `json:"name"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
			writeError(w, http.StatusBadRequest, "bad_request", "name is required")
			return
		}
		p, err := mgr.Rename(chi.URLParam(r, "id"), req.Name)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toView(p, ""))
	}
}

// DeleteHandler removes a profile and its secrets.
func DeleteHandler(mgr *switcher.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := mgr.Delete(chi.URLParam(r, "id")); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// ActiveHandler reports the active profile, if any.
func ActiveHandler(mgr *switcher.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := mgr.Status()
		if !st.Active {
			writeJSON(w, http.StatusOK, map[string]any{"active": nil})
			return
		}
		resp := map[string]any{"active": toView(st.Profile, st.Profile.ID)}
		if !st.ExpiresAt.IsZero() {
			resp["expiresAt"] = st.ExpiresAt.UTC()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// SetActiveHandler switches the active profile; an empty id clears it.
func SetActiveHandler(mgr *switcher.Manager) http.HandlerFunc {
	type request struct {
		ID string `json:"id"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
			return
		}
		if err := mgr.SetActive(req.ID); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ToggleHandler swaps the active profile with the previously-active one.
func ToggleHandler(mgr *switcher.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := mgr.ToggleLast()
		if errors.Is(err, switcher.ErrNoLastProfile) {
			writeError(w, http.StatusConflict, "no_last_profile", "no previous profile to toggle to")
			return
		}
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toView(p, p.ID))
	}
}

// RefreshHandler refreshes the active profile's tokens and re-syncs.
func RefreshHandler(mgr *switcher.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := mgr.RefreshActive(r.Context())
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toView(p, p.ID))
	}
}

// SyncHandler forces an auth file sync for the active profile.
func SyncHandler(mgr *switcher.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := mgr.SyncNow(); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "synced"})
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, profile.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, "profile_not_found", "profile not found")
	case errors.Is(err, profile.ErrMissingTokens):
		writeError(w, http.StatusConflict, "missing_tokens", "profile has no stored tokens; re-import it")
	default:
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
