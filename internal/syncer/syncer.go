// Package syncer mirrors the active profile's tokens into the external
// credential file.
package syncer

import (
	"sync"

	"github.com/pysugar/codex-profiles/internal/authfile"
	"go.uber.org/zap"
)

// Syncer drives the credential file writer, skipping writes when the
// active profile has not changed since the last sync in this process.
type Syncer struct {
	writer *authfile.Writer
	log    *zap.Logger

	mu         sync.Mutex
	lastSynced string // profile id of the most recent successful write
}

// New creates a syncer over a configured writer.
func New(writer *authfile.Writer, log *zap.Logger) *Syncer {
	return &Syncer{writer: writer, log: log}
}

// Sync writes the credential for profileID. When force is false the write
// is skipped if profileID matches the last profile synced by this process;
// the cache starts empty, so a startup sync always goes through.
func (s *Syncer) Sync(profileID string, cred *authfile.Credential, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !force && profileID != "" && profileID == s.lastSynced {
		s.log.Debug("auth file already reflects profile", zap.String("profile", profileID))
		return nil
	}

	if err := s.writer.Write(cred); err != nil {
		return err
	}
	s.lastSynced = profileID
	s.log.Info("synced auth file", zap.String("profile", profileID), zap.String("path", s.writer.Path()))
	return nil
}

// Path returns the sync target path.
func (s *Syncer) Path() string { return s.writer.Path() }
