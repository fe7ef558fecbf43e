package authfile

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultBackupRetention is how many timestamped backups are kept beside
// the auth file when the host supplies no override.
const DefaultBackupRetention = 10

const backupTimeLayout = "20060102-150405"

// Writer produces byte-exact auth.json content and replaces the file
// atomically, keeping timestamped backups of the previous content.
type Writer struct {
	path      string
	retention int
	log       *zap.Logger
}

// NewWriter creates a Writer for the given auth file path. A negative
// retention falls back to the default; zero disables backup creation.
func NewWriter(path string, retention int, log *zap.Logger) *Writer {
	if retention < 0 {
		retention = DefaultBackupRetention
	}
	return &Writer{path: path, retention: retention, log: log}
}

// Path returns the target auth file path.
func (w *Writer) Path() string { return w.path }

// Render serializes a credential into the external file schema. The raw
// payload is overlaid rather than rebuilt so fields written by other
// consumers of the file survive a sync.
func Render(cred *Credential) ([]byte, error) {
	root := cred.CloneRaw()
	if root == nil {
		root = map[string]any{}
	}

	tokens, ok := root["tokens"].(map[string]any)
	if !ok {
		tokens = map[string]any{}
		root["tokens"] = tokens
	}
	tokens["id_token"] = cred.IDToken
	tokens["access_token"] = cred.AccessToken
	tokens["refresh_token"] = cred.RefreshToken
	if cred.AccountID != "" {
		tokens["account_id"] = cred.AccountID
	}

	data, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize auth file: %w", err)
	}
	return append(data, '\n'), nil
}

// Write renders the credential and replaces the auth file on disk.
//
// Protocol: back up the current file (when retention allows), prune stale
// backups, write a uniquely named temp file in the same directory, then
// rename it over the target. Filesystems that refuse to rename over an
// existing file get a copy fallback; the temp file is always cleaned up.
func (w *Writer) Write(cred *Credential) error {
	content, err := Render(cred)
	if err != nil {
		return err
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	if w.retention > 0 {
		if _, err := os.Stat(w.path); err == nil {
			backup := fmt.Sprintf("%s.bak.%s", w.path, time.Now().Format(backupTimeLayout))
			w.bestEffort("backup auth file", copyFile(w.path, backup))
		}
	}
	w.pruneBackups()

	tmp := fmt.Sprintf("%s.tmp-%d-%d", w.path, os.Getpid(), time.Now().UnixNano())
	if err := os.WriteFile(tmp, content, 0o600); err != nil {
		return fmt.Errorf("failed to write temp auth file: %w", err)
	}

	if err := os.Rename(tmp, w.path); err != nil {
		// Some filesystems reject rename over an existing file.
		if copyErr := os.WriteFile(w.path, content, 0o600); copyErr != nil {
			w.bestEffort("remove temp auth file", os.Remove(tmp))
			return fmt.Errorf("failed to replace auth file: %w", copyErr)
		}
	}
	w.bestEffort("remove temp auth file", os.Remove(tmp))
	return nil
}

// pruneBackups deletes backups beyond the retention count, newest kept.
// It runs on every write so lowering retention takes effect immediately.
func (w *Writer) pruneBackups() {
	prefix := filepath.Base(w.path) + ".bak."
	entries, err := os.ReadDir(filepath.Dir(w.path))
	if err != nil {
		return
	}

	var backups []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			backups = append(backups, e.Name())
		}
	}
	if len(backups) <= w.retention {
		return
	}

	// The embedded timestamp sorts lexically, newest last.
	sort.Sort(sort.Reverse(sort.StringSlice(backups)))
	for _, name := range backups[w.retention:] {
		w.bestEffort("prune auth file backup", os.Remove(filepath.Join(filepath.Dir(w.path), name)))
	}
}

// bestEffort logs and discards an error from a cleanup or backup step.
// Those steps must never fail a sync.
func (w *Writer) bestEffort(op string, err error) {
	if err != nil && !os.IsNotExist(err) && w.log != nil {
		w.log.Warn("best-effort step failed", zap.String("op", op), zap.Error(err))
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
