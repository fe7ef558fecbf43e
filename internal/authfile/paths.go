package authfile

import (
	"os"
	"path/filepath"
)

// AuthFileName is the credential file the Codex CLI reads and writes.
const AuthFileName = "auth.json"

// DefaultAuthPath resolves the auth.json location. CODEX_HOME overrides the
// default ~/.codex directory, matching the Codex CLI's own resolution.
func DefaultAuthPath() string {
	return filepath.Join(CodexHome(), AuthFileName)
}

// CodexHome returns the Codex CLI home directory.
func CodexHome() string {
	if home := os.Getenv("CODEX_HOME"); home != "" {
		return home
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".codex")
}
