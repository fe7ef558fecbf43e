// Package config loads the tool configuration from
// ~/.codex-profiles/config.yaml. The core treats these values as plain
// inputs supplied by the host environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pysugar/codex-profiles/internal/authfile"
	"gopkg.in/yaml.v3"
)

// Active-profile pointer scopes.
const (
	ScopeGlobal    = "global"
	ScopeWorkspace = "workspace"
)

const (
	envConfigPath = "CODEX_PROFILES_CONFIG"
	envHome       = "CODEX_PROFILES_HOME"
	homeDirName   = ".codex-profiles"
)

// Config is the on-disk configuration. Every field is optional; zero
// values fall back to defaults at the accessors.
type Config struct {
	// ActiveScope selects the durable bucket for the active/last profile
	// pointers: "global" or "workspace".
	ActiveScope string `yaml:"active_scope,omitempty"`
	// BackupRetention is how many auth.json backups to keep. nil means the
	// default; 0 disables backup creation.
	BackupRetention *int `yaml:"backup_retention,omitempty"`
	// CodexHome overrides the Codex CLI home directory holding auth.json.
	CodexHome string `yaml:"codex_home,omitempty"`
	// StorageDir overrides where the registry and secret database live.
	StorageDir string `yaml:"storage_dir,omitempty"`
	// Listen is the control API address used by the serve command.
	Listen string `yaml:"listen,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{ActiveScope: ScopeGlobal, Listen: "127.0.0.1:8788"}
}

// Path returns the config file location, honoring CODEX_PROFILES_CONFIG
// and CODEX_PROFILES_HOME overrides.
func Path() (string, error) {
	if override := strings.TrimSpace(os.Getenv(envConfigPath)); override != "" {
		if abs, err := filepath.Abs(override); err == nil {
			return abs, nil
		}
		return override, nil
	}
	home, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "config.yaml"), nil
}

// HomeDir returns the tool's own data directory (not CODEX_HOME).
func HomeDir() (string, error) {
	if override := strings.TrimSpace(os.Getenv(envHome)); override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, homeDirName), nil
}

// Load reads the configuration file. A missing file yields defaults; a
// malformed file is an error so a typo never silently drops settings.
func Load(path string) (Config, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(payload, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cfg.ActiveScope == "" {
		cfg.ActiveScope = ScopeGlobal
	}
	return cfg, nil
}

// Save writes the configuration, creating the directory if needed.
func Save(path string, cfg Config) error {
	payload, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// Retention resolves the backup retention count.
func (c Config) Retention() int {
	if c.BackupRetention == nil {
		return authfile.DefaultBackupRetention
	}
	if *c.BackupRetention < 0 {
		return 0
	}
	return *c.BackupRetention
}

// AuthPath resolves the external credential file path.
func (c Config) AuthPath() string {
	if c.CodexHome != "" {
		return filepath.Join(c.CodexHome, authfile.AuthFileName)
	}
	return authfile.DefaultAuthPath()
}

// ResolveStorageDir resolves where the registry and secret DB live.
func (c Config) ResolveStorageDir() (string, error) {
	if c.StorageDir != "" {
		return c.StorageDir, nil
	}
	home, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "storage"), nil
}
