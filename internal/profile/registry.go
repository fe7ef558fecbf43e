package profile

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// RegistryFileName is the profile registry file inside the storage dir.
const RegistryFileName = "profiles.json"

const registryVersion = 1

// registryFile is the current on-disk envelope.
type registryFile struct {
	Version  int       `json:"version"`
	Profiles []Profile `json:"profiles"`
}

// decodeRegistry normalizes any of the three known on-disk shapes into a
// profile list: the current versioned object, an unversioned object with a
// bare profiles list, or the oldest shape, a bare array. Anything else,
// including corrupt JSON, yields an empty registry.
func decodeRegistry(data []byte) []Profile {
	var envelope registryFile
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Profiles != nil {
		return sanitize(envelope.Profiles)
	}

	var bare []Profile
	if err := json.Unmarshal(data, &bare); err == nil {
		return sanitize(bare)
	}
	return nil
}

// sanitize drops entries without an id; a registry hand-edited into an
// inconsistent state should degrade, not crash.
func sanitize(profiles []Profile) []Profile {
	out := profiles[:0]
	for _, p := range profiles {
		if p.ID != "" {
			out = append(out, p)
		}
	}
	return out
}

func loadRegistry(path string) []Profile {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return decodeRegistry(data)
}

// saveRegistry always writes the current versioned shape.
func saveRegistry(path string, profiles []Profile) error {
	if profiles == nil {
		profiles = []Profile{}
	}
	payload, err := json.MarshalIndent(registryFile{Version: registryVersion, Profiles: profiles}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, append(payload, '\n'), 0o600)
}
