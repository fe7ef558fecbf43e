package storage

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// Namespace prefixes every secret key written by this tool.
	Namespace = "codexProfiles"
	// LegacyNamespace is the key prefix used by earlier releases. Reads
	// fall back to it; deletes clear both.
	LegacyNamespace = "codexSwitcher"
)

// ProfileSecretKey returns the current-scheme secret key for a profile id.
func ProfileSecretKey(id string) string {
	return fmt.Sprintf("%s.profile.%s", Namespace, id)
}

// LegacyProfileSecretKey returns the legacy-scheme secret key for a profile id.
func LegacyProfileSecretKey(id string) string {
	return fmt.Sprintf("%s.profile.%s", LegacyNamespace, id)
}

// Secrets is the opaque key/value secret store.
type Secrets struct {
	db *gorm.DB
}

// NewSecrets creates a secret store over an opened database.
func NewSecrets(db *gorm.DB) *Secrets {
	return &Secrets{db: db}
}

// Get returns the value for key; found is false when the key is absent.
func (s *Secrets) Get(key string) (value string, found bool, err error) {
	var rec Secret
	if err := s.db.Where("key = ?", key).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return rec.Value, true, nil
}

// Set stores or overwrites the value for key.
func (s *Secrets) Set(key, value string) error {
	rec := Secret{Key: key, Value: value}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Secrets) Delete(key string) error {
	return s.db.Where("key = ?", key).Delete(&Secret{}).Error
}
