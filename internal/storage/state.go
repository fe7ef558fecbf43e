package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GlobalBucket holds state shared across all workspaces.
const GlobalBucket = "global"

// WorkspaceBucket derives the bucket name for a workspace root. The path
// is hashed so bucket names stay short and filesystem-agnostic.
func WorkspaceBucket(workspaceDir string) string {
	sum := sha256.Sum256([]byte(workspaceDir))
	return "workspace:" + hex.EncodeToString(sum[:8])
}

// States is the durable bucketed key/value store backing the active- and
// last-profile pointers.
type States struct {
	db *gorm.DB
}

// NewStates creates a state store over an opened database.
func NewStates(db *gorm.DB) *States {
	return &States{db: db}
}

// Get returns the value stored under bucket/key; found is false when absent.
func (s *States) Get(bucket, key string) (value string, found bool, err error) {
	var rec StateEntry
	if err := s.db.Where("bucket = ? AND key = ?", bucket, key).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return rec.Value, true, nil
}

// Set stores or overwrites bucket/key.
func (s *States) Set(bucket, key, value string) error {
	rec := StateEntry{Bucket: bucket, Key: key, Value: value}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
}

// Delete removes bucket/key. Deleting an absent entry is not an error.
func (s *States) Delete(bucket, key string) error {
	return s.db.Where("bucket = ? AND key = ?", bucket, key).Delete(&StateEntry{}).Error
}
