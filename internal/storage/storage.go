// Package storage provides the process-private durable stores: the secret
// token store and the scoped state buckets, both backed by a single SQLite
// database in the tool's storage directory.
package storage

import (
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Secret is one stored secret payload, keyed by the namespaced profile key.
// Values are JSON-encoded token blobs and never leave this table for the
// plaintext registry.
type Secret struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}

// StateEntry is one durable key/value pair inside a named bucket.
type StateEntry struct {
	Bucket    string `gorm:"primaryKey"`
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}

// Open initializes the SQLite database and runs migrations.
func Open(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Secret{}, &StateEntry{}); err != nil {
		return nil, err
	}
	return db, nil
}
