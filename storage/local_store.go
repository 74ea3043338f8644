// Package storage provides the durable key→JSON-string mapping the client
// engine persists into. It is backed by a single SQLite file through GORM.
package storage

import (
	"errors"
	"fmt"
	"time"

	"agriquest/utils"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// KVEntry is one stored value.
type KVEntry struct {
	Key       string    `gorm:"column:kv_key;primaryKey;type:varchar(128)"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName pins the table name.
func (KVEntry) TableName() string { return "kv_entries" }

// LocalStore is a durable string store. Values are opaque to it; callers
// decide how to recover from content they cannot parse.
type LocalStore struct {
	DB *gorm.DB
}

// Open creates or opens the SQLite database at path and migrates it.
func Open(path string) (*LocalStore, error) {
	if err := utils.EnsureParentDir(path); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	// WAL + busy timeout: the CLI and a background `watch` process may share the file.
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	// SQLite only supports one writer at a time
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&KVEntry{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate local store: %w", err)
	}
	return &LocalStore{DB: db}, nil
}

// Get returns the value stored under key. ok is false when the key is absent.
func (s *LocalStore) Get(key string) (string, bool, error) {
	var entry KVEntry
	err := s.DB.Where("kv_key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return entry.Value, true, nil
}

// Set replaces the value stored under key in a single statement.
func (s *LocalStore) Set(key, value string) error {
	entry := KVEntry{Key: key, Value: value, UpdatedAt: time.Now()}
	err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kv_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *LocalStore) Delete(key string) error {
	if err := s.DB.Where("kv_key = ?", key).Delete(&KVEntry{}).Error; err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *LocalStore) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
