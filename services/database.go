package services

import (
	"fmt"
	"strings"

	"agriquest/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDatabase connects to Postgres for postgres:// URLs and to a SQLite
// file for anything else (e.g. "file:server.db").
func OpenDatabase(dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if dialector.Name() == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Migrate creates or updates the authority tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.RemoteProfile{}, &models.Evidence{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
