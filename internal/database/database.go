package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"trade-journal-go/internal/models"
)

// NewDatabase opens the sqlite database at dsn and migrates the schema.
func NewDatabase(dsn string, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: newZapLogger(log, gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	log.Info("Database ready", zap.String("dsn", dsn))
	return db, nil
}

// AutoMigrate creates or updates the tables backing the key-value store.
// Unlike a cache, stored journal data must survive restarts, so nothing is dropped.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.KVEntry{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}
