package storage

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"trade-journal-go/internal/models"
)

// GormKV stores entries in the kv_entries table, one namespace per scope.
type GormKV struct {
	db    *gorm.DB
	scope string
}

// ensure GormKV implements the interface
var _ KV = (*GormKV)(nil)

// NewGorm returns a KV backed by db. The table must already be migrated.
func NewGorm(db *gorm.DB, scope string) *GormKV {
	return &GormKV{db: db, scope: scope}
}

func (s *GormKV) Get(key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}
	var entry models.KVEntry
	err := s.db.Where("scope = ? AND entry_key = ?", s.scope, key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return entry.Value, true, nil
}

func (s *GormKV) Set(key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	entry := models.KVEntry{Scope: s.scope, Key: key, Value: value}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope"}, {Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

func (s *GormKV) Remove(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	err := s.db.Where("scope = ? AND entry_key = ?", s.scope, key).Delete(&models.KVEntry{}).Error
	if err != nil {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}
