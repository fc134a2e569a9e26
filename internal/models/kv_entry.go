package models

import "time"

// KVEntry is one row of the scoped key-value store.
// (Scope, Key) is the primary key, so a write for an existing key replaces its value.
type KVEntry struct {
	Scope     string `gorm:"primaryKey;size:64"`
	Key       string `gorm:"column:entry_key;primaryKey;size:128"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

// TableName pins the table name so renaming the struct never orphans stored data.
func (KVEntry) TableName() string {
	return "kv_entries"
}
