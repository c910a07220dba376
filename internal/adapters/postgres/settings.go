package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsStore implements ports.SettingsStore on the options table.
type SettingsStore struct {
	db *gorm.DB
}

// NewSettingsStore creates a new settings store.
func NewSettingsStore(db *gorm.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get returns the value stored at path.
func (s *SettingsStore) Get(ctx context.Context, path string) (string, bool, error) {
	var opt Option
	err := s.db.WithContext(ctx).Where("path = ?", path).First(&opt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return opt.Value, true, nil
}

// Set stores value at path, replacing any previous value.
func (s *SettingsStore) Set(ctx context.Context, path, value string) error {
	opt := Option{Path: path, Value: value, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&opt).Error
}

// SetAll stores several values in one transaction.
func (s *SettingsStore) SetAll(ctx context.Context, values map[string]string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txStore := &SettingsStore{db: tx}
		for path, value := range values {
			if err := txStore.Set(ctx, path, value); err != nil {
				return err
			}
		}
		return nil
	})
}
