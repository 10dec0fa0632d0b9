package db

import (
	"context"
	"fmt"
	"time"

	"github.com/stwalsh4118/vigil/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StateEntryRepository handles database operations for persisted state keys
type StateEntryRepository struct {
	db *DB
}

// NewStateEntryRepository creates a new state entry repository
func NewStateEntryRepository(db *DB) *StateEntryRepository {
	return &StateEntryRepository{db: db}
}

// Get retrieves the entry stored under key
func (r *StateEntryRepository) Get(ctx context.Context, key string) (*models.StateEntry, error) {
	var entry models.StateEntry
	result := r.db.WithContext(ctx).Where("key = ?", key).First(&entry)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &entry, nil
}

// Put inserts or replaces the value stored under key
func (r *StateEntryRepository) Put(ctx context.Context, key, value string) error {
	return r.put(r.db.WithContext(ctx), key, value)
}

// PutMany writes several keys in a single transaction
func (r *StateEntryRepository) PutMany(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	return r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		for key, value := range values {
			if err := r.put(tx, key, value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *StateEntryRepository) put(tx *gorm.DB, key, value string) error {
	entry := models.StateEntry{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}
	result := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry)
	if result.Error != nil {
		return fmt.Errorf("failed to put state entry %q: %w", key, MapGormError(result.Error))
	}
	return nil
}

// Delete removes the entry stored under key. Deleting a missing key is not an error.
func (r *StateEntryRepository) Delete(ctx context.Context, key string) error {
	result := r.db.WithContext(ctx).Where("key = ?", key).Delete(&models.StateEntry{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete state entry %q: %w", key, MapGormError(result.Error))
	}
	return nil
}

// List retrieves all entries ordered by key
func (r *StateEntryRepository) List(ctx context.Context) ([]*models.StateEntry, error) {
	var entries []*models.StateEntry
	result := r.db.WithContext(ctx).Order("key ASC").Find(&entries)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list state entries: %w", MapGormError(result.Error))
	}
	return entries, nil
}
