package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// WithTransaction runs fn in one transaction so a batch of state entries
// lands together. fn returning an error rolls the batch back.
func (db *DB) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if err := db.DB.WithContext(ctx).Transaction(fn); err != nil {
		return fmt.Errorf("transaction error: %w", MapGormError(err))
	}
	return nil
}
