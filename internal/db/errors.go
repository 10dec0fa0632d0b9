package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Local store errors
var (
	ErrNotFound = errors.New("state entry not found")

	// ErrBusy indicates another process holds the store file's write lock
	ErrBusy = errors.New("local store busy")
)

// IsNotFound checks if error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

// IsBusy checks if error is a lock contention error
func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}

// MapGormError maps GORM and SQLite errors to local store errors
func MapGormError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	// several viewers may share one store file
	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY") {
		return errors.Join(ErrBusy, err)
	}

	return err
}
