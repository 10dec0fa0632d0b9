// Package store provides the local state store and a typed view over it that
// writes through to the remote mirror.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/stwalsh4118/vigil/internal/db"
)

// Local is a durable key/value store for serialized state
type Local interface {
	// Get returns the raw value under key and whether it exists
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// SQLite is a Local backed by the state_entries table
type SQLite struct {
	repo *db.StateEntryRepository
}

// NewSQLite creates a Local on top of the state entry repository
func NewSQLite(repo *db.StateEntryRepository) *SQLite {
	return &SQLite{repo: repo}
}

// Get implements Local
func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := s.repo.Get(ctx, key)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(entry.Value), true, nil
}

// Set implements Local
func (s *SQLite) Set(ctx context.Context, key string, value []byte) error {
	return s.repo.Put(ctx, key, string(value))
}

// Remove implements Local
func (s *SQLite) Remove(ctx context.Context, key string) error {
	return s.repo.Delete(ctx, key)
}

// Memory is an in-process Local used when no database path is configured
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Get implements Local
func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set implements Local
func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return errors.New("key cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

// Remove implements Local
func (m *Memory) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
