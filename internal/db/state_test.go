package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) (*DB, func()) {
	tmpFile := filepath.Join(t.TempDir(), "test.db")
	database, err := New(tmpFile, Options{EnableWAL: true})
	require.NoError(t, err)

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)

	err = RunMigrations(sqlDB, "file://../../migrations")
	require.NoError(t, err)

	return database, func() {
		_ = database.Close()
	}
}

func TestStateEntryRepository_PutAndGet(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRepositories(database).State
	ctx := context.Background()

	_, err := repo.Get(ctx, "playlists")
	assert.True(t, IsNotFound(err))

	require.NoError(t, repo.Put(ctx, "playlists", `{"default":[]}`))
	entry, err := repo.Get(ctx, "playlists")
	require.NoError(t, err)
	assert.Equal(t, `{"default":[]}`, entry.Value)
	first := entry.UpdatedAt

	require.NoError(t, repo.Put(ctx, "playlists", `{"default":["a"]}`))
	entry, err = repo.Get(ctx, "playlists")
	require.NoError(t, err)
	assert.Equal(t, `{"default":["a"]}`, entry.Value)
	assert.False(t, entry.UpdatedAt.Before(first))
}

func TestStateEntryRepository_PutManyAndList(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewStateEntryRepository(database)
	ctx := context.Background()

	require.NoError(t, repo.PutMany(ctx, map[string]string{
		"b": `2`,
		"a": `1`,
	}))
	require.NoError(t, repo.PutMany(ctx, nil))

	entries, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Key)
	assert.Equal(t, "b", entries[1].Key)
}

func TestStateEntryRepository_Delete(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewStateEntryRepository(database)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, "k", `"v"`))
	require.NoError(t, repo.Delete(ctx, "k"))
	require.NoError(t, repo.Delete(ctx, "missing"))

	_, err := repo.Get(ctx, "k")
	assert.True(t, IsNotFound(err))
}

func TestDB_Health(t *testing.T) {
	database, cleanup := setupTestDB(t)
	defer cleanup()

	assert.NoError(t, database.Health(context.Background()))
}

func TestMapGormError(t *testing.T) {
	assert.Nil(t, MapGormError(nil))
	assert.ErrorIs(t, MapGormError(assert.AnError), assert.AnError)
	assert.True(t, IsNotFound(MapGormError(gorm.ErrRecordNotFound)))

	busy := MapGormError(errors.New("database is locked (5) (SQLITE_BUSY)"))
	assert.True(t, IsBusy(busy))
	assert.Contains(t, busy.Error(), "database is locked")
}
