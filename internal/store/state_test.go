package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/vigil/internal/db"
	"github.com/stwalsh4118/vigil/internal/mirror"
	"github.com/stwalsh4118/vigil/internal/models"
	"github.com/stwalsh4118/vigil/internal/schedule"
)

func setupSQLite(t *testing.T) *SQLite {
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), db.Options{EnableWAL: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	sqlDB, err := database.GetSQLDB()
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(sqlDB, "file://../../migrations"))

	return NewSQLite(db.NewRepositories(database).State)
}

func setupRedisState(t *testing.T, local Local) (*State, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	m := mirror.NewRedis(mirror.RedisConfig{Addr: mr.Addr(), Namespace: "test", OpTimeout: time.Second})
	t.Cleanup(func() { _ = m.Close() })
	require.NoError(t, m.Init(context.Background()))

	s := NewState(local, m)
	t.Cleanup(s.Close)
	return s, mr
}

func TestLocalImplementations(t *testing.T) {
	locals := map[string]Local{
		"memory": NewMemory(),
		"sqlite": setupSQLite(t),
	}

	for name, local := range locals {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, found, err := local.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, local.Set(ctx, "k", []byte(`{"a":1}`)))
			value, found, err := local.Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, found)
			assert.JSONEq(t, `{"a":1}`, string(value))

			require.NoError(t, local.Remove(ctx, "k"))
			_, found, err = local.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestState_MalformedValuesReadAsDefaults(t *testing.T) {
	local := NewMemory()
	s := NewState(local, nil)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, local.Set(ctx, models.KeyPlaylists, []byte(`{broken`)))
	require.NoError(t, local.Set(ctx, models.KeyScheduleEvents, []byte(`"nope"`)))
	require.NoError(t, local.Set(ctx, models.KeyPlaybackOrder, []byte(`"shuffle"`)))
	require.NoError(t, local.Set(ctx, models.KeyForcePlayDirective, []byte(`[1,2]`)))
	require.NoError(t, local.Set(ctx, models.KeyPlaylistUpdateTimestamp, []byte(`"x"`)))

	assert.Empty(t, s.Playlists(ctx))
	assert.NotNil(t, s.Playlists(ctx))
	assert.Empty(t, s.ScheduleEvents(ctx))
	assert.Equal(t, models.PlaybackOrderSequential, s.PlaybackOrder(ctx))
	assert.Nil(t, s.ForcePlay(ctx))
	assert.Equal(t, int64(0), s.UpdateStamp(ctx))
}

func TestState_ScheduleEventsSkipMalformedEntries(t *testing.T) {
	local := NewMemory()
	s := NewState(local, nil)
	defer s.Close()
	ctx := context.Background()

	raw := `[
		{"id":"good","contentType":"playlist","contentId":"morning","startDate":"2026-03-04","startTime":"08:00","duration":"60","recurrence":"daily"},
		{"id":"bad","contentType":"playlist","contentId":"x","startDate":"2026-03-04","startTime":"08:00","recurrence":7},
		42,
		{"id":"old","type":"video","contentId":"abc","startDate":"2026-03-04","startTime":"09:00","duration":30,"recurrence":"none"}
	]`
	require.NoError(t, local.Set(ctx, models.KeyScheduleEvents, []byte(raw)))

	events := s.ScheduleEvents(ctx)
	require.Len(t, events, 2)
	assert.Equal(t, "good", events[0].ID)
	assert.Equal(t, 60, events[0].DurationMinutes)
	assert.Equal(t, "old", events[1].ID)
	assert.Equal(t, models.ContentTypeVideo, events[1].ContentType)

	content, ok := schedule.Resolve(events, time.Date(2026, 3, 4, 8, 30, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, "morning", content.ID)

	require.NoError(t, local.Set(ctx, models.KeyLegacyRules, []byte(`[{"time":"06:00","type":"daily","playlistId":"legacy"},"junk"]`)))
	rules := s.LegacyRules(ctx)
	require.Len(t, rules, 1)
	assert.Equal(t, "legacy", rules[0].PlaylistID)
}

func TestState_SavePlaylistsBumpsStamp(t *testing.T) {
	s := NewState(NewMemory(), nil)
	defer s.Close()
	ctx := context.Background()

	set := models.PlaylistSet{"morning": {models.NewPlaylistItem("abc", "A", 10)}}
	require.NoError(t, s.SavePlaylists(ctx, set))
	first := s.UpdateStamp(ctx)
	assert.NotZero(t, first)

	require.NoError(t, s.SavePlaylists(ctx, set))
	assert.Greater(t, s.UpdateStamp(ctx), first)
	assert.Equal(t, []string{"abc"}, s.Playlists(ctx).Refs("morning"))
}

func TestState_EnsureDefaultPlaylist(t *testing.T) {
	s := NewState(NewMemory(), nil)
	defer s.Close()
	ctx := context.Background()

	set, err := s.EnsureDefaultPlaylist(ctx, []string{"seed1", "seed2"})
	require.NoError(t, err)
	require.Len(t, set[models.DefaultPlaylistID], 2)
	assert.Equal(t, models.SeedTitle, set[models.DefaultPlaylistID][0].Title)

	// existing content is left alone
	require.NoError(t, s.SavePlaylists(ctx, models.PlaylistSet{models.DefaultPlaylistID: {models.NewPlaylistItem("mine", "", 0)}}))
	set, err = s.EnsureDefaultPlaylist(ctx, []string{"seed1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"mine"}, set.Refs(models.DefaultPlaylistID))
}

func TestState_PlaybackOrderAndForcePlay(t *testing.T) {
	s := NewState(NewMemory(), nil)
	defer s.Close()
	ctx := context.Background()

	assert.Error(t, s.SetPlaybackOrder(ctx, "shuffle"))
	require.NoError(t, s.SetPlaybackOrder(ctx, models.PlaybackOrderRandom))
	assert.Equal(t, models.PlaybackOrderRandom, s.PlaybackOrder(ctx))

	assert.Error(t, s.SetForcePlay(ctx, nil))
	d := models.NewForcePlayDirective("abc", "morning", 30, time.Now())
	require.NoError(t, s.SetForcePlay(ctx, d))
	assert.Equal(t, d, s.ForcePlay(ctx))
}

func TestState_WritesThroughToMirror(t *testing.T) {
	s, mr := setupRedisState(t, NewMemory())
	ctx := context.Background()

	require.NoError(t, s.SaveScheduleEvents(ctx, []models.ScheduleEvent{{ID: "e1", Recurrence: models.RecurrenceDaily}}))
	require.NoError(t, s.SetPlaybackOrder(ctx, models.PlaybackOrderRandom))

	assert.Eventually(t, func() bool {
		return mr.HGet("test:state", models.KeyPlaybackOrder) == `"random"` &&
			mr.HGet("test:state", models.KeyScheduleEvents) != ""
	}, 2*time.Second, 10*time.Millisecond)

	// the update stamp stays local
	require.NoError(t, s.TouchUpdateStamp(ctx))
	s.Close()
	assert.Empty(t, mr.HGet("test:state", models.KeyPlaylistUpdateTimestamp))
}

func TestState_PullAndPushAll(t *testing.T) {
	local := NewMemory()
	s, mr := setupRedisState(t, local)
	ctx := context.Background()

	mr.HSet("test:state", models.KeyPlaylists, `{"evening":["xyz"]}`)
	mr.HSet("test:state", models.KeyPlaybackOrder, `"random"`)
	mr.HSet("test:state", models.KeyScheduleEvents, `{broken`)

	assert.Equal(t, 2, s.Pull(ctx))
	assert.Equal(t, []string{"xyz"}, s.Playlists(ctx).Refs("evening"))
	assert.Equal(t, models.PlaybackOrderRandom, s.PlaybackOrder(ctx))
	assert.NotZero(t, s.UpdateStamp(ctx))

	mr.FlushAll()
	failed, err := s.PushAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, failed)
	assert.Equal(t, `"random"`, mr.HGet("test:state", models.KeyPlaybackOrder))
}

func TestState_PushAllWithoutMirror(t *testing.T) {
	s := NewState(NewMemory(), mirror.NewDisabled())
	defer s.Close()

	_, err := s.PushAll(context.Background())
	assert.True(t, mirror.IsDisabled(err))
	assert.Equal(t, 0, s.Pull(context.Background()))
}

func TestState_ApplyRemoteRejectsMalformed(t *testing.T) {
	s := NewState(NewMemory(), nil)
	defer s.Close()
	ctx := context.Background()

	err := s.ApplyRemote(ctx, models.KeyPlaylists, []byte(`{broken`))
	assert.True(t, IsMalformedValue(err))
	assert.Equal(t, int64(0), s.UpdateStamp(ctx))

	require.NoError(t, s.ApplyRemote(ctx, models.KeyScheduleEvents, []byte(`[]`)))
	assert.Equal(t, int64(0), s.UpdateStamp(ctx))
}
