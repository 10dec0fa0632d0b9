package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/stwalsh4118/vigil/internal/logger"
	"github.com/stwalsh4118/vigil/internal/mirror"
	"github.com/stwalsh4118/vigil/internal/models"
)

const (
	pushQueueSize   = 64
	pushTimeout     = 5 * time.Second
	localOpDeadline = 5 * time.Second
)

// SyncedKeys are the keys exchanged with the remote mirror
var SyncedKeys = []string{
	models.KeyPlaylists,
	models.KeyScheduleEvents,
	models.KeyPlaybackOrder,
	models.KeyForcePlayDirective,
	models.KeyLegacyRules,
}

type pushRequest struct {
	key   string
	value []byte
}

// State is a typed view over the local store. Every write lands locally
// first and is then queued for the mirror in the background. Reads never
// fail on malformed data: they log and fall back to the empty default.
type State struct {
	local  Local
	mirror mirror.Mirror
	now    func() time.Time

	pushQueue chan pushRequest
	stopChan  chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewState creates a State and starts its mirror push worker
func NewState(local Local, m mirror.Mirror) *State {
	if m == nil {
		m = mirror.NewDisabled()
	}
	s := &State{
		local:     local,
		mirror:    m,
		now:       time.Now,
		pushQueue: make(chan pushRequest, pushQueueSize),
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	go s.runPusher()
	return s
}

// Close stops the push worker after draining queued writes
func (s *State) Close() {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		<-s.done
	})
}

// Mirror returns the mirror this state writes through to
func (s *State) Mirror() mirror.Mirror {
	return s.mirror
}

// Playlists returns every playlist. A missing or malformed value reads as an empty set.
func (s *State) Playlists(ctx context.Context) models.PlaylistSet {
	set := readJSON(ctx, s.local, models.KeyPlaylists, models.PlaylistSet{})
	if set == nil {
		set = models.PlaylistSet{}
	}
	return set
}

// SavePlaylists replaces all playlists, bumps the content update stamp and
// mirrors the playlists with a lastUpdate marker
func (s *State) SavePlaylists(ctx context.Context, set models.PlaylistSet) error {
	if err := s.write(ctx, models.KeyPlaylists, set, true); err != nil {
		return err
	}
	now := s.now()
	if err := s.write(ctx, models.KeyLastUpdate, now.UnixMilli(), true); err != nil {
		return err
	}
	return s.TouchUpdateStamp(ctx)
}

// EnsureDefaultPlaylist seeds the default playlist from the static seed list
// when it is missing or empty. It returns the resulting playlist set.
func (s *State) EnsureDefaultPlaylist(ctx context.Context, seeds []string) (models.PlaylistSet, error) {
	set := s.Playlists(ctx)
	if len(seeds) == 0 || len(set[models.DefaultPlaylistID]) > 0 {
		return set, nil
	}

	set[models.DefaultPlaylistID] = models.SeedItems(seeds, s.now())
	if err := s.SavePlaylists(ctx, set); err != nil {
		return set, fmt.Errorf("failed to seed default playlist: %w", err)
	}

	logger.Log.Info().
		Int("items", len(seeds)).
		Msg("Seeded default playlist")
	return set, nil
}

// ScheduleEvents returns every schedule event
func (s *State) ScheduleEvents(ctx context.Context) []models.ScheduleEvent {
	return readList[models.ScheduleEvent](ctx, s.local, models.KeyScheduleEvents)
}

// SaveScheduleEvents replaces all schedule events
func (s *State) SaveScheduleEvents(ctx context.Context, events []models.ScheduleEvent) error {
	if events == nil {
		events = []models.ScheduleEvent{}
	}
	return s.write(ctx, models.KeyScheduleEvents, events, true)
}

// LegacyRules returns the legacy playlist schedule rules
func (s *State) LegacyRules(ctx context.Context) []models.LegacyRule {
	return readList[models.LegacyRule](ctx, s.local, models.KeyLegacyRules)
}

// SaveLegacyRules replaces the legacy playlist schedule rules
func (s *State) SaveLegacyRules(ctx context.Context, rules []models.LegacyRule) error {
	if rules == nil {
		rules = []models.LegacyRule{}
	}
	return s.write(ctx, models.KeyLegacyRules, rules, true)
}

// PlaybackOrder returns the global playback order, sequential unless set to a known value
func (s *State) PlaybackOrder(ctx context.Context) models.PlaybackOrder {
	order := readJSON(ctx, s.local, models.KeyPlaybackOrder, models.PlaybackOrderSequential)
	if !order.Valid() {
		return models.PlaybackOrderSequential
	}
	return order
}

// SetPlaybackOrder stores the global playback order
func (s *State) SetPlaybackOrder(ctx context.Context, order models.PlaybackOrder) error {
	if !order.Valid() {
		return fmt.Errorf("invalid playback order %q", order)
	}
	return s.write(ctx, models.KeyPlaybackOrder, order, true)
}

// ForcePlay returns the current force-play directive or nil
func (s *State) ForcePlay(ctx context.Context) *models.ForcePlayDirective {
	return readJSON[*models.ForcePlayDirective](ctx, s.local, models.KeyForcePlayDirective, nil)
}

// SetForcePlay stores a force-play directive
func (s *State) SetForcePlay(ctx context.Context, d *models.ForcePlayDirective) error {
	if d == nil {
		return fmt.Errorf("directive cannot be nil")
	}
	return s.write(ctx, models.KeyForcePlayDirective, d, true)
}

// UpdateStamp returns the content update stamp in epoch milliseconds
func (s *State) UpdateStamp(ctx context.Context) int64 {
	return readJSON[int64](ctx, s.local, models.KeyPlaylistUpdateTimestamp, 0)
}

// TouchUpdateStamp sets the content update stamp to now. The stamp is local
// only; every viewer keeps its own.
func (s *State) TouchUpdateStamp(ctx context.Context) error {
	stamp := s.now().UnixMilli()
	if prev := s.UpdateStamp(ctx); stamp <= prev {
		stamp = prev + 1
	}
	return s.write(ctx, models.KeyPlaylistUpdateTimestamp, stamp, false)
}

// ApplyRemote stores a value received from the mirror without pushing it
// back. Values that are not valid JSON are rejected with ErrMalformedValue.
func (s *State) ApplyRemote(ctx context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("remote %s: %w", key, ErrMalformedValue)
	}

	if err := s.local.Set(ctx, key, value); err != nil {
		return fmt.Errorf("failed to store remote %s: %w", key, err)
	}
	if key == models.KeyPlaylists {
		return s.TouchUpdateStamp(ctx)
	}
	return nil
}

// Pull copies every synced key present in the mirror into the local store.
// It returns the number of keys copied.
func (s *State) Pull(ctx context.Context) int {
	if !s.mirror.Enabled() {
		return 0
	}

	pulled := 0
	for _, key := range SyncedKeys {
		value, found := s.mirror.Get(ctx, key)
		if !found {
			continue
		}
		if err := s.ApplyRemote(ctx, key, value); err != nil {
			logger.Log.Warn().
				Err(err).
				Str("key", key).
				Msg("Failed to apply pulled value")
			continue
		}
		pulled++
	}

	logger.Log.Info().
		Int("keys", pulled).
		Msg("Pulled state from mirror")
	return pulled
}

// PushAll synchronously writes every synced key present locally to the
// mirror. It returns the number of keys that failed to push.
func (s *State) PushAll(ctx context.Context) (int, error) {
	if !s.mirror.Enabled() {
		return 0, mirror.ErrDisabled
	}

	failed := 0
	for _, key := range append([]string{models.KeyLastUpdate}, SyncedKeys...) {
		value, found, err := s.local.Get(ctx, key)
		if err != nil {
			return failed, fmt.Errorf("failed to read %s: %w", key, err)
		}
		if !found {
			continue
		}
		if !s.mirror.Set(ctx, key, value) {
			failed++
		}
	}
	return failed, nil
}

// write encodes value, stores it locally and optionally queues it for the mirror
func (s *State) write(ctx context.Context, key string, value any, mirrored bool) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	if err := s.local.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}

	if mirrored && s.mirror.Enabled() {
		s.enqueuePush(key, raw)
	}
	return nil
}

func (s *State) enqueuePush(key string, raw []byte) {
	select {
	case <-s.stopChan:
		return
	default:
	}

	select {
	case s.pushQueue <- pushRequest{key: key, value: raw}:
	default:
		logger.Log.Warn().
			Str("key", key).
			Msg("Mirror push queue full, dropping write")
	}
}

// runPusher sends queued writes to the mirror in order
func (s *State) runPusher() {
	defer close(s.done)

	for {
		select {
		case req := <-s.pushQueue:
			s.push(req)
		case <-s.stopChan:
			for {
				select {
				case req := <-s.pushQueue:
					s.push(req)
				default:
					return
				}
			}
		}
	}
}

func (s *State) push(req pushRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()

	if !s.mirror.Set(ctx, req.key, req.value) {
		logger.Log.Debug().
			Str("key", req.key).
			Msg("Mirror write skipped")
	}
}

// readJSON decodes the value under key, returning def when it is absent,
// unreadable or malformed
func readJSON[T any](ctx context.Context, local Local, key string, def T) T {
	ctx, cancel := context.WithTimeout(ctx, localOpDeadline)
	defer cancel()

	raw, found, err := local.Get(ctx, key)
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Str("key", key).
			Msg("Failed to read local state, using default")
		return def
	}
	if !found || len(raw) == 0 {
		return def
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		logger.Log.Warn().
			Err(err).
			Str("key", key).
			Msg("Malformed local state, using default")
		return def
	}
	return out
}

// readList decodes the list under key one element at a time. Elements that
// fail to decode are dropped so one bad entry cannot hide its siblings.
func readList[T any](ctx context.Context, local Local, key string) []T {
	raws := readJSON[[]json.RawMessage](ctx, local, key, nil)
	if raws == nil {
		return nil
	}

	out := make([]T, 0, len(raws))
	for i, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			logger.Log.Warn().
				Err(err).
				Str("key", key).
				Int("index", i).
				Msg("Dropping malformed entry from local state")
			continue
		}
		out = append(out, v)
	}
	return out
}
