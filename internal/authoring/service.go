// Package authoring implements the authoring surface: the operations an
// administrator uses to edit playlists, the schedule and the playback
// settings, and to broadcast force-play directives. Every mutation goes
// through the shared state store so that viewers converge on it.
package authoring

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/stwalsh4118/vigil/internal/logger"
	"github.com/stwalsh4118/vigil/internal/mirror"
	"github.com/stwalsh4118/vigil/internal/models"
	"github.com/stwalsh4118/vigil/internal/store"
)

const defaultItemTitle = "New Video"

// Service handles authoring operations
type Service struct {
	state *store.State
	now   func() time.Time
}

// NewService creates a new authoring service instance
func NewService(state *store.State) *Service {
	return &Service{
		state: state,
		now:   time.Now,
	}
}

// ListPlaylists returns every playlist
func (s *Service) ListPlaylists(ctx context.Context) models.PlaylistSet {
	return s.state.Playlists(ctx)
}

// GetPlaylist returns the items of one playlist
func (s *Service) GetPlaylist(ctx context.Context, id string) ([]models.PlaylistItem, error) {
	items, ok := s.state.Playlists(ctx)[id]
	if !ok {
		return nil, ErrPlaylistNotFound
	}
	if items == nil {
		items = []models.PlaylistItem{}
	}
	return items, nil
}

// CreatePlaylist creates an empty playlist whose id is derived from name
func (s *Service) CreatePlaylist(ctx context.Context, name string) (string, error) {
	id := PlaylistIDFromName(name)
	if id == "" || strings.HasPrefix(id, models.VideoPlaylistPrefix) {
		return "", fmt.Errorf("failed to create playlist: %w", ErrInvalidName)
	}

	set := s.state.Playlists(ctx)
	if _, exists := set[id]; exists {
		logger.Log.Warn().
			Str("playlist_id", id).
			Msg("Playlist creation failed: duplicate id")
		return "", fmt.Errorf("failed to create playlist: %w", ErrPlaylistExists)
	}

	set[id] = []models.PlaylistItem{}
	if err := s.state.SavePlaylists(ctx, set); err != nil {
		return "", fmt.Errorf("failed to create playlist: %w", err)
	}

	logger.Log.Info().
		Str("playlist_id", id).
		Str("name", name).
		Msg("Playlist created successfully")

	return id, nil
}

// DeletePlaylist deletes a playlist. The default playlist cannot be deleted.
func (s *Service) DeletePlaylist(ctx context.Context, id string) error {
	if id == models.DefaultPlaylistID {
		return fmt.Errorf("failed to delete playlist: %w", ErrDefaultPlaylistProtected)
	}

	set := s.state.Playlists(ctx)
	if _, exists := set[id]; !exists {
		return fmt.Errorf("failed to delete playlist: %w", ErrPlaylistNotFound)
	}

	delete(set, id)
	if err := s.state.SavePlaylists(ctx, set); err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}

	logger.Log.Info().
		Str("playlist_id", id).
		Msg("Playlist deleted successfully")

	return nil
}

// AddItemsRequest describes content to insert into a playlist
type AddItemsRequest struct {
	// Input holds one or more ids or URLs separated by commas or whitespace
	Input string `json:"input" binding:"required"`
	// Title applies when exactly one item is added
	Title string `json:"title"`
	// Duration is an ISO-8601 duration (PT#H#M#S) applied when exactly one item is added
	Duration string `json:"duration"`
	// Position is 1-based; out-of-range values clamp to the ends
	Position int `json:"position"`
}

// AddItems inserts the referenced content at the requested position and
// returns the number of items added. Inputs that name no content are skipped.
func (s *Service) AddItems(ctx context.Context, playlistID string, req AddItemsRequest) (int, error) {
	set := s.state.Playlists(ctx)
	items, exists := set[playlistID]
	if !exists && playlistID != models.DefaultPlaylistID {
		return 0, fmt.Errorf("failed to add items: %w", ErrPlaylistNotFound)
	}

	inputs := SplitRefs(req.Input)
	var added []models.PlaylistItem
	for _, input := range inputs {
		ref, ok := ExtractContentRef(input)
		if !ok {
			logger.Log.Debug().
				Str("input", input).
				Msg("Skipping input without a content reference")
			continue
		}

		title := defaultItemTitle
		duration := 0
		if len(inputs) == 1 {
			if req.Title != "" {
				title = req.Title
			}
			if seconds, ok := ParseISODuration(req.Duration); ok {
				duration = seconds
			}
		}

		item := models.NewPlaylistItem(ref, title, duration)
		item.AddedAt = s.now().UTC()
		added = append(added, item)
	}

	if len(added) == 0 {
		return 0, fmt.Errorf("failed to add items: %w", ErrNoValidRefs)
	}

	at := min(max(req.Position-1, 0), len(items))
	set[playlistID] = slices.Insert(slices.Clone(items), at, added...)

	if err := s.state.SavePlaylists(ctx, set); err != nil {
		return 0, fmt.Errorf("failed to add items: %w", err)
	}

	logger.Log.Info().
		Str("playlist_id", playlistID).
		Int("added", len(added)).
		Int("position", at+1).
		Msg("Added items to playlist")

	return len(added), nil
}

// RemoveItem removes the item at the 0-based index
func (s *Service) RemoveItem(ctx context.Context, playlistID string, index int) error {
	set := s.state.Playlists(ctx)
	items, exists := set[playlistID]
	if !exists {
		return fmt.Errorf("failed to remove item: %w", ErrPlaylistNotFound)
	}
	if index < 0 || index >= len(items) {
		return fmt.Errorf("failed to remove item: %w", ErrItemNotFound)
	}

	removed := items[index]
	set[playlistID] = slices.Delete(slices.Clone(items), index, index+1)
	if err := s.state.SavePlaylists(ctx, set); err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}

	logger.Log.Info().
		Str("playlist_id", playlistID).
		Str("content_ref", removed.ContentRef).
		Int("index", index).
		Msg("Removed item from playlist")

	return nil
}

// PlaybackOrder returns the global playback order
func (s *Service) PlaybackOrder(ctx context.Context) models.PlaybackOrder {
	return s.state.PlaybackOrder(ctx)
}

// SetPlaybackOrder changes the global playback order. Viewers pick it up on
// their next transition.
func (s *Service) SetPlaybackOrder(ctx context.Context, order models.PlaybackOrder) error {
	if !order.Valid() {
		return fmt.Errorf("failed to set playback order: %w", ErrInvalidOrder)
	}
	if err := s.state.SetPlaybackOrder(ctx, order); err != nil {
		return fmt.Errorf("failed to set playback order: %w", err)
	}

	logger.Log.Info().
		Str("order", string(order)).
		Msg("Playback order updated")
	return nil
}

// PlayNow broadcasts a force-play directive for the item at the 0-based
// index of a playlist
func (s *Service) PlayNow(ctx context.Context, playlistID string, index int) (*models.ForcePlayDirective, error) {
	items, ok := s.state.Playlists(ctx)[playlistID]
	if !ok {
		return nil, fmt.Errorf("failed to play item: %w", ErrPlaylistNotFound)
	}
	if index < 0 || index >= len(items) {
		return nil, fmt.Errorf("failed to play item: %w", ErrItemNotFound)
	}

	item := items[index]
	d := models.NewForcePlayDirective(item.ContentRef, playlistID, item.DurationSeconds, s.now())
	if err := s.state.SetForcePlay(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to play item: %w", err)
	}

	logger.Log.Info().
		Str("playlist_id", playlistID).
		Str("content_ref", item.ContentRef).
		Int("duration", item.DurationSeconds).
		Msg("Force-play directive issued")

	return d, nil
}

// ForcePlay returns the current force-play directive, or nil
func (s *Service) ForcePlay(ctx context.Context) *models.ForcePlayDirective {
	return s.state.ForcePlay(ctx)
}

// ForceSync pushes every local key to the mirror. It returns the number of
// keys that failed to push.
func (s *Service) ForceSync(ctx context.Context) (int, error) {
	failed, err := s.state.PushAll(ctx)
	if err != nil {
		if mirror.IsDisabled(err) {
			return 0, err
		}
		s.reportSyncFailure(ctx, err, failed)
		return failed, fmt.Errorf("failed to sync: %w", err)
	}
	if failed > 0 {
		s.reportSyncFailure(ctx, nil, failed)
	}

	logger.Log.Info().
		Int("failed", failed).
		Msg("Force sync completed")
	return failed, nil
}

func (s *Service) reportSyncFailure(ctx context.Context, err error, failed int) {
	details := map[string]any{"failed_keys": failed}
	if err != nil {
		details["error"] = err.Error()
	}

	logger.Log.Warn().
		Err(err).
		Int("failed", failed).
		Msg("Force sync incomplete")

	s.state.Mirror().Log(ctx, mirror.LogEntry{
		Level:     "error",
		Message:   "Force sync incomplete",
		Details:   details,
		Timestamp: s.now().UTC(),
	})
}
