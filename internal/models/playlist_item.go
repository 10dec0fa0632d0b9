package models

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"
)

// SeedTitle is the title given to items created from the static seed list
const SeedTitle = "Default Stream"

// PlaylistItem represents a single entry in a playlist
type PlaylistItem struct {
	ContentRef      string    `json:"contentRef"`
	Title           string    `json:"title"`
	DurationSeconds int       `json:"durationSeconds"`
	Kind            ItemKind  `json:"kind"`
	AddedAt         time.Time `json:"addedAt"`
}

// NewPlaylistItem creates a new PlaylistItem stamped with the current time
func NewPlaylistItem(contentRef, title string, durationSeconds int) PlaylistItem {
	return PlaylistItem{
		ContentRef:      contentRef,
		Title:           title,
		DurationSeconds: durationSeconds,
		Kind:            ItemKindVideo,
		AddedAt:         time.Now().UTC(),
	}
}

// playlistItemWire accepts both the current field names and the older
// youtubeId/duration/type names written by earlier clients.
type playlistItemWire struct {
	ContentRef      string    `json:"contentRef"`
	YoutubeID       string    `json:"youtubeId"`
	Title           string    `json:"title"`
	DurationSeconds int       `json:"durationSeconds"`
	Duration        int       `json:"duration"`
	Kind            ItemKind  `json:"kind"`
	Type            ItemKind  `json:"type"`
	AddedAt         time.Time `json:"addedAt"`
}

// UnmarshalJSON decodes an item from either an object or a bare content ref string
func (p *PlaylistItem) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var ref string
		if err := json.Unmarshal(data, &ref); err != nil {
			return err
		}
		*p = PlaylistItem{ContentRef: ref, Kind: ItemKindVideo}
		return nil
	}

	var w playlistItemWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	item := PlaylistItem{
		ContentRef:      w.ContentRef,
		Title:           w.Title,
		DurationSeconds: w.DurationSeconds,
		Kind:            w.Kind,
		AddedAt:         w.AddedAt,
	}
	if item.ContentRef == "" {
		item.ContentRef = w.YoutubeID
	}
	if item.DurationSeconds == 0 {
		item.DurationSeconds = w.Duration
	}
	if item.Kind == "" {
		item.Kind = w.Type
	}
	if item.Kind == "" {
		item.Kind = ItemKindVideo
	}
	*p = item
	return nil
}

// PlaylistSet maps playlist ids to their ordered items
type PlaylistSet map[string][]PlaylistItem

// Refs returns the ordered content refs of the given playlist, skipping
// entries without a ref
func (s PlaylistSet) Refs(id string) []string {
	items := s[id]
	refs := make([]string, 0, len(items))
	for _, item := range items {
		if item.ContentRef == "" {
			continue
		}
		refs = append(refs, item.ContentRef)
	}
	return refs
}

// IDs returns the playlist ids in sorted order with the default playlist first
func (s PlaylistSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i] == DefaultPlaylistID || ids[j] == DefaultPlaylistID {
			return ids[i] == DefaultPlaylistID
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Clone returns a deep copy of the set
func (s PlaylistSet) Clone() PlaylistSet {
	out := make(PlaylistSet, len(s))
	for id, items := range s {
		out[id] = append([]PlaylistItem(nil), items...)
	}
	return out
}

// SeedItems builds playlist items for the static seed content refs
func SeedItems(refs []string, now time.Time) []PlaylistItem {
	items := make([]PlaylistItem, 0, len(refs))
	for _, ref := range refs {
		items = append(items, PlaylistItem{
			ContentRef: ref,
			Title:      SeedTitle,
			Kind:       ItemKindVideo,
			AddedAt:    now.UTC(),
		})
	}
	return items
}

// VideoPlaylistID returns the pseudo playlist id used for single-video content
func VideoPlaylistID(contentRef string) string {
	return VideoPlaylistPrefix + contentRef
}
