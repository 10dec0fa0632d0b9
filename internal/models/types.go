package models

// Recurrence describes how a schedule event repeats
type Recurrence string

// Recurrence values
const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

// Priority ranks recurrences for conflict resolution. A one-off event beats
// a monthly event, which beats weekly, which beats daily. Unknown values rank
// below everything so they never win.
func (r Recurrence) Priority() int {
	switch r {
	case RecurrenceNone:
		return 3
	case RecurrenceMonthly:
		return 2
	case RecurrenceWeekly:
		return 1
	case RecurrenceDaily:
		return 0
	default:
		return -1
	}
}

// Valid reports whether r is a known recurrence
func (r Recurrence) Valid() bool {
	return r.Priority() >= 0
}

// ContentType identifies what a schedule event plays
type ContentType string

// Content types
const (
	ContentTypePlaylist ContentType = "playlist"
	ContentTypeVideo    ContentType = "video"
)

// Valid reports whether c is a known content type
func (c ContentType) Valid() bool {
	return c == ContentTypePlaylist || c == ContentTypeVideo
}

// PlaybackOrder is the global setting for how the engine advances
type PlaybackOrder string

// Playback orders
const (
	PlaybackOrderSequential PlaybackOrder = "sequential"
	PlaybackOrderRandom     PlaybackOrder = "random"
)

// Valid reports whether o is a known playback order
func (o PlaybackOrder) Valid() bool {
	return o == PlaybackOrderSequential || o == PlaybackOrderRandom
}

// ItemKind describes the kind of a playlist entry
type ItemKind string

// Item kinds
const (
	ItemKindVideo ItemKind = "video"
	ItemKindLive  ItemKind = "live"
)

// Persisted state keys shared by the local store and the remote mirror
const (
	KeyPlaylists               = "playlists"
	KeyScheduleEvents          = "scheduleEvents"
	KeyPlaybackOrder           = "playbackOrder"
	KeyForcePlayDirective      = "forcePlayDirective"
	KeyPlaylistUpdateTimestamp = "playlistUpdateTimestamp"
	KeyLegacyRules             = "playlistSchedule"
	KeyLastUpdate              = "lastUpdate"
)

// DefaultPlaylistID is the playlist that always exists and cannot be deleted
const DefaultPlaylistID = "default"

// Display names recorded on schedule events
const (
	DefaultPlaylistName = "Default Playlist"
	VideoContentName    = "YouTube Video"
)

// VideoPlaylistPrefix prefixes the pseudo playlist id used when a schedule
// event targets a single video
const VideoPlaylistPrefix = "video-"
