package playback

import (
	"math/rand/v2"
	"time"

	"github.com/stwalsh4118/vigil/internal/models"
)

// State is the engine's playback state
type State int

const (
	// StateIdle means there is nothing to play
	StateIdle State = iota
	// StateLoaded means content was handed to the renderer and play is pending
	StateLoaded
	// StatePlaying means the renderer reports playback
	StatePlaying
	// StatePaused means the renderer reports a pause
	StatePaused
	// StateEnded means the current content finished and the next is being chosen
	StateEnded
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoaded:
		return "loaded"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// RenderState is the state a renderer reports for its current content
type RenderState int

const (
	RenderUnstarted RenderState = iota
	RenderPlaying
	RenderPaused
	RenderBuffering
	RenderEnded
	RenderCued
)

// String returns the string representation of RenderState
func (s RenderState) String() string {
	switch s {
	case RenderUnstarted:
		return "unstarted"
	case RenderPlaying:
		return "playing"
	case RenderPaused:
		return "paused"
	case RenderBuffering:
		return "buffering"
	case RenderEnded:
		return "ended"
	case RenderCued:
		return "cued"
	default:
		return "unknown"
	}
}

// Renderer is the video-rendering surface. Renderers report what happens to
// their content by submitting ContentEnded, ContentError and
// RendererStateChanged commands to the engine; they must never call Apply
// from inside one of these methods.
type Renderer interface {
	Load(contentRef string) error
	Play() error
	Pause() error
	Seek(seconds float64) error
	Stop() error
	CurrentOffset() float64
	State() RenderState
	CurrentRef() string
}

// Timer is a pending delayed callback
type Timer interface {
	Stop() bool
}

// Timers schedules delayed callbacks
type Timers interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realTimers struct{}

func (realTimers) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Status messages shown to the viewer
const (
	StatusNone            = ""
	StatusNoContent       = "No Content Scheduled"
	StatusReconnecting    = "Reconnecting to live source"
	StatusLiveUnavailable = "Live source unavailable, returning to schedule"
)

// Options configures an Engine
type Options struct {
	AutoFallback   bool
	MaxRetries     int
	ReconnectDelay time.Duration
	SkipDelay      time.Duration
	LoadRetryDelay time.Duration
	SeekTolerance  time.Duration
	ClockSkewGrace time.Duration
	LiveCeiling    time.Duration

	// Seeds are the static seed content refs; real content preempts them
	Seeds []string

	// Order is read on every advance so setting changes apply immediately
	Order func() models.PlaybackOrder
	// Rand returns a uniform integer in [0, n)
	Rand func(n int) int
	Now  func() time.Time

	Timers   Timers
	Reporter Reporter
	// Listener receives engine events. It runs with the engine locked and
	// must not call back into the engine.
	Listener func(Event)
}

// DefaultOptions returns the stock engine configuration
func DefaultOptions() Options {
	return Options{
		AutoFallback:   true,
		MaxRetries:     3,
		ReconnectDelay: 5 * time.Second,
		SkipDelay:      500 * time.Millisecond,
		LoadRetryDelay: time.Second,
		SeekTolerance:  5 * time.Second,
		ClockSkewGrace: 60 * time.Second,
		LiveCeiling:    time.Hour,
	}
}

func (o *Options) applyDefaults() {
	if o.Order == nil {
		o.Order = func() models.PlaybackOrder { return models.PlaybackOrderSequential }
	}
	if o.Rand == nil {
		o.Rand = rand.IntN
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Timers == nil {
		o.Timers = realTimers{}
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
}

// EventType identifies an engine event
type EventType string

// Engine events
const (
	EventLoaded        EventType = "loaded"
	EventPlaying       EventType = "playing"
	EventAdvanced      EventType = "advanced"
	EventIdle          EventType = "idle"
	EventContentError  EventType = "content_error"
	EventSkipped       EventType = "skipped"
	EventLiveStarted   EventType = "live_started"
	EventLiveRetry     EventType = "live_retry"
	EventLiveFallback  EventType = "live_fallback"
	EventReconciled    EventType = "reconciled"
	EventSeedPreempted EventType = "seed_preempted"
	EventForcePlay     EventType = "force_play"
	EventSeek          EventType = "seek"
)

// Event describes something the engine did
type Event struct {
	Type       EventType
	PlaylistID string
	ContentRef string
	Index      int
	Err        *PlaybackError
}

// Snapshot is a copy of the engine's observable state
type Snapshot struct {
	State      string   `json:"state"`
	PlaylistID string   `json:"playlistId"`
	Sequence   []string `json:"sequence"`
	Index      int      `json:"index"`
	Current    string   `json:"current"`
	Live       bool     `json:"live"`
	LiveSource string   `json:"liveSource,omitempty"`
	RetryCount int      `json:"retryCount"`
	Status     string   `json:"status"`
	Epoch      uint64   `json:"epoch"`
}
