// Package mirror provides the remote mirror: a best-effort replica of the
// local state shared by every viewer and the authoring surface. The mirror is
// never required for playback. When it is disabled or unreachable every
// operation degrades to a no-op.
package mirror

import (
	"context"
	"time"
)

// Status describes the mirror connection for display
type Status string

// Mirror statuses
const (
	StatusDisabled     Status = "disabled"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDegraded     Status = "degraded"
	StatusUnauthorized Status = "permission_denied"
	StatusUnavailable  Status = "unavailable"
)

// Handler receives the raw value published for a subscribed key
type Handler func(value []byte)

// LogEntry is a diagnostic record appended to the remote log
type LogEntry struct {
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Origin    string         `json:"origin,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Mirror is the remote replica of the state store
type Mirror interface {
	// Init connects to the backend. A failed Init leaves the mirror usable in
	// a degraded state.
	Init(ctx context.Context) error
	Enabled() bool
	// Get returns the value under key and whether it was found. Failures read
	// as absent.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores the value under key and notifies subscribers. It reports
	// whether the write succeeded.
	Set(ctx context.Context, key string, value []byte) bool
	// Subscribe delivers every remote change of key to fn until Close
	Subscribe(key string, fn Handler) error
	Log(ctx context.Context, entry LogEntry)
	Status() Status
	Close() error
}

// Disabled is a Mirror that does nothing
type Disabled struct{}

// NewDisabled returns a no-op mirror
func NewDisabled() *Disabled {
	return &Disabled{}
}

// Init implements Mirror
func (Disabled) Init(context.Context) error { return nil }

// Enabled implements Mirror
func (Disabled) Enabled() bool { return false }

// Get implements Mirror
func (Disabled) Get(context.Context, string) ([]byte, bool) { return nil, false }

// Set implements Mirror
func (Disabled) Set(context.Context, string, []byte) bool { return false }

// Subscribe implements Mirror
func (Disabled) Subscribe(string, Handler) error { return ErrDisabled }

// Log implements Mirror
func (Disabled) Log(context.Context, LogEntry) {}

// Status implements Mirror
func (Disabled) Status() Status { return StatusDisabled }

// Close implements Mirror
func (Disabled) Close() error { return nil }
