package models

import "time"

// ForcePlayDirective is a broadcast instruction that every viewer should be
// playing ContentRef from PlaylistID, positioned by elapsed wall-clock time
// since IssuedAt
type ForcePlayDirective struct {
	ContentRef      string `json:"videoId"`
	PlaylistID      string `json:"playlistId"`
	IssuedAt        int64  `json:"timestamp"` // epoch milliseconds
	DurationSeconds int    `json:"duration"`
}

// NewForcePlayDirective creates a directive issued at now
func NewForcePlayDirective(contentRef, playlistID string, durationSeconds int, now time.Time) *ForcePlayDirective {
	return &ForcePlayDirective{
		ContentRef:      contentRef,
		PlaylistID:      playlistID,
		IssuedAt:        now.UnixMilli(),
		DurationSeconds: durationSeconds,
	}
}

// Issued returns IssuedAt as a time
func (d ForcePlayDirective) Issued() time.Time {
	return time.UnixMilli(d.IssuedAt)
}

// Elapsed returns the wall-clock time since the directive was issued. It is
// negative when the issuing clock is ahead of ours.
func (d ForcePlayDirective) Elapsed(now time.Time) time.Duration {
	return time.Duration(now.UnixMilli()-d.IssuedAt) * time.Millisecond
}

// Valid reports whether the directive still applies at now. Directives
// slightly from the future are accepted within skewGrace. A directive with a
// known duration expires when its content would have finished; one without
// expires after ceiling.
func (d ForcePlayDirective) Valid(now time.Time, skewGrace, ceiling time.Duration) bool {
	if d.ContentRef == "" || d.IssuedAt <= 0 {
		return false
	}
	elapsed := d.Elapsed(now)
	if elapsed <= -skewGrace {
		return false
	}
	if d.DurationSeconds > 0 {
		return elapsed < time.Duration(d.DurationSeconds)*time.Second
	}
	return elapsed < ceiling
}
