package playback

import (
	"context"
	"time"

	"github.com/stwalsh4118/vigil/internal/mirror"
)

const reportTimeout = 5 * time.Second

// Reporter receives classified playback errors. Implementations must not block.
type Reporter interface {
	Report(err *PlaybackError)
}

// MirrorReporter appends playback errors to the mirror's remote log
type MirrorReporter struct {
	mirror mirror.Mirror
}

// NewMirrorReporter creates a reporter writing to m
func NewMirrorReporter(m mirror.Mirror) *MirrorReporter {
	return &MirrorReporter{mirror: m}
}

// Report implements Reporter. The write happens in the background.
func (r *MirrorReporter) Report(err *PlaybackError) {
	if r.mirror == nil || !r.mirror.Enabled() {
		return
	}

	entry := mirror.LogEntry{
		Level:   err.Severity.String(),
		Message: "Playback error",
		Details: map[string]any{
			"code":        err.Code,
			"error_type":  err.Type.String(),
			"content_ref": err.ContentRef,
			"live":        err.Live,
		},
		Timestamp: time.Now().UTC(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
		defer cancel()
		r.mirror.Log(ctx, entry)
	}()
}
