// Package render provides a simulated video-rendering surface for headless
// viewers. It keeps a wall-clock playback offset per loaded item and reports
// the end of content to the engine once the item's known duration elapses.
package render

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stwalsh4118/vigil/internal/logger"
	"github.com/stwalsh4118/vigil/internal/playback"
	"github.com/stwalsh4118/vigil/internal/store"
)

const defaultTick = 250 * time.Millisecond

var (
	// ErrEmptyRef indicates Load was called without a content reference
	ErrEmptyRef = errors.New("content reference cannot be empty")

	// ErrNothingLoaded indicates a playback control was used before Load
	ErrNothingLoaded = errors.New("nothing loaded")
)

// Submit delivers a command to the engine without blocking
type Submit func(cmd playback.Command) bool

// DurationFunc returns the known duration of a content ref, 0 when unknown
type DurationFunc func(ref string) time.Duration

// Simulated implements playback.Renderer without decoding anything. Content
// with an unknown duration plays until replaced.
type Simulated struct {
	submit     Submit
	durationOf DurationFunc
	now        func() time.Time
	tick       time.Duration

	mu        sync.Mutex
	current   string
	state     playback.RenderState
	offset    float64
	playStart time.Time
	duration  time.Duration
}

// NewSimulated creates a simulated renderer reporting to submit
func NewSimulated(submit Submit, durationOf DurationFunc) *Simulated {
	if durationOf == nil {
		durationOf = func(string) time.Duration { return 0 }
	}
	return &Simulated{
		submit:     submit,
		durationOf: durationOf,
		now:        time.Now,
		tick:       defaultTick,
		state:      playback.RenderUnstarted,
	}
}

// Run reports content endings until ctx is done
func (s *Simulated) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkEnded()
		}
	}
}

// checkEnded reports ContentEnded once the playing item passes its duration
func (s *Simulated) checkEnded() {
	s.mu.Lock()
	if s.state != playback.RenderPlaying || s.duration <= 0 || s.offsetLocked() < s.duration.Seconds() {
		s.mu.Unlock()
		return
	}
	s.offset = s.duration.Seconds()
	s.state = playback.RenderEnded
	ref := s.current
	s.mu.Unlock()

	logger.Log.Debug().
		Str("content_ref", ref).
		Msg("Simulated content ended")
	s.submit(playback.ContentEnded{ContentRef: ref})
}

func (s *Simulated) offsetLocked() float64 {
	if s.state == playback.RenderPlaying {
		return s.offset + s.now().Sub(s.playStart).Seconds()
	}
	return s.offset
}

// Load implements playback.Renderer
func (s *Simulated) Load(ref string) error {
	if ref == "" {
		return ErrEmptyRef
	}
	duration := s.durationOf(ref)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = ref
	s.offset = 0
	s.duration = duration
	s.state = playback.RenderCued
	return nil
}

// Play implements playback.Renderer
func (s *Simulated) Play() error {
	s.mu.Lock()
	if s.current == "" {
		s.mu.Unlock()
		return ErrNothingLoaded
	}
	if s.state == playback.RenderPlaying {
		s.mu.Unlock()
		return nil
	}
	s.state = playback.RenderPlaying
	s.playStart = s.now()
	ref := s.current
	s.mu.Unlock()

	s.submit(playback.RendererStateChanged{State: playback.RenderPlaying, ContentRef: ref})
	return nil
}

// Pause implements playback.Renderer
func (s *Simulated) Pause() error {
	s.mu.Lock()
	if s.state != playback.RenderPlaying {
		s.mu.Unlock()
		return nil
	}
	s.offset = s.offsetLocked()
	s.state = playback.RenderPaused
	ref := s.current
	s.mu.Unlock()

	s.submit(playback.RendererStateChanged{State: playback.RenderPaused, ContentRef: ref})
	return nil
}

// Seek implements playback.Renderer
func (s *Simulated) Seek(seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == "" {
		return ErrNothingLoaded
	}
	s.offset = max(seconds, 0)
	if s.state == playback.RenderPlaying {
		s.playStart = s.now()
	}
	return nil
}

// Stop implements playback.Renderer
func (s *Simulated) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = ""
	s.offset = 0
	s.duration = 0
	s.state = playback.RenderUnstarted
	return nil
}

// CurrentOffset implements playback.Renderer
func (s *Simulated) CurrentOffset() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offsetLocked()
}

// State implements playback.Renderer
func (s *Simulated) State() playback.RenderState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentRef implements playback.Renderer
func (s *Simulated) CurrentRef() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// StateDurations looks content durations up in the stored playlists
func StateDurations(state *store.State) DurationFunc {
	return func(ref string) time.Duration {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		for _, items := range state.Playlists(ctx) {
			for _, item := range items {
				if item.ContentRef == ref && item.DurationSeconds > 0 {
					return time.Duration(item.DurationSeconds) * time.Second
				}
			}
		}
		return 0
	}
}
