// Package convergence keeps a viewer's playback engine aligned with the
// latest authored state. Three independent polls (content, schedule and
// force-play) compare the store against the engine and issue commands; push
// notifications from the mirror and the local store file only make those
// checks run sooner.
package convergence

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/stwalsh4118/vigil/internal/logger"
	"github.com/stwalsh4118/vigil/internal/models"
	"github.com/stwalsh4118/vigil/internal/playback"
	"github.com/stwalsh4118/vigil/internal/schedule"
	"github.com/stwalsh4118/vigil/internal/store"
)

const checkTimeout = 10 * time.Second

// Player is the part of the playback engine the loop drives
type Player interface {
	Apply(cmd playback.Command)
	PlaylistID() string
}

// Trigger names what caused a check
type Trigger string

// Check triggers
const (
	TriggerContent   Trigger = "content"
	TriggerSchedule  Trigger = "schedule"
	TriggerForcePlay Trigger = "force_play"
	TriggerVisible   Trigger = "visible"
	TriggerRemote    Trigger = "remote"
	TriggerStore     Trigger = "store_watch"
)

// Options configures a Loop
type Options struct {
	ContentInterval   time.Duration
	ScheduleInterval  time.Duration
	ForcePlayInterval time.Duration
	ClockSkewGrace    time.Duration
	LiveCeiling       time.Duration

	// Seeds populate an empty default playlist
	Seeds []string
	Now   func() time.Time
	// OnCheck is called once per check with its trigger
	OnCheck func(Trigger)
}

// DefaultOptions returns the stock poll intervals
func DefaultOptions() Options {
	return Options{
		ContentInterval:   2 * time.Second,
		ScheduleInterval:  60 * time.Second,
		ForcePlayInterval: time.Second,
		ClockSkewGrace:    60 * time.Second,
		LiveCeiling:       time.Hour,
	}
}

// Loop runs the convergence polls for one engine
type Loop struct {
	state  *store.State
	player Player
	opts   Options

	mu        sync.Mutex
	lastStamp int64
	target    schedule.Target
	started   bool
	stopped   bool

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewLoop creates a loop driving player from state
func NewLoop(state *store.State, player Player, opts Options) (*Loop, error) {
	if state == nil {
		return nil, fmt.Errorf("state cannot be nil")
	}
	if player == nil {
		return nil, fmt.Errorf("player cannot be nil")
	}
	if opts.ContentInterval <= 0 || opts.ScheduleInterval <= 0 || opts.ForcePlayInterval <= 0 {
		return nil, fmt.Errorf("poll intervals must be greater than 0")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Loop{
		state:    state,
		player:   player,
		opts:     opts,
		stopChan: make(chan struct{}),
	}, nil
}

// Start loads the scheduled content and starts the polls
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrStopped
	}
	if l.started {
		l.mu.Unlock()
		return ErrAlreadyStarted
	}
	l.started = true
	l.lastStamp = l.state.UpdateStamp(ctx)
	l.mu.Unlock()

	l.check(ctx, true, false)
	l.CheckForcePlay(ctx)

	l.wg.Add(3)
	go l.runEvery(l.opts.ContentInterval, l.CheckContent)
	go l.runEvery(l.opts.ScheduleInterval, l.CheckSchedule)
	go l.runEvery(l.opts.ForcePlayInterval, l.CheckForcePlay)

	logger.Log.Info().
		Dur("content_interval", l.opts.ContentInterval).
		Dur("schedule_interval", l.opts.ScheduleInterval).
		Dur("force_play_interval", l.opts.ForcePlayInterval).
		Msg("Convergence loop started")

	return nil
}

// Stop stops the polls and waits for in-flight checks
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	started := l.started
	l.mu.Unlock()

	close(l.stopChan)
	if started {
		l.wg.Wait()
	}

	logger.Log.Debug().Msg("Convergence loop stopped")
}

func (l *Loop) runEvery(interval time.Duration, fn func(context.Context)) {
	defer l.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
			fn(ctx)
			cancel()
		}
	}
}

// Target returns the schedule target of the most recent check
func (l *Loop) Target() schedule.Target {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.target
}

func (l *Loop) observe(t Trigger) {
	if l.opts.OnCheck != nil {
		l.opts.OnCheck(t)
	}
}

// CheckContent reconciles the engine against the active playlist when the
// content update stamp has moved since the last check
func (l *Loop) CheckContent(ctx context.Context) {
	l.observe(TriggerContent)

	stamp := l.state.UpdateStamp(ctx)
	l.mu.Lock()
	if stamp <= l.lastStamp {
		l.mu.Unlock()
		return
	}
	l.lastStamp = stamp
	l.mu.Unlock()

	logger.Log.Debug().
		Int64("stamp", stamp).
		Msg("Playlist content changed")
	l.check(ctx, false, true)
}

// CheckSchedule switches the engine when the scheduled content changed
func (l *Loop) CheckSchedule(ctx context.Context) {
	l.observe(TriggerSchedule)
	l.check(ctx, false, false)
}

// Visible re-evaluates the schedule immediately, as when a viewer comes back
// to the foreground after its timers were throttled
func (l *Loop) Visible(ctx context.Context) {
	l.observe(TriggerVisible)
	l.check(ctx, false, false)
}

// Nudge runs every check once. Used when the local store changed underneath us.
func (l *Loop) Nudge(ctx context.Context) {
	l.observe(TriggerStore)
	l.CheckContent(ctx)
	l.CheckSchedule(ctx)
	l.CheckForcePlay(ctx)
}

// CheckForcePlay aligns the engine with a valid force-play directive
func (l *Loop) CheckForcePlay(ctx context.Context) {
	l.observe(TriggerForcePlay)

	d := l.state.ForcePlay(ctx)
	if d == nil || !d.Valid(l.opts.Now(), l.opts.ClockSkewGrace, l.opts.LiveCeiling) {
		return
	}

	playlistID := d.PlaylistID
	if playlistID == "" {
		playlistID = l.player.PlaylistID()
	}
	l.player.Apply(playback.ApplyForcePlay{
		Directive: *d,
		Items:     l.items(ctx, playlistID),
	})
}

// check resolves the schedule and hands the result to the engine. A forced
// check always reloads; a content check reconciles an unchanged playlist.
func (l *Loop) check(ctx context.Context, force, checkContent bool) {
	now := l.opts.Now()
	target := schedule.ResolveTarget(l.state.ScheduleEvents(ctx), l.state.LegacyRules(ctx), now)

	l.mu.Lock()
	prev := l.target
	l.target = target
	l.mu.Unlock()

	current := l.player.PlaylistID()
	if !force && target.PlaylistID == current && !checkContent {
		return
	}
	if !force && target.PlaylistID != current && l.holdingForcePlay(ctx, now) {
		logger.Log.Debug().
			Str("target", target.PlaylistID).
			Msg("Force-play directive holds the screen, deferring schedule switch")
		return
	}

	if prev.PlaylistID != target.PlaylistID {
		logger.Log.Info().
			Str("playlist_id", target.PlaylistID).
			Str("source", string(target.Source)).
			Str("previous", prev.PlaylistID).
			Msg("Schedule target changed")
	}

	l.player.Apply(playback.SwitchContent{
		PlaylistID:   target.PlaylistID,
		Items:        l.items(ctx, target.PlaylistID),
		Force:        force,
		CheckContent: checkContent,
	})
}

// holdingForcePlay reports whether a directive is inside its validity window.
// Directives without a duration hold until the live ceiling.
func (l *Loop) holdingForcePlay(ctx context.Context, now time.Time) bool {
	d := l.state.ForcePlay(ctx)
	return d != nil && d.Valid(now, l.opts.ClockSkewGrace, l.opts.LiveCeiling)
}

// items returns the content refs of a playlist. Single videos are pseudo
// playlists of one item; the default playlist is seeded on first use.
func (l *Loop) items(ctx context.Context, playlistID string) []string {
	if ref, ok := strings.CutPrefix(playlistID, models.VideoPlaylistPrefix); ok && ref != "" {
		return []string{ref}
	}

	if playlistID == models.DefaultPlaylistID {
		set, err := l.state.EnsureDefaultPlaylist(ctx, l.opts.Seeds)
		if err != nil {
			logger.Log.Warn().
				Err(err).
				Msg("Failed to seed default playlist")
		}
		return set.Refs(playlistID)
	}

	return l.state.Playlists(ctx).Refs(playlistID)
}

// Bootstrap pulls the mirror into the local store and subscribes to remote
// changes of every synced key. It is a no-op when the mirror is disabled.
func (l *Loop) Bootstrap(ctx context.Context) {
	m := l.state.Mirror()
	if !m.Enabled() {
		return
	}

	l.state.Pull(ctx)

	for _, key := range store.SyncedKeys {
		if err := m.Subscribe(key, func(value []byte) {
			l.onRemoteChange(key, value)
		}); err != nil {
			logger.Log.Warn().
				Err(err).
				Str("key", key).
				Msg("Failed to subscribe to mirror key")
		}
	}
}

func (l *Loop) onRemoteChange(key string, value []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	l.observe(TriggerRemote)
	if err := l.state.ApplyRemote(ctx, key, value); err != nil {
		logger.Log.Warn().
			Err(err).
			Str("key", key).
			Msg("Ignoring remote change")
		return
	}

	logger.Log.Debug().
		Str("key", key).
		Msg("Applied remote change")

	switch key {
	case models.KeyPlaylists:
		l.CheckContent(ctx)
	case models.KeyScheduleEvents, models.KeyLegacyRules:
		l.CheckSchedule(ctx)
	case models.KeyForcePlayDirective:
		l.CheckForcePlay(ctx)
	}
}
