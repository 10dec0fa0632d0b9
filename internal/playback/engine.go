// Package playback implements the playback engine: the state machine that
// owns the cursor, drives the renderer and recovers from content failures.
package playback

import (
	"context"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/stwalsh4118/vigil/internal/logger"
	"github.com/stwalsh4118/vigil/internal/models"
)

const commandQueueSize = 64

// Engine owns the playback cursor. All mutation goes through Apply, which
// serializes commands; asynchronous producers such as renderers use Submit
// and a single Run loop drains their commands.
type Engine struct {
	opts     Options
	renderer Renderer
	commands chan Command

	mu         sync.Mutex
	state      State
	playlistID string
	sequence   []string
	index      int
	live       bool
	liveSource string
	liveSince  time.Time
	retryCount int
	status     string
	epoch      uint64
	pending    Timer

	// appliedDirective is the IssuedAt of the last force-play directive that loaded content
	appliedDirective int64
}

// NewEngine creates an idle engine driving renderer
func NewEngine(renderer Renderer, opts Options) *Engine {
	opts.applyDefaults()
	return &Engine{
		opts:     opts,
		renderer: renderer,
		commands: make(chan Command, commandQueueSize),
		state:    StateIdle,
		status:   StatusNoContent,
	}
}

// Submit queues a command for Run. It reports false when the queue is full.
func (e *Engine) Submit(cmd Command) bool {
	select {
	case e.commands <- cmd:
		return true
	default:
		logger.Log.Warn().
			Type("command", cmd).
			Msg("Engine command queue full, dropping command")
		return false
	}
}

// Run applies submitted commands until ctx is done
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			e.mu.Lock()
			e.cancelPendingLocked()
			e.mu.Unlock()
			return
		case cmd := <-e.commands:
			e.Apply(cmd)
		}
	}
}

// Apply runs one command through the state machine
func (e *Engine) Apply(cmd Command) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch c := cmd.(type) {
	case LoadSequence:
		e.loadSequence(c.PlaylistID, c.Items)
	case SwitchContent:
		e.switchContent(c)
	case Reconcile:
		if c.PlaylistID == e.playlistID {
			e.reconcile(c.Items)
		}
	case Advance:
		if !e.live {
			e.advance()
		}
	case Previous:
		if !e.live {
			e.previous()
		}
	case ContentEnded:
		if !e.staleReport(c.ContentRef, "ended") {
			e.contentEnded()
		}
	case ContentError:
		if !e.staleReport(c.ContentRef, "error") {
			e.contentError(c.Code)
		}
	case RendererStateChanged:
		if !e.staleReport(c.ContentRef, c.State.String()) {
			e.rendererStateChanged(c.State)
		}
	case SwitchToLive:
		e.switchToLive(c.Source)
	case SwitchToPlaylist:
		e.switchToPlaylist()
	case ApplyForcePlay:
		e.applyForcePlay(c.Directive, c.Items)
	case timerFired:
		e.timerFired(c)
	default:
		logger.Log.Error().
			Type("command", cmd).
			Err(ErrUnknownCommand).
			Msg("Ignoring command")
	}
}

// Snapshot returns a copy of the engine's observable state
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Snapshot{
		State:      e.state.String(),
		PlaylistID: e.playlistID,
		Sequence:   slices.Clone(e.sequence),
		Index:      e.index,
		Current:    e.currentRefLocked(),
		Live:       e.live,
		LiveSource: e.liveSource,
		RetryCount: e.retryCount,
		Status:     e.status,
		Epoch:      e.epoch,
	}
}

// PlaylistID returns the id of the playlist the sequence came from
func (e *Engine) PlaylistID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playlistID
}

// Sequence returns a copy of the current sequence
func (e *Engine) Sequence() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.sequence)
}

// currentRefLocked returns the content the engine means to be showing
func (e *Engine) currentRefLocked() string {
	if e.live {
		return e.liveSource
	}
	if e.index >= 0 && e.index < len(e.sequence) {
		return e.sequence[e.index]
	}
	return ""
}

// staleReport reports whether a renderer report refers to content the engine
// has since cut away from
func (e *Engine) staleReport(ref, kind string) bool {
	if ref == "" || ref == e.currentRefLocked() {
		return false
	}
	logger.Log.Debug().
		Str("report", kind).
		Str("content_ref", ref).
		Str("current", e.currentRefLocked()).
		Msg("Dropping stale renderer report")
	return true
}

// bumpEpoch starts a new epoch, invalidating any pending delayed action
func (e *Engine) bumpEpoch() {
	e.epoch++
	e.cancelPendingLocked()
}

func (e *Engine) cancelPendingLocked() {
	if e.pending != nil {
		e.pending.Stop()
		e.pending = nil
	}
}

// schedule arranges for action to run after d unless the epoch changes first
func (e *Engine) schedule(d time.Duration, action timerAction) {
	e.cancelPendingLocked()
	fired := timerFired{epoch: e.epoch, action: action}
	e.pending = e.opts.Timers.AfterFunc(d, func() {
		e.Apply(fired)
	})
}

func (e *Engine) timerFired(t timerFired) {
	if t.epoch != e.epoch {
		logger.Log.Debug().
			Uint64("timer_epoch", t.epoch).
			Uint64("epoch", e.epoch).
			Msg("Dropping stale timer")
		return
	}
	e.pending = nil

	switch t.action {
	case actionSkip:
		if !e.live {
			e.emit(Event{Type: EventSkipped, PlaylistID: e.playlistID, ContentRef: e.currentRefLocked(), Index: e.index})
			e.advance()
		}
	case actionReloadLive:
		if e.live {
			e.loadRenderer(e.liveSource)
		}
	}
}

func (e *Engine) emit(ev Event) {
	if e.opts.Listener != nil {
		e.opts.Listener(ev)
	}
}

func (e *Engine) setIdle() {
	e.state = StateIdle
	e.status = StatusNoContent
	if err := e.renderer.Stop(); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to stop renderer")
	}
	e.emit(Event{Type: EventIdle, PlaylistID: e.playlistID})
	logger.Log.Info().
		Str("playlist_id", e.playlistID).
		Msg("No content scheduled")
}

// loadRenderer hands contentRef to the renderer and asks it to play.
// A refused load schedules a skip so a bad item cannot stall the channel.
func (e *Engine) loadRenderer(contentRef string) bool {
	if err := e.renderer.Load(contentRef); err != nil {
		logger.Log.Warn().
			Err(err).
			Str("content_ref", contentRef).
			Msg("Renderer refused content")
		if !e.live {
			e.schedule(e.opts.LoadRetryDelay, actionSkip)
		}
		return false
	}
	if err := e.renderer.Play(); err != nil {
		logger.Log.Debug().Err(err).Msg("Renderer play request failed")
	}
	e.state = StateLoaded
	return true
}

// loadCurrent loads the item under the cursor
func (e *Engine) loadCurrent() {
	if len(e.sequence) == 0 {
		e.setIdle()
		return
	}
	if e.index < 0 || e.index >= len(e.sequence) {
		e.index = 0
	}
	ref := e.sequence[e.index]
	if e.loadRenderer(ref) {
		e.status = StatusNone
		e.emit(Event{Type: EventLoaded, PlaylistID: e.playlistID, ContentRef: ref, Index: e.index})
		logger.Log.Debug().
			Str("playlist_id", e.playlistID).
			Str("content_ref", ref).
			Int("index", e.index).
			Msg("Loaded content")
	}
}

// loadSequence is a hard cut to a new sequence starting at its head
func (e *Engine) loadSequence(playlistID string, items []string) {
	if !e.live {
		e.bumpEpoch()
	}
	e.playlistID = playlistID
	e.sequence = slices.Clone(items)
	e.index = 0

	logger.Log.Info().
		Str("playlist_id", playlistID).
		Int("items", len(items)).
		Bool("live", e.live).
		Msg("Switching sequence")

	if e.live {
		// the live source keeps the screen; the new head plays when live ends
		return
	}
	e.loadCurrent()
}

func (e *Engine) switchContent(c SwitchContent) {
	if c.Force || c.PlaylistID != e.playlistID {
		e.loadSequence(c.PlaylistID, c.Items)
		return
	}
	if c.CheckContent {
		e.reconcile(c.Items)
	}
}

// reconcile swaps in edited contents of the current playlist
func (e *Engine) reconcile(items []string) {
	if len(items) == 0 || slices.Equal(items, e.sequence) {
		return
	}

	wasEmpty := len(e.sequence) == 0 || e.state == StateIdle
	current := ""
	if e.index >= 0 && e.index < len(e.sequence) {
		current = e.sequence[e.index]
	}
	e.sequence = slices.Clone(items)

	if e.live {
		if i := slices.Index(items, current); i >= 0 {
			e.index = i
		} else if e.index >= len(items) {
			e.index = 0
		}
		return
	}

	if wasEmpty {
		e.bumpEpoch()
		e.index = 0
		e.loadCurrent()
		e.emit(Event{Type: EventReconciled, PlaylistID: e.playlistID, ContentRef: e.currentRefLocked(), Index: e.index})
		return
	}

	if e.isSeed(current) {
		if i := slices.IndexFunc(items, func(ref string) bool { return !e.isSeed(ref) }); i >= 0 {
			e.bumpEpoch()
			e.index = i
			e.loadCurrent()
			e.emit(Event{Type: EventSeedPreempted, PlaylistID: e.playlistID, ContentRef: items[i], Index: i})
			return
		}
	}

	if i := slices.Index(items, current); i >= 0 {
		// still present: re-point the cursor without touching the renderer
		e.index = i
		e.emit(Event{Type: EventReconciled, PlaylistID: e.playlistID, ContentRef: current, Index: i})
		return
	}

	// removed: the item that took its slot is the next available one
	if e.index >= len(items) {
		e.index = 0
	}
	e.bumpEpoch()
	e.loadCurrent()
	e.emit(Event{Type: EventReconciled, PlaylistID: e.playlistID, ContentRef: e.currentRefLocked(), Index: e.index})
}

func (e *Engine) isSeed(ref string) bool {
	return ref != "" && slices.Contains(e.opts.Seeds, ref)
}

// advance moves the cursor per the current playback order and loads the item
func (e *Engine) advance() {
	n := len(e.sequence)
	if n == 0 {
		return
	}

	if e.opts.Order() == models.PlaybackOrderRandom && n > 1 {
		// uniform over every index except the current one
		next := e.opts.Rand(n - 1)
		if next >= e.index {
			next++
		}
		e.index = next
	} else {
		e.index = (e.index + 1) % n
	}

	e.bumpEpoch()
	e.loadCurrent()
	e.emit(Event{Type: EventAdvanced, PlaylistID: e.playlistID, ContentRef: e.currentRefLocked(), Index: e.index})
}

func (e *Engine) previous() {
	n := len(e.sequence)
	if n == 0 {
		return
	}
	e.index = (e.index - 1 + n) % n
	e.bumpEpoch()
	e.loadCurrent()
}

func (e *Engine) contentEnded() {
	// a live stream has no end; dropouts arrive as errors
	if e.live || e.state == StateIdle {
		return
	}
	e.state = StateEnded
	e.advance()
}

func (e *Engine) contentError(code int) {
	perr := NewPlaybackError(code, e.currentRefLocked(), e.live)

	logger.Log.Warn().
		Int("code", code).
		Str("error_type", perr.Type.String()).
		Str("content_ref", perr.ContentRef).
		Bool("live", e.live).
		Msg("Playback error")

	e.emit(Event{Type: EventContentError, PlaylistID: e.playlistID, ContentRef: perr.ContentRef, Index: e.index, Err: perr})
	if e.opts.Reporter != nil {
		e.opts.Reporter.Report(perr)
	}

	if e.live {
		if e.opts.AutoFallback {
			e.liveFailure(perr)
		}
		return
	}
	if len(e.sequence) > 0 {
		e.schedule(e.opts.SkipDelay, actionSkip)
	}
}

// liveFailure retries the live source with a fixed delay and falls back to
// the sequence once MaxRetries consecutive failures have been seen
func (e *Engine) liveFailure(perr *PlaybackError) {
	e.retryCount++
	if e.retryCount < e.opts.MaxRetries {
		e.status = StatusReconnecting
		e.emit(Event{Type: EventLiveRetry, ContentRef: e.liveSource, Index: e.retryCount, Err: perr})
		logger.Log.Info().
			Int("attempt", e.retryCount).
			Int("max_retries", e.opts.MaxRetries).
			Dur("delay", e.opts.ReconnectDelay).
			Msg("Retrying live source")
		e.schedule(e.opts.ReconnectDelay, actionReloadLive)
		return
	}

	logger.Log.Warn().
		Str("live_source", e.liveSource).
		Int("attempts", e.retryCount).
		Msg("Live source unavailable, falling back to sequence")
	e.emit(Event{Type: EventLiveFallback, ContentRef: e.liveSource, Err: perr})
	e.switchToPlaylist()
	if e.state != StateIdle {
		e.status = StatusLiveUnavailable
	}
}

func (e *Engine) rendererStateChanged(s RenderState) {
	switch s {
	case RenderPlaying:
		if e.state == StateIdle {
			return
		}
		e.state = StatePlaying
		e.retryCount = 0
		e.status = StatusNone
		e.emit(Event{Type: EventPlaying, PlaylistID: e.playlistID, ContentRef: e.currentRefLocked(), Index: e.index})
	case RenderPaused:
		if e.state == StatePlaying {
			e.state = StatePaused
		}
	case RenderEnded:
		e.contentEnded()
	}
}

func (e *Engine) switchToLive(source string) {
	if source == "" {
		logger.Log.Warn().Err(ErrNoLiveSource).Msg("Ignoring live switch")
		return
	}

	e.bumpEpoch()
	e.live = true
	e.liveSource = source
	e.liveSince = e.opts.Now()
	e.retryCount = 0
	e.status = StatusNone

	logger.Log.Info().
		Str("live_source", source).
		Msg("Switching to live")

	e.loadRenderer(source)
	e.emit(Event{Type: EventLiveStarted, ContentRef: source})
}

func (e *Engine) switchToPlaylist() {
	e.bumpEpoch()
	wasLive := e.live
	e.live = false
	e.liveSource = ""
	e.liveSince = time.Time{}
	e.retryCount = 0
	e.index = 0

	if wasLive {
		logger.Log.Info().
			Str("playlist_id", e.playlistID).
			Msg("Leaving live mode")
	}
	e.loadCurrent()
}

// applyForcePlay aligns playback with a directive: right playlist, right
// item, and an offset within the seek tolerance of the elapsed time
func (e *Engine) applyForcePlay(d models.ForcePlayDirective, items []string) {
	now := e.opts.Now()
	if !d.Valid(now, e.opts.ClockSkewGrace, e.opts.LiveCeiling) {
		return
	}

	onContent := e.renderer.CurrentRef() == d.ContentRef && e.state != StateIdle
	inPlaylist := d.PlaylistID == "" || d.PlaylistID == e.playlistID
	if !onContent && inPlaylist && d.IssuedAt == e.appliedDirective {
		// this directive already played here and the viewer has moved on
		// within its playlist
		return
	}

	if e.live {
		if !d.Issued().After(e.liveSince) {
			return
		}
		e.live = false
		e.liveSource = ""
		e.liveSince = time.Time{}
		e.retryCount = 0
	}

	if d.PlaylistID != "" && d.PlaylistID != e.playlistID {
		e.bumpEpoch()
		e.playlistID = d.PlaylistID
		e.sequence = slices.Clone(items)
		e.index = 0
	}

	if onContent {
		e.appliedDirective = d.IssuedAt
	} else {
		if i := slices.Index(e.sequence, d.ContentRef); i >= 0 {
			e.index = i
		}
		e.bumpEpoch()
		if !e.loadRenderer(d.ContentRef) {
			return
		}
		e.appliedDirective = d.IssuedAt
		e.status = StatusNone
		e.emit(Event{Type: EventForcePlay, PlaylistID: e.playlistID, ContentRef: d.ContentRef, Index: e.index})
		logger.Log.Info().
			Str("content_ref", d.ContentRef).
			Str("playlist_id", e.playlistID).
			Msg("Applied force-play directive")
	}

	elapsed := d.Elapsed(now)
	if d.DurationSeconds <= 0 || elapsed <= 0 {
		return
	}

	target := elapsed.Seconds()
	drift := math.Abs(e.renderer.CurrentOffset() - target)
	if drift <= e.opts.SeekTolerance.Seconds() {
		return
	}

	if err := e.renderer.Seek(target); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to seek to directive offset")
		return
	}
	e.emit(Event{Type: EventSeek, PlaylistID: e.playlistID, ContentRef: d.ContentRef, Index: e.index})
	logger.Log.Debug().
		Float64("target", target).
		Float64("drift", drift).
		Msg("Corrected playback offset")

	if rs := e.renderer.State(); rs != RenderPlaying && rs != RenderBuffering {
		if err := e.renderer.Play(); err != nil {
			logger.Log.Debug().Err(err).Msg("Renderer play request failed")
		}
	}
}
