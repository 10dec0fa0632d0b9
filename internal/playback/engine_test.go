package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/vigil/internal/models"
)

type fakeRenderer struct {
	mu      sync.Mutex
	loads   []string
	current string
	offset  float64
	state   RenderState
	seeks   []float64
	plays   int
	stops   int
	loadErr map[string]error
}

func (r *fakeRenderer) Load(ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.loadErr[ref]; err != nil {
		return err
	}
	r.loads = append(r.loads, ref)
	r.current = ref
	r.offset = 0
	r.state = RenderUnstarted
	return nil
}

func (r *fakeRenderer) Play() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plays++
	return nil
}

func (r *fakeRenderer) Pause() error { return nil }

func (r *fakeRenderer) Seek(seconds float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seeks = append(r.seeks, seconds)
	r.offset = seconds
	return nil
}

func (r *fakeRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	r.current = ""
	return nil
}

func (r *fakeRenderer) CurrentOffset() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.offset
}

func (r *fakeRenderer) State() RenderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *fakeRenderer) CurrentRef() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *fakeRenderer) Loads() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.loads...)
}

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeTimers struct {
	timers []*fakeTimer
}

func (ft *fakeTimers) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{delay: d, fn: f}
	ft.timers = append(ft.timers, t)
	return t
}

// last returns the most recently scheduled timer
func (ft *fakeTimers) last(t *testing.T) *fakeTimer {
	require.NotEmpty(t, ft.timers, "expected a scheduled timer")
	return ft.timers[len(ft.timers)-1]
}

type recordingReporter struct {
	errs []*PlaybackError
}

func (r *recordingReporter) Report(err *PlaybackError) {
	r.errs = append(r.errs, err)
}

type harness struct {
	engine   *Engine
	renderer *fakeRenderer
	timers   *fakeTimers
	reporter *recordingReporter
	order    models.PlaybackOrder
	now      time.Time
	events   []Event
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{
		renderer: &fakeRenderer{},
		timers:   &fakeTimers{},
		reporter: &recordingReporter{},
		order:    models.PlaybackOrderSequential,
		now:      time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC),
	}

	opts := DefaultOptions()
	opts.Seeds = []string{"seed1", "seed2"}
	opts.Order = func() models.PlaybackOrder { return h.order }
	opts.Rand = func(n int) int { return 0 }
	opts.Now = func() time.Time { return h.now }
	opts.Timers = h.timers
	opts.Reporter = h.reporter
	opts.Listener = func(ev Event) { h.events = append(h.events, ev) }
	if mutate != nil {
		mutate(&opts)
	}

	h.engine = NewEngine(h.renderer, opts)
	return h
}

func (h *harness) eventTypes() []EventType {
	types := make([]EventType, 0, len(h.events))
	for _, ev := range h.events {
		types = append(types, ev.Type)
	}
	return types
}

func TestEngine_EmptySequenceIsIdle(t *testing.T) {
	h := newHarness(t, nil)

	h.engine.Apply(LoadSequence{PlaylistID: "default", Items: nil})

	snap := h.engine.Snapshot()
	assert.Equal(t, StateIdle.String(), snap.State)
	assert.Equal(t, StatusNoContent, snap.Status)
	assert.Equal(t, 1, h.renderer.stops)
	assert.Empty(t, h.renderer.Loads())

	// advancing an empty sequence does nothing
	h.engine.Apply(Advance{})
	h.engine.Apply(ContentEnded{})
	assert.Equal(t, StateIdle.String(), h.engine.Snapshot().State)
	assert.Empty(t, h.renderer.Loads())
}

func TestEngine_LoadAndPlay(t *testing.T) {
	h := newHarness(t, nil)

	h.engine.Apply(LoadSequence{PlaylistID: "morning", Items: []string{"a", "b", "c"}})
	snap := h.engine.Snapshot()
	assert.Equal(t, StateLoaded.String(), snap.State)
	assert.Equal(t, "a", snap.Current)
	assert.Equal(t, StatusNone, snap.Status)
	assert.Equal(t, 1, h.renderer.plays)

	h.engine.Apply(RendererStateChanged{State: RenderPlaying})
	assert.Equal(t, StatePlaying.String(), h.engine.Snapshot().State)

	h.engine.Apply(RendererStateChanged{State: RenderPaused})
	assert.Equal(t, StatePaused.String(), h.engine.Snapshot().State)
}

func TestEngine_SequentialAdvanceWraps(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.Apply(LoadSequence{PlaylistID: "morning", Items: []string{"a", "b", "c"}})

	for i := 0; i < 3; i++ {
		h.engine.Apply(ContentEnded{})
	}

	assert.Equal(t, []string{"a", "b", "c", "a"}, h.renderer.Loads())
	assert.Equal(t, 0, h.engine.Snapshot().Index)
}

func TestEngine_RendererEndedAdvances(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.Apply(LoadSequence{PlaylistID: "morning", Items: []string{"a", "b"}})

	h.engine.Apply(RendererStateChanged{State: RenderEnded})
	assert.Equal(t, "b", h.engine.Snapshot().Current)
}

func TestEngine_RandomAdvanceNeverRepeatsCurrent(t *testing.T) {
	h := newHarness(t, nil)
	h.order = models.PlaybackOrderRandom
	h.engine.Apply(LoadSequence{PlaylistID: "morning", Items: []string{"a", "b", "c"}})

	// Rand returns 0; index 0 is current so the pick shifts to 1
	h.engine.Apply(Advance{})
	assert.Equal(t, 1, h.engine.Snapshot().Index)

	// from index 1, a pick of 0 stays 0
	h.engine.Apply(Advance{})
	assert.Equal(t, 0, h.engine.Snapshot().Index)
}

func TestEngine_RandomAdvanceCoversOtherItems(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Rand = nil })
	h.order = models.PlaybackOrderRandom
	items := []string{"a", "b", "c", "d", "e"}
	h.engine.Apply(LoadSequence{PlaylistID: "morning", Items: items})

	seen := make(map[int]int)
	prev := h.engine.Snapshot().Index
	for range 1000 {
		h.engine.Apply(Advance{})
		next := h.engine.Snapshot().Index
		require.NotEqual(t, prev, next, "random advance repeated index %d", prev)
		require.True(t, next >= 0 && next < len(items))
		seen[next]++
		prev = next
	}

	for i := range items {
		assert.Positive(t, seen[i], "index %d never chosen", i)
	}
}

func TestEngine_RandomWithSingleItemReloadsIt(t *testing.T) {
	h := newHarness(t, nil)
	h.order = models.PlaybackOrderRandom
	h.engine.Apply(LoadSequence{PlaylistID: "solo", Items: []string{"only"}})

	h.engine.Apply(ContentEnded{})
	assert.Equal(t, []string{"only", "only"}, h.renderer.Loads())
}

func TestEngine_OrderReadOnEveryAdvance(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Rand = func(n int) int { return n - 1 }
	})
	h.engine.Apply(LoadSequence{PlaylistID: "morning", Items: []string{"a", "b", "c", "d"}})

	h.engine.Apply(Advance{})
	assert.Equal(t, 1, h.engine.Snapshot().Index)

	h.order = models.PlaybackOrderRandom
	h.engine.Apply(Advance{})
	assert.Equal(t, 3, h.engine.Snapshot().Index)

	h.order = models.PlaybackOrderSequential
	h.engine.Apply(Advance{})
	assert.Equal(t, 0, h.engine.Snapshot().Index)
}

func TestEngine_Previous(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.Apply(LoadSequence{PlaylistID: "morning", Items: []string{"a", "b", "c"}})

	h.engine.Apply(Previous{})
	assert.Equal(t, "c", h.engine.Snapshot().Current)
}

func TestEngine_ContentErrorSkipsAfterDelay(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.Apply(LoadSequence{PlaylistID: "morning", Items: []string{"a", "b"}})

	h.engine.Apply(ContentError{Code: CodeNotFound})
	assert.Equal(t, "a", h.engine.Snapshot().Current)
	require.Len(t, h.reporter.errs, 1)
	assert.Equal(t, ErrorTypeNotFound, h.reporter.errs[0].Type)
	assert.Equal(t, "a", h.reporter.errs[0].ContentRef)

	timer := h.timers.last(t)
	assert.Equal(t, 500*time.Millisecond, timer.delay)
	timer.fn()

	assert.Equal(t, "b", h.engine.Snapshot().Current)
	assert.Contains(t, h.eventTypes(), EventSkipped)
}

func TestEngine_StaleTimerIsIgnored(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.Apply(LoadSequence{PlaylistID: "morning", Items: []string{"a", "b"}})
	h.engine.Apply(ContentError{Code: CodeEmbeddingDisabled})
	stale := h.timers.last(t)

	// a schedule change is a hard cut
	h.engine.Apply(SwitchContent{PlaylistID: "evening", Items: []string{"x", "y"}})
	assert.True(t, stale.stopped)

	// even if the callback races the cancel, it must not act
	stale.fn()
	snap := h.engine.Snapshot()
	assert.Equal(t, "evening", snap.PlaylistID)
	assert.Equal(t, "x", snap.Current)
	assert.Equal(t, []string{"a", "x"}, h.renderer.Loads())
}

func TestEngine_RefusedLoadSkips(t *testing.T) {
	h := newHarness(t, nil)
	h.renderer.loadErr = map[string]error{"bad": errors.New("refused")}

	h.engine.Apply(LoadSequence{PlaylistID: "morning", Items: []string{"bad", "good"}})
	assert.Empty(t, h.renderer.Loads())

	timer := h.timers.last(t)
	assert.Equal(t, time.Second, timer.delay)
	timer.fn()
	assert.Equal(t, []string{"good"}, h.renderer.Loads())
}

func TestEngine_LiveRetriesThenFallsBack(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.Apply(LoadSequence{PlaylistID: "morning", Items: []string{"a", "b"}})
	h.engine.Apply(Advance{})
	h.engine.Apply(SwitchToLive{Source: "live1"})

	snap := h.engine.Snapshot()
	assert.True(t, snap.Live)
	assert.Equal(t, "live1", snap.Current)

	// MaxRetries is 3: the first two failures reload, the third falls back
	for attempt := 1; attempt <= 2; attempt++ {
		h.engine.Apply(ContentError{Code: CodeRendererFailure})
		snap = h.engine.Snapshot()
		assert.True(t, snap.Live)
		assert.Equal(t, attempt, snap.RetryCount)
		assert.Equal(t, StatusReconnecting, snap.Status)

		timer := h.timers.last(t)
		assert.Equal(t, 5*time.Second, timer.delay)
		timer.fn()
	}
	assert.Equal(t, []string{"a", "b", "live1", "live1", "live1"}, h.renderer.Loads())

	h.engine.Apply(ContentError{Code: CodeRendererFailure})
	snap = h.engine.Snapshot()
	assert.False(t, snap.Live)
	assert.Equal(t, 0, snap.RetryCount)
	assert.Equal(t, 0, snap.Index)
	assert.Equal(t, "a", snap.Current)
	assert.Equal(t, StatusLiveUnavailable, snap.Status)
	assert.Contains(t, h.eventTypes(), EventLiveFallback)
	assert.Equal(t, []string{"a", "b", "live1", "live1", "live1", "a"}, h.renderer.Loads())
}

func TestEngine_LiveWithoutRetryBudgetFallsBackAtOnce(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.MaxRetries = 0 })
	h.engine.Apply(LoadSequence{PlaylistID: "morning", Items: []string{"a"}})
	h.engine.Apply(SwitchToLive{Source: "live1"})

	h.engine.Apply(ContentError{Code: CodeRendererFailure})
	snap := h.engine.Snapshot()
	assert.False(t, snap.Live)
	assert.Equal(t, "a", snap.Current)
	assert.Empty(t, h.timers.timers)
}

func TestEngine_PlayingResetsLiveRetries(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.Apply(SwitchToLive{Source: "live1"})
	h.engine.Apply(ContentError{Code: 42})
	h.engine.Apply(ContentError{Code: 42})
	assert.Equal(t, 2, h.engine.Snapshot().RetryCount)

	h.timers.last(t).fn()
	h.engine.Apply(RendererStateChanged{State: RenderPlaying})
	snap := h.engine.Snapshot()
	assert.Equal(t, 0, snap.RetryCount)
	assert.Equal(t, StatusNone, snap.Status)
}

func TestEngine_LiveWithoutAutoFallbackIgnoresErrors(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.AutoFallback = false })
	h.engine.Apply(SwitchToLive{Source: "live1"})

	h.engine.Apply(ContentError{Code: CodeRendererFailure})
	snap := h.engine.Snapshot()
	assert.True(t, snap.Live)
	assert.Equal(t, 0, snap.RetryCount)
	assert.Empty(t, h.timers.timers)
}

func TestEngine_LiveEndedIsIgnored(t *testing.T) {
	for _, autoFallback := range []bool{true, false} {
		h := newHarness(t, func(o *Options) { o.AutoFallback = autoFallback })
		h.engine.Apply(LoadSequence{PlaylistID: "morning", Items: []string{"a", "b"}})
		h.engine.Apply(SwitchToLive{Source: "live1"})

		for range 4 {
			h.engine.Apply(ContentEnded{})
			h.engine.Apply(RendererStateChanged{State: RenderEnded})
		}

		snap := h.engine.Snapshot()
		assert.True(t, snap.Live, "autoFallback=%v", autoFallback)
		assert.Equal(t, "live1", snap.Current)
		assert.Equal(t, 0, snap.RetryCount)
		assert.Equal(t, StatusNone, snap.Status)
		assert.Empty(t, h.timers.timers)
		assert.Equal(t, []string{"a", "live1"}, h.renderer.Loads())
	}
}

func TestEngine_ScheduleChangeDuringLiveKeepsLive(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.Apply(LoadSequence{PlaylistID: "morning", Items: []string{"a"}})
	h.engine.Apply(SwitchToLive{Source: "live1"})
	h.engine.Apply(ContentError{Code: CodeRendererFailure})
	retry := h.timers.last(t)

	h.engine.Apply(SwitchContent{PlaylistID: "evening", Items: []string{"x", "y"}})
	snap := h.engine.Snapshot()
	assert.True(t, snap.Live)
	assert.Equal(t, "evening", snap.PlaylistID)
	assert.False(t, retry.stopped)

	retry.fn()
	assert.Equal(t, "live1", h.renderer.CurrentRef())

	h.engine.Apply(SwitchToPlaylist{})
	snap = h.engine.Snapshot()
	assert.False(t, snap.Live)
	assert.Equal(t, "x", snap.Current)
}

func TestEngine_SwitchToLiveRequiresSource(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.Apply(SwitchToLive{})
	assert.False(t, h.engine.Snapshot().Live)
}

func TestEngine_SwitchContent(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.Apply(SwitchContent{PlaylistID: "morning", Items: []string{"a", "b"}})
	h.engine.Apply(Advance{})

	// same playlist without a content check leaves playback alone
	h.engine.Apply(SwitchContent{PlaylistID: "morning", Items: []string{"z"}})
	assert.Equal(t, "b", h.engine.Snapshot().Current)

	// forced reload restarts from the head
	h.engine.Apply(SwitchContent{PlaylistID: "morning", Items: []string{"a", "b"}, Force: true})
	assert.Equal(t, "a", h.engine.Snapshot().Current)
}

func TestEngine_ReconcileKeepsCurrentItem(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.Apply(LoadSequence{PlaylistID: "morning", Items: []string{"a", "b", "c"}})
	h.engine.Apply(Advance{})
	before := h.engine.Snapshot().Epoch

	h.engine.Apply(Reconcile{PlaylistID: "morning", Items: []string{"new", "a", "b", "c"}})

	snap := h.engine.Snapshot()
	assert.Equal(t, 2, snap.Index)
	assert.Equal(t, "b", snap.Current)
	assert.Equal(t, before, snap.Epoch)
	assert.Equal(t, []string{"a", "b"}, h.renderer.Loads())
}

func TestEngine_ReconcileRemovedItemMovesToNext(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.Apply(LoadSequence{PlaylistID: "morning", Items: []string{"a", "b", "c", "d", "e"}})
	h.engine.Apply(Advance{})
	h.engine.Apply(Advance{})
	require.Equal(t, "c", h.engine.Snapshot().Current)

	h.engine.Apply(SwitchContent{PlaylistID: "morning", Items: []string{"a", "b", "d", "e"}, CheckContent: true})
	snap := h.engine.Snapshot()
	assert.Equal(t, 2, snap.Index)
	assert.Equal(t, "d", snap.Current)
	assert.Equal(t, "d", h.renderer.CurrentRef())
}

func TestEngine_ReconcileRemovedLastItemWraps(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.Apply(LoadSequence{PlaylistID: "morning", Items: []string{"a", "b"}})
	h.engine.Apply(Advance{})

	h.engine.Apply(Reconcile{PlaylistID: "morning", Items: []string{"a"}})
	assert.Equal(t, "a", h.engine.Snapshot().Current)
}

func TestEngine_ReconcileIgnoresEmptyAndOtherPlaylists(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.Apply(LoadSequence{PlaylistID: "morning", Items: []string{"a", "b"}})

	h.engine.Apply(Reconcile{PlaylistID: "morning", Items: nil})
	h.engine.Apply(Reconcile{PlaylistID: "evening", Items: []string{"x"}})

	assert.Equal(t, []string{"a", "b"}, h.engine.Sequence())
}

func TestEngine_SeedPreemption(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.Apply(LoadSequence{PlaylistID: models.DefaultPlaylistID, Items: []string{"seed1", "seed2"}})

	h.engine.Apply(Reconcile{PlaylistID: models.DefaultPlaylistID, Items: []string{"seed1", "seed2", "real"}})

	snap := h.engine.Snapshot()
	assert.Equal(t, "real", snap.Current)
	assert.Equal(t, 2, snap.Index)
	assert.Contains(t, h.eventTypes(), EventSeedPreempted)
}

func TestEngine_ReconcileFromIdleLoads(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.Apply(LoadSequence{PlaylistID: "morning", Items: nil})
	require.Equal(t, StateIdle.String(), h.engine.Snapshot().State)

	h.engine.Apply(SwitchContent{PlaylistID: "morning", Items: []string{"a"}, CheckContent: true})
	snap := h.engine.Snapshot()
	assert.Equal(t, StateLoaded.String(), snap.State)
	assert.Equal(t, "a", snap.Current)
}

func directive(h *harness, ref, playlist string, ago time.Duration, duration int) models.ForcePlayDirective {
	return models.ForcePlayDirective{
		ContentRef:      ref,
		PlaylistID:      playlist,
		IssuedAt:        h.now.Add(-ago).UnixMilli(),
		DurationSeconds: duration,
	}
}

func TestEngine_ForcePlaySwitchesAndSeeks(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.Apply(LoadSequence{PlaylistID: "morning", Items: []string{"a", "b"}})

	d := directive(h, "y", "evening", 30*time.Second, 120)
	h.engine.Apply(ApplyForcePlay{Directive: d, Items: []string{"x", "y", "z"}})

	snap := h.engine.Snapshot()
	assert.Equal(t, "evening", snap.PlaylistID)
	assert.Equal(t, 1, snap.Index)
	assert.Equal(t, "y", snap.Current)
	assert.Equal(t, "y", h.renderer.CurrentRef())
	require.Len(t, h.renderer.seeks, 1)
	assert.InDelta(t, 30.0, h.renderer.seeks[0], 0.001)

	// within tolerance: no further seek
	h.now = h.now.Add(time.Second)
	h.renderer.offset = 28
	h.engine.Apply(ApplyForcePlay{Directive: d, Items: []string{"x", "y", "z"}})
	assert.Len(t, h.renderer.seeks, 1)

	// drifted: corrected and resumed
	h.renderer.offset = 10
	h.renderer.state = RenderPaused
	before := h.renderer.plays
	h.engine.Apply(ApplyForcePlay{Directive: d, Items: []string{"x", "y", "z"}})
	assert.Len(t, h.renderer.seeks, 2)
	assert.Equal(t, before+1, h.renderer.plays)
}

func TestEngine_ForcePlayWithoutDurationDoesNotSeek(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.Apply(LoadSequence{PlaylistID: "morning", Items: []string{"a", "b"}})

	h.engine.Apply(ApplyForcePlay{Directive: directive(h, "b", "morning", 10*time.Minute, 0), Items: []string{"a", "b"}})

	assert.Equal(t, "b", h.renderer.CurrentRef())
	assert.Empty(t, h.renderer.seeks)
}

func TestEngine_ForcePlayFromFutureDoesNotSeek(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.Apply(ApplyForcePlay{Directive: directive(h, "b", "morning", -20*time.Second, 60), Items: []string{"a", "b"}})

	assert.Equal(t, "b", h.renderer.CurrentRef())
	assert.Empty(t, h.renderer.seeks)
}

func TestEngine_ExpiredForcePlayIgnored(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.Apply(LoadSequence{PlaylistID: "morning", Items: []string{"a"}})

	h.engine.Apply(ApplyForcePlay{Directive: directive(h, "x", "evening", 3*time.Minute, 120), Items: []string{"x"}})
	h.engine.Apply(ApplyForcePlay{Directive: directive(h, "x", "evening", 2*time.Hour, 0), Items: []string{"x"}})
	h.engine.Apply(ApplyForcePlay{Directive: directive(h, "x", "evening", -2*time.Minute, 0), Items: []string{"x"}})

	assert.Equal(t, "morning", h.engine.PlaylistID())
	assert.Equal(t, []string{"a"}, h.renderer.Loads())
}

func TestEngine_ForcePlayNotReappliedAfterMovingOn(t *testing.T) {
	h := newHarness(t, nil)
	d := directive(h, "b", "morning", time.Minute, 0)
	h.engine.Apply(ApplyForcePlay{Directive: d, Items: []string{"a", "b", "c"}})
	require.Equal(t, "b", h.renderer.CurrentRef())

	h.engine.Apply(ContentEnded{})
	require.Equal(t, "c", h.renderer.CurrentRef())

	h.engine.Apply(ApplyForcePlay{Directive: d, Items: []string{"a", "b", "c"}})
	assert.Equal(t, "c", h.renderer.CurrentRef())
}

func TestEngine_ForcePlayRestoredAfterScheduleCut(t *testing.T) {
	h := newHarness(t, nil)
	d := directive(h, "b", "morning", time.Minute, 0)
	h.engine.Apply(ApplyForcePlay{Directive: d, Items: []string{"a", "b", "c"}})
	require.Equal(t, "b", h.renderer.CurrentRef())

	h.engine.Apply(SwitchContent{PlaylistID: models.DefaultPlaylistID, Items: []string{"seed1"}})
	require.Equal(t, "seed1", h.renderer.CurrentRef())

	h.engine.Apply(ApplyForcePlay{Directive: d, Items: []string{"a", "b", "c"}})
	snap := h.engine.Snapshot()
	assert.Equal(t, "morning", snap.PlaylistID)
	assert.Equal(t, "b", snap.Current)
	assert.Equal(t, "b", h.renderer.CurrentRef())
}

func TestEngine_ForcePlayAndLiveMode(t *testing.T) {
	h := newHarness(t, nil)
	h.engine.Apply(LoadSequence{PlaylistID: "morning", Items: []string{"a", "b"}})

	older := directive(h, "b", "morning", 10*time.Second, 0)
	h.engine.Apply(SwitchToLive{Source: "live1"})
	h.engine.Apply(ApplyForcePlay{Directive: older, Items: []string{"a", "b"}})
	assert.True(t, h.engine.Snapshot().Live)

	h.now = h.now.Add(5 * time.Second)
	newer := directive(h, "b", "morning", 0, 0)
	newer.IssuedAt = h.now.UnixMilli()
	h.now = h.now.Add(time.Second)
	h.engine.Apply(ApplyForcePlay{Directive: newer, Items: []string{"a", "b"}})

	snap := h.engine.Snapshot()
	assert.False(t, snap.Live)
	assert.Equal(t, "b", snap.Current)
}

func TestEngine_StaleRendererReportsDropped(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Listener = nil })
	h.engine.Apply(LoadSequence{PlaylistID: "morning", Items: []string{"a", "b"}})

	// reports queued for "a" before a hard cut reach the engine after it
	require.True(t, h.engine.Submit(ContentEnded{ContentRef: "a"}))
	require.True(t, h.engine.Submit(ContentError{Code: CodeNotFound, ContentRef: "a"}))
	require.True(t, h.engine.Submit(RendererStateChanged{State: RenderPlaying, ContentRef: "a"}))
	h.engine.Apply(SwitchContent{PlaylistID: "evening", Items: []string{"x", "y"}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.engine.Run(ctx)
		close(done)
	}()
	require.True(t, h.engine.Submit(RendererStateChanged{State: RenderPlaying, ContentRef: "x"}))

	assert.Eventually(t, func() bool {
		return h.engine.Snapshot().State == StatePlaying.String()
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	snap := h.engine.Snapshot()
	assert.Equal(t, "x", snap.Current)
	assert.Equal(t, []string{"a", "x"}, h.renderer.Loads())
	assert.Empty(t, h.reporter.errs)
	assert.Empty(t, h.timers.timers)

	// a report for the content on screen still applies
	h.engine.Apply(ContentEnded{ContentRef: "x"})
	assert.Equal(t, "y", h.engine.Snapshot().Current)
}

func TestEngine_RunDrainsSubmittedCommands(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Listener = nil })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		h.engine.Run(ctx)
		close(done)
	}()

	require.True(t, h.engine.Submit(LoadSequence{PlaylistID: "morning", Items: []string{"a", "b"}}))
	require.True(t, h.engine.Submit(ContentEnded{}))

	assert.Eventually(t, func() bool {
		return h.engine.Snapshot().Current == "b"
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
