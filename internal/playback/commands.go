package playback

import "github.com/stwalsh4118/vigil/internal/models"

// Command is an input to the engine's state machine
type Command interface {
	command()
}

// LoadSequence replaces the sequence and starts from its head
type LoadSequence struct {
	PlaylistID string
	Items      []string
}

// SwitchContent is the schedule's decision about what should be playing.
// A different playlist, or Force, is a hard cut. Otherwise, with
// CheckContent, the items are reconciled against the current sequence.
type SwitchContent struct {
	PlaylistID   string
	Items        []string
	Force        bool
	CheckContent bool
}

// Reconcile applies edited contents of the current playlist without
// interrupting the item on screen when it is still present
type Reconcile struct {
	PlaylistID string
	Items      []string
}

// Advance moves to the next item using the current playback order
type Advance struct{}

// Previous moves to the preceding item
type Previous struct{}

// Renderer reports name the content they refer to in ContentRef. A report
// whose ref no longer matches what the engine is showing is stale and
// dropped; an empty ref means the current content.

// ContentEnded reports that the renderer finished the content
type ContentEnded struct {
	ContentRef string
}

// ContentError reports a renderer failure
type ContentError struct {
	Code       int
	ContentRef string
}

// RendererStateChanged reports a renderer state transition
type RendererStateChanged struct {
	State      RenderState
	ContentRef string
}

// SwitchToLive enters live mode on the given source
type SwitchToLive struct {
	Source string
}

// SwitchToPlaylist leaves live mode and restarts the sequence from its head
type SwitchToPlaylist struct{}

// ApplyForcePlay aligns playback with a force-play directive. Items are the
// contents of the directive's playlist.
type ApplyForcePlay struct {
	Directive models.ForcePlayDirective
	Items     []string
}

type timerAction int

const (
	actionSkip timerAction = iota
	actionReloadLive
)

// timerFired is delivered when a delayed action comes due. It is ignored
// unless its epoch still matches the engine's.
type timerFired struct {
	epoch  uint64
	action timerAction
}

func (LoadSequence) command()         {}
func (SwitchContent) command()        {}
func (Reconcile) command()            {}
func (Advance) command()              {}
func (Previous) command()             {}
func (ContentEnded) command()         {}
func (ContentError) command()         {}
func (RendererStateChanged) command() {}
func (SwitchToLive) command()         {}
func (SwitchToPlaylist) command()     {}
func (ApplyForcePlay) command()       {}
func (timerFired) command()           {}
