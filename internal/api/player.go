package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/vigil/internal/logger"
	"github.com/stwalsh4118/vigil/internal/playback"
	"github.com/stwalsh4118/vigil/internal/schedule"
)

// Player is the playback engine as seen by the API
type Player interface {
	Apply(cmd playback.Command)
	Snapshot() playback.Snapshot
}

// Converger is the convergence loop as seen by the API
type Converger interface {
	Target() schedule.Target
	Visible(ctx context.Context)
}

// NowPlayingResponse combines the engine snapshot with the schedule target
type NowPlayingResponse struct {
	Playback playback.Snapshot `json:"playback"`
	Target   schedule.Target   `json:"target"`
}

// LiveRequest starts live mode
type LiveRequest struct {
	// Source overrides the configured live source
	Source string `json:"source"`
}

// ErrorReport is a renderer error code reported by an external rendering surface
type ErrorReport struct {
	Code int `json:"code" binding:"required"`
	// ContentRef names the failing content; reports for content no longer on
	// screen are ignored
	ContentRef string `json:"contentRef"`
}

// PlayerHandler handles viewer control requests
type PlayerHandler struct {
	player     Player
	loop       Converger
	liveSource string
}

// NewPlayerHandler creates a new player handler instance
func NewPlayerHandler(player Player, loop Converger, liveSource string) *PlayerHandler {
	return &PlayerHandler{player: player, loop: loop, liveSource: liveSource}
}

func (h *PlayerHandler) respond(c *gin.Context) {
	c.JSON(http.StatusOK, NowPlayingResponse{
		Playback: h.player.Snapshot(),
		Target:   h.loop.Target(),
	})
}

// NowPlaying handles GET /api/player
func (h *PlayerHandler) NowPlaying(c *gin.Context) {
	h.respond(c)
}

// Next handles POST /api/player/next
func (h *PlayerHandler) Next(c *gin.Context) {
	h.player.Apply(playback.Advance{})
	h.respond(c)
}

// Previous handles POST /api/player/previous
func (h *PlayerHandler) Previous(c *gin.Context) {
	h.player.Apply(playback.Previous{})
	h.respond(c)
}

// Visible handles POST /api/player/visible, the viewer regaining focus
func (h *PlayerHandler) Visible(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	h.loop.Visible(ctx)
	h.respond(c)
}

// ReportError handles POST /api/player/error
func (h *PlayerHandler) ReportError(c *gin.Context) {
	var req ErrorReport
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	h.player.Apply(playback.ContentError{Code: req.Code, ContentRef: req.ContentRef})
	h.respond(c)
}

// StartLive handles POST /api/player/live
func (h *PlayerHandler) StartLive(c *gin.Context) {
	var req LiveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request body: "+err.Error())
			return
		}
	}

	source := req.Source
	if source == "" {
		source = h.liveSource
	}
	if source == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "no_live_source",
			Message: playback.ErrNoLiveSource.Error(),
		})
		return
	}

	logger.Log.Info().
		Str("source", source).
		Msg("Live mode requested")

	h.player.Apply(playback.SwitchToLive{Source: source})
	h.respond(c)
}

// StopLive handles DELETE /api/player/live
func (h *PlayerHandler) StopLive(c *gin.Context) {
	logger.Log.Info().Msg("Return to schedule requested")

	h.player.Apply(playback.SwitchToPlaylist{})
	h.respond(c)
}

// SetupPlayerRoutes registers viewer control routes
func SetupPlayerRoutes(apiGroup *gin.RouterGroup, player Player, loop Converger, liveSource string) {
	handler := NewPlayerHandler(player, loop, liveSource)

	apiGroup.GET("/player", handler.NowPlaying)
	apiGroup.POST("/player/next", handler.Next)
	apiGroup.POST("/player/previous", handler.Previous)
	apiGroup.POST("/player/visible", handler.Visible)
	apiGroup.POST("/player/error", handler.ReportError)
	apiGroup.POST("/player/live", handler.StartLive)
	apiGroup.DELETE("/player/live", handler.StopLive)
}
