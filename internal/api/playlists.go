package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/vigil/internal/authoring"
	"github.com/stwalsh4118/vigil/internal/models"
)

const requestTimeout = 5 * time.Second

// CreatePlaylistRequest represents a request to create a playlist
type CreatePlaylistRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreatePlaylistResponse carries the derived playlist id
type CreatePlaylistResponse struct {
	ID string `json:"id"`
}

// PlaylistResponse represents one playlist
type PlaylistResponse struct {
	ID    string                `json:"id"`
	Items []models.PlaylistItem `json:"items"`
}

// AddItemsResponse reports how many items were inserted
type AddItemsResponse struct {
	Added int `json:"added"`
}

// OrderRequest sets the playback order
type OrderRequest struct {
	Order models.PlaybackOrder `json:"order" binding:"required"`
}

// OrderResponse represents the playback order
type OrderResponse struct {
	Order models.PlaybackOrder `json:"order"`
}

// SyncResponse reports the outcome of a forced sync
type SyncResponse struct {
	Failed int `json:"failed"`
}

// PlaylistHandler handles playlist authoring requests
type PlaylistHandler struct {
	service *authoring.Service
}

// NewPlaylistHandler creates a new playlist handler instance
func NewPlaylistHandler(service *authoring.Service) *PlaylistHandler {
	return &PlaylistHandler{service: service}
}

func indexParam(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		badRequest(c, "Item index must be a non-negative integer")
		return 0, false
	}
	return index, true
}

// ListPlaylists handles GET /api/playlists
func (h *PlaylistHandler) ListPlaylists(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	c.JSON(http.StatusOK, h.service.ListPlaylists(ctx))
}

// CreatePlaylist handles POST /api/playlists
func (h *PlaylistHandler) CreatePlaylist(c *gin.Context) {
	var req CreatePlaylistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	id, err := h.service.CreatePlaylist(ctx, req.Name)
	if err != nil {
		respondAuthoringError(c, err, "create_playlist")
		return
	}

	c.JSON(http.StatusCreated, CreatePlaylistResponse{ID: id})
}

// GetPlaylist handles GET /api/playlists/:id
func (h *PlaylistHandler) GetPlaylist(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	id := c.Param("id")
	items, err := h.service.GetPlaylist(ctx, id)
	if err != nil {
		respondAuthoringError(c, err, "get_playlist")
		return
	}

	c.JSON(http.StatusOK, PlaylistResponse{ID: id, Items: items})
}

// DeletePlaylist handles DELETE /api/playlists/:id
func (h *PlaylistHandler) DeletePlaylist(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.service.DeletePlaylist(ctx, c.Param("id")); err != nil {
		respondAuthoringError(c, err, "delete_playlist")
		return
	}

	c.Status(http.StatusNoContent)
}

// AddItems handles POST /api/playlists/:id/items
func (h *PlaylistHandler) AddItems(c *gin.Context) {
	var req authoring.AddItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	added, err := h.service.AddItems(ctx, c.Param("id"), req)
	if err != nil {
		respondAuthoringError(c, err, "add_items")
		return
	}

	c.JSON(http.StatusCreated, AddItemsResponse{Added: added})
}

// RemoveItem handles DELETE /api/playlists/:id/items/:index
func (h *PlaylistHandler) RemoveItem(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.service.RemoveItem(ctx, c.Param("id"), index); err != nil {
		respondAuthoringError(c, err, "remove_item")
		return
	}

	c.Status(http.StatusNoContent)
}

// PlayNow handles POST /api/playlists/:id/items/:index/play
func (h *PlaylistHandler) PlayNow(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	directive, err := h.service.PlayNow(ctx, c.Param("id"), index)
	if err != nil {
		respondAuthoringError(c, err, "play_now")
		return
	}

	c.JSON(http.StatusAccepted, directive)
}

// GetOrder handles GET /api/settings/order
func (h *PlaylistHandler) GetOrder(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	c.JSON(http.StatusOK, OrderResponse{Order: h.service.PlaybackOrder(ctx)})
}

// SetOrder handles PUT /api/settings/order
func (h *PlaylistHandler) SetOrder(c *gin.Context) {
	var req OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.service.SetPlaybackOrder(ctx, req.Order); err != nil {
		respondAuthoringError(c, err, "set_order")
		return
	}

	c.JSON(http.StatusOK, OrderResponse(req))
}

// Sync handles POST /api/sync
func (h *PlaylistHandler) Sync(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	failed, err := h.service.ForceSync(ctx)
	if err != nil {
		respondAuthoringError(c, err, "sync")
		return
	}

	status := http.StatusOK
	if failed > 0 {
		status = http.StatusBadGateway
	}
	c.JSON(status, SyncResponse{Failed: failed})
}

// SetupPlaylistRoutes registers playlist authoring routes
func SetupPlaylistRoutes(apiGroup *gin.RouterGroup, service *authoring.Service) {
	handler := NewPlaylistHandler(service)

	apiGroup.GET("/playlists", handler.ListPlaylists)
	apiGroup.POST("/playlists", handler.CreatePlaylist)
	apiGroup.GET("/playlists/:id", handler.GetPlaylist)
	apiGroup.DELETE("/playlists/:id", handler.DeletePlaylist)
	apiGroup.POST("/playlists/:id/items", handler.AddItems)
	apiGroup.DELETE("/playlists/:id/items/:index", handler.RemoveItem)
	apiGroup.POST("/playlists/:id/items/:index/play", handler.PlayNow)

	apiGroup.GET("/settings/order", handler.GetOrder)
	apiGroup.PUT("/settings/order", handler.SetOrder)
	apiGroup.POST("/sync", handler.Sync)
}
