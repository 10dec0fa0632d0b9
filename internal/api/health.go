package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/vigil/internal/mirror"
)

// HealthResponse represents the response from the health check endpoint
type HealthResponse struct {
	Status   string         `json:"status"`
	Database string         `json:"database"`
	Mirror   mirror.Status  `json:"mirror"`
	Time     string         `json:"time"`
	Details  map[string]any `json:"details,omitempty"`
}

// HealthChecker reports whether the local store is reachable
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db     HealthChecker
	mirror mirror.Mirror
}

// NewHealthHandler creates a new health check handler. database may be nil
// when the local store is in memory.
func NewHealthHandler(database HealthChecker, m mirror.Mirror) *HealthHandler {
	if m == nil {
		m = mirror.NewDisabled()
	}
	return &HealthHandler{db: database, mirror: m}
}

// Check handles the health check endpoint. An unreachable mirror degrades
// nothing since playback never depends on it.
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:   "ok",
		Database: "memory",
		Mirror:   h.mirror.Status(),
		Time:     time.Now().UTC().Format(time.RFC3339),
		Details:  make(map[string]any),
	}

	if h.db != nil {
		if err := h.db.Health(ctx); err != nil {
			response.Status = "degraded"
			response.Database = "unhealthy"
			response.Details["database_error"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, response)
			return
		}
		response.Database = "healthy"
	}

	c.JSON(http.StatusOK, response)
}

// SetupHealthRoutes registers health check routes
func SetupHealthRoutes(apiGroup *gin.RouterGroup, database HealthChecker, m mirror.Mirror) {
	handler := NewHealthHandler(database, m)
	apiGroup.GET("/health", handler.Check)
}
