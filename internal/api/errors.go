package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/vigil/internal/authoring"
	"github.com/stwalsh4118/vigil/internal/logger"
	"github.com/stwalsh4118/vigil/internal/mirror"
)

// ErrorResponse represents an error in API responses
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_request",
		Message: message,
	})
}

// respondAuthoringError maps authoring and mirror errors onto HTTP responses
func respondAuthoringError(c *gin.Context, err error, op string) {
	switch {
	case authoring.IsPlaylistNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Playlist not found"})
	case authoring.IsItemNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Playlist item not found"})
	case authoring.IsEventNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Schedule event not found"})
	case authoring.IsPlaylistExists(err):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "duplicate_name", Message: "A playlist with this name already exists"})
	case authoring.IsDefaultPlaylistProtected(err):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "protected", Message: "The default playlist cannot be deleted"})
	case authoring.IsInvalidName(err),
		authoring.IsNoValidRefs(err),
		authoring.IsInvalidEvent(err),
		authoring.IsInvalidRule(err),
		authoring.IsInvalidOrder(err):
		badRequest(c, err.Error())
	case mirror.IsDisabled(err):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "mirror_disabled", Message: "Remote mirror is not configured"})
	default:
		logger.Log.Error().
			Err(err).
			Str("operation", op).
			Msg("Authoring request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   op + "_failed",
			Message: "Failed to " + op,
		})
	}
}
