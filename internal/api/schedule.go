package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/vigil/internal/authoring"
	"github.com/stwalsh4118/vigil/internal/models"
	"github.com/stwalsh4118/vigil/internal/schedule"
)

const defaultOccurrenceWindow = 7 * 24 * time.Hour

// EventListResponse represents the schedule event list
type EventListResponse struct {
	Events []models.ScheduleEvent `json:"events"`
}

// ProgramResponse represents the events occurring on one date
type ProgramResponse struct {
	Date    string                  `json:"date"`
	Entries []schedule.ProgramEntry `json:"entries"`
}

// OccurrencesResponse lists the start instants of one event
type OccurrencesResponse struct {
	EventID     string      `json:"eventId"`
	Occurrences []time.Time `json:"occurrences"`
}

// RulesRequest replaces the legacy schedule rules
type RulesRequest struct {
	Rules []models.LegacyRule `json:"rules"`
}

// ScheduleHandler handles schedule authoring requests
type ScheduleHandler struct {
	service *authoring.Service
	now     func() time.Time
}

// NewScheduleHandler creates a new schedule handler instance
func NewScheduleHandler(service *authoring.Service) *ScheduleHandler {
	return &ScheduleHandler{service: service, now: time.Now}
}

// ListEvents handles GET /api/schedule/events
func (h *ScheduleHandler) ListEvents(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	c.JSON(http.StatusOK, EventListResponse{Events: h.service.ListEvents(ctx)})
}

// AddEvent handles POST /api/schedule/events
func (h *ScheduleHandler) AddEvent(c *gin.Context) {
	var req authoring.EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	ev, err := h.service.AddEvent(ctx, req)
	if err != nil {
		respondAuthoringError(c, err, "add_event")
		return
	}

	c.JSON(http.StatusCreated, ev)
}

// DeleteEvent handles DELETE /api/schedule/events/:id
func (h *ScheduleHandler) DeleteEvent(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.service.DeleteEvent(ctx, c.Param("id")); err != nil {
		respondAuthoringError(c, err, "delete_event")
		return
	}

	c.Status(http.StatusNoContent)
}

// Occurrences handles GET /api/schedule/events/:id/occurrences?from=&to=
// Bounds are RFC3339 instants; the window defaults to the coming week.
func (h *ScheduleHandler) Occurrences(c *gin.Context) {
	from := h.now()
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			badRequest(c, "from must be an RFC3339 timestamp")
			return
		}
		from = t
	}
	to := from.Add(defaultOccurrenceWindow)
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			badRequest(c, "to must be an RFC3339 timestamp")
			return
		}
		to = t
	}
	if !to.After(from) {
		badRequest(c, "to must be after from")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	id := c.Param("id")
	occurrences, err := h.service.Occurrences(ctx, id, from, to)
	if err != nil {
		respondAuthoringError(c, err, "list_occurrences")
		return
	}
	if occurrences == nil {
		occurrences = []time.Time{}
	}

	c.JSON(http.StatusOK, OccurrencesResponse{EventID: id, Occurrences: occurrences})
}

// DayProgram handles GET /api/schedule/program?date=YYYY-MM-DD
func (h *ScheduleHandler) DayProgram(c *gin.Context) {
	day := h.now()
	if v := c.Query("date"); v != "" {
		t, err := time.ParseInLocation(models.DateLayout, v, day.Location())
		if err != nil {
			badRequest(c, "date must be formatted YYYY-MM-DD")
			return
		}
		day = t
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	entries := h.service.DayProgram(ctx, day)
	if entries == nil {
		entries = []schedule.ProgramEntry{}
	}

	c.JSON(http.StatusOK, ProgramResponse{Date: day.Format(models.DateLayout), Entries: entries})
}

// ListRules handles GET /api/schedule/rules
func (h *ScheduleHandler) ListRules(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	c.JSON(http.StatusOK, RulesRequest{Rules: h.service.LegacyRules(ctx)})
}

// ReplaceRules handles PUT /api/schedule/rules
func (h *ScheduleHandler) ReplaceRules(c *gin.Context) {
	var req RulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.Rules == nil {
		req.Rules = []models.LegacyRule{}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := h.service.ReplaceLegacyRules(ctx, req.Rules); err != nil {
		respondAuthoringError(c, err, "replace_rules")
		return
	}

	c.JSON(http.StatusOK, req)
}

// SetupScheduleRoutes registers schedule authoring routes
func SetupScheduleRoutes(apiGroup *gin.RouterGroup, service *authoring.Service) {
	handler := NewScheduleHandler(service)

	apiGroup.GET("/schedule/events", handler.ListEvents)
	apiGroup.POST("/schedule/events", handler.AddEvent)
	apiGroup.DELETE("/schedule/events/:id", handler.DeleteEvent)
	apiGroup.GET("/schedule/events/:id/occurrences", handler.Occurrences)
	apiGroup.GET("/schedule/program", handler.DayProgram)
	apiGroup.GET("/schedule/rules", handler.ListRules)
	apiGroup.PUT("/schedule/rules", handler.ReplaceRules)
}
