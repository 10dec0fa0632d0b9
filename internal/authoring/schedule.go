package authoring

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/stwalsh4118/vigil/internal/logger"
	"github.com/stwalsh4118/vigil/internal/models"
	"github.com/stwalsh4118/vigil/internal/schedule"
)

// EventRequest describes a schedule event to add
type EventRequest struct {
	Title           string             `json:"title"`
	Description     string             `json:"description"`
	ContentType     models.ContentType `json:"contentType" binding:"required"`
	ContentID       string             `json:"contentId" binding:"required"`
	StartDate       string             `json:"startDate" binding:"required"`
	StartTime       string             `json:"startTime" binding:"required"`
	DurationMinutes int                `json:"duration"`
	Recurrence      models.Recurrence  `json:"recurrence"`
	Days            []int              `json:"days"`
}

// ListEvents returns every schedule event
func (s *Service) ListEvents(ctx context.Context) []models.ScheduleEvent {
	events := s.state.ScheduleEvents(ctx)
	if events == nil {
		events = []models.ScheduleEvent{}
	}
	return events
}

// DayProgram lists the events occurring on day's date
func (s *Service) DayProgram(ctx context.Context, day time.Time) []schedule.ProgramEntry {
	return schedule.DayProgram(s.state.ScheduleEvents(ctx), day)
}

// Occurrences lists the start instants of an event within [from, to)
func (s *Service) Occurrences(ctx context.Context, eventID string, from, to time.Time) ([]time.Time, error) {
	for _, ev := range s.state.ScheduleEvents(ctx) {
		if ev.ID == eventID {
			return schedule.Occurrences(ev, from, to), nil
		}
	}
	return nil, ErrEventNotFound
}

// AddEvent validates and stores a new schedule event
func (s *Service) AddEvent(ctx context.Context, req EventRequest) (*models.ScheduleEvent, error) {
	ev, err := s.buildEvent(ctx, req)
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Str("content_id", req.ContentID).
			Msg("Schedule event rejected")
		return nil, fmt.Errorf("failed to add event: %w", err)
	}

	events := append(s.state.ScheduleEvents(ctx), *ev)
	if err := s.state.SaveScheduleEvents(ctx, events); err != nil {
		return nil, fmt.Errorf("failed to add event: %w", err)
	}

	logger.Log.Info().
		Str("event_id", ev.ID).
		Str("content_type", string(ev.ContentType)).
		Str("content_id", ev.ContentID).
		Str("recurrence", string(ev.Recurrence)).
		Msg("Schedule event added")

	return ev, nil
}

func (s *Service) buildEvent(ctx context.Context, req EventRequest) (*models.ScheduleEvent, error) {
	ev := models.NewScheduleEvent()
	ev.CreatedAt = s.now().UTC()
	ev.Title = req.Title
	ev.Description = req.Description

	if !req.ContentType.Valid() {
		return nil, fmt.Errorf("%w: unknown content type %q", ErrInvalidEvent, req.ContentType)
	}
	ev.ContentType = req.ContentType

	switch req.ContentType {
	case models.ContentTypeVideo:
		ref, ok := ExtractContentRef(req.ContentID)
		if !ok {
			return nil, fmt.Errorf("%w: %q names no content", ErrInvalidEvent, req.ContentID)
		}
		ev.ContentID = ref
		ev.ContentName = models.VideoContentName
	case models.ContentTypePlaylist:
		if _, ok := s.state.Playlists(ctx)[req.ContentID]; !ok && req.ContentID != models.DefaultPlaylistID {
			return nil, ErrPlaylistNotFound
		}
		ev.ContentID = req.ContentID
		ev.ContentName = PlaylistDisplayName(req.ContentID)
	}

	start, err := time.Parse(models.DateLayout, req.StartDate)
	if err != nil {
		return nil, fmt.Errorf("%w: start date %q", ErrInvalidEvent, req.StartDate)
	}
	ev.StartDate = req.StartDate

	if _, _, ok := models.ParseClock(req.StartTime); !ok {
		return nil, fmt.Errorf("%w: start time %q", ErrInvalidEvent, req.StartTime)
	}
	ev.StartTime = req.StartTime

	if req.DurationMinutes > 0 {
		ev.DurationMinutes = req.DurationMinutes
	}

	ev.Recurrence = req.Recurrence
	if ev.Recurrence == "" {
		ev.Recurrence = models.RecurrenceNone
	}
	if !ev.Recurrence.Valid() {
		return nil, fmt.Errorf("%w: unknown recurrence %q", ErrInvalidEvent, req.Recurrence)
	}

	if ev.Recurrence == models.RecurrenceWeekly {
		for _, d := range req.Days {
			if d < 0 || d > 6 {
				return nil, fmt.Errorf("%w: weekday %d out of range", ErrInvalidEvent, d)
			}
			if !slices.Contains(ev.Days, d) {
				ev.Days = append(ev.Days, d)
			}
		}
		if len(ev.Days) == 0 {
			ev.Days = models.Weekdays{int(start.Weekday())}
		}
		slices.Sort(ev.Days)
	}

	return ev, nil
}

// DeleteEvent removes a schedule event
func (s *Service) DeleteEvent(ctx context.Context, id string) error {
	events := s.state.ScheduleEvents(ctx)
	i := slices.IndexFunc(events, func(ev models.ScheduleEvent) bool { return ev.ID == id })
	if i < 0 {
		return fmt.Errorf("failed to delete event: %w", ErrEventNotFound)
	}

	events = slices.Delete(events, i, i+1)
	if err := s.state.SaveScheduleEvents(ctx, events); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	logger.Log.Info().
		Str("event_id", id).
		Msg("Schedule event deleted")

	return nil
}

// LegacyRules returns the legacy schedule rules
func (s *Service) LegacyRules(ctx context.Context) []models.LegacyRule {
	rules := s.state.LegacyRules(ctx)
	if rules == nil {
		rules = []models.LegacyRule{}
	}
	return rules
}

// ReplaceLegacyRules validates and stores the complete legacy rule list
func (s *Service) ReplaceLegacyRules(ctx context.Context, rules []models.LegacyRule) error {
	for i, rule := range rules {
		if err := validateRule(rule); err != nil {
			return fmt.Errorf("failed to replace rules: rule %d: %w", i, err)
		}
	}

	if err := s.state.SaveLegacyRules(ctx, rules); err != nil {
		return fmt.Errorf("failed to replace rules: %w", err)
	}

	logger.Log.Info().
		Int("rules", len(rules)).
		Msg("Legacy schedule rules replaced")
	return nil
}

func validateRule(rule models.LegacyRule) error {
	if rule.PlaylistID == "" {
		return fmt.Errorf("%w: playlist id required", ErrInvalidRule)
	}
	if _, _, ok := models.ParseClock(rule.Time); !ok {
		return fmt.Errorf("%w: time %q", ErrInvalidRule, rule.Time)
	}

	switch rule.Type {
	case models.LegacyRuleDaily:
	case models.LegacyRuleWeekly:
		if rule.DayOfWeek < 0 || rule.DayOfWeek > 6 {
			return fmt.Errorf("%w: day of week %d", ErrInvalidRule, rule.DayOfWeek)
		}
	case models.LegacyRuleMonthly:
		if rule.DayOfMonth < 1 || rule.DayOfMonth > 31 {
			return fmt.Errorf("%w: day of month %d", ErrInvalidRule, rule.DayOfMonth)
		}
	case models.LegacyRuleDate:
		if _, err := time.Parse(models.DateLayout, rule.Date); err != nil {
			return fmt.Errorf("%w: date %q", ErrInvalidRule, rule.Date)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidRule, rule.Type)
	}
	return nil
}
