package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Date and time layouts used by schedule events
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// DefaultEventDurationMinutes applies when an event has no usable duration
const DefaultEventDurationMinutes = 60

// Weekdays is a set of weekday indexes (0 = Sunday). It decodes from a list
// of numbers or numeric strings. Anything else is dropped.
type Weekdays []int

// UnmarshalJSON decodes a tolerant list of weekday indexes
func (w *Weekdays) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*w = nil
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		*w = nil
		return nil
	}

	days := make(Weekdays, 0, len(raw))
	for _, r := range raw {
		if n, ok := looseInt(r); ok && n >= 0 && n <= 6 {
			days = append(days, n)
		}
	}
	*w = days
	return nil
}

// looseInt decodes a JSON number or numeric string
func looseInt(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int(f), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n, true
		}
	}
	return 0, false
}

// Contains reports whether the set contains the weekday
func (w Weekdays) Contains(day time.Weekday) bool {
	for _, d := range w {
		if d == int(day) {
			return true
		}
	}
	return false
}

// ScheduleEvent is a rule stating that content should play in a time window
// on matching dates
type ScheduleEvent struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	ContentType     ContentType `json:"contentType"`
	ContentID       string      `json:"contentId"`
	ContentName     string      `json:"contentName"`
	StartDate       string      `json:"startDate"`
	StartTime       string      `json:"startTime"`
	DurationMinutes int         `json:"duration"`
	Recurrence      Recurrence  `json:"recurrence"`
	Days            Weekdays    `json:"days"`
	CreatedAt       time.Time   `json:"createdAt"`
}

// scheduleEventWire accepts events written by older clients: content type
// under "type", creation as epoch milliseconds under "created", and
// durations as numeric strings or under "durationMinutes".
type scheduleEventWire struct {
	ID              json.RawMessage `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	ContentType     ContentType     `json:"contentType"`
	Type            ContentType     `json:"type"`
	ContentID       string          `json:"contentId"`
	ContentName     string          `json:"contentName"`
	StartDate       string          `json:"startDate"`
	StartTime       string          `json:"startTime"`
	Duration        json.RawMessage `json:"duration"`
	DurationMinutes json.RawMessage `json:"durationMinutes"`
	Recurrence      Recurrence      `json:"recurrence"`
	Days            Weekdays        `json:"days"`
	CreatedAt       json.RawMessage `json:"createdAt"`
	Created         json.RawMessage `json:"created"`
}

// UnmarshalJSON decodes an event, substituting defaults for unusable
// duration and creation values instead of failing
func (e *ScheduleEvent) UnmarshalJSON(data []byte) error {
	var w scheduleEventWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	ev := ScheduleEvent{
		Title:       w.Title,
		Description: w.Description,
		ContentType: w.ContentType,
		ContentID:   w.ContentID,
		ContentName: w.ContentName,
		StartDate:   w.StartDate,
		StartTime:   w.StartTime,
		Recurrence:  w.Recurrence,
		Days:        w.Days,
	}
	if ev.ContentType == "" {
		ev.ContentType = w.Type
	}

	var id string
	if err := json.Unmarshal(w.ID, &id); err == nil {
		ev.ID = id
	} else if n, ok := looseInt(w.ID); ok {
		ev.ID = strconv.Itoa(n)
	}

	if n, ok := looseInt(w.Duration); ok {
		ev.DurationMinutes = n
	} else if n, ok := looseInt(w.DurationMinutes); ok {
		ev.DurationMinutes = n
	}

	var created time.Time
	if err := json.Unmarshal(w.CreatedAt, &created); err == nil {
		ev.CreatedAt = created
	} else if ms, ok := looseInt(w.Created); ok && ms > 0 {
		ev.CreatedAt = time.UnixMilli(int64(ms)).UTC()
	}

	*e = ev
	return nil
}

// NewScheduleEvent creates an event with a time-ordered id and creation stamp
func NewScheduleEvent() *ScheduleEvent {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return &ScheduleEvent{
		ID:              id.String(),
		ContentType:     ContentTypePlaylist,
		Recurrence:      RecurrenceNone,
		DurationMinutes: DefaultEventDurationMinutes,
		CreatedAt:       time.Now().UTC(),
	}
}

// Duration returns the event window length, applying the default when unset
func (e ScheduleEvent) Duration() time.Duration {
	minutes := e.DurationMinutes
	if minutes <= 0 {
		minutes = DefaultEventDurationMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// StartClock parses the start time into hours and minutes
func (e ScheduleEvent) StartClock() (hour, minute int, ok bool) {
	return ParseClock(e.StartTime)
}

// ParseStartDate parses the start date as a calendar date in loc
func (e ScheduleEvent) ParseStartDate(loc *time.Location) (time.Time, bool) {
	if e.StartDate == "" {
		return time.Time{}, false
	}
	d, err := time.ParseInLocation(DateLayout, e.StartDate, loc)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// ParseClock parses an "HH:MM" string. Seconds are tolerated and ignored.
func ParseClock(s string) (hour, minute int, ok bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

// LegacyRuleType is the kind of a legacy playlist schedule rule
type LegacyRuleType string

// Legacy rule types
const (
	LegacyRuleDaily   LegacyRuleType = "daily"
	LegacyRuleWeekly  LegacyRuleType = "weekly"
	LegacyRuleMonthly LegacyRuleType = "monthly"
	LegacyRuleDate    LegacyRuleType = "date"
)

// LegacyRule is an older, simpler schedule format: from Time onwards on a
// matching day the playlist applies until a later rule takes over
type LegacyRule struct {
	Time       string         `json:"time"`
	Type       LegacyRuleType `json:"type"`
	DayOfWeek  int            `json:"dayOfWeek"`
	DayOfMonth int            `json:"dayOfMonth"`
	Date       string         `json:"date"`
	PlaylistID string         `json:"playlistId"`
}

// Priority ranks legacy rules: a specific date beats monthly, weekly and daily
func (r LegacyRule) Priority() int {
	switch r.Type {
	case LegacyRuleDate:
		return 3
	case LegacyRuleMonthly:
		return 2
	case LegacyRuleWeekly:
		return 1
	case LegacyRuleDaily:
		return 0
	default:
		return -1
	}
}
