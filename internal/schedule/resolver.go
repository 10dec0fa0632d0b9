// Package schedule decides which content should be playing at a given
// instant. Every function here is pure: same events and instant, same answer.
package schedule

import (
	"sort"
	"time"

	"github.com/stwalsh4118/vigil/internal/models"
	"github.com/teambition/rrule-go"
)

// weekdays maps time.Weekday (Sunday = 0) onto rrule weekdays
var weekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// ActiveContent is the resolved content for an instant
type ActiveContent struct {
	Type    models.ContentType `json:"contentType"`
	ID      string             `json:"contentId"`
	Name    string             `json:"contentName"`
	EventID string             `json:"eventId,omitempty"`
}

// PlaylistID returns the playlist the engine should load for this content.
// Single videos are wrapped in a pseudo playlist.
func (a ActiveContent) PlaylistID() string {
	if a.Type == models.ContentTypeVideo {
		return models.VideoPlaylistID(a.ID)
	}
	return a.ID
}

// startOfDay returns midnight of t's calendar date in t's location
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// recurrenceRule builds the date recurrence of an event anchored at its
// start date in loc. Occurrences fall at midnight of each matching date.
func recurrenceRule(ev models.ScheduleEvent, loc *time.Location) (*rrule.RRule, bool) {
	start, ok := ev.ParseStartDate(loc)
	if !ok {
		return nil, false
	}

	opt := rrule.ROption{Dtstart: start}
	switch ev.Recurrence {
	case models.RecurrenceNone:
		opt.Freq = rrule.DAILY
		opt.Count = 1
	case models.RecurrenceDaily:
		opt.Freq = rrule.DAILY
	case models.RecurrenceWeekly:
		opt.Freq = rrule.WEEKLY
		for _, d := range ev.Days {
			if d >= 0 && d < len(weekdays) {
				opt.Byweekday = append(opt.Byweekday, weekdays[d])
			}
		}
		if len(opt.Byweekday) == 0 {
			opt.Byweekday = []rrule.Weekday{weekdays[start.Weekday()]}
		}
	case models.RecurrenceMonthly:
		// BYMONTHDAY defaults to the start date's day; months without it are skipped
		opt.Freq = rrule.MONTHLY
	default:
		return nil, false
	}

	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, false
	}
	return rule, true
}

// OccursOn reports whether the event recurs on day's calendar date
func OccursOn(ev models.ScheduleEvent, day time.Time) bool {
	rule, ok := recurrenceRule(ev, day.Location())
	if !ok {
		return false
	}
	dayStart := startOfDay(day)
	dayEnd := dayStart.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return len(rule.Between(dayStart, dayEnd, true)) > 0
}

// windowStart returns the instant the event starts on day's calendar date
func windowStart(ev models.ScheduleEvent, day time.Time) (time.Time, bool) {
	hour, minute, ok := ev.StartClock()
	if !ok {
		return time.Time{}, false
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, day.Location()), true
}

// IsActive reports whether the event covers now. The window is
// [start, start+duration) on now's date and does not carry past midnight.
func IsActive(ev models.ScheduleEvent, now time.Time) bool {
	if !OccursOn(ev, now) {
		return false
	}
	start, ok := windowStart(ev, now)
	if !ok {
		return false
	}
	end := start.Add(ev.Duration())
	return !now.Before(start) && now.Before(end)
}

// Priority ranks an event for conflict resolution
func Priority(ev models.ScheduleEvent) int {
	return ev.Recurrence.Priority()
}

// startMinutes returns the event start as minutes after midnight, -1 if unparseable
func startMinutes(ev models.ScheduleEvent) int {
	hour, minute, ok := ev.StartClock()
	if !ok {
		return -1
	}
	return hour*60 + minute
}

// outranks reports whether a beats b among simultaneously active events.
// Higher priority wins, then the later start time, then the more recently
// created event, then the greater id.
func outranks(a, b models.ScheduleEvent) bool {
	if pa, pb := Priority(a), Priority(b); pa != pb {
		return pa > pb
	}
	if sa, sb := startMinutes(a), startMinutes(b); sa != sb {
		return sa > sb
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// ActiveEvent returns the winning event covering now, or nil
func ActiveEvent(events []models.ScheduleEvent, now time.Time) *models.ScheduleEvent {
	var best *models.ScheduleEvent
	for i := range events {
		ev := events[i]
		if !ev.ContentType.Valid() || ev.ContentID == "" {
			continue
		}
		if !IsActive(ev, now) {
			continue
		}
		if best == nil || outranks(ev, *best) {
			best = &events[i]
		}
	}
	return best
}

// Resolve returns the content that should be playing at now, if any event covers it
func Resolve(events []models.ScheduleEvent, now time.Time) (ActiveContent, bool) {
	ev := ActiveEvent(events, now)
	if ev == nil {
		return ActiveContent{}, false
	}
	return ActiveContent{Type: ev.ContentType, ID: ev.ContentID, Name: ev.ContentName, EventID: ev.ID}, true
}

// Occurrences lists the instants the event starts within [from, to)
func Occurrences(ev models.ScheduleEvent, from, to time.Time) []time.Time {
	rule, ok := recurrenceRule(ev, from.Location())
	if !ok || !from.Before(to) {
		return nil
	}

	days := rule.Between(startOfDay(from), to, true)
	out := make([]time.Time, 0, len(days))
	for _, day := range days {
		start, ok := windowStart(ev, day)
		if !ok {
			return nil
		}
		if start.Before(from) || !start.Before(to) {
			continue
		}
		out = append(out, start)
	}
	return out
}

// ProgramEntry is one event of a day's program
type ProgramEntry struct {
	Event   models.ScheduleEvent `json:"event"`
	Start   time.Time            `json:"start"`
	End     time.Time            `json:"end"`
	EndTime string               `json:"endTime"`
}

// DayProgram lists the events occurring on day's date ordered by start time
func DayProgram(events []models.ScheduleEvent, day time.Time) []ProgramEntry {
	var entries []ProgramEntry
	for _, ev := range events {
		if !OccursOn(ev, day) {
			continue
		}
		start, ok := windowStart(ev, day)
		if !ok {
			continue
		}
		entries = append(entries, ProgramEntry{
			Event:   ev,
			Start:   start,
			End:     start.Add(ev.Duration()),
			EndTime: EndTime(ev.StartTime, ev.DurationMinutes),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Start.Equal(entries[j].Start) {
			return entries[i].Start.Before(entries[j].Start)
		}
		return outranks(entries[i].Event, entries[j].Event)
	})
	return entries
}

// EndTime formats the clock time an event starting at startTime ends,
// wrapping past midnight. Non-positive durations use the default.
func EndTime(startTime string, durationMinutes int) string {
	hour, minute, ok := models.ParseClock(startTime)
	if !ok {
		return ""
	}
	if durationMinutes <= 0 {
		durationMinutes = models.DefaultEventDurationMinutes
	}
	total := (hour*60 + minute + durationMinutes) % (24 * 60)
	end := time.Date(2000, 1, 1, total/60, total%60, 0, 0, time.UTC)
	return end.Format(models.TimeLayout)
}
