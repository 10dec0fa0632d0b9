package schedule

import (
	"time"

	"github.com/stwalsh4118/vigil/internal/models"
)

// ruleApplies reports whether a legacy rule matches now's date and its time has passed
func ruleApplies(rule models.LegacyRule, now time.Time) (int, bool) {
	if rule.PlaylistID == "" || rule.Priority() < 0 {
		return 0, false
	}
	hour, minute, ok := models.ParseClock(rule.Time)
	if !ok {
		return 0, false
	}
	at := hour*60 + minute
	if at > now.Hour()*60+now.Minute() {
		return 0, false
	}

	switch rule.Type {
	case models.LegacyRuleDaily:
		return at, true
	case models.LegacyRuleWeekly:
		return at, rule.DayOfWeek == int(now.Weekday())
	case models.LegacyRuleMonthly:
		return at, rule.DayOfMonth == now.Day()
	case models.LegacyRuleDate:
		return at, rule.Date == now.Format(models.DateLayout)
	default:
		return 0, false
	}
}

// ResolveLegacy picks the playlist of the applicable legacy rule. Higher
// priority wins; among equal priority the later time of day wins, then the
// greater playlist id.
func ResolveLegacy(rules []models.LegacyRule, now time.Time) (string, bool) {
	var (
		best     *models.LegacyRule
		bestTime int
	)
	for i := range rules {
		at, ok := ruleApplies(rules[i], now)
		if !ok {
			continue
		}
		r := rules[i]
		switch {
		case best == nil:
		case r.Priority() != best.Priority():
			if r.Priority() < best.Priority() {
				continue
			}
		case at != bestTime:
			if at < bestTime {
				continue
			}
		case r.PlaylistID <= best.PlaylistID:
			continue
		}
		best = &rules[i]
		bestTime = at
	}
	if best == nil {
		return "", false
	}
	return best.PlaylistID, true
}

// Source records which layer of the schedule produced a target
type Source string

// Target sources
const (
	SourceEvent   Source = "event"
	SourceLegacy  Source = "legacy_rule"
	SourceDefault Source = "default"
)

// Target is the playlist the engine should be on at an instant
type Target struct {
	PlaylistID string        `json:"playlistId"`
	Content    ActiveContent `json:"content"`
	Source     Source        `json:"source"`
}

// ResolveTarget layers the schedule: an active event wins, then legacy
// rules, then the default playlist
func ResolveTarget(events []models.ScheduleEvent, rules []models.LegacyRule, now time.Time) Target {
	if content, ok := Resolve(events, now); ok {
		return Target{PlaylistID: content.PlaylistID(), Content: content, Source: SourceEvent}
	}
	if id, ok := ResolveLegacy(rules, now); ok {
		return Target{
			PlaylistID: id,
			Content:    ActiveContent{Type: models.ContentTypePlaylist, ID: id},
			Source:     SourceLegacy,
		}
	}
	return Target{
		PlaylistID: models.DefaultPlaylistID,
		Content:    ActiveContent{Type: models.ContentTypePlaylist, ID: models.DefaultPlaylistID, Name: models.DefaultPlaylistName},
		Source:     SourceDefault,
	}
}
