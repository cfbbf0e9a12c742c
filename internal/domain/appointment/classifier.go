package appointment

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Badge is the visual marker a view attaches to an appointment row.
type Badge string

const (
	BadgeNone     Badge = ""
	BadgePending  Badge = "pending"
	BadgeReviewed Badge = "reviewed"
)

// Classification is the derived, never stored, view of one appointment at
// a given instant.
type Classification struct {
	PastDue  bool
	Pending  bool
	Reviewed bool
	// Late is true when the appointment date is before today, whatever the
	// status. The agenda list flags these rows.
	Late  bool
	Badge Badge
}

// ParseDate parses a naive YYYY-MM-DD date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return d, nil
}

// parseClock accepts HH:MM and HH:MM:SS.
func parseClock(s string) (hour, minute, second int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, 0, fmt.Errorf("parse time %q: expected HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, 0, fmt.Errorf("parse time %q: invalid hour", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, 0, fmt.Errorf("parse time %q: invalid minute", s)
	}
	if len(parts) == 3 {
		second, err = strconv.Atoi(parts[2])
		if err != nil || second < 0 || second > 59 {
			return 0, 0, 0, fmt.Errorf("parse time %q: invalid second", s)
		}
	}
	return hour, minute, second, nil
}

// at combines the date and time of a. An explicit time keeps its seconds;
// the fallback used for a missing time is read to the minute.
func at(a Appointment, loc *time.Location, fallback string) (time.Time, error) {
	d, err := ParseDate(a.Date, loc)
	if err != nil {
		return time.Time{}, err
	}
	clock := a.Time
	explicit := strings.TrimSpace(clock) != ""
	if !explicit {
		clock = fallback
	}
	h, m, sec, err := parseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	if !explicit {
		sec = 0
	}
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, sec, 0, loc), nil
}

// DueAt is the instant after which the appointment counts as elapsed. A
// missing time means the end of that day, taken as 23:59:00 rather than
// 23:59:59: an appointment without a time is past due from 23:59:01.
func DueAt(a Appointment, loc *time.Location) (time.Time, error) {
	return at(a, loc, dayEnd)
}

// StartsAt is the scheduled start, with a missing time read as midnight.
func StartsAt(a Appointment, loc *time.Location) (time.Time, error) {
	return at(a, loc, "00:00")
}

// IsPastDue reports whether the appointment's due instant is strictly
// before now. Unparsable dates or times are never past due.
func IsPastDue(a Appointment, now time.Time) bool {
	due, err := DueAt(a, now.Location())
	if err != nil {
		return false
	}
	return due.Before(now)
}

// IsReviewed reports whether a real-world outcome has been recorded.
func IsReviewed(a Appointment) bool {
	if a.Status == StatusDone || a.Status == StatusMissed {
		return true
	}
	if strings.TrimSpace(a.NotPerformedReason) != "" {
		return true
	}
	return strings.Contains(a.Notes, ReasonMarker)
}

// IsPending reports whether the appointment elapsed without an outcome.
func IsPending(a Appointment, now time.Time) bool {
	return IsPastDue(a, now) && !a.Status.Terminal() && !IsReviewed(a)
}

// DaysUntil returns the number of calendar days from today to due. Both
// sides are truncated to their date so a difference never depends on the
// time of day; negative means overdue.
func DaysUntil(due, today time.Time) int {
	d1 := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	d0 := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	return int(d1.Sub(d0).Hours() / 24)
}

// IsBeforeToday reports whether the appointment date precedes now's date.
func IsBeforeToday(a Appointment, now time.Time) bool {
	d, err := ParseDate(a.Date, now.Location())
	if err != nil {
		return false
	}
	return DaysUntil(d, now) < 0
}

// Classify computes every derived flag for a.
func Classify(a Appointment, now time.Time) Classification {
	c := Classification{
		PastDue:  IsPastDue(a, now),
		Reviewed: IsReviewed(a),
		Late:     IsBeforeToday(a, now),
	}
	c.Pending = c.PastDue && !a.Status.Terminal() && !c.Reviewed

	switch {
	case c.Pending:
		c.Badge = BadgePending
	case c.Reviewed:
		if start, err := StartsAt(a, now.Location()); err == nil && start.Before(now) {
			c.Badge = BadgeReviewed
		}
	}
	return c
}

// Classifier wraps Classify with diagnostics for malformed records.
type Classifier struct {
	logger zerolog.Logger
}

func NewClassifier(logger zerolog.Logger) *Classifier {
	return &Classifier{logger: logger}
}

func (c *Classifier) Classify(a Appointment, now time.Time) Classification {
	if _, err := DueAt(a, now.Location()); err != nil {
		c.logger.Warn().Err(err).Str("appointment_id", a.ID).Msg("unparsable appointment schedule, treated as not pending")
	}
	if a.Status != "" && !a.Status.Valid() {
		c.logger.Warn().Str("appointment_id", a.ID).Str("status", string(a.Status)).Msg("unknown appointment status")
	}
	return Classify(a, now)
}

// sortKey orders by date then time; a missing time sorts at the end of
// its day, matching DueAt.
func sortKey(a Appointment) string {
	t := strings.TrimSpace(a.Time)
	if t == "" {
		t = dayEnd
	} else if h, m, sec, err := parseClock(t); err == nil {
		t = fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
	}
	return a.Date + " " + t
}

// SortAscending orders by date and time, earliest first.
func SortAscending(items []Appointment) {
	sort.SliceStable(items, func(i, j int) bool {
		return sortKey(items[i]) < sortKey(items[j])
	})
}

// SortDescending orders by date and time, latest first.
func SortDescending(items []Appointment) {
	sort.SliceStable(items, func(i, j int) bool {
		return sortKey(items[i]) > sortKey(items[j])
	})
}
