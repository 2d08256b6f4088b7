package tasksync

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used for container names and
// identity keys.
const DateLayout = "2006-01-02"

// timestampLayouts are tried in order by ParseTimestamp. Layouts without a
// zone are read as UTC, which is how the task service reports them.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	DateLayout,
}

// FormatDate renders t as a calendar date in t's own location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// ValidDate reports whether s is a well-formed calendar date.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// ParseTimestamp parses the timestamp shapes the task service emits.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("parse timestamp: empty value")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q: unrecognized format", s)
}

// LiteralDate returns the calendar-date component written at the start of a
// timestamp without any timezone conversion. All-day due dates are stored as
// midnight in the user's zone, so converting them would shift the day.
func LiteralDate(ts string) (string, bool) {
	if len(ts) < len(DateLayout) {
		return "", false
	}
	date := ts[:len(DateLayout)]
	if !ValidDate(date) {
		return "", false
	}
	return date, true
}

// LocalDate converts a timestamp to the calendar date it falls on in loc.
func LocalDate(ts string, loc *time.Location) (string, error) {
	t, err := ParseTimestamp(ts)
	if err != nil {
		return "", err
	}
	if loc == nil {
		loc = time.Local
	}
	return FormatDate(t.In(loc)), nil
}
