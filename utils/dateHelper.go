package utils

import (
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02"
	// ISOLayout renders UTC instants the way browsers print Date.toISOString().
	ISOLayout = "2006-01-02T15:04:05.000Z07:00"
)

// LoadLocation falls back to def when tz is empty.
func LoadLocation(tz string, def string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		tz = def
	}
	return time.LoadLocation(tz)
}

// ParseLocalDate parses YYYY-MM-DD as midnight in loc. A full ISO timestamp is truncated to its date part.
func ParseLocalDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) && s[len(DateLayout)] == 'T' {
		s = s[:len(DateLayout)]
	}
	return time.ParseInLocation(DateLayout, s, loc)
}

// StartOfDayUTC is local midnight of the date d falls on, in UTC.
func StartOfDayUTC(d time.Time, loc *time.Location) time.Time {
	local := d.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).UTC()
}

// EndOfDayUTC is local 23:59:59.999 of the date d falls on, in UTC.
func EndOfDayUTC(d time.Time, loc *time.Location) time.Time {
	local := d.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, int(999*time.Millisecond), loc).UTC()
}

// FormatISO renders t as an ISO-8601 UTC string with millisecond precision.
func FormatISO(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// FormatISOPtr is FormatISO for optional instants; nil stays nil.
func FormatISOPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := FormatISO(*t)
	return &s
}
