package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FromUnixMillis converts a millisecond epoch timestamp to a UTC time
func FromUnixMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// ParseUnixMillis parses a feed timestamp given as milliseconds since
// 1970-01-01T00:00:00Z. Fractional and exponent forms are accepted.
func ParseUnixMillis(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return FromUnixMillis(ms), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid millisecond timestamp %q", s)
	}
	return FromUnixMillis(int64(f)), nil
}

// ClockTime formats t as HH:mm:ss in loc
func ClockTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("15:04:05")
}

// SlashDate formats t as yyyy/MM/dd in loc
func SlashDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006/01/02")
}

// ShortDate formats t as dd-MM-yy in loc
func ShortDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("02-01-06")
}

// DayBefore reports whether the calendar date of a in loc precedes the
// calendar date of b in loc.
func DayBefore(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC).Before(time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC))
}
