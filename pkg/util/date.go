package util

import (
    "strconv"
    "time"
)

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
    if s == "" {
        return time.Time{}, false
    }
    if t, err := time.Parse(time.RFC3339, s); err == nil {
        return t, true
    }
    if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
        return t, true
    }
    if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
        return time.Unix(ts, 0), true
    }
    return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
    if t, ok := ParseTime(s); ok {
        return t
    }
    return def
}

// AlignDayRange truncates the range to UTC day boundaries. Billing exports
// carry intraday timestamps but aggregation is per calendar day.
func AlignDayRange(from, to time.Time) (time.Time, time.Time) {
    return from.UTC().Truncate(24 * time.Hour), to.UTC().Truncate(24 * time.Hour)
}

// DayWindow returns a day-aligned trailing window of the given length ending
// at now. Zero or negative days yields a single-day window.
func DayWindow(days int, now time.Time) (time.Time, time.Time) {
    if days < 1 {
        days = 1
    }
    to := now.UTC().Truncate(24 * time.Hour)
    from := to.AddDate(0, 0, -(days - 1))
    return from, to
}
