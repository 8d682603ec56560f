package http

import (
	"strconv"
	"time"
)

// ParseIntDefault returns def for an empty or non-integer s.
func ParseIntDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

var timeLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"}

// ParseTime accepts RFC3339 (with or without fraction), a bare date in UTC,
// or positive unix seconds.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil && sec > 0 {
		return time.Unix(sec, 0).UTC(), true
	}
	return time.Time{}, false
}

// ParseTimeRange resolves the from/to query pair. to defaults to now and
// from to window before to; from must end up before to.
func ParseTimeRange(from, to string, window time.Duration, now time.Time) (TimeRange, *AppError) {
	end, aerr := parseBound("to", to, now)
	if aerr != nil {
		return TimeRange{}, aerr
	}
	start, aerr := parseBound("from", from, end.Add(-window))
	if aerr != nil {
		return TimeRange{}, aerr
	}
	if !start.Before(end) {
		return TimeRange{}, BadRequestError("from", "from must be before to")
	}
	return TimeRange{From: start, To: end}, nil
}

func parseBound(name, raw string, def time.Time) (time.Time, *AppError) {
	if raw == "" {
		return def, nil
	}
	t, ok := ParseTime(raw)
	if !ok {
		return time.Time{}, BadRequestErrorf(name, "%s must be RFC3339, a date or unix seconds, got %q", name, raw)
	}
	return t, nil
}
