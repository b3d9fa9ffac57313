package api

import (
	"strconv"
	"strings"
	"time"
)

// ParseEpoch converts epoch seconds to a UTC time.
// Returns the zero time for non-positive input.
func ParseEpoch(epoch int64) time.Time {
	if epoch <= 0 {
		return time.Time{}
	}
	return time.Unix(epoch, 0).UTC()
}

// ParseFloatString parses a price string such as "1234.56".
// Returns 0 for empty or invalid input.
func ParseFloatString(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// ParseClock parses an "HH:MM:SS" session time on the given UTC day.
// Returns false for "--" and malformed values.
func ParseClock(day time.Time, clock string) (time.Time, bool) {
	clock = strings.TrimSpace(clock)
	if clock == "" || clock == "--" {
		return time.Time{}, false
	}

	t, err := time.Parse(time.TimeOnly, clock)
	if err != nil {
		return time.Time{}, false
	}

	y, m, d := day.UTC().Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, time.UTC), true
}

// NowEpoch returns the current time in seconds since epoch.
func NowEpoch() int64 {
	return time.Now().Unix()
}
