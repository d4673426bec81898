// Package history reconstructs price series for a single market from
// partial, rate-limited upstream sources.
package history

import (
	"strconv"
	"strings"
	"time"
)

const (
	DefaultInterval = 300   // seconds
	MinInterval     = 10    // seconds
	MaxInterval     = 86400 // seconds

	defaultSpan = 24 * time.Hour

	// Epoch values above this are taken to be milliseconds.
	msThreshold = 10_000_000_000
)

// Window is the effective query range, in epoch seconds, with the nominal
// sampling interval. Start < End always holds after parsing.
type Window struct {
	Start    int64
	End      int64
	Interval int64
}

// ParseWindow normalizes raw start/end/interval values into a Window.
// Values may be numbers or numeric strings in epoch seconds or milliseconds
// (auto-detected by magnitude). Missing values default to the last 24 hours
// ending at now with a 300 second interval; the interval is clamped to
// [10s, 86400s]; a start at or past end is forced back one hour.
func ParseWindow(startRaw, endRaw, intervalRaw any, now time.Time) Window {
	end, ok := toEpochSeconds(endRaw)
	if !ok {
		end = now.Unix()
	}
	start, ok := toEpochSeconds(startRaw)
	if !ok {
		start = end - int64(defaultSpan/time.Second)
	}

	interval := int64(DefaultInterval)
	if v, ok := toInt64(intervalRaw); ok && v != 0 {
		interval = v
	}
	if interval < MinInterval {
		interval = MinInterval
	}
	if interval > MaxInterval {
		interval = MaxInterval
	}

	if start >= end {
		start = end - 3600
	}

	return Window{Start: start, End: end, Interval: interval}
}

// toEpochSeconds parses an epoch value, dividing down millisecond
// magnitudes. Zero and negative epochs count as unset.
func toEpochSeconds(raw any) (int64, bool) {
	v, ok := toInt64(raw)
	if !ok {
		return 0, false
	}
	if v > msThreshold {
		v /= 1000
	}
	if v <= 0 {
		return 0, false
	}
	return v, true
}

func toInt64(raw any) (int64, bool) {
	switch v := raw.(type) {
	case nil:
		return 0, false
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return int64(f), true
	default:
		return 0, false
	}
}
