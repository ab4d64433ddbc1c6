package ir

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Logical times are persisted as int64 nanoseconds since the Unix epoch.
// MinTime and MaxTime bound the instants that encoding can hold.
var (
	MinTime = time.Unix(0, math.MinInt64).UTC()
	MaxTime = time.Unix(0, math.MaxInt64).UTC()
)

// ErrTimeOutOfRange is returned for a time outside [MinTime, MaxTime].
var ErrTimeOutOfRange = errors.New("time out of range")

// CheckTime returns ErrTimeOutOfRange if t cannot be stored as Unix
// nanoseconds. The zero time is out of range; callers that give it a
// meaning must handle it first.
func CheckTime(t time.Time) error {
	if t.Before(MinTime) || t.After(MaxTime) {
		return fmt.Errorf("%s: %w", t.UTC().Format(time.RFC3339Nano), ErrTimeOutOfRange)
	}
	return nil
}

// ClampUnixNano returns t as Unix nanoseconds, saturating at the int64
// bounds instead of wrapping. Use it for query bounds, never for stored
// values.
func ClampUnixNano(t time.Time) int64 {
	switch {
	case t.Before(MinTime):
		return math.MinInt64
	case t.After(MaxTime):
		return math.MaxInt64
	default:
		return t.UnixNano()
	}
}
