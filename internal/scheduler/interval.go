package scheduler

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrEmptyInterval is returned when an interval does not end strictly after it starts.
	ErrEmptyInterval = errors.New("scheduler: interval end must be after start")
	// ErrOutOfRange is returned when a bound falls outside [MinInstant, MaxInstant].
	ErrOutOfRange = errors.New("scheduler: interval bound out of range")
)

// MinInstant and MaxInstant bound the instants an interval may carry: the
// range of int64 nanoseconds since the Unix epoch, which is how stores
// persist them.
var (
	MinInstant = time.Unix(0, math.MinInt64).UTC()
	MaxInstant = time.Unix(0, math.MaxInt64).UTC()
)

// Interval is a half-open time range [Start, End) normalised to UTC.
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval builds a UTC interval and rejects empty, inverted or
// unrepresentable ranges.
func NewInterval(start, end time.Time) (Interval, error) {
	iv := Interval{Start: start.UTC(), End: end.UTC()}
	if iv.Start.IsZero() || iv.End.IsZero() || !iv.Start.Before(iv.End) {
		return Interval{}, ErrEmptyInterval
	}
	if !iv.inRange() {
		return Interval{}, ErrOutOfRange
	}
	return iv, nil
}

// Valid reports whether both bounds are set, Start < End and both bounds lie
// within [MinInstant, MaxInstant].
func (iv Interval) Valid() bool {
	if iv.Start.IsZero() || iv.End.IsZero() {
		return false
	}
	return iv.Start.Before(iv.End) && iv.inRange()
}

func (iv Interval) inRange() bool {
	return !iv.Start.Before(MinInstant) && !iv.End.After(MaxInstant)
}

// Overlaps reports whether the two intervals share at least one instant.
// Intervals that merely touch (a.End == b.Start) do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Contains reports whether instant falls inside [Start, End).
func (iv Interval) Contains(instant time.Time) bool {
	return !instant.Before(iv.Start) && instant.Before(iv.End)
}

// Adjacent reports whether the intervals touch end-to-start without overlapping.
func (iv Interval) Adjacent(other Interval) bool {
	return iv.End.Equal(other.Start) || other.End.Equal(iv.Start)
}

// Duration returns End - Start.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%s, %s)", iv.Start.UTC().Format(time.RFC3339), iv.End.UTC().Format(time.RFC3339))
}
