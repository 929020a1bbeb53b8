package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return time.Date(base.Year(), base.Month(), base.Day(), hour, minute, 0, 0, time.UTC)
}

func mustInterval(t *testing.T, start, end time.Time) Interval {
	t.Helper()
	iv, err := NewInterval(start, end)
	require.NoError(t, err)
	return iv
}

func TestNewInterval(t *testing.T) {
	t.Parallel()

	t.Run("normalises to UTC", func(t *testing.T) {
		t.Parallel()
		tokyo := time.FixedZone("JST", 9*60*60)
		iv, err := NewInterval(time.Date(2024, 1, 2, 18, 0, 0, 0, tokyo), time.Date(2024, 1, 2, 19, 0, 0, 0, tokyo))
		require.NoError(t, err)
		assert.Equal(t, time.UTC, iv.Start.Location())
		assert.True(t, iv.Start.Equal(at(9, 0)))
		assert.Equal(t, time.Hour, iv.Duration())
	})

	cases := map[string]struct {
		start, end time.Time
	}{
		"equal bounds":    {start: at(10, 0), end: at(10, 0)},
		"inverted bounds": {start: at(11, 0), end: at(10, 0)},
		"zero start":      {start: time.Time{}, end: at(10, 0)},
		"zero end":        {start: at(10, 0), end: time.Time{}},
	}
	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := NewInterval(tc.start, tc.end)
			assert.ErrorIs(t, err, ErrEmptyInterval)
		})
	}

	t.Run("rejects bounds outside int64 nanoseconds", func(t *testing.T) {
		t.Parallel()
		far := time.Date(2300, time.January, 1, 10, 0, 0, 0, time.UTC)
		_, err := NewInterval(far, far.Add(time.Hour))
		assert.ErrorIs(t, err, ErrOutOfRange)

		early := time.Date(1600, time.January, 1, 10, 0, 0, 0, time.UTC)
		_, err = NewInterval(early, at(9, 0))
		assert.ErrorIs(t, err, ErrOutOfRange)

		assert.False(t, Interval{Start: far, End: far.Add(time.Hour)}.Valid())

		iv, err := NewInterval(MaxInstant.Add(-time.Hour), MaxInstant)
		require.NoError(t, err)
		assert.True(t, iv.Valid())
	})
}

func TestIntervalOverlaps(t *testing.T) {
	t.Parallel()

	nineToTen := mustInterval(t, at(9, 0), at(10, 0))

	cases := []struct {
		name  string
		other Interval
		want  bool
	}{
		{"identical", mustInterval(t, at(9, 0), at(10, 0)), true},
		{"partial tail", mustInterval(t, at(9, 30), at(10, 30)), true},
		{"partial head", mustInterval(t, at(8, 30), at(9, 30)), true},
		{"contained", mustInterval(t, at(9, 15), at(9, 45)), true},
		{"containing", mustInterval(t, at(8, 0), at(11, 0)), true},
		{"adjacent after", mustInterval(t, at(10, 0), at(11, 0)), false},
		{"adjacent before", mustInterval(t, at(8, 0), at(9, 0)), false},
		{"disjoint", mustInterval(t, at(12, 0), at(13, 0)), false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, nineToTen.Overlaps(tc.other))
			assert.Equal(t, tc.want, tc.other.Overlaps(nineToTen), "overlap must be symmetric")
		})
	}
}

func TestIntervalContainsAndAdjacent(t *testing.T) {
	t.Parallel()

	iv := mustInterval(t, at(9, 0), at(10, 0))
	assert.True(t, iv.Contains(at(9, 0)))
	assert.True(t, iv.Contains(at(9, 59)))
	assert.False(t, iv.Contains(at(10, 0)))
	assert.False(t, iv.Contains(at(8, 59)))

	assert.True(t, iv.Adjacent(mustInterval(t, at(10, 0), at(11, 0))))
	assert.True(t, iv.Adjacent(mustInterval(t, at(8, 0), at(9, 0))))
	assert.False(t, iv.Adjacent(mustInterval(t, at(10, 1), at(11, 0))))
	assert.Equal(t, "[2024-01-02T09:00:00Z, 2024-01-02T10:00:00Z)", iv.String())
}
