package scheduler

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	t.Parallel()

	existing := []Interval{
		mustInterval(t, at(9, 0), at(10, 0)),
		mustInterval(t, at(11, 0), at(12, 0)),
		mustInterval(t, at(14, 0), at(15, 30)),
	}

	t.Run("empty room admits", func(t *testing.T) {
		t.Parallel()
		d := Check(nil, mustInterval(t, at(9, 0), at(10, 0)))
		assert.True(t, d.Admit)
		assert.Equal(t, -1, d.Index)
	})

	t.Run("gap between bookings admits", func(t *testing.T) {
		t.Parallel()
		d := Check(existing, mustInterval(t, at(10, 0), at(11, 0)))
		assert.True(t, d.Admit, "touching both neighbours is not an overlap")
	})

	t.Run("after last booking admits", func(t *testing.T) {
		t.Parallel()
		assert.True(t, Check(existing, mustInterval(t, at(15, 30), at(16, 0))).Admit)
	})

	t.Run("before first booking admits", func(t *testing.T) {
		t.Parallel()
		assert.True(t, Check(existing, mustInterval(t, at(8, 0), at(9, 0))).Admit)
	})

	t.Run("partial overlap rejects with conflicting interval", func(t *testing.T) {
		t.Parallel()
		d := Check(existing, mustInterval(t, at(11, 30), at(13, 0)))
		require.False(t, d.Admit)
		assert.Equal(t, existing[1], d.Conflict)
		assert.Equal(t, 1, d.Index)
	})

	t.Run("spanning several reports the earliest", func(t *testing.T) {
		t.Parallel()
		d := Check(existing, mustInterval(t, at(9, 30), at(15, 0)))
		require.False(t, d.Admit)
		assert.Equal(t, 0, d.Index)
	})
}

func TestCheckAgreesWithLinearScan(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		// Build a disjoint, sorted schedule from random gaps and lengths.
		var existing []Interval
		cursor := base
		for n := rng.Intn(8); n > 0; n-- {
			start := cursor.Add(time.Duration(rng.Intn(4)) * 15 * time.Minute)
			end := start.Add(time.Duration(rng.Intn(4)+1) * 15 * time.Minute)
			existing = append(existing, Interval{Start: start, End: end})
			cursor = end
		}
		start := base.Add(time.Duration(rng.Intn(32)) * 15 * time.Minute)
		candidate := Interval{Start: start, End: start.Add(time.Duration(rng.Intn(6)+1) * 15 * time.Minute)}

		var overlapping []Interval
		for _, iv := range existing {
			if iv.Overlaps(candidate) {
				overlapping = append(overlapping, iv)
			}
		}
		d := Check(existing, candidate)
		assert.Equal(t, len(overlapping) == 0, d.Admit, "round %d candidate %s", round, candidate)
		if !d.Admit {
			assert.Equal(t, overlapping[0], d.Conflict, "round %d", round)
		}
	}
}
