package scheduler

import (
	"sort"
)

// Decision is the outcome of checking a candidate interval against a room's
// active intervals.
type Decision struct {
	// Admit is true when the candidate overlaps nothing.
	Admit bool
	// Conflict is the earliest-starting overlapping interval when Admit is false.
	Conflict Interval
	// Index is the position of Conflict in the slice passed to Check, or -1.
	Index int
}

// Admitted returns an admitting decision.
func Admitted() Decision {
	return Decision{Admit: true, Index: -1}
}

// Check decides whether candidate can be placed among existing without overlap.
//
// existing must be sorted by Start and pairwise non-overlapping, which is what
// the store returns for active schedules. Because of that, ends are sorted as
// well and the first interval whose End is after candidate.Start is the only
// one that needs inspecting.
func Check(existing []Interval, candidate Interval) Decision {
	i := sort.Search(len(existing), func(i int) bool {
		return existing[i].End.After(candidate.Start)
	})
	if i < len(existing) && existing[i].Start.Before(candidate.End) {
		return Decision{Admit: false, Conflict: existing[i], Index: i}
	}
	return Admitted()
}
