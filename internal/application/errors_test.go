package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var nilErr *ValidationError
	assert.Equal(t, "", nilErr.Error())
	assert.Equal(t, "validation failed", (&ValidationError{}).Error())

	populated := &ValidationError{}
	populated.add("name", "name is required")
	populated.add("detail", "too long")
	assert.Equal(t, "validation failed: detail, name", populated.Error())
	assert.True(t, populated.HasErrors())
	assert.False(t, (&ValidationError{}).HasErrors())
}

func TestRejectionMatchesReasonSentinel(t *testing.T) {
	t.Parallel()

	cases := map[RejectionReason]error{
		ReasonInvalidInterval: ErrInvalidInterval,
		ReasonRoomUnavailable: ErrRoomUnavailable,
		ReasonOverlap:         ErrOverlap,
		ReasonNotFound:        ErrNotFound,
		ReasonForbidden:       ErrForbidden,
	}
	for reason, sentinel := range cases {
		err := fmt.Errorf("wrapped: %w", reject(reason, ""))
		assert.ErrorIs(t, err, sentinel, reason)
		assert.False(t, errors.Is(err, ErrTimeout), reason)
	}
}

func TestRejectionErrorIncludesConflict(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC)
	rejection := &Rejection{
		Reason:   ReasonOverlap,
		Conflict: &BookingView{ID: "b-1", Start: start, End: start.Add(time.Hour)},
	}
	assert.Equal(t,
		"rejected: overlap (conflicts with b-1 [2024-01-03T09:00:00Z, 2024-01-03T10:00:00Z))",
		rejection.Error(),
	)
}

func TestStoreFailureTimeout(t *testing.T) {
	t.Parallel()

	timeout := storeFailure("CreateBooking", fmt.Errorf("room r-1: %w", ErrTimeout))
	assert.True(t, timeout.Timeout)
	assert.ErrorIs(t, timeout, ErrTimeout)
	assert.True(t, IsRetryable(timeout))

	deadline := storeFailure("CreateBooking", context.DeadlineExceeded)
	assert.True(t, deadline.Timeout)

	broken := storeFailure("CreateBooking", errors.New("disk I/O error"))
	assert.False(t, broken.Timeout)
	assert.False(t, errors.Is(broken, ErrTimeout))
	assert.True(t, IsRetryable(broken))
	assert.Contains(t, broken.Error(), "store failure")

	assert.False(t, IsRetryable(reject(ReasonOverlap, "")))
}
