package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrInvalidInterval marks rejections for empty, inverted, unset or
	// unrepresentable time ranges.
	ErrInvalidInterval = errors.New("application: invalid interval")
	// ErrRoomUnavailable marks rejections for missing or inactive rooms.
	ErrRoomUnavailable = errors.New("application: room unavailable")
	// ErrOverlap marks rejections caused by an active booking in the same room.
	ErrOverlap = errors.New("application: overlapping booking")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrForbidden is returned when the acting principal lacks permission for an operation.
	ErrForbidden = errors.New("application: forbidden")
	// ErrAlreadyExists is returned when a catalog entry with the same identity exists.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrTimeout marks store failures caused by waiting too long for the room lock.
	ErrTimeout = errors.New("application: timed out waiting for room lock")
)

// RejectionReason is the stable label of a business rejection.
type RejectionReason string

const (
	ReasonInvalidInterval RejectionReason = "invalid_interval"
	ReasonRoomUnavailable RejectionReason = "room_unavailable"
	ReasonOverlap         RejectionReason = "overlap"
	ReasonNotFound        RejectionReason = "not_found"
	ReasonForbidden       RejectionReason = "forbidden"
)

var reasonSentinels = map[RejectionReason]error{
	ReasonInvalidInterval: ErrInvalidInterval,
	ReasonRoomUnavailable: ErrRoomUnavailable,
	ReasonOverlap:         ErrOverlap,
	ReasonNotFound:        ErrNotFound,
	ReasonForbidden:       ErrForbidden,
}

// Rejection describes why a request was refused. Retrying the same request
// without changing it yields the same rejection.
type Rejection struct {
	Reason RejectionReason
	// Conflict is the active booking that blocked the request. It is set only
	// for ReasonOverlap, and may be nil when the blocking booking was cancelled
	// between the failed insert and the lookup.
	Conflict *BookingView
	Detail   string
}

func (r *Rejection) Error() string {
	if r == nil {
		return ""
	}
	msg := "rejected: " + string(r.Reason)
	if r.Conflict != nil {
		msg += fmt.Sprintf(" (conflicts with %s [%s, %s))", r.Conflict.ID,
			r.Conflict.Start.Format(time.RFC3339), r.Conflict.End.Format(time.RFC3339))
	}
	if r.Detail != "" {
		msg += ": " + r.Detail
	}
	return msg
}

// Is matches the sentinel that corresponds to the rejection reason.
func (r *Rejection) Is(target error) bool {
	if r == nil {
		return false
	}
	return reasonSentinels[r.Reason] == target
}

func reject(reason RejectionReason, detail string) *Rejection {
	return &Rejection{Reason: reason, Detail: detail}
}

// StoreFailure wraps infrastructure faults. Callers may retry the same request.
type StoreFailure struct {
	Op      string
	Timeout bool
	Err     error
}

func (f *StoreFailure) Error() string {
	if f == nil {
		return ""
	}
	if f.Timeout {
		return fmt.Sprintf("%s: timed out waiting for room lock: %v", f.Op, f.Err)
	}
	return fmt.Sprintf("%s: store failure: %v", f.Op, f.Err)
}

func (f *StoreFailure) Unwrap() error {
	return f.Err
}

// Is reports ErrTimeout for lock-wait expiry.
func (f *StoreFailure) Is(target error) bool {
	return f != nil && f.Timeout && target == ErrTimeout
}

func storeFailure(op string, err error) *StoreFailure {
	return &StoreFailure{
		Op:      op,
		Timeout: errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout),
		Err:     err,
	}
}

// IsRetryable reports whether err is transient, meaning the same request may
// succeed if repeated.
func IsRetryable(err error) bool {
	var failure *StoreFailure
	return errors.As(err, &failure) || errors.Is(err, ErrTimeout)
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}
