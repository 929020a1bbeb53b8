package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrOverlap is returned when a conditional insert finds an active schedule
	// of the same room overlapping the new one at commit time.
	ErrOverlap = errors.New("persistence: overlapping active schedule")
	// ErrDuplicate is returned when a record with the same identifier exists.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a CHECK or NOT NULL constraint fails.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when a referenced record is missing.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
	// ErrUnavailable is returned when the backing store cannot be reached or is busy.
	ErrUnavailable = errors.New("persistence: store unavailable")
)
