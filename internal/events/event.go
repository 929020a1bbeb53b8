// Package events publishes booking lifecycle notifications.
package events

import (
	"context"
	"time"
)

// Type names a booking lifecycle transition.
type Type string

const (
	BookingCreated     Type = "booking.created"
	BookingCancelled   Type = "booking.cancelled"
	BookingRescheduled Type = "booking.rescheduled"
)

// BookingEvent is emitted after a booking change has been committed.
type BookingEvent struct {
	ID                 string    `json:"id"`
	Type               Type      `json:"type"`
	ScheduleID         string    `json:"schedule_id"`
	PreviousScheduleID string    `json:"previous_schedule_id,omitempty"`
	RoomID             string    `json:"room_id"`
	RequesterID        string    `json:"requester_id"`
	ActorID            string    `json:"actor_id"`
	Start              time.Time `json:"start"`
	End                time.Time `json:"end"`
	OccurredAt         time.Time `json:"occurred_at"`
}

// Publisher delivers booking events.
type Publisher interface {
	Publish(ctx context.Context, event BookingEvent) error
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, BookingEvent) error {
	return nil
}
