// Package queue carries post-commit events from the booking flow to the
// audit and notification adapters, either in process or over RabbitMQ.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// Kind names what happened.
type Kind string

const (
	KindReservationCreated   Kind = "reservation.created"
	KindReservationEdited    Kind = "reservation.edited"
	KindReservationCancelled Kind = "reservation.cancelled"
	KindItineraryRequested   Kind = "itinerary.requested"
	KindUserRegistered       Kind = "user.registered"
	KindUserActivated        Kind = "user.activated"
	KindUserLoggedIn         Kind = "user.logged_in"
	KindDataRestored         Kind = "data.restored"
)

// BookingEvent is emitted after a state change commits. It carries enough
// for the audit and notification consumers to act without a second read of
// the change itself. Action is the audit text; events with an empty Action
// are not audited.
type BookingEvent struct {
	ID              string    `json:"id"`
	Kind            Kind      `json:"kind"`
	ActorID         uint64    `json:"actor_id,omitempty"`
	ClientID        uint64    `json:"client_id,omitempty"`
	TripID          uint64    `json:"trip_id,omitempty"`
	ReservationID   uint64    `json:"reservation_id,omitempty"`
	PartySize       int       `json:"party_size,omitempty"`
	TotalPriceCents int64     `json:"total_price_cents,omitempty"`
	UserEmail       string    `json:"user_email,omitempty"`
	UserName        string    `json:"user_name,omitempty"`
	ActivationCode  string    `json:"activation_code,omitempty"`
	Action          string    `json:"action,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// NewEvent stamps a fresh id and time on an event of the given kind.
func NewEvent(kind Kind, actorID uint64, action string) BookingEvent {
	return BookingEvent{
		ID:         uuid.NewString(),
		Kind:       kind,
		ActorID:    actorID,
		Action:     action,
		OccurredAt: time.Now().UTC(),
	}
}
