package model

import "time"

// Trip is a scheduled, priced offering with a finite number of seats.
//
// Fields:
//
//	ID             – primary key identifier.
//	Description    – destination / free text shown to clients.
//	DepartureAt    – scheduled departure.
//	UnitPriceCents – price per seat in cents.
//	Capacity       – seats the trip was sized for; only changed by a resize.
//	SeatsAvailable – running counter of unclaimed seats, owned by the
//	                 inventory ledger.
//	CreatedAt      – creation timestamp.
//	UpdatedAt      – last update timestamp.
type Trip struct {
	ID             uint64    `json:"id"`               // trips.id
	Description    string    `json:"description"`      // trips.description
	DepartureAt    time.Time `json:"departure_at"`     // trips.departure_at
	UnitPriceCents int64     `json:"unit_price_cents"` // trips.unit_price_cents
	Capacity       int       `json:"capacity"`         // trips.capacity
	SeatsAvailable int       `json:"seats_available"`  // trips.seats_available
	CreatedAt      time.Time `json:"created_at"`       // trips.created_at
	UpdatedAt      time.Time `json:"updated_at"`       // trips.updated_at
}

// SeatsHeld is the number of seats the counter says are claimed.
func (t Trip) SeatsHeld() int { return t.Capacity - t.SeatsAvailable }

// TripDrift reports a trip whose counter disagrees with the sum of its
// reservations.
type TripDrift struct {
	TripID         uint64 `json:"trip_id"`
	Capacity       int    `json:"capacity"`
	SeatsAvailable int    `json:"seats_available"`
	SeatsHeld      int    `json:"seats_held"` // Σ party_size of the trip's reservations
}

// Expected is the counter value implied by capacity and held seats.
func (d TripDrift) Expected() int { return d.Capacity - d.SeatsHeld }
