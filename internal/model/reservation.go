package model

import "time"

// Reservation is a client's claim of PartySize seats on a trip.
//
// Fields:
//
//	ID              – primary key identifier.
//	ClientID        – client holding the seats.
//	TripID          – trip the seats are claimed on.
//	PartySize       – number of seats held, always positive.
//	TotalPriceCents – unit price × party size at the time of the last write.
//	Status          – free-form label (confirmed, pending, ...).
//	CreatedAt       – creation timestamp.
//	UpdatedAt       – last update timestamp.
type Reservation struct {
	ID              uint64    `json:"id"`                // reservations.id
	ClientID        uint64    `json:"client_id"`         // reservations.client_id
	TripID          uint64    `json:"trip_id"`           // reservations.trip_id
	PartySize       int       `json:"party_size"`        // reservations.party_size
	TotalPriceCents int64     `json:"total_price_cents"` // reservations.total_price_cents
	Status          string    `json:"status"`            // reservations.status
	CreatedAt       time.Time `json:"created_at"`        // reservations.created_at
	UpdatedAt       time.Time `json:"updated_at"`        // reservations.updated_at
}

// ReservationDetail is a reservation joined with its client and trip for
// listings and itineraries.
type ReservationDetail struct {
	Reservation
	Client ClientSummary `json:"client"`
	Trip   TripSummary   `json:"trip"`
}

// ClientSummary is the subset of Client embedded in listings.
type ClientSummary struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TripSummary is the subset of Trip embedded in listings.
type TripSummary struct {
	ID             uint64    `json:"id"`
	Description    string    `json:"description"`
	DepartureAt    time.Time `json:"departure_at"`
	UnitPriceCents int64     `json:"unit_price_cents"`
}
