package model

import "time"

// Client is a person seats are sold to. The booking engine only reads it.
type Client struct {
	ID        uint64    `json:"id"`         // clients.id
	Name      string    `json:"name"`       // clients.name
	Email     string    `json:"email"`      // clients.email, itinerary destination
	Phone     string    `json:"phone"`      // clients.phone
	CreatedAt time.Time `json:"created_at"` // clients.created_at
	UpdatedAt time.Time `json:"updated_at"` // clients.updated_at
}
