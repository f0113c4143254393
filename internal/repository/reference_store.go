package repository

import (
	"context"

	"github.com/iliyamo/trip-reservation/internal/model"
)

// ReferenceStore gives the booking engine read access to the clients and
// trips a request names. Reads here happen outside any transaction; the
// engine re-reads trips under lock before it writes.
type ReferenceStore struct {
	Clients *ClientRepo
	Trips   *TripRepo
}

// NewReferenceStore bundles the two directories.
func NewReferenceStore(clients *ClientRepo, trips *TripRepo) *ReferenceStore {
	return &ReferenceStore{Clients: clients, Trips: trips}
}

// GetClient returns the client or model.ErrNotFound.
func (s *ReferenceStore) GetClient(ctx context.Context, id uint64) (*model.Client, error) {
	return s.Clients.GetByID(ctx, id)
}

// GetTrip returns the trip or model.ErrNotFound.
func (s *ReferenceStore) GetTrip(ctx context.Context, id uint64) (*model.Trip, error) {
	return s.Trips.GetByID(ctx, id)
}
