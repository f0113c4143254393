package service

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/trip-reservation/internal/model"
	"github.com/iliyamo/trip-reservation/internal/repository"
)

// TripInput is the writable part of a trip.
type TripInput struct {
	Description    string    `json:"description" validate:"required,min=3,max=255"`
	DepartureAt    time.Time `json:"departure_at" validate:"required"`
	UnitPriceCents int64     `json:"unit_price_cents" validate:"gte=0"`
	Capacity       int       `json:"capacity" validate:"gte=0"`
}

// TripService manages the trip directory. Capacity changes go through the
// inventory ledger so the seat counter stays consistent with reservations.
type TripService struct {
	trips  *repository.TripRepo
	ledger *repository.InventoryLedger
	tx     txRunner
	log    *zap.Logger
}

// NewTripService creates a TripService. cfg tunes the retry loop around
// capacity changes.
func NewTripService(trips *repository.TripRepo, ledger *repository.InventoryLedger, log *zap.Logger, cfg BookingConfig) *TripService {
	return &TripService{
		trips:  trips,
		ledger: ledger,
		tx:     txRunner{db: trips.DB(), maxAttempts: cfg.MaxAttempts, backoff: cfg.RetryBackoff, log: log},
		log:    log,
	}
}

// Create stores a trip with every seat available.
func (s *TripService) Create(ctx context.Context, in TripInput) (*model.Trip, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	t := model.Trip{
		Description:    in.Description,
		DepartureAt:    in.DepartureAt.UTC(),
		UnitPriceCents: in.UnitPriceCents,
		Capacity:       in.Capacity,
	}
	if err := s.trips.Create(ctx, &t); err != nil {
		return nil, classify(ctx, s.log, "create trip", err)
	}
	return &t, nil
}

// Get returns one trip.
func (s *TripService) Get(ctx context.Context, id uint64) (*model.Trip, error) {
	t, err := s.trips.GetByID(ctx, id)
	if err != nil {
		return nil, classify(ctx, s.log, "get trip", err)
	}
	return t, nil
}

// List returns every trip by departure.
func (s *TripService) List(ctx context.Context) ([]model.Trip, error) {
	out, err := s.trips.List(ctx)
	if err != nil {
		return nil, classify(ctx, s.log, "list trips", err)
	}
	return out, nil
}

// Update rewrites a trip's details. A changed capacity is applied with the
// trip locked and fails with model.ErrInsufficientCapacity when it would
// drop below the seats already held. Existing reservations keep the price
// they were booked at.
func (s *TripService) Update(ctx context.Context, id uint64, in TripInput) (*model.Trip, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	var out model.Trip
	err := s.tx.run(ctx, "update trip", func(tx *sql.Tx) error {
		trips, err := s.ledger.LockTx(ctx, tx, id)
		if err != nil {
			return err
		}
		t := trips[id]
		t.Description = in.Description
		t.DepartureAt = in.DepartureAt.UTC()
		t.UnitPriceCents = in.UnitPriceCents
		if err := s.trips.UpdateDetailsTx(ctx, tx, t); err != nil {
			return err
		}
		if in.Capacity != t.Capacity {
			if err := s.ledger.ResizeTx(ctx, tx, t, in.Capacity); err != nil {
				return err
			}
		}
		out = *t
		return nil
	})
	if err != nil {
		return nil, classify(ctx, s.log, "update trip", err)
	}
	return &out, nil
}

// Delete removes a trip. Trips with reservations are a model.ErrConflict.
func (s *TripService) Delete(ctx context.Context, id uint64) error {
	return classify(ctx, s.log, "delete trip", s.trips.Delete(ctx, id))
}
