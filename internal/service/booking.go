package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/trip-reservation/internal/model"
	"github.com/iliyamo/trip-reservation/internal/queue"
	"github.com/iliyamo/trip-reservation/internal/repository"
)

// DefaultStatus labels a reservation booked without an explicit status.
const DefaultStatus = "confirmed"

// References resolves the clients and trips a booking names.
type References interface {
	GetClient(ctx context.Context, id uint64) (*model.Client, error)
	GetTrip(ctx context.Context, id uint64) (*model.Trip, error)
}

// EventDispatcher receives events after their transaction commits. It must
// not block; a false return means the event was dropped.
type EventDispatcher interface {
	Dispatch(ev queue.BookingEvent) bool
}

// BookingRequest is the input to Book and Edit.
type BookingRequest struct {
	ClientID  uint64 `json:"client_id" validate:"required"`
	TripID    uint64 `json:"trip_id" validate:"required"`
	PartySize int    `json:"party_size" validate:"gt=0"`
	Status    string `json:"status" validate:"max=40"`
}

// BookingResult is what a booking operation leaves behind. Trip is the
// snapshot of the trip the reservation holds seats on after the commit.
// ReleasedTrip is set only when an edit moved the reservation off another
// trip.
type BookingResult struct {
	Reservation  model.Reservation `json:"reservation"`
	Trip         model.Trip        `json:"trip"`
	ReleasedTrip *model.Trip       `json:"released_trip,omitempty"`
}

// BookingConfig tunes the retry loop around each booking transaction.
type BookingConfig struct {
	MaxAttempts  int
	RetryBackoff time.Duration
}

// BookingEngine creates, edits and cancels reservations. Each operation runs
// as one transaction in which the reservation row and every trip it touches
// are locked before any capacity decision is made, so the checks and the
// writes they guard commit together.
type BookingEngine struct {
	refs         References
	reservations *repository.ReservationRepo
	ledger       *repository.InventoryLedger
	events       EventDispatcher
	tx           txRunner
	log          *zap.Logger
	now          func() time.Time
}

// NewBookingEngine wires the engine. events may be nil, in which case
// post-commit events are discarded.
func NewBookingEngine(refs References, reservations *repository.ReservationRepo, ledger *repository.InventoryLedger,
	events EventDispatcher, log *zap.Logger, cfg BookingConfig) *BookingEngine {
	if events == nil {
		events = discard{}
	}
	return &BookingEngine{
		refs:         refs,
		reservations: reservations,
		ledger:       ledger,
		events:       events,
		tx: txRunner{
			db:          reservations.DB(),
			maxAttempts: cfg.MaxAttempts,
			backoff:     cfg.RetryBackoff,
			log:         log,
		},
		log: log,
		// DATETIME columns keep whole seconds
		now: func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
}

// Book claims req.PartySize seats on req.TripID for req.ClientID.
func (e *BookingEngine) Book(ctx context.Context, actorID uint64, req BookingRequest) (*BookingResult, error) {
	if req.Status == "" {
		req.Status = DefaultStatus
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	trip, err := e.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	// Early answer from an unlocked read; the locked re-check below decides.
	if trip.SeatsAvailable < req.PartySize {
		return nil, fmt.Errorf("%w: trip %d has %d seats available, %d requested",
			model.ErrInsufficientCapacity, trip.ID, trip.SeatsAvailable, req.PartySize)
	}

	var out BookingResult
	err = e.tx.run(ctx, "book", func(tx *sql.Tx) error {
		trips, err := e.ledger.LockTx(ctx, tx, req.TripID)
		if err != nil {
			return asReference(err)
		}
		locked := trips[req.TripID]
		total, err := TotalPrice(locked.UnitPriceCents, req.PartySize)
		if err != nil {
			return err
		}
		if err := e.ledger.ReserveTx(ctx, tx, locked, req.PartySize); err != nil {
			return err
		}
		now := e.now()
		res := model.Reservation{
			ClientID:        req.ClientID,
			TripID:          req.TripID,
			PartySize:       req.PartySize,
			TotalPriceCents: total,
			Status:          req.Status,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := e.reservations.CreateTx(ctx, tx, &res); err != nil {
			return err
		}
		out = BookingResult{Reservation: res, Trip: *locked}
		return nil
	})
	if err != nil {
		return nil, classify(ctx, e.log, "book", err)
	}

	r := out.Reservation
	ev := queue.NewEvent(queue.KindReservationCreated, actorID,
		fmt.Sprintf("reservation %d created: client %d, trip %d, %d seats", r.ID, r.ClientID, r.TripID, r.PartySize))
	e.emit(withReservation(ev, r))
	return &out, nil
}

// Edit rewrites reservation id. The seats it already holds count toward its
// own new size when it stays on the same trip; moving to another trip
// credits the old trip and debits the new one in the same transaction.
func (e *BookingEngine) Edit(ctx context.Context, actorID, id uint64, req BookingRequest) (*BookingResult, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if _, err := e.resolve(ctx, req); err != nil {
		return nil, err
	}

	var out BookingResult
	err := e.tx.run(ctx, "edit", func(tx *sql.Tx) error {
		cur, err := e.reservations.GetForUpdateTx(ctx, tx, id)
		if err != nil {
			return err
		}
		trips, err := e.ledger.LockTx(ctx, tx, cur.TripID, req.TripID)
		if err != nil {
			return asReference(err)
		}
		from, to := trips[cur.TripID], trips[req.TripID]
		if from.ID == to.ID && to.SeatsAvailable+cur.PartySize < req.PartySize {
			return fmt.Errorf("%w: trip %d has %d seats available plus %d held by reservation %d, %d requested",
				model.ErrInsufficientCapacity, to.ID, to.SeatsAvailable, cur.PartySize, cur.ID, req.PartySize)
		}
		total, err := TotalPrice(to.UnitPriceCents, req.PartySize)
		if err != nil {
			return err
		}
		if err := e.ledger.MoveTx(ctx, tx, from, to, cur.PartySize, req.PartySize); err != nil {
			return err
		}

		cur.ClientID = req.ClientID
		cur.TripID = req.TripID
		cur.PartySize = req.PartySize
		cur.TotalPriceCents = total
		if req.Status != "" {
			cur.Status = req.Status
		}
		cur.UpdatedAt = e.now()
		if err := e.reservations.UpdateTx(ctx, tx, cur); err != nil {
			return err
		}
		out = BookingResult{Reservation: *cur, Trip: *to}
		if from.ID != to.ID {
			released := *from
			out.ReleasedTrip = &released
		}
		return nil
	})
	if err != nil {
		return nil, classify(ctx, e.log, "edit", err)
	}

	r := out.Reservation
	ev := queue.NewEvent(queue.KindReservationEdited, actorID,
		fmt.Sprintf("reservation %d edited: client %d, trip %d, %d seats", r.ID, r.ClientID, r.TripID, r.PartySize))
	e.emit(withReservation(ev, r))
	return &out, nil
}

// Cancel deletes reservation id and returns its seats to the trip.
func (e *BookingEngine) Cancel(ctx context.Context, actorID, id uint64) (*BookingResult, error) {
	var out BookingResult
	err := e.tx.run(ctx, "cancel", func(tx *sql.Tx) error {
		cur, err := e.reservations.GetForUpdateTx(ctx, tx, id)
		if err != nil {
			return err
		}
		trips, err := e.ledger.LockTx(ctx, tx, cur.TripID)
		if err != nil {
			return err
		}
		trip := trips[cur.TripID]
		if err := e.reservations.DeleteTx(ctx, tx, cur.ID); err != nil {
			return err
		}
		if err := e.ledger.ReleaseTx(ctx, tx, trip, cur.PartySize); err != nil {
			return err
		}
		out = BookingResult{Reservation: *cur, Trip: *trip}
		return nil
	})
	if err != nil {
		return nil, classify(ctx, e.log, "cancel", err)
	}

	r := out.Reservation
	ev := queue.NewEvent(queue.KindReservationCancelled, actorID,
		fmt.Sprintf("reservation %d cancelled: %d seats returned to trip %d", r.ID, r.PartySize, r.TripID))
	e.emit(withReservation(ev, r))
	return &out, nil
}

// List returns every reservation with its client and trip.
func (e *BookingEngine) List(ctx context.Context) ([]model.ReservationDetail, error) {
	out, err := e.reservations.ListAll(ctx)
	if err != nil {
		return nil, classify(ctx, e.log, "list reservations", err)
	}
	return out, nil
}

// Get returns one reservation by id.
func (e *BookingEngine) Get(ctx context.Context, id uint64) (*model.Reservation, error) {
	res, err := e.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, classify(ctx, e.log, "get reservation", err)
	}
	return res, nil
}

// SendItinerary queues an itinerary e-mail for a client. The message itself
// is rendered and sent by the notification handler.
func (e *BookingEngine) SendItinerary(ctx context.Context, actorID, clientID uint64) error {
	c, err := e.refs.GetClient(ctx, clientID)
	if err != nil {
		return classify(ctx, e.log, "send itinerary", err)
	}
	ev := queue.NewEvent(queue.KindItineraryRequested, actorID, fmt.Sprintf("itinerary sent to client %d", c.ID))
	ev.ClientID = c.ID
	if !e.events.Dispatch(ev) {
		return fmt.Errorf("%w: notification queue is full", model.ErrTransientConflict)
	}
	return nil
}

// resolve checks that the client and trip exist and returns the trip as an
// unlocked snapshot.
func (e *BookingEngine) resolve(ctx context.Context, req BookingRequest) (*model.Trip, error) {
	if _, err := e.refs.GetClient(ctx, req.ClientID); err != nil {
		return nil, classify(ctx, e.log, "resolve client", asReference(err))
	}
	trip, err := e.refs.GetTrip(ctx, req.TripID)
	if err != nil {
		return nil, classify(ctx, e.log, "resolve trip", asReference(err))
	}
	return trip, nil
}

func (e *BookingEngine) emit(ev queue.BookingEvent) {
	if !e.events.Dispatch(ev) {
		e.log.Warn("post-commit event not queued", zap.String("kind", string(ev.Kind)), zap.Uint64("reservation_id", ev.ReservationID))
	}
}

// asReference reports a missing client or trip named by a request as a bad
// reference rather than a missing resource.
func asReference(err error) error {
	if errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("%w: %v", model.ErrInvalidReference, err)
	}
	return err
}

func withReservation(ev queue.BookingEvent, r model.Reservation) queue.BookingEvent {
	ev.ReservationID = r.ID
	ev.ClientID = r.ClientID
	ev.TripID = r.TripID
	ev.PartySize = r.PartySize
	ev.TotalPriceCents = r.TotalPriceCents
	return ev
}

type discard struct{}

func (discard) Dispatch(queue.BookingEvent) bool { return true }
