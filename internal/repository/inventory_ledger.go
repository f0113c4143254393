package repository

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/iliyamo/trip-reservation/internal/model"
)

// InventoryLedger is the only writer of trips.seats_available. Every method
// runs on the caller's transaction so a seat change commits or rolls back
// together with the reservation row it accompanies.
//
// The mutating methods take a *model.Trip obtained from LockTx. The row lock
// makes the snapshot authoritative for the rest of the transaction, and the
// snapshot is updated in place after each write.
type InventoryLedger struct {
	db *sql.DB
}

// NewInventoryLedger returns a ledger. db is only used by Drift, which reads
// outside any transaction.
func NewInventoryLedger(db *sql.DB) *InventoryLedger { return &InventoryLedger{db: db} }

// LockTx takes row locks on the given trips in ascending id order, so two
// transactions touching the same pair of trips always queue instead of
// deadlocking. Duplicate ids are collapsed. A missing trip yields
// model.ErrNotFound.
func (l *InventoryLedger) LockTx(ctx context.Context, tx *sql.Tx, tripIDs ...uint64) (map[uint64]*model.Trip, error) {
	ids := slices.Clone(tripIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	if len(ids) == 0 {
		return map[uint64]*model.Trip{}, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := `SELECT ` + tripColumns + ` FROM trips WHERE id IN (` +
		strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ") +
		`) ORDER BY id FOR UPDATE`

	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("repository.InventoryLedger.LockTx: %w", err)
	}
	defer rows.Close()

	out := make(map[uint64]*model.Trip, len(ids))
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.InventoryLedger.LockTx: scan: %w", err)
		}
		out[t.ID] = &t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository.InventoryLedger.LockTx: %w", err)
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, fmt.Errorf("trip %d: %w", id, model.ErrNotFound)
		}
	}
	return out, nil
}

// ReserveTx claims amount seats on a locked trip.
func (l *InventoryLedger) ReserveTx(ctx context.Context, tx *sql.Tx, trip *model.Trip, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%w: seats to reserve must be positive, got %d", model.ErrValidation, amount)
	}
	if trip.SeatsAvailable < amount {
		return insufficient(trip, amount)
	}
	// The guard repeats the check in SQL so a caller that skipped LockTx
	// still cannot drive the counter below zero.
	const q = `UPDATE trips SET seats_available = seats_available - ? WHERE id = ? AND seats_available >= ?`
	res, err := tx.ExecContext(ctx, q, amount, trip.ID, amount)
	if err != nil {
		return fmt.Errorf("repository.InventoryLedger.ReserveTx: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return insufficient(trip, amount)
	}
	trip.SeatsAvailable -= amount
	return nil
}

// ReleaseTx returns amount seats to a locked trip. Seats being released were
// validly claimed, so there is no upper-bound check here; drift against
// capacity is the reconciler's job.
func (l *InventoryLedger) ReleaseTx(ctx context.Context, tx *sql.Tx, trip *model.Trip, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%w: seats to release must be positive, got %d", model.ErrValidation, amount)
	}
	res, err := tx.ExecContext(ctx, `UPDATE trips SET seats_available = seats_available + ? WHERE id = ?`, amount, trip.ID)
	if err != nil {
		return fmt.Errorf("repository.InventoryLedger.ReleaseTx: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("trip %d: %w", trip.ID, model.ErrNotFound)
	}
	trip.SeatsAvailable += amount
	return nil
}

// AdjustTx applies a signed change in seats held: positive consumes with the
// same capacity check as ReserveTx, negative releases, zero does nothing.
func (l *InventoryLedger) AdjustTx(ctx context.Context, tx *sql.Tx, trip *model.Trip, delta int) error {
	switch {
	case delta > 0:
		return l.ReserveTx(ctx, tx, trip, delta)
	case delta < 0:
		return l.ReleaseTx(ctx, tx, trip, -delta)
	}
	return nil
}

// MoveTx moves a hold from one locked trip to another: released seats go
// back to from, reserved seats are claimed on to. The destination is checked
// before anything is written.
func (l *InventoryLedger) MoveTx(ctx context.Context, tx *sql.Tx, from, to *model.Trip, released, reserved int) error {
	if from.ID == to.ID {
		return l.AdjustTx(ctx, tx, from, reserved-released)
	}
	if to.SeatsAvailable < reserved {
		return insufficient(to, reserved)
	}
	if err := l.ReleaseTx(ctx, tx, from, released); err != nil {
		return err
	}
	return l.ReserveTx(ctx, tx, to, reserved)
}

// SeatsHeldTx sums the party sizes of a trip's reservations.
func (l *InventoryLedger) SeatsHeldTx(ctx context.Context, tx *sql.Tx, tripID uint64) (int, error) {
	var held int
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(party_size), 0) FROM reservations WHERE trip_id = ?`, tripID).Scan(&held)
	if err != nil {
		return 0, fmt.Errorf("repository.InventoryLedger.SeatsHeldTx: %w", err)
	}
	return held, nil
}

// ResizeTx changes the capacity of a locked trip and recomputes its counter
// from the reservations actually held. Shrinking below the seats held fails
// with model.ErrInsufficientCapacity.
func (l *InventoryLedger) ResizeTx(ctx context.Context, tx *sql.Tx, trip *model.Trip, capacity int) error {
	if capacity < 0 {
		return fmt.Errorf("%w: capacity must not be negative", model.ErrValidation)
	}
	held, err := l.SeatsHeldTx(ctx, tx, trip.ID)
	if err != nil {
		return err
	}
	if capacity < held {
		return fmt.Errorf("%w: trip %d already holds %d seats, cannot shrink to %d",
			model.ErrInsufficientCapacity, trip.ID, held, capacity)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE trips SET capacity = ?, seats_available = ? WHERE id = ?`,
		capacity, capacity-held, trip.ID); err != nil {
		return fmt.Errorf("repository.InventoryLedger.ResizeTx: %w", err)
	}
	trip.Capacity = capacity
	trip.SeatsAvailable = capacity - held
	return nil
}

// Drift lists trips whose counter disagrees with capacity minus the seats
// their reservations hold.
func (l *InventoryLedger) Drift(ctx context.Context) ([]model.TripDrift, error) {
	const q = `SELECT t.id, t.capacity, t.seats_available, COALESCE(SUM(r.party_size), 0) AS held
FROM trips t LEFT JOIN reservations r ON r.trip_id = t.id
GROUP BY t.id, t.capacity, t.seats_available
HAVING t.seats_available + held <> t.capacity
ORDER BY t.id`
	rows, err := l.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("repository.InventoryLedger.Drift: %w", err)
	}
	defer rows.Close()

	var out []model.TripDrift
	for rows.Next() {
		var d model.TripDrift
		if err := rows.Scan(&d.TripID, &d.Capacity, &d.SeatsAvailable, &d.SeatsHeld); err != nil {
			return nil, fmt.Errorf("repository.InventoryLedger.Drift: scan: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// RepairTx rewrites a locked trip's counter from its reservations. When the
// reservations exceed capacity the counter is pinned at zero and the
// overflow is returned so the caller can report it.
func (l *InventoryLedger) RepairTx(ctx context.Context, tx *sql.Tx, trip *model.Trip) (overflow int, err error) {
	held, err := l.SeatsHeldTx(ctx, tx, trip.ID)
	if err != nil {
		return 0, err
	}
	want := trip.Capacity - held
	if want < 0 {
		overflow, want = -want, 0
	}
	if want == trip.SeatsAvailable {
		return overflow, nil
	}
	if _, err := tx.ExecContext(ctx, `UPDATE trips SET seats_available = ? WHERE id = ?`, want, trip.ID); err != nil {
		return 0, fmt.Errorf("repository.InventoryLedger.RepairTx: %w", err)
	}
	trip.SeatsAvailable = want
	return overflow, nil
}

func insufficient(trip *model.Trip, requested int) error {
	return fmt.Errorf("%w: trip %d has %d seats available, %d requested",
		model.ErrInsufficientCapacity, trip.ID, trip.SeatsAvailable, requested)
}
