package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/trip-reservation/internal/model"
)

const tripColumns = `id, description, departure_at, unit_price_cents, capacity, seats_available, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(s rowScanner) (model.Trip, error) {
	var t model.Trip
	err := s.Scan(&t.ID, &t.Description, &t.DepartureAt, &t.UnitPriceCents, &t.Capacity, &t.SeatsAvailable, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// TripRepo manages persistence for trips. Seat counters are never written
// here; see InventoryLedger.
type TripRepo struct {
	db *sql.DB
}

// NewTripRepo constructs a TripRepo with the given DB handle.
func NewTripRepo(db *sql.DB) *TripRepo { return &TripRepo{db: db} }

// DB exposes the underlying handle so services can open transactions that
// span several repositories.
func (r *TripRepo) DB() *sql.DB { return r.db }

// Create inserts a trip with seats_available equal to its capacity and
// reloads it to pick up DB defaults.
func (r *TripRepo) Create(ctx context.Context, t *model.Trip) error {
	const q = `INSERT INTO trips (description, departure_at, unit_price_cents, capacity, seats_available) VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, t.Description, t.DepartureAt, t.UnitPriceCents, t.Capacity, t.Capacity)
	if err != nil {
		return fmt.Errorf("repository.TripRepo.Create: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("repository.TripRepo.Create: last insert id: %w", err)
	}
	got, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*t = *got
	return nil
}

// GetByID returns the trip or model.ErrNotFound.
func (r *TripRepo) GetByID(ctx context.Context, id uint64) (*model.Trip, error) {
	t, err := scanTrip(r.db.QueryRowContext(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trip %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("repository.TripRepo.GetByID: %w", err)
	}
	return &t, nil
}

// List returns every trip ordered by departure.
func (r *TripRepo) List(ctx context.Context) ([]model.Trip, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+tripColumns+` FROM trips ORDER BY departure_at, id`)
	if err != nil {
		return nil, fmt.Errorf("repository.TripRepo.List: %w", err)
	}
	defer rows.Close()

	out := make([]model.Trip, 0)
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.TripRepo.List: scan: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateDetailsTx rewrites the descriptive columns of a trip the caller has
// locked. Capacity and the seat counter are left to the ledger.
func (r *TripRepo) UpdateDetailsTx(ctx context.Context, tx *sql.Tx, t *model.Trip) error {
	const q = `UPDATE trips SET description = ?, departure_at = ?, unit_price_cents = ? WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, t.Description, t.DepartureAt, t.UnitPriceCents, t.ID)
	if err != nil {
		return fmt.Errorf("repository.TripRepo.UpdateDetailsTx: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("trip %d: %w", t.ID, model.ErrNotFound)
	}
	return nil
}

// Delete removes a trip that no reservation references.
func (r *TripRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM trips WHERE id = ?`, id)
	if err != nil {
		if isReferenced(err) {
			return fmt.Errorf("trip %d: %w", id, ErrHasDependents)
		}
		return fmt.Errorf("repository.TripRepo.Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("trip %d: %w", id, model.ErrNotFound)
	}
	return nil
}
