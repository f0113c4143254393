package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/trip-reservation/internal/model"
)

const reservationColumns = `id, client_id, trip_id, party_size, total_price_cents, status, created_at, updated_at`

func scanReservation(s rowScanner) (model.Reservation, error) {
	var r model.Reservation
	err := s.Scan(&r.ID, &r.ClientID, &r.TripID, &r.PartySize, &r.TotalPriceCents, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// ReservationRepo stores reservation rows. It trusts the ids it is given;
// the booking engine validates references before calling it. Writes only
// exist in transactional form because every reservation write travels with
// a seat change.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo creates a new ReservationRepo.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the underlying handle for callers that open transactions.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

// CreateTx inserts res and assigns its generated id. CreatedAt and UpdatedAt
// are written as given so the caller controls the clock.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations (client_id, trip_id, party_size, total_price_cents, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	out, err := tx.ExecContext(ctx, q, res.ClientID, res.TripID, res.PartySize, res.TotalPriceCents, res.Status, res.CreatedAt, res.UpdatedAt)
	if err != nil {
		if isMissingParent(err) {
			return fmt.Errorf("reservation for client %d, trip %d: %w", res.ClientID, res.TripID, ErrMissingParent)
		}
		return fmt.Errorf("repository.ReservationRepo.CreateTx: %w", err)
	}
	id, err := out.LastInsertId()
	if err != nil {
		return fmt.Errorf("repository.ReservationRepo.CreateTx: last insert id: %w", err)
	}
	res.ID = uint64(id)
	return nil
}

// GetForUpdateTx loads a reservation and locks its row until the
// transaction ends. The party size read here is the pre-image every seat
// delta in the same transaction is computed from.
func (r *ReservationRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	res, err := scanReservation(tx.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ? FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reservation %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("repository.ReservationRepo.GetForUpdateTx: %w", err)
	}
	return &res, nil
}

// GetByID loads a reservation without locking.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reservation %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("repository.ReservationRepo.GetByID: %w", err)
	}
	return &res, nil
}

// UpdateTx rewrites every mutable column of a locked reservation.
func (r *ReservationRepo) UpdateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `UPDATE reservations SET client_id = ?, trip_id = ?, party_size = ?, total_price_cents = ?, status = ?, updated_at = ? WHERE id = ?`
	out, err := tx.ExecContext(ctx, q, res.ClientID, res.TripID, res.PartySize, res.TotalPriceCents, res.Status, res.UpdatedAt, res.ID)
	if err != nil {
		if isMissingParent(err) {
			return fmt.Errorf("reservation %d: %w", res.ID, ErrMissingParent)
		}
		return fmt.Errorf("repository.ReservationRepo.UpdateTx: %w", err)
	}
	if n, _ := out.RowsAffected(); n == 0 {
		return fmt.Errorf("reservation %d: %w", res.ID, model.ErrNotFound)
	}
	return nil
}

// DeleteTx removes a reservation row.
func (r *ReservationRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	out, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("repository.ReservationRepo.DeleteTx: %w", err)
	}
	if n, _ := out.RowsAffected(); n == 0 {
		return fmt.Errorf("reservation %d: %w", id, model.ErrNotFound)
	}
	return nil
}

const reservationDetailSelect = `SELECT r.id, r.client_id, r.trip_id, r.party_size, r.total_price_cents, r.status, r.created_at, r.updated_at,
       c.id, c.name, c.email,
       t.id, t.description, t.departure_at, t.unit_price_cents
FROM reservations r
JOIN clients c ON c.id = r.client_id
JOIN trips t ON t.id = r.trip_id`

func scanReservationDetail(s rowScanner) (model.ReservationDetail, error) {
	var d model.ReservationDetail
	err := s.Scan(
		&d.ID, &d.ClientID, &d.TripID, &d.PartySize, &d.TotalPriceCents, &d.Status, &d.CreatedAt, &d.UpdatedAt,
		&d.Client.ID, &d.Client.Name, &d.Client.Email,
		&d.Trip.ID, &d.Trip.Description, &d.Trip.DepartureAt, &d.Trip.UnitPriceCents,
	)
	return d, err
}

// ListAll returns every reservation joined with its client and trip,
// newest first.
func (r *ReservationRepo) ListAll(ctx context.Context) ([]model.ReservationDetail, error) {
	return r.listDetails(ctx, reservationDetailSelect+` ORDER BY r.created_at DESC, r.id DESC`)
}

// ListByClient returns a client's reservations ordered by departure, the
// order an itinerary is read in.
func (r *ReservationRepo) ListByClient(ctx context.Context, clientID uint64) ([]model.ReservationDetail, error) {
	return r.listDetails(ctx, reservationDetailSelect+` WHERE r.client_id = ? ORDER BY t.departure_at, r.id`, clientID)
}

func (r *ReservationRepo) listDetails(ctx context.Context, q string, args ...any) ([]model.ReservationDetail, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("repository.ReservationRepo.list: %w", err)
	}
	defer rows.Close()

	out := make([]model.ReservationDetail, 0)
	for rows.Next() {
		d, err := scanReservationDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.ReservationRepo.list: scan: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
