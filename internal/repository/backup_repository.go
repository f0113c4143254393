package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/trip-reservation/internal/model"
)

// BackupRepo dumps and reloads the whole dataset.
type BackupRepo struct {
	db *sql.DB
}

// NewBackupRepo creates a new BackupRepo.
func NewBackupRepo(db *sql.DB) *BackupRepo { return &BackupRepo{db: db} }

// DB exposes the handle so the restore can run in a caller-owned transaction.
func (r *BackupRepo) DB() *sql.DB { return r.db }

// Export reads every table inside one read-only transaction so the dump is a
// consistent point-in-time view.
func (r *BackupRepo) Export(ctx context.Context, now time.Time) (*model.Snapshot, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("repository.BackupRepo.Export: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	snap := &model.Snapshot{GeneratedAt: now.UTC()}

	if snap.Users, err = collect(ctx, tx, `SELECT `+userColumns+` FROM users ORDER BY id`, scanUser); err != nil {
		return nil, fmt.Errorf("repository.BackupRepo.Export: users: %w", err)
	}
	if snap.Clients, err = collect(ctx, tx, `SELECT `+clientColumns+` FROM clients ORDER BY id`, scanClient); err != nil {
		return nil, fmt.Errorf("repository.BackupRepo.Export: clients: %w", err)
	}
	if snap.Trips, err = collect(ctx, tx, `SELECT `+tripColumns+` FROM trips ORDER BY id`, scanTrip); err != nil {
		return nil, fmt.Errorf("repository.BackupRepo.Export: trips: %w", err)
	}
	if snap.Reservations, err = collect(ctx, tx, `SELECT `+reservationColumns+` FROM reservations ORDER BY id`, scanReservation); err != nil {
		return nil, fmt.Errorf("repository.BackupRepo.Export: reservations: %w", err)
	}
	if snap.AuditEntries, err = collect(ctx, tx, `SELECT id, actor_id, action, created_at FROM audit_entries ORDER BY id`, scanAuditRow); err != nil {
		return nil, fmt.Errorf("repository.BackupRepo.Export: audit: %w", err)
	}
	return snap, nil
}

func scanAuditRow(s rowScanner) (model.AuditEntry, error) {
	var (
		e     model.AuditEntry
		actor sql.NullInt64
	)
	if err := s.Scan(&e.ID, &actor, &e.Action, &e.CreatedAt); err != nil {
		return e, err
	}
	if actor.Valid {
		id := uint64(actor.Int64)
		e.ActorID = &id
	}
	return e, nil
}

func collect[T any](ctx context.Context, tx *sql.Tx, q string, scan func(rowScanner) (T, error)) ([]T, error) {
	rows, err := tx.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// RestoreTx replaces every table with the snapshot's rows, keeping their ids.
// Children are deleted before parents and inserted after them. Refresh
// tokens are not part of a snapshot and are dropped.
func (r *BackupRepo) RestoreTx(ctx context.Context, tx *sql.Tx, snap *model.Snapshot) error {
	for _, table := range []string{"audit_entries", "reservations", "trips", "clients", "refresh_tokens", "users"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("repository.BackupRepo.RestoreTx: clear %s: %w", table, err)
		}
	}

	for _, u := range snap.Users {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (`+userColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
			u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.IsActive, u.ActivationCode,
			u.LoginAttempts, u.Blocked, u.LastLoginAt, u.CreatedAt, u.UpdatedAt); err != nil {
			return fmt.Errorf("repository.BackupRepo.RestoreTx: user %d: %w", u.ID, err)
		}
	}
	for _, c := range snap.Clients {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO clients (`+clientColumns+`) VALUES (?,?,?,?,?,?)`,
			c.ID, c.Name, c.Email, c.Phone, c.CreatedAt, c.UpdatedAt); err != nil {
			return fmt.Errorf("repository.BackupRepo.RestoreTx: client %d: %w", c.ID, err)
		}
	}
	for _, t := range snap.Trips {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO trips (`+tripColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
			t.ID, t.Description, t.DepartureAt, t.UnitPriceCents, t.Capacity, t.SeatsAvailable, t.CreatedAt, t.UpdatedAt); err != nil {
			return fmt.Errorf("repository.BackupRepo.RestoreTx: trip %d: %w", t.ID, err)
		}
	}
	for _, res := range snap.Reservations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO reservations (`+reservationColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
			res.ID, res.ClientID, res.TripID, res.PartySize, res.TotalPriceCents, res.Status, res.CreatedAt, res.UpdatedAt); err != nil {
			return fmt.Errorf("repository.BackupRepo.RestoreTx: reservation %d: %w", res.ID, err)
		}
	}
	for _, e := range snap.AuditEntries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO audit_entries (id, actor_id, action, created_at) VALUES (?,?,?,?)`,
			e.ID, e.ActorID, e.Action, e.CreatedAt); err != nil {
			return fmt.Errorf("repository.BackupRepo.RestoreTx: audit entry %d: %w", e.ID, err)
		}
	}
	return nil
}
