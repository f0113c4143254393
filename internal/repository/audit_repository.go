package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/trip-reservation/internal/model"
)

// AuditRepo appends and lists audit entries.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// Record appends one entry. actorID 0 stores a NULL actor.
func (r *AuditRepo) Record(ctx context.Context, actorID uint64, action string, at time.Time) error {
	var actor any
	if actorID != 0 {
		actor = actorID
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_entries (actor_id, action, created_at) VALUES (?, ?, ?)`,
		actor, action, at.UTC())
	if err != nil {
		return fmt.Errorf("repository.AuditRepo.Record: %w", err)
	}
	return nil
}

// List returns the newest entries first, with the actor's name when known.
// limit <= 0 means no limit.
func (r *AuditRepo) List(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	q := `SELECT a.id, a.actor_id, COALESCE(u.name, ''), a.action, a.created_at
FROM audit_entries a LEFT JOIN users u ON u.id = a.actor_id
ORDER BY a.created_at DESC, a.id DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("repository.AuditRepo.List: %w", err)
	}
	defer rows.Close()

	out := make([]model.AuditEntry, 0)
	for rows.Next() {
		var (
			e     model.AuditEntry
			actor sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &actor, &e.ActorName, &e.Action, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository.AuditRepo.List: scan: %w", err)
		}
		if actor.Valid {
			id := uint64(actor.Int64)
			e.ActorID = &id
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
