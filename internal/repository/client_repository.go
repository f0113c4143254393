package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/trip-reservation/internal/model"
)

const clientColumns = `id, name, email, phone, created_at, updated_at`

func scanClient(s rowScanner) (model.Client, error) {
	var c model.Client
	err := s.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// ClientRepo manages persistence for clients.
type ClientRepo struct {
	db *sql.DB
}

// NewClientRepo creates a new ClientRepo.
func NewClientRepo(db *sql.DB) *ClientRepo { return &ClientRepo{db: db} }

// Create inserts a client and reloads it.
func (r *ClientRepo) Create(ctx context.Context, c *model.Client) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO clients (name, email, phone) VALUES (?, ?, ?)`,
		c.Name, c.Email, c.Phone)
	if err != nil {
		return fmt.Errorf("repository.ClientRepo.Create: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("repository.ClientRepo.Create: last insert id: %w", err)
	}
	got, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*c = *got
	return nil
}

// GetByID returns the client or model.ErrNotFound.
func (r *ClientRepo) GetByID(ctx context.Context, id uint64) (*model.Client, error) {
	c, err := scanClient(r.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("repository.ClientRepo.GetByID: %w", err)
	}
	return &c, nil
}

// List returns every client ordered by name.
func (r *ClientRepo) List(ctx context.Context) ([]model.Client, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("repository.ClientRepo.List: %w", err)
	}
	defer rows.Close()

	out := make([]model.Client, 0)
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.ClientRepo.List: scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Update rewrites name and contact fields.
func (r *ClientRepo) Update(ctx context.Context, c *model.Client) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE clients SET name = ?, email = ?, phone = ? WHERE id = ?`,
		c.Name, c.Email, c.Phone, c.ID)
	if err != nil {
		return fmt.Errorf("repository.ClientRepo.Update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("client %d: %w", c.ID, model.ErrNotFound)
	}
	got, err := r.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	*c = *got
	return nil
}

// Delete removes a client without reservations.
func (r *ClientRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		if isReferenced(err) {
			return fmt.Errorf("client %d: %w", id, ErrHasDependents)
		}
		return fmt.Errorf("repository.ClientRepo.Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("client %d: %w", id, model.ErrNotFound)
	}
	return nil
}
