package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/trip-reservation/internal/model"
)

const userColumns = `id, name, email, password_hash, role, is_active, activation_code, login_attempts, blocked, last_login_at, created_at, updated_at`

func scanUser(s rowScanner) (model.User, error) {
	var (
		u         model.User
		code      sql.NullString
		lastLogin sql.NullTime
	)
	err := s.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &code,
		&u.LoginAttempts, &u.Blocked, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return u, err
	}
	if code.Valid {
		u.ActivationCode = &code.String
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return u, nil
}

// UserRepo manages operator accounts.
type UserRepo struct{ DB *sql.DB }

// NewUserRepo creates a new UserRepo.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts an inactive user holding an activation code and returns its
// id. PasswordHash must already be hashed.
func (r *UserRepo) Create(ctx context.Context, u *model.User) (uint64, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash, role, is_active, activation_code) VALUES (?,?,?,?,?,?)",
		u.Name, u.Email, u.PasswordHash, u.Role, u.IsActive, u.ActivationCode)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, fmt.Errorf("repository.UserRepo.Create: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("repository.UserRepo.Create: last insert id: %w", err)
	}
	u.ID = uint64(id)
	return u.ID, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
}

func (r *UserRepo) getOne(ctx context.Context, q string, arg any) (*model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, q, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user: %w", model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("repository.UserRepo.get: %w", err)
	}
	return &u, nil
}

// List returns every user ordered by name.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("repository.UserRepo.List: %w", err)
	}
	defer rows.Close()
	out := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.UserRepo.List: scan: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Activate redeems an activation code. An unknown or used code yields
// model.ErrNotFound.
func (r *UserRepo) Activate(ctx context.Context, code string) (*model.User, error) {
	u, err := r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE activation_code=? LIMIT 1", code)
	if err != nil {
		return nil, err
	}
	if _, err := r.DB.ExecContext(ctx,
		"UPDATE users SET is_active=TRUE, activation_code=NULL WHERE id=?", u.ID); err != nil {
		return nil, fmt.Errorf("repository.UserRepo.Activate: %w", err)
	}
	u.IsActive = true
	u.ActivationCode = nil
	return u, nil
}

// RecordFailedLogin bumps the failed attempt counter and blocks the user
// once it reaches maxAttempts. The increment happens in SQL so parallel
// failures are all counted. MySQL evaluates single-table SET assignments
// left to right, so blocked sees the incremented login_attempts.
func (r *UserRepo) RecordFailedLogin(ctx context.Context, id uint64, maxAttempts int) (attempts int, blocked bool, err error) {
	_, err = r.DB.ExecContext(ctx,
		"UPDATE users SET login_attempts = login_attempts + 1, blocked = (login_attempts >= ?) WHERE id=?",
		maxAttempts, id)
	if err != nil {
		return 0, false, fmt.Errorf("repository.UserRepo.RecordFailedLogin: %w", err)
	}
	err = r.DB.QueryRowContext(ctx, "SELECT login_attempts, blocked FROM users WHERE id=?", id).Scan(&attempts, &blocked)
	if err != nil {
		return 0, false, fmt.Errorf("repository.UserRepo.RecordFailedLogin: reload: %w", err)
	}
	return attempts, blocked, nil
}

// RecordSuccessfulLogin clears the failure counter and stamps the login time.
func (r *UserRepo) RecordSuccessfulLogin(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET login_attempts=0, blocked=FALSE, last_login_at=? WHERE id=?", at.UTC(), id)
	if err != nil {
		return fmt.Errorf("repository.UserRepo.RecordSuccessfulLogin: %w", err)
	}
	return nil
}
