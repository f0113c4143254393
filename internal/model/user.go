package model

import "time"

// Roles a user can carry in the access token.
const (
	RoleAdmin    = "ADMIN"
	RoleOperator = "OPERATOR"
)

// User represents an operator account as stored in the `users` table.
//
// Fields:
//
//	ID             – primary key identifier.
//	Name           – display name, shown next to audit entries.
//	Email          – unique login.
//	PasswordHash   – bcrypt hash.
//	Role           – ADMIN or OPERATOR.
//	IsActive       – set once the activation code is redeemed.
//	ActivationCode – code mailed at registration (nullable once used).
//	LoginAttempts  – consecutive failed logins.
//	Blocked        – true after too many failed logins.
//	LastLoginAt    – previous successful login (nullable).
//	CreatedAt      – creation timestamp.
//	UpdatedAt      – last update timestamp.
type User struct {
	ID             uint64     `json:"id"`                      // users.id
	Name           string     `json:"name"`                    // users.name
	Email          string     `json:"email"`                   // users.email
	PasswordHash   string     `json:"password_hash,omitempty"` // users.password_hash
	Role           string     `json:"role"`                    // users.role
	IsActive       bool       `json:"is_active"`               // users.is_active
	ActivationCode *string    `json:"activation_code,omitempty"`
	LoginAttempts  int        `json:"login_attempts"`          // users.login_attempts
	Blocked        bool       `json:"blocked"`                 // users.blocked
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"` // users.last_login_at
	CreatedAt      time.Time  `json:"created_at"`              // users.created_at
	UpdatedAt      time.Time  `json:"updated_at"`              // users.updated_at
}
