package directory

import (
	"context"
	"errors"
	"time"
)

// User is a directory record. PasswordHash is bcrypt; the plaintext
// credential is transient and never persisted or logged anywhere.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"`
	Roles        []string   `json:"roles"`
	Active       bool       `json:"active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

var (
	ErrNotFound = errors.New("user not found")
	// ErrBadCredentials covers wrong password, unknown email and
	// deactivated accounts; callers must not distinguish them.
	ErrBadCredentials = errors.New("bad credentials")
)

// Directory is the external user store consumed by the auth service.
// Implementations must provide atomic per-record reads; the auth core
// never mutates users beyond the best-effort last-login touch.
type Directory interface {
	// VerifyCredentials returns the user when email+password match an
	// active account, ErrBadCredentials otherwise.
	VerifyCredentials(ctx context.Context, email, password string) (*User, error)
	UserByID(ctx context.Context, id string) (*User, error)
	UserByEmail(ctx context.Context, email string) (*User, error)
	// TouchLastLogin updates the last-login timestamp. Callers treat
	// failures as advisory.
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}
