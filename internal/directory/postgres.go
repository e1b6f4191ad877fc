package directory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// NOTE: This repository assumes a users table:
//
//   users(id, email UNIQUE, name, password_hash, roles JSONB, active,
//         last_login_at NULL, created_at)
//
// roles is a JSON array of role names; role definitions themselves live in
// the rbac role table, not in the database.

// PostgresDirectory is the production Directory backed by database/sql
// (pgx stdlib driver).
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

const userColumns = `id, email, name, password_hash, roles, active, last_login_at, created_at`

func (d *PostgresDirectory) VerifyCredentials(ctx context.Context, email, password string) (*User, error) {
	u, err := d.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if !u.Active {
		return nil, ErrBadCredentials
	}
	if err := VerifyPassword(u.PasswordHash, password); err != nil {
		return nil, ErrBadCredentials
	}
	return u, nil
}

func (d *PostgresDirectory) UserByID(ctx context.Context, id string) (*User, error) {
	const q = `
SELECT ` + userColumns + `
FROM users
WHERE id = $1
`
	return scanUser(d.db.QueryRowContext(ctx, q, id))
}

func (d *PostgresDirectory) UserByEmail(ctx context.Context, email string) (*User, error) {
	const q = `
SELECT ` + userColumns + `
FROM users
WHERE lower(email) = lower($1)
`
	return scanUser(d.db.QueryRowContext(ctx, q, strings.TrimSpace(email)))
}

func (d *PostgresDirectory) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	const q = `
UPDATE users
SET last_login_at = $2
WHERE id = $1
`
	_, err := d.db.ExecContext(ctx, q, id, at.UTC())
	return err
}

func scanUser(row *sql.Row) (*User, error) {
	var (
		u         User
		rolesJSON []byte
		lastLogin sql.NullTime
	)
	if err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.PasswordHash,
		&rolesJSON,
		&u.Active,
		&lastLogin,
		&u.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(rolesJSON) > 0 {
		if err := json.Unmarshal(rolesJSON, &u.Roles); err != nil {
			return nil, fmt.Errorf("decode roles: %w", err)
		}
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return &u, nil
}
