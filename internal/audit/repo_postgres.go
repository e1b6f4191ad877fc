package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo persists audit events to an INSERT-only table.
//
// Assumed schema:
//
//   auth_audit_events(id, type, user_id, email, success, ip_address,
//                     user_agent, metadata, created_at)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO auth_audit_events
	(id, type, user_id, email, success, ip_address, user_agent, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		string(e.Type),
		nullable(e.UserID),
		nullable(e.Email),
		e.Success,
		nullable(e.IPAddress),
		nullable(e.UserAgent),
		nullable(e.Metadata),
		e.CreatedAt,
	)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
