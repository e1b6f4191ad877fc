package audit

import "time"

// Event is an immutable, append-only security audit record.
//
// Invariants:
// - Events are never updated or deleted.
// - UserID may be empty for failed logins; those are keyed by Email instead.
// - IP and user-agent capture are best-effort; never block auth flows on
//   audit failures.
//
// Storage recommendation (Postgres):
// - Table auth_audit_events with an INSERT-only policy.
// - Optional: trigger to prevent UPDATE/DELETE.
// - Optional: partition by time for retention.

type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the security category of the audit record.
	Type EventType `json:"type" db:"type"`

	// UserID is the authenticated subject (empty when authentication
	// itself failed and no user was resolved).
	UserID string `json:"user_id,omitempty" db:"user_id"`
	// Email keys failed-login events when no user ID is available.
	Email string `json:"email,omitempty" db:"email"`

	// Success distinguishes granted from denied outcomes for event types
	// that can carry both.
	Success bool `json:"success" db:"success"`

	// IPAddress should capture the original client IP when available.
	// Prefer X-Forwarded-For processing at the edge; store the resolved
	// client IP here.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent string `json:"user_agent,omitempty" db:"user_agent"`

	// Metadata is optional JSON for full details (denied resource/action,
	// internal failure causes).
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeLoginSuccess         EventType = "login_success"
	EventTypeLoginFailed          EventType = "login_failed"
	EventTypeAuthorizationFailure EventType = "authorization_failure"
	EventTypeTokenRefresh         EventType = "token_refresh"
	EventTypeLogout               EventType = "logout"
)
