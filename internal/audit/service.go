package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records security events.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to platform users.
// - Callers must treat audit logging as best-effort: a write failure is the
//   caller's to swallow, never a reason to fail the surrounding auth flow.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}
	if e.UserID == "" && e.Email == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogLoginSuccess records a completed authentication keyed by user ID.
func (s *Service) LogLoginSuccess(ctx context.Context, userID, ip, userAgent string) error {
	return s.Append(ctx, Event{
		Type:      EventTypeLoginSuccess,
		UserID:    userID,
		Success:   true,
		IPAddress: ip,
		UserAgent: userAgent,
	})
}

// LogLoginFailed records a rejected authentication keyed by the attempted
// email, since no user was resolved.
func (s *Service) LogLoginFailed(ctx context.Context, email, ip, userAgent string) error {
	return s.Append(ctx, Event{
		Type:      EventTypeLoginFailed,
		Email:     email,
		Success:   false,
		IPAddress: ip,
		UserAgent: userAgent,
	})
}

// LogAuthorizationFailure records a denied access decision. Grants are
// deliberately not audited to bound log volume.
func (s *Service) LogAuthorizationFailure(ctx context.Context, userID, ip, userAgent, metadata string) error {
	return s.Append(ctx, Event{
		Type:      EventTypeAuthorizationFailure,
		UserID:    userID,
		Success:   false,
		IPAddress: ip,
		UserAgent: userAgent,
		Metadata:  metadata,
	})
}

// LogTokenRefresh records a successful token rotation.
func (s *Service) LogTokenRefresh(ctx context.Context, userID, ip, userAgent string) error {
	return s.Append(ctx, Event{
		Type:      EventTypeTokenRefresh,
		UserID:    userID,
		Success:   true,
		IPAddress: ip,
		UserAgent: userAgent,
	})
}

// LogLogout records an explicit revocation.
func (s *Service) LogLogout(ctx context.Context, userID, ip, userAgent string) error {
	return s.Append(ctx, Event{
		Type:      EventTypeLogout,
		UserID:    userID,
		Success:   true,
		IPAddress: ip,
		UserAgent: userAgent,
	})
}
