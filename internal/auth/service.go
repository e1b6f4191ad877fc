package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codereview-platform/internal/directory"
	"codereview-platform/internal/rbac"
	"codereview-platform/internal/session"
	"codereview-platform/internal/token"
)

// Credentials are transient login input. Never persist or log them.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RequestMeta carries best-effort client attribution for audit events.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// PermissionChecker is the evaluator capability the service needs, kept as
// an interface so tests can observe invocations (the expired-token path must
// never reach the evaluator).
type PermissionChecker interface {
	RolesFor(names []string) []rbac.Role
	HasPermission(roles []rbac.Role, resource, action string) bool
	AllPermissions(roles []rbac.Role) []string
}

// AuditSink records security events. Fire-and-forget from this service's
// perspective: write failures are logged and swallowed.
type AuditSink interface {
	LogLoginSuccess(ctx context.Context, userID, ip, userAgent string) error
	LogLoginFailed(ctx context.Context, email, ip, userAgent string) error
	LogAuthorizationFailure(ctx context.Context, userID, ip, userAgent, metadata string) error
	LogTokenRefresh(ctx context.Context, userID, ip, userAgent string) error
	LogLogout(ctx context.Context, userID, ip, userAgent string) error
}

// Service orchestrates credential verification, token issuance, session
// consistency and permission evaluation. It holds no mutable state beyond
// configuration; all durable state lives in the directory and session store.
type Service struct {
	dir      directory.Directory
	codec    *token.Codec
	sessions *session.Store
	perms    PermissionChecker
	audit    AuditSink
	log      *slog.Logger
	clock    func() time.Time
}

func NewService(
	dir directory.Directory,
	codec *token.Codec,
	sessions *session.Store,
	perms PermissionChecker,
	sink AuditSink,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		dir:      dir,
		codec:    codec,
		sessions: sessions,
		perms:    perms,
		audit:    sink,
		log:      log,
		clock:    time.Now,
	}
}

// WithClock overrides the time source; tests only.
func (s *Service) WithClock(fn func() time.Time) *Service {
	if fn != nil {
		s.clock = fn
	}
	return s
}

/* ===================== AUTHENTICATE ===================== */

// Authenticate verifies credentials, issues a token pair and persists the
// matching session record. The session write is required: its failure fails
// the call, because the returned token would otherwise never authorize.
func (s *Service) Authenticate(ctx context.Context, creds Credentials, meta RequestMeta) (token.AuthToken, error) {
	user, err := s.dir.VerifyCredentials(ctx, creds.Email, creds.Password)
	if err != nil {
		if errors.Is(err, directory.ErrBadCredentials) {
			s.tryAudit(func() error {
				return s.audit.LogLoginFailed(ctx, creds.Email, meta.IP, meta.UserAgent)
			})
			return token.AuthToken{}, ErrInvalidCredentials
		}
		return token.AuthToken{}, fmt.Errorf("verify credentials: %w", err)
	}

	tok, err := s.issue(ctx, user)
	if err != nil {
		return token.AuthToken{}, err
	}

	// Advisory: a failed last-login touch never fails authentication.
	if err := s.dir.TouchLastLogin(ctx, user.ID, s.clock().UTC()); err != nil {
		s.log.Warn("last-login update failed", "user_id", user.ID, "err", err)
	}

	s.tryAudit(func() error {
		return s.audit.LogLoginSuccess(ctx, user.ID, meta.IP, meta.UserAgent)
	})
	return tok, nil
}

// issue computes permissions, generates the token pair and persists the
// session; shared by Authenticate and Refresh.
func (s *Service) issue(ctx context.Context, user *directory.User) (token.AuthToken, error) {
	roles := s.perms.RolesFor(user.Roles)
	permissions := s.perms.AllPermissions(roles)

	tok, err := s.codec.Generate(s.clock(), user.ID, user.Roles, permissions)
	if err != nil {
		return token.AuthToken{}, fmt.Errorf("generate token: %w", err)
	}
	if err := s.sessions.StoreTokenSession(ctx, tok); err != nil {
		return token.AuthToken{}, fmt.Errorf("%w: %s", ErrSessionPersistence, err)
	}
	return tok, nil
}

/* ===================== AUTHORIZE ===================== */

// Authorize decides whether the token's user may perform action on resource.
//
// The check order is load-bearing: expiry first (the evaluator is never
// invoked for dead tokens), then session existence (early revocation), then
// a live role fetch from the directory so role changes take effect before
// the token's natural expiry. Only denials are audited.
func (s *Service) Authorize(ctx context.Context, tok token.AuthToken, resource, action string, meta RequestMeta) bool {
	deny := func(reason string) bool {
		s.tryAudit(func() error {
			return s.audit.LogAuthorizationFailure(ctx, tok.UserID, meta.IP, meta.UserAgent,
				denialMetadata(resource, action, reason))
		})
		return false
	}

	if tok.Expired(s.clock()) {
		return deny("token expired")
	}

	live, err := s.sessions.VerifyTokenSession(ctx, tok)
	if err != nil {
		s.log.Error("session check failed", "user_id", tok.UserID, "err", err)
		return deny("session check failed")
	}
	if !live {
		return deny("session revoked or absent")
	}

	user, err := s.dir.UserByID(ctx, tok.UserID)
	if err != nil {
		if !errors.Is(err, directory.ErrNotFound) {
			s.log.Error("role fetch failed", "user_id", tok.UserID, "err", err)
		}
		return deny("user lookup failed")
	}

	roles := s.perms.RolesFor(user.Roles)
	if !s.perms.HasPermission(roles, resource, action) {
		return deny("permission denied")
	}
	return true
}

func denialMetadata(resource, action, reason string) string {
	b, err := json.Marshal(map[string]string{
		"resource": resource,
		"action":   action,
		"reason":   reason,
	})
	if err != nil {
		return ""
	}
	return string(b)
}

/* ===================== ROLES ===================== */

// GetUserRoles resolves a user's current roles against the role table.
func (s *Service) GetUserRoles(ctx context.Context, userID string) ([]rbac.Role, error) {
	user, err := s.dir.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("fetch user: %w", err)
	}
	return s.perms.RolesFor(user.Roles), nil
}

/* ===================== REFRESH ===================== */

// Refresh rotates a refresh token into a fresh token pair. Every
// verification or fetch failure collapses to ErrTokenRefreshFailed; the
// concrete cause is logged but never exposed, so the endpoint cannot be
// used to distinguish "token invalid" from "user deleted".
func (s *Service) Refresh(ctx context.Context, refreshToken string, meta RequestMeta) (token.AuthToken, error) {
	userID, err := s.codec.VerifyRefresh(refreshToken, s.clock())
	if err != nil {
		s.log.Info("refresh rejected", "err", err)
		return token.AuthToken{}, ErrTokenRefreshFailed
	}

	// The reverse mapping is the revocation authority for refresh tokens:
	// a logout deletes it, after which the signature alone is not enough.
	owner, found, err := s.sessions.LookupRefreshToken(ctx, refreshToken)
	if err != nil {
		s.log.Error("refresh mapping lookup failed", "err", err)
		return token.AuthToken{}, ErrTokenRefreshFailed
	}
	if !found || owner != userID {
		s.log.Info("refresh rejected", "reason", "mapping absent or mismatched", "user_id", userID)
		return token.AuthToken{}, ErrTokenRefreshFailed
	}

	user, err := s.dir.UserByID(ctx, userID)
	if err != nil {
		s.log.Info("refresh rejected", "reason", "user fetch failed", "user_id", userID, "err", err)
		return token.AuthToken{}, ErrTokenRefreshFailed
	}

	tok, err := s.issue(ctx, user)
	if err != nil {
		if errors.Is(err, ErrSessionPersistence) {
			return token.AuthToken{}, err
		}
		s.log.Error("refresh re-issue failed", "user_id", userID, "err", err)
		return token.AuthToken{}, ErrTokenRefreshFailed
	}

	// The new mapping is already written; dropping the old one only
	// affects future refresh attempts, so best-effort is enough.
	s.sessions.RevokeRefreshToken(ctx, refreshToken)

	s.tryAudit(func() error {
		return s.audit.LogTokenRefresh(ctx, user.ID, meta.IP, meta.UserAgent)
	})
	return tok, nil
}

/* ===================== REVOKE ===================== */

// Revoke removes the token's session record and refresh mapping and records
// the logout. Idempotent: revoking an already-revoked token succeeds.
func (s *Service) Revoke(ctx context.Context, tok token.AuthToken, meta RequestMeta) error {
	if err := s.sessions.RemoveTokenSession(ctx, tok); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	s.sessions.RevokeRefreshToken(ctx, tok.RefreshToken)

	s.tryAudit(func() error {
		return s.audit.LogLogout(ctx, tok.UserID, meta.IP, meta.UserAgent)
	})
	return nil
}

/* ===================== HEADER GATE ===================== */

// VerifyAuthorizationHeader composes extract, verify, token reconstruction
// and the session-existence check. It returns nil on any failure and never
// errors, making it safe as a non-fatal middleware gate.
func (s *Service) VerifyAuthorizationHeader(ctx context.Context, header string) *token.AuthToken {
	raw, ok := token.ExtractFromHeader(header)
	if !ok {
		return nil
	}
	claims, err := s.codec.Verify(raw, s.clock())
	if err != nil {
		return nil
	}
	tok := token.AuthToken{
		UserID:      claims.UserID,
		Roles:       claims.Roles,
		Permissions: claims.Permissions,
		ExpiresAt:   claims.ExpiresAt.Time,
		AccessToken: raw,
	}
	live, err := s.sessions.VerifyTokenSession(ctx, tok)
	if err != nil || !live {
		return nil
	}
	return &tok
}

// tryAudit runs a best-effort audit write; failures are logged, never
// propagated to the surrounding operation.
func (s *Service) tryAudit(fn func() error) {
	if s.audit == nil {
		return
	}
	if err := fn(); err != nil {
		s.log.Warn("audit write failed", "err", err)
	}
}
