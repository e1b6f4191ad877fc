package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"codereview-platform/internal/audit"
	"codereview-platform/internal/config"
	"codereview-platform/internal/directory"
	"codereview-platform/internal/rbac"
	"codereview-platform/internal/session"
	"codereview-platform/internal/token"
)

var testMeta = RequestMeta{IP: "1.2.3.4", UserAgent: "cli/1.0"}

// countingChecker observes evaluator invocations so tests can assert the
// expired-token path never reaches permission evaluation.
type countingChecker struct {
	*rbac.Evaluator
	hasPermissionCalls int
}

func (c *countingChecker) HasPermission(roles []rbac.Role, resource, action string) bool {
	c.hasPermissionCalls++
	return c.Evaluator.HasPermission(roles, resource, action)
}

type fixture struct {
	svc     *Service
	dir     *directory.MemoryDirectory
	kv      *session.MemoryKV
	repo    *audit.MemoryRepo
	checker *countingChecker
	now     time.Time
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{now: time.Unix(1700000000, 0).UTC()}
	clock := func() time.Time { return f.now }

	codec, err := token.NewCodec(config.AuthConfig{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  24 * time.Hour,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("codec: %v", err)
	}

	f.kv = session.NewMemoryKV()
	f.kv.Clock = clock
	sessions := session.NewStore(f.kv, discard()).WithClock(clock)

	f.checker = &countingChecker{Evaluator: rbac.NewEvaluator(rbac.DefaultRoleTable())}
	f.repo = audit.NewMemoryRepo()

	f.dir = directory.NewMemoryDirectory()
	mustAdd(t, f.dir, directory.User{
		ID: "user-1", Email: "dev@example.com", Name: "Dev One",
		Roles: []string{rbac.RoleContributor}, Active: true,
	}, "hunter22")
	mustAdd(t, f.dir, directory.User{
		ID: "admin-1", Email: "root@example.com", Name: "Root",
		Roles: []string{rbac.RoleAdministrator}, Active: true,
	}, "rootpw")

	f.svc = NewService(f.dir, codec, sessions, f.checker, audit.NewService(f.repo), discard()).
		WithClock(clock)
	return f
}

func mustAdd(t *testing.T, dir *directory.MemoryDirectory, u directory.User, password string) {
	t.Helper()
	if err := dir.Add(u, password); err != nil {
		t.Fatalf("seed user %s: %v", u.ID, err)
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func login(t *testing.T, f *fixture) token.AuthToken {
	t.Helper()
	tok, err := f.svc.Authenticate(context.Background(), Credentials{Email: "dev@example.com", Password: "hunter22"}, testMeta)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	return tok
}

/* ===================== AUTHENTICATE ===================== */

func TestAuthenticate_Success(t *testing.T) {
	f := newFixture(t)

	tok := login(t, f)
	if tok.UserID != "user-1" {
		t.Fatalf("unexpected user: %q", tok.UserID)
	}
	if tok.AccessToken == "" || tok.RefreshToken == "" {
		t.Fatalf("expected token strings")
	}

	evs := f.repo.ByType(audit.EventTypeLoginSuccess)
	if len(evs) != 1 || evs[0].UserID != "user-1" || evs[0].IPAddress != "1.2.3.4" {
		t.Fatalf("expected one login_success for user-1, got %+v", evs)
	}

	u, _ := f.dir.UserByID(context.Background(), "user-1")
	if u.LastLoginAt == nil || !u.LastLoginAt.Equal(f.now) {
		t.Fatalf("expected last login touch at %v, got %v", f.now, u.LastLoginAt)
	}
}

func TestAuthenticate_WrongPassword(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Authenticate(context.Background(), Credentials{Email: "dev@example.com", Password: "nope"}, testMeta)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	evs := f.repo.ByType(audit.EventTypeLoginFailed)
	if len(evs) != 1 {
		t.Fatalf("expected one login_failed, got %d", len(evs))
	}
	if evs[0].UserID != "" || evs[0].Email != "dev@example.com" {
		t.Fatalf("failed login must be keyed by email, got %+v", evs[0])
	}
}

type downKV struct{ session.MemoryKV }

func (d *downKV) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	return errors.New("kv unavailable")
}

func TestAuthenticate_SessionWriteFailureIsFatal(t *testing.T) {
	f := newFixture(t)

	kv := &downKV{}
	kv.Clock = func() time.Time { return f.now }
	// Rebuild the service with a store whose writes always fail.
	codec, _ := token.NewCodec(config.AuthConfig{
		JWTSecret: "test-secret", AccessTokenTTL: 24 * time.Hour, RefreshTokenTTL: 7 * 24 * time.Hour,
	})
	sessions := session.NewStore(kv, discard()).WithClock(func() time.Time { return f.now })
	svc := NewService(f.dir, codec, sessions, f.checker, audit.NewService(f.repo), discard()).
		WithClock(func() time.Time { return f.now })

	_, err := svc.Authenticate(context.Background(), Credentials{Email: "dev@example.com", Password: "hunter22"}, testMeta)
	if !errors.Is(err, ErrSessionPersistence) {
		t.Fatalf("expected ErrSessionPersistence, got %v", err)
	}
	if evs := f.repo.ByType(audit.EventTypeLoginSuccess); len(evs) != 0 {
		t.Fatalf("no login_success may be recorded when the session write fails")
	}
}

type failingSink struct{}

func (failingSink) LogLoginSuccess(context.Context, string, string, string) error {
	return errors.New("sink down")
}
func (failingSink) LogLoginFailed(context.Context, string, string, string) error {
	return errors.New("sink down")
}
func (failingSink) LogAuthorizationFailure(context.Context, string, string, string, string) error {
	return errors.New("sink down")
}
func (failingSink) LogTokenRefresh(context.Context, string, string, string) error {
	return errors.New("sink down")
}
func (failingSink) LogLogout(context.Context, string, string, string) error {
	return errors.New("sink down")
}

func TestAuthenticate_AuditFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	codec, _ := token.NewCodec(config.AuthConfig{
		JWTSecret: "test-secret", AccessTokenTTL: 24 * time.Hour, RefreshTokenTTL: 7 * 24 * time.Hour,
	})
	sessions := session.NewStore(f.kv, discard()).WithClock(func() time.Time { return f.now })
	svc := NewService(f.dir, codec, sessions, f.checker, failingSink{}, discard()).
		WithClock(func() time.Time { return f.now })

	if _, err := svc.Authenticate(context.Background(), Credentials{Email: "dev@example.com", Password: "hunter22"}, testMeta); err != nil {
		t.Fatalf("audit failure must not fail authentication: %v", err)
	}
}

/* ===================== AUTHORIZE ===================== */

func TestAuthorize_GrantedPermissionIsSilent(t *testing.T) {
	f := newFixture(t)
	tok := login(t, f)

	if !f.svc.Authorize(context.Background(), tok, "projects", "read", testMeta) {
		t.Fatalf("contributor should read projects")
	}
	if evs := f.repo.ByType(audit.EventTypeAuthorizationFailure); len(evs) != 0 {
		t.Fatalf("grants must not be audited, got %+v", evs)
	}
}

func TestAuthorize_DenialEmitsExactlyOneAuditEvent(t *testing.T) {
	f := newFixture(t)
	tok := login(t, f)

	if f.svc.Authorize(context.Background(), tok, "projects", "delete", testMeta) {
		t.Fatalf("contributor must not delete projects")
	}

	evs := f.repo.ByType(audit.EventTypeAuthorizationFailure)
	if len(evs) != 1 {
		t.Fatalf("expected exactly one authorization_failure, got %d", len(evs))
	}
	e := evs[0]
	if e.UserID != "user-1" || e.Success {
		t.Fatalf("unexpected event: %+v", e)
	}
	if !strings.Contains(e.Metadata, `"resource":"projects"`) || !strings.Contains(e.Metadata, `"action":"delete"`) {
		t.Fatalf("expected denied resource/action in metadata, got %s", e.Metadata)
	}
}

func TestAuthorize_ExpiredTokenNeverReachesEvaluator(t *testing.T) {
	f := newFixture(t)
	tok := login(t, f)

	f.advance(25 * time.Hour)
	before := f.checker.hasPermissionCalls

	if f.svc.Authorize(context.Background(), tok, "projects", "read", testMeta) {
		t.Fatalf("expired token must be denied")
	}
	if f.checker.hasPermissionCalls != before {
		t.Fatalf("evaluator invoked %d times for an expired token", f.checker.hasPermissionCalls-before)
	}
	if evs := f.repo.ByType(audit.EventTypeAuthorizationFailure); len(evs) != 1 {
		t.Fatalf("expected one authorization_failure, got %d", len(evs))
	}
}

func TestAuthorize_RevokedTokenDeniedWhileUnexpired(t *testing.T) {
	f := newFixture(t)
	tok := login(t, f)

	if err := f.svc.Revoke(context.Background(), tok, testMeta); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	if tok.Expired(f.now) {
		t.Fatalf("token must still be within its lifetime")
	}
	if f.svc.Authorize(context.Background(), tok, "projects", "read", testMeta) {
		t.Fatalf("revoked token must be denied despite valid expiry")
	}

	// Revocation is idempotent.
	if err := f.svc.Revoke(context.Background(), tok, testMeta); err != nil {
		t.Fatalf("second revoke must not error: %v", err)
	}

	if evs := f.repo.ByType(audit.EventTypeLogout); len(evs) != 2 {
		t.Fatalf("expected logout events, got %d", len(evs))
	}
}

func TestAuthorize_UsesLiveRolesNotTokenRoles(t *testing.T) {
	f := newFixture(t)
	tok := login(t, f)

	// The token still embeds contributor permissions, but the directory
	// now says viewer; the downgrade applies before natural expiry.
	f.dir.SetRoles("user-1", []string{rbac.RoleViewer})

	if f.svc.Authorize(context.Background(), tok, "projects", "update", testMeta) {
		t.Fatalf("demoted user must lose update access immediately")
	}
	if !f.svc.Authorize(context.Background(), tok, "projects", "read", testMeta) {
		t.Fatalf("viewer retains read access")
	}
}

func TestAuthorize_DeletedUserDenied(t *testing.T) {
	f := newFixture(t)
	tok := login(t, f)

	f.dir.Remove("user-1")
	if f.svc.Authorize(context.Background(), tok, "projects", "read", testMeta) {
		t.Fatalf("deleted user must be denied")
	}
}

/* ===================== SEQUENTIAL LOGINS ===================== */

func TestSequentialLogins_FirstTokenLosesItsSession(t *testing.T) {
	f := newFixture(t)

	first := login(t, f)
	second := login(t, f)

	if first.Expired(f.now) {
		t.Fatalf("first token must still be signature/expiry valid")
	}
	if f.svc.Authorize(context.Background(), first, "projects", "read", testMeta) {
		t.Fatalf("first token must fail the session check after a second login")
	}
	if !f.svc.Authorize(context.Background(), second, "projects", "read", testMeta) {
		t.Fatalf("second token must authorize")
	}
}

/* ===================== ROLES ===================== */

func TestGetUserRoles(t *testing.T) {
	f := newFixture(t)

	roles, err := f.svc.GetUserRoles(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("roles: %v", err)
	}
	if len(roles) != 1 || roles[0].Name != rbac.RoleContributor {
		t.Fatalf("unexpected roles: %+v", roles)
	}
	if len(roles[0].Permissions) == 0 {
		t.Fatalf("expected resolved permissions")
	}

	if _, err := f.svc.GetUserRoles(context.Background(), "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

/* ===================== REFRESH ===================== */

func TestRefresh_RotatesTokenPair(t *testing.T) {
	f := newFixture(t)
	tok := login(t, f)

	f.advance(time.Hour)
	fresh, err := f.svc.Refresh(context.Background(), tok.RefreshToken, testMeta)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if fresh.AccessToken == tok.AccessToken || fresh.RefreshToken == tok.RefreshToken {
		t.Fatalf("expected a rotated pair")
	}

	if !f.svc.Authorize(context.Background(), fresh, "projects", "read", testMeta) {
		t.Fatalf("fresh token must authorize")
	}

	// The old refresh token was revoked during rotation.
	if _, err := f.svc.Refresh(context.Background(), tok.RefreshToken, testMeta); !errors.Is(err, ErrTokenRefreshFailed) {
		t.Fatalf("expected ErrTokenRefreshFailed for rotated-out token, got %v", err)
	}

	if evs := f.repo.ByType(audit.EventTypeTokenRefresh); len(evs) != 1 {
		t.Fatalf("expected one token_refresh event, got %d", len(evs))
	}
}

func TestRefresh_TamperedTokenRejectedWithoutSessionMutation(t *testing.T) {
	f := newFixture(t)
	tok := login(t, f)

	if _, err := f.svc.Refresh(context.Background(), tok.RefreshToken+"x", testMeta); !errors.Is(err, ErrTokenRefreshFailed) {
		t.Fatalf("expected ErrTokenRefreshFailed, got %v", err)
	}

	// The existing session is untouched.
	if !f.svc.Authorize(context.Background(), tok, "projects", "read", testMeta) {
		t.Fatalf("original session must survive a failed refresh")
	}
}

func TestRefresh_BearerTokenRejected(t *testing.T) {
	f := newFixture(t)
	tok := login(t, f)

	if _, err := f.svc.Refresh(context.Background(), tok.AccessToken, testMeta); !errors.Is(err, ErrTokenRefreshFailed) {
		t.Fatalf("expected generic refresh failure for bearer-as-refresh, got %v", err)
	}
}

func TestRefresh_DeletedUserRejectedGenerically(t *testing.T) {
	f := newFixture(t)
	tok := login(t, f)

	f.dir.Remove("user-1")
	_, err := f.svc.Refresh(context.Background(), tok.RefreshToken, testMeta)
	if !errors.Is(err, ErrTokenRefreshFailed) {
		t.Fatalf("expected ErrTokenRefreshFailed, got %v", err)
	}
	if errors.Is(err, ErrUserNotFound) {
		t.Fatalf("refresh must not expose the user-deleted cause")
	}
}

func TestRefresh_RevokedRefreshTokenRejected(t *testing.T) {
	f := newFixture(t)
	tok := login(t, f)

	if err := f.svc.Revoke(context.Background(), tok, testMeta); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := f.svc.Refresh(context.Background(), tok.RefreshToken, testMeta); !errors.Is(err, ErrTokenRefreshFailed) {
		t.Fatalf("expected ErrTokenRefreshFailed after logout, got %v", err)
	}
}

/* ===================== HEADER GATE ===================== */

func TestVerifyAuthorizationHeader(t *testing.T) {
	f := newFixture(t)
	tok := login(t, f)

	got := f.svc.VerifyAuthorizationHeader(context.Background(), "Bearer "+tok.AccessToken)
	if got == nil || got.UserID != "user-1" {
		t.Fatalf("expected reconstructed token, got %+v", got)
	}
	if len(got.Permissions) == 0 {
		t.Fatalf("expected embedded permissions")
	}

	if f.svc.VerifyAuthorizationHeader(context.Background(), "") != nil {
		t.Fatalf("empty header must yield nil")
	}
	if f.svc.VerifyAuthorizationHeader(context.Background(), "Basic abc") != nil {
		t.Fatalf("non-bearer header must yield nil")
	}
	if f.svc.VerifyAuthorizationHeader(context.Background(), "Bearer garbage") != nil {
		t.Fatalf("malformed token must yield nil")
	}

	if err := f.svc.Revoke(context.Background(), tok, testMeta); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if f.svc.VerifyAuthorizationHeader(context.Background(), "Bearer "+tok.AccessToken) != nil {
		t.Fatalf("revoked session must yield nil")
	}
}
