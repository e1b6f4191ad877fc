package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codereview-platform/internal/token"
)

// ErrPersistence indicates a required session write failed. Authentication
// must fail when this surfaces: returning a token without its server-side
// record would hand the caller a credential authorize() can never honor.
var ErrPersistence = errors.New("session persistence failed")

const (
	sessionKeyPrefix = "session:"
	refreshKeyPrefix = "refresh:"

	// Refresh mappings live a fixed window regardless of the access
	// token's remaining lifetime.
	refreshMappingTTL = 7 * 24 * time.Hour
)

// Record is the server-side mirror of an issued token. Its presence is
// what keeps a signature-valid token authorization-valid; deleting it is
// the early-revocation mechanism.
type Record struct {
	UserID      string    `json:"user_id"`
	Roles       []string  `json:"roles"`
	Permissions []string  `json:"permissions"`
	ExpiresAt   time.Time `json:"expires_at"`

	// AccessToken identifies which issuance the record mirrors. The key is
	// per-user, so a second login overwrites the record and earlier tokens
	// stop matching: last write wins, single active session per user.
	AccessToken string `json:"access_token"`
}

// Store maintains session records in an external KV with per-key TTLs.
// It holds no in-process state beyond configuration.
type Store struct {
	kv    KV
	log   *slog.Logger
	clock func() time.Time
}

func NewStore(kv KV, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{kv: kv, log: log, clock: time.Now}
}

// WithClock overrides the time source; tests only.
func (s *Store) WithClock(fn func() time.Time) *Store {
	if fn != nil {
		s.clock = fn
	}
	return s
}

// StoreTokenSession writes the session record keyed by user with a TTL equal
// to the token's remaining lifetime, and the refresh-token reverse mapping
// with a fixed 7-day TTL. Both writes are required: failure of either after
// one inline retry fails the surrounding authentication.
//
// The session key is per-user, so a second login overwrites the first
// session's record (last write wins, single active session per user).
func (s *Store) StoreTokenSession(ctx context.Context, tok token.AuthToken) error {
	ttl := tok.ExpiresAt.Sub(s.clock())
	if ttl <= 0 {
		return fmt.Errorf("%w: token already expired", ErrPersistence)
	}

	payload, err := json.Marshal(Record{
		UserID:      tok.UserID,
		Roles:       tok.Roles,
		Permissions: tok.Permissions,
		ExpiresAt:   tok.ExpiresAt,
		AccessToken: tok.AccessToken,
	})
	if err != nil {
		return fmt.Errorf("%w: %s", ErrPersistence, err)
	}

	if err := s.setWithRetry(ctx, sessionKeyPrefix+tok.UserID, string(payload), ttl); err != nil {
		return fmt.Errorf("%w: session record: %s", ErrPersistence, err)
	}
	if err := s.setWithRetry(ctx, refreshKeyPrefix+tok.RefreshToken, tok.UserID, refreshMappingTTL); err != nil {
		return fmt.Errorf("%w: refresh mapping: %s", ErrPersistence, err)
	}
	return nil
}

// setWithRetry retries a failed write exactly once before giving up.
func (s *Store) setWithRetry(ctx context.Context, key, value string, ttl time.Duration) error {
	err := s.kv.SetWithTTL(ctx, key, value, ttl)
	if err == nil {
		return nil
	}
	s.log.Warn("session write failed, retrying once", "err", err)
	return s.kv.SetWithTTL(ctx, key, value, ttl)
}

// VerifyTokenSession reports whether the live session record for the token's
// user mirrors this exact issuance. Roles and permissions in the record are
// not compared; only the access-token identity is, so a newer login for the
// same user silently fails earlier tokens here while they remain
// signature-valid until their own expiry.
func (s *Store) VerifyTokenSession(ctx context.Context, tok token.AuthToken) (bool, error) {
	raw, found, err := s.kv.Get(ctx, sessionKeyPrefix+tok.UserID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		// A corrupt record denies rather than errors; it is equivalent
		// to the session being absent.
		s.log.Warn("corrupt session record", "user_id", tok.UserID, "err", err)
		return false, nil
	}
	return rec.AccessToken == tok.AccessToken, nil
}

// LookupRefreshToken resolves a refresh token to its owning user via the
// reverse mapping. A missing mapping means the token was revoked or its
// window elapsed.
func (s *Store) LookupRefreshToken(ctx context.Context, refreshToken string) (string, bool, error) {
	return s.kv.Get(ctx, refreshKeyPrefix+refreshToken)
}

// RemoveTokenSession deletes the session record. Idempotent: removing an
// already-removed session is not an error.
func (s *Store) RemoveTokenSession(ctx context.Context, tok token.AuthToken) error {
	return s.kv.Del(ctx, sessionKeyPrefix+tok.UserID)
}

// RevokeRefreshToken deletes the refresh mapping. Best-effort: it only
// affects future refresh attempts, never current authorization, so failures
// are logged rather than propagated.
func (s *Store) RevokeRefreshToken(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}
	if err := s.kv.Del(ctx, refreshKeyPrefix+refreshToken); err != nil {
		s.log.Warn("refresh token revocation failed", "err", err)
	}
}
