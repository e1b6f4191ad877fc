package auth

import (
	"errors"

	"codereview-platform/internal/token"
)

var (
	// ErrInvalidCredentials is the uniform 401-equivalent for wrong
	// password, unknown email or deactivated account.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserNotFound surfaces a role lookup against a deleted user.
	ErrUserNotFound = errors.New("user not found")

	// ErrSessionPersistence means the session store write during
	// authentication failed; the call is fatal because a token without a
	// session record could never authorize.
	ErrSessionPersistence = errors.New("session persistence failed")

	// ErrTokenRefreshFailed is intentionally uninformative: the concrete
	// cause (bad token vs. deleted user) is logged server-side only, so
	// callers cannot use refresh as an oracle.
	ErrTokenRefreshFailed = errors.New("token refresh failed")
)

// Token verification error kinds, re-exported so callers can match on the
// service's error surface without importing the codec package.
var (
	ErrInvalidToken   = token.ErrInvalidToken
	ErrWrongTokenType = token.ErrWrongTokenType
)
