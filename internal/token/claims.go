package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// The payload is a closed structure: unknown claim fields are ignored on
// parse and never emitted on issue. Refresh tokens carry no roles or
// permissions; their jti exists solely to make repeated issuance unique.
type Claims struct {
	jwt.RegisteredClaims

	UserID      string    `json:"user_id"`
	Roles       []string  `json:"roles,omitempty"`
	Permissions []string  `json:"permissions,omitempty"`
	TokenType   TokenType `json:"token_type"`
}

// AuthToken is the issued credential pair handed to a client after a
// successful authentication or refresh. RefreshToken is opaque to callers;
// its claim structure is never exposed beyond the string itself.
type AuthToken struct {
	UserID       string    `json:"user_id"`
	Roles        []string  `json:"roles"`
	Permissions  []string  `json:"permissions"`
	ExpiresAt    time.Time `json:"expires_at"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
}

// Expired reports whether the token's expiry has passed. It is a pure
// comparison; it does not re-verify the signature and assumes the token
// was constructed from a verified source.
func (t AuthToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
