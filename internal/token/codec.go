package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"codereview-platform/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken covers every verification failure: bad signature,
	// malformed payload, expired, missing required claims.
	ErrInvalidToken = errors.New("invalid token")
	// ErrWrongTokenType is returned when a structurally valid token is
	// presented where the other kind is required (e.g. a bearer token
	// offered as a refresh token). Callers must not treat the two
	// interchangeably.
	ErrWrongTokenType = errors.New("wrong token type")
)

// Codec signs, verifies and decodes bearer and refresh tokens. Stateless;
// safe for concurrent use.
type Codec struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewCodec(cfg config.AuthConfig) (*Codec, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return &Codec{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.JWTIssuer,
		audience:   cfg.JWTAudience,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
	}, nil
}

/* ===================== ISSUE TOKENS ===================== */

// Generate issues a signed bearer token carrying identity, roles and
// flattened permissions, plus an independently signed refresh token.
func (c *Codec) Generate(now time.Time, userID string, roles, permissions []string) (AuthToken, error) {
	expiresAt := now.Add(c.accessTTL)

	access, err := c.issue(Claims{
		RegisteredClaims: c.registered(now, expiresAt),
		UserID:           userID,
		Roles:            roles,
		Permissions:      permissions,
		TokenType:        TokenTypeAccess,
	})
	if err != nil {
		return AuthToken{}, err
	}

	// Refresh tokens carry identity only; the jti nonce makes each
	// issuance unique even within the same second.
	refresh, err := c.issue(Claims{
		RegisteredClaims: c.registered(now, now.Add(c.refreshTTL)),
		UserID:           userID,
		TokenType:        TokenTypeRefresh,
	})
	if err != nil {
		return AuthToken{}, err
	}

	return AuthToken{
		UserID:       userID,
		Roles:        roles,
		Permissions:  permissions,
		ExpiresAt:    expiresAt,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

func (c *Codec) registered(now, expiresAt time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    c.issuer,
		Audience:  audienceOrNil(c.audience),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.NewString(),
	}
}

func (c *Codec) issue(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(c.secret)
}

/* ===================== VERIFY TOKENS ===================== */

// Verify checks signature, expiry and registered claims of a bearer token.
// Every failure class maps to ErrInvalidToken.
func (c *Codec) Verify(tokenString string, now time.Time) (Claims, error) {
	claims, err := c.parse(tokenString, now)
	if err != nil {
		return Claims{}, err
	}
	if claims.TokenType != TokenTypeAccess {
		return Claims{}, fmt.Errorf("%w: token_type %q", ErrInvalidToken, claims.TokenType)
	}
	return claims, nil
}

// VerifyRefresh checks a refresh token and returns the subject user ID.
// A valid token of the wrong type is rejected with ErrWrongTokenType so
// callers can distinguish misuse from tampering.
func (c *Codec) VerifyRefresh(tokenString string, now time.Time) (string, error) {
	claims, err := c.parse(tokenString, now)
	if err != nil {
		return "", err
	}
	if claims.TokenType != TokenTypeRefresh {
		return "", ErrWrongTokenType
	}
	return claims.UserID, nil
}

func (c *Codec) parse(tokenString string, now time.Time) (Claims, error) {
	var claims Claims

	// The parser only checks the signature; claim validation happens below
	// against the caller-supplied time, which is the single time authority.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}

	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(30 * time.Second), // clock skew tolerance
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}
	if c.audience != "" {
		opts = append(opts, jwt.WithAudience(c.audience))
	}

	validator := jwt.NewValidator(opts...)
	if err := validator.Validate(claims.RegisteredClaims); err != nil {
		return Claims{}, fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}

	if claims.UserID == "" {
		return Claims{}, fmt.Errorf("%w: user_id missing", ErrInvalidToken)
	}
	return claims, nil
}

/* ===================== HEADER PARSING ===================== */

const bearerPrefix = "Bearer "

// ExtractFromHeader pulls the raw token from an Authorization header value.
// It returns false for anything not of the form "Bearer <token>"; it never
// errors, so it is safe as a non-fatal middleware gate.
func ExtractFromHeader(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if tok == "" {
		return "", false
	}
	return tok, true
}

func audienceOrNil(aud string) jwt.ClaimStrings {
	if aud == "" {
		return nil
	}
	return jwt.ClaimStrings{aud}
}
