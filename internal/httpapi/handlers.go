package httpapi

import (
	"errors"
	"net/http"

	"codereview-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth *auth.Service
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresAt    string   `json:"expires_at"`
	Roles        []string `json:"roles"`
}

// Login verifies credentials and issues a token pair. The response exposes
// the refresh token only as an opaque string.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Email == "" || req.Password == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		return
	}

	tok, err := h.Auth.Authenticate(c.Request.Context(), auth.Credentials{
		Email:    req.Email,
		Password: req.Password,
	}, auth.MetaFromGin(c))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "authentication unavailable"})
		return
	}

	c.JSON(http.StatusOK, tokenResponse{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.ExpiresAt.UTC().Format(timeLayout),
		Roles:        tok.Roles,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh rotates a refresh token into a fresh pair. Failures are uniformly
// 401; the service intentionally does not expose the cause.
func (h Handlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
		return
	}

	tok, err := h.Auth.Refresh(c.Request.Context(), req.RefreshToken, auth.MetaFromGin(c))
	if err != nil {
		if errors.Is(err, auth.ErrSessionPersistence) {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "authentication unavailable"})
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "refresh failed"})
		return
	}

	c.JSON(http.StatusOK, tokenResponse{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.ExpiresAt.UTC().Format(timeLayout),
		Roles:        tok.Roles,
	})
}

// Logout revokes the caller's session. Requires RequireAuth in the chain.
func (h Handlers) Logout(c *gin.Context) {
	tok, ok := auth.TokenFromGin(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	if err := h.Auth.Revoke(c.Request.Context(), tok, auth.MetaFromGin(c)); err != nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "logout unavailable"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Me echoes the verified identity with live roles from the directory.
func (h Handlers) Me(c *gin.Context) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	roles, err := h.Auth.GetUserRoles(c.Request.Context(), uid)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user no longer exists"})
			return
		}
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "directory unavailable"})
		return
	}

	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	c.JSON(http.StatusOK, gin.H{"user_id": uid, "roles": names})
}

const timeLayout = "2006-01-02T15:04:05Z07:00"
