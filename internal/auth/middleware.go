package auth

import (
	"net/http"

	"codereview-platform/internal/token"

	"github.com/gin-gonic/gin"
)

const (
	authorizationHeader = "Authorization"
	ginTokenKey         = "auth_token"
)

// RequireAuth verifies the bearer token and its session record, then injects
// identity into the request context. It performs no permission checks; those
// belong to RequirePermission.
func RequireAuth(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := svc.VerifyAuthorizationHeader(c.Request.Context(), c.GetHeader(authorizationHeader))
		if tok == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing bearer token"})
			return
		}

		ctx := WithIdentity(c.Request.Context(), tok.UserID, tok.Roles)
		c.Request = c.Request.WithContext(ctx)

		// Also store on gin context for handler convenience.
		c.Set(ginTokenKey, *tok)
		c.Next()
	}
}

// RequirePermission gates a route on a single (resource, action) pair,
// evaluated against the user's live roles. Run it after RequireAuth.
func RequirePermission(svc *Service, resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := TokenFromGin(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		meta := MetaFromGin(c)
		if !svc.Authorize(c.Request.Context(), tok, resource, action, meta) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// TokenFromGin pulls the verified token placed by RequireAuth.
func TokenFromGin(c *gin.Context) (token.AuthToken, bool) {
	v, ok := c.Get(ginTokenKey)
	if !ok {
		return token.AuthToken{}, false
	}
	tok, ok := v.(token.AuthToken)
	return tok, ok
}

// MetaFromGin extracts client attribution for audit events.
func MetaFromGin(c *gin.Context) RequestMeta {
	return RequestMeta{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}
