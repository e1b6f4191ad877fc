package main

import (
	"database/sql"
	"net/http"
	"time"

	"codereview-platform/internal/auth"
	"codereview-platform/internal/httpapi"
	"codereview-platform/pkg/utils"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, svc *auth.Service, db *sql.DB) {
	h := httpapi.Handlers{Auth: svc}

	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/v1/auth/login", h.Login)
	r.POST("/v1/auth/refresh", h.Refresh)

	// authenticated API group
	v1 := r.Group("/v1")
	v1.Use(auth.RequireAuth(svc))
	{
		v1.POST("/auth/logout", h.Logout)
		v1.GET("/me", h.Me)

		// Resource groups below enforce per-route permissions against live
		// directory roles; handlers for these resources live in their own
		// services and are mounted here by the deployments that need them.
		projects := v1.Group("/projects")
		{
			projects.GET("", auth.RequirePermission(svc, "projects", "read"), notMounted)
			projects.POST("", auth.RequirePermission(svc, "projects", "create"), notMounted)
			projects.DELETE("/:id", auth.RequirePermission(svc, "projects", "delete"), notMounted)
		}

		reviews := v1.Group("/reviews")
		{
			reviews.GET("", auth.RequirePermission(svc, "reviews", "read"), notMounted)
			reviews.POST("", auth.RequirePermission(svc, "reviews", "create"), notMounted)
		}
	}
}

func notMounted(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"error": "resource service not mounted"})
}
