package handlers

import (
	"elmah/database"
	"elmah/version"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck reports whether every configured store is reachable.
func (h *Handler) HealthCheck(c *gin.Context) {
	stores := h.errors.Health(c.Request.Context())

	healthy := true
	for _, ok := range stores {
		healthy = healthy && ok
	}

	health := gin.H{
		"status":               "healthy",
		"timestamp":            time.Now().Unix(),
		"version":              version.GetFullVersion(),
		"stores":               stores,
		"sqlite_busy_errors":   database.SQLiteBusyErrorsTotal(),
		"sqlite_locked_errors": database.SQLiteLockedErrorsTotal(),
	}

	if !healthy {
		health["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}

	c.JSON(http.StatusOK, health)
}

// ListApplications returns the configured application names, default first.
func (h *Handler) ListApplications(c *gin.Context) {
	okV2(c, http.StatusOK, h.errors.Applications())
}
