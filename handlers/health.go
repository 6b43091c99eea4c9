package handlers

import (
	"errorshield/database"
	"errorshield/version"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthCheck health endpoint
func HealthCheck(c *gin.Context) {
	db := database.Health(c.Request.Context(), database.DB)

	health := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"version":   version.GetVersion(),
		"sqlite":    db,
	}

	if !db.Up {
		health["status"] = "degraded"
		respondV2(c, http.StatusServiceUnavailable, CodeInternal, "Service degraded", health)
		return
	}

	okV2(c, health)
}
