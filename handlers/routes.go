package handlers

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterAdminRoutes mounts the admin API under <prefix>/api. Extra
// middleware runs before authentication.
func RegisterAdminRoutes(r gin.IRouter, prefix, passwordHash string, middleware ...gin.HandlerFunc) {
	chain := []gin.HandlerFunc{
		cors.New(cors.Config{
			AllowAllOrigins: true,
			AllowMethods:    []string{"GET", "PUT", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:    []string{"Authorization", "Content-Type", "X-Request-ID"},
			ExposeHeaders:   []string{"Content-Length", "X-Request-ID"},
		}),
	}
	chain = append(chain, middleware...)
	chain = append(chain, AdminAuth(passwordHash))

	api := r.Group(strings.TrimRight(prefix, "/")+"/api", chain...)
	{
		api.GET("/settings", GetSettings)
		api.PUT("/settings", UpdateSettings)
		api.DELETE("/settings", ResetSettings)

		api.GET("/logs", ListLogs)
		api.GET("/logs/:name", GetLog)
		api.DELETE("/logs", ClearLogs)

		api.GET("/hardening", GetHardening)

		api.POST("/shutdown/generate-code", GenerateShutdownCode)
		api.POST("/shutdown/verify", VerifyAndShutdown)
	}
}
