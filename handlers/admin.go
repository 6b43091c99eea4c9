package handlers

import (
	"errors"
	"errorshield/core"
	"errorshield/models"
	"errorshield/service"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetSettings returns the stored log configuration.
func GetSettings(c *gin.Context) {
	cfg, err := service.GlobalServices.Settings.LogConfig()
	if err != nil {
		// Defaults are in effect; tell the administrator why
		respondV2(c, http.StatusOK, CodeOK, "Stored settings unavailable, defaults in effect", gin.H{
			"settings": cfg,
			"detail":   err.Error(),
		})
		return
	}
	okV2(c, gin.H{"settings": cfg})
}

// UpdateSettings applies a partial update of the log configuration.
func UpdateSettings(c *gin.Context) {
	var req models.LogSettingsUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		errV2(c, http.StatusBadRequest, CodeInvalidRequest, "Invalid request", err.Error())
		return
	}

	cfg, err := service.GlobalServices.Settings.Update(req)
	if err != nil {
		if errors.Is(err, service.ErrLogLocationNotAbsolute) || errors.Is(err, service.ErrEmptySettingsUpdate) {
			errV2(c, http.StatusBadRequest, CodeInvalidRequest, "Invalid settings", err.Error())
			return
		}
		errV2(c, http.StatusInternalServerError, CodeInternal, "Failed to save settings", err.Error())
		return
	}
	okV2(c, gin.H{"settings": cfg})
}

// ResetSettings drops the stored configuration.
func ResetSettings(c *gin.Context) {
	cfg, err := service.GlobalServices.Settings.Reset()
	if err != nil {
		errV2(c, http.StatusInternalServerError, CodeInternal, "Failed to reset settings", err.Error())
		return
	}
	okV2(c, gin.H{"settings": cfg})
}

// ListLogs lists the most recent daily log files, most recent last.
func ListLogs(c *gin.Context) {
	limit := core.DefaultRecentLogLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			errV2(c, http.StatusBadRequest, CodeInvalidRequest, "Invalid limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	files, err := service.GlobalServices.Logs.ListRecent(limit)
	if err != nil {
		errV2(c, http.StatusInternalServerError, CodeInternal, "Failed to list log files", err.Error())
		return
	}
	okV2(c, gin.H{"files": files, "limit": limit})
}

// GetLog returns one daily log file as plain text.
func GetLog(c *gin.Context) {
	name := c.Param("name")
	data, err := service.GlobalServices.Logs.Read(name)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidLogName):
			errV2(c, http.StatusBadRequest, CodeInvalidRequest, "Invalid log file name", name)
		case errors.Is(err, os.ErrNotExist):
			errV2(c, http.StatusNotFound, CodeNotFound, "Log file not found", name)
		default:
			errV2(c, http.StatusInternalServerError, CodeInternal, "Failed to read log file", err.Error())
		}
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", data)
}

// ClearLogs deletes every daily log file.
func ClearLogs(c *gin.Context) {
	removed, err := service.GlobalServices.Logs.Clear()
	if err != nil {
		errV2(c, http.StatusInternalServerError, CodeInternal, "Failed to clear log files", err.Error())
		return
	}
	okV2(c, gin.H{"removed": removed})
}

// GetHardening reports whether the web server configuration disables
// error display.
func GetHardening(c *gin.Context) {
	okV2(c, service.GlobalServices.Logs.Hardening())
}

// AdminFailure renders the response of an administrative request whose
// handler panicked.
func AdminFailure(c *gin.Context, exc *core.Exception) {
	errV2(c, http.StatusInternalServerError, CodeInternal, "Internal error", gin.H{
		"message": exc.Message,
		"file":    exc.File,
		"line":    exc.Line,
	})
}
