package handlers

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const shutdownCodeTTL = 5 * time.Minute

// ShutdownManager holds the one-time code that confirms a remote shutdown.
type ShutdownManager struct {
	mu        sync.RWMutex
	code      string
	expiresAt time.Time
}

var shutdownMgr = &ShutdownManager{}

// Global shutdown channel (must be initialized in main.go)
var shutdownChan chan bool

// SetShutdownChannel sets the shutdown channel
func SetShutdownChannel(ch chan bool) {
	shutdownChan = ch
}

// GenerateShutdownCode creates a shutdown confirmation code
func GenerateShutdownCode(c *gin.Context) {
	shutdownMgr.mu.Lock()
	defer shutdownMgr.mu.Unlock()

	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		errV2(c, http.StatusInternalServerError, CodeInternal, "Failed to generate code", err.Error())
		return
	}

	shutdownMgr.code = fmt.Sprintf("%06d", n.Int64())
	shutdownMgr.expiresAt = time.Now().Add(shutdownCodeTTL)

	okV2(c, gin.H{"code": shutdownMgr.code, "expires_at": shutdownMgr.expiresAt.Unix()})
}

// VerifyAndShutdown validates the confirmation code and shuts the server down
func VerifyAndShutdown(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errV2(c, http.StatusBadRequest, CodeInvalidRequest, "Invalid request", err.Error())
		return
	}

	shutdownMgr.mu.Lock()
	storedCode := shutdownMgr.code
	expired := time.Now().After(shutdownMgr.expiresAt)
	if storedCode != "" && (expired || req.Code == storedCode) {
		// Codes are single use, expired ones are dropped as well
		shutdownMgr.code = ""
	}
	shutdownMgr.mu.Unlock()

	switch {
	case storedCode == "":
		errV2(c, http.StatusBadRequest, CodeInvalidRequest, "No shutdown code generated", nil)
		return
	case expired:
		errV2(c, http.StatusBadRequest, CodeInvalidRequest, "Shutdown code expired", nil)
		return
	case req.Code != storedCode:
		errV2(c, http.StatusBadRequest, CodeInvalidRequest, "Invalid shutdown code", nil)
		return
	}

	okV2(c, gin.H{"ok": true})

	go func() {
		// Give the client time to receive the response
		time.Sleep(500 * time.Millisecond)
		logrus.Warn("Shutdown requested via admin API")
		if shutdownChan != nil {
			shutdownChan <- true
		}
	}()
}
