package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AdminUser is the only account accepted by AdminAuth.
const AdminUser = "admin"

// AdminAuth protects the admin API with HTTP basic auth against a bcrypt
// hash. An empty hash disables the check.
func AdminAuth(passwordHash string) gin.HandlerFunc {
	hash := []byte(passwordHash)
	return func(c *gin.Context) {
		if len(hash) == 0 {
			c.Next()
			return
		}

		user, password, ok := c.Request.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(AdminUser)) != 1 ||
			bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
			c.Header("WWW-Authenticate", `Basic realm="errorshield"`)
			errV2(c, http.StatusUnauthorized, CodeUnauthorized, "Authentication required", nil)
			return
		}
		c.Next()
	}
}

// HashPassword returns the bcrypt hash to put into ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
