package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const adminKey = "admin"

// BearerAuth marks requests carrying "Authorization: Bearer <token>" as admin.
// It never rejects; RequireAdmin does.
func BearerAuth(token string) gin.HandlerFunc {
	want := []byte(token)
	return func(c *gin.Context) {
		if len(want) > 0 {
			got, ok := bearer(c.GetHeader("Authorization"))
			if ok && subtle.ConstantTimeCompare([]byte(got), want) == 1 {
				c.Set(adminKey, true)
			}
		}
		c.Next()
	}
}

// RequireAdmin aborts with 401 unless BearerAuth accepted the request.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			c.Header("WWW-Authenticate", `Bearer realm="comicbot"`)
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "admin token required")
			return
		}
		c.Next()
	}
}

// IsAdmin reports whether the request authenticated with the admin token.
func IsAdmin(c *gin.Context) bool {
	return c.GetBool(adminKey)
}

func bearer(h string) (string, bool) {
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}
