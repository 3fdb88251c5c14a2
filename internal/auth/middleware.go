// internal/auth/middleware.go
package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const emailKey = "email"

// Middleware resolves the bearer identity and stores it on the context.
// Requests without a valid token are rejected with 401.
func Middleware(a *Auth) gin.HandlerFunc {
	return func(c *gin.Context) {
		email := identityFromHeader(a, c.GetHeader("Authorization"))
		if email == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "Unauthorized"})
			return
		}
		c.Set(emailKey, email)
		c.Next()
	}
}

// EmailFromContext returns the authenticated email, if any.
func EmailFromContext(c *gin.Context) string {
	v, _ := c.Get(emailKey)
	email, _ := v.(string)
	return email
}

func identityFromHeader(a *Auth, header string) string {
	if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	return a.Identity(strings.TrimSpace(parts[1]))
}
