package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	ContextAuthenticated = "authenticated"
	errCodeUnauthorized  = "ERR_UNAUTHORIZED"
)

type TokenAuthConfig struct {
	// Token is the shared control plane token. Empty disables auth.
	Token string
}

// TokenAuth checks the bearer token, or the ?token= query for event streams
// opened by clients that cannot set headers.
func TokenAuth(config TokenAuthConfig) gin.HandlerFunc {
	if config.Token == "" {
		slog.Info("control plane auth disabled")
		return func(c *gin.Context) {
			c.Next()
		}
	}
	slog.Info("control plane auth enabled")

	want := []byte(config.Token)
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			token = c.Query("token")
		}

		if subtle.ConstantTimeCompare([]byte(token), want) != 1 {
			slog.Debug("control plane auth rejected", "ip", c.ClientIP(), "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":  errCodeUnauthorized,
				"error": "unauthorized",
			})
			return
		}

		c.Set(ContextAuthenticated, true)
		c.Next()
	}
}
