package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// UserHeader carries the authenticated user id set by the auth proxy.
	UserHeader = "X-User-ID"
	actorKey   = "actor"
)

// RequireUser rejects requests without a user identity.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := strings.TrimSpace(c.GetHeader(UserHeader))
		if user == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + UserHeader + " header"})
			return
		}
		c.Set(actorKey, user)
		c.Next()
	}
}

func actor(c *gin.Context) string {
	return c.GetString(actorKey)
}
