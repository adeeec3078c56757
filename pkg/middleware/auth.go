package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/botdash/botdash/internal/chatbot"
)

// CallerKey is the gin context key holding the authenticated *chatbot.Caller.
const CallerKey = "caller"

// Authenticator is the minimal interface the middleware depends on
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*chatbot.Caller, error)
}

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// AuthMiddleware returns a Gin middleware that resolves Bearer credentials to callers
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			return
		}
		token, ok := BearerToken(header)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header"})
			return
		}
		caller, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "details": err.Error()})
			return
		}
		if caller == nil || caller.ID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}
		c.Set(CallerKey, caller)
		c.Next()
	}
}

// CallerFrom returns the caller stored by AuthMiddleware.
func CallerFrom(c *gin.Context) (*chatbot.Caller, bool) {
	v, ok := c.Get(CallerKey)
	if !ok {
		return nil, false
	}
	caller, ok := v.(*chatbot.Caller)
	return caller, ok && caller != nil
}

// limiterKey prefers the authenticated caller, otherwise the client IP.
func limiterKey(c *gin.Context) string {
	if caller, ok := CallerFrom(c); ok {
		return "sub:" + caller.ID
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}
