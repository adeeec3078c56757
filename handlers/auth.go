package handlers

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/botdash/botdash/internal/oidc"
	"github.com/botdash/botdash/internal/sessions"
	"github.com/botdash/botdash/internal/users"
	"github.com/botdash/botdash/pkg/logger"
	"github.com/botdash/botdash/pkg/middleware"
)

// AuthHandler holds dependencies
type AuthHandler struct {
	auth        *oidc.Authenticator
	revocations *sessions.RevocationList
	usersSvc    *users.Service
}

// NewAuthHandler returns a handler. revocations and u may be nil.
func NewAuthHandler(auth *oidc.Authenticator, revocations *sessions.RevocationList, u *users.Service) *AuthHandler {
	return &AuthHandler{auth: auth, revocations: revocations, usersSvc: u}
}

// Register mounts POST /auth/logout on r and GET /me on api. limit runs
// before logout and after authentication on /me.
func (h *AuthHandler) Register(r gin.IRouter, api gin.IRouter, limit ...gin.HandlerFunc) {
	r.POST("/auth/logout", append(slices.Clone(limit), h.Logout)...)
	me := append(gin.HandlersChain{middleware.AuthMiddleware(h.auth)}, limit...)
	api.GET("/me", append(me, h.Me)...)
}

// Logout revokes the presented bearer credential until it expires.
func (h *AuthHandler) Logout(c *gin.Context) {
	raw, ok := middleware.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
		return
	}
	claims, err := h.auth.Inspect(c.Request.Context(), raw)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "details": err.Error()})
		return
	}
	if !h.revocations.Enabled() {
		logger.Warnf("logout for %s not persisted: no revocation store", claims.Subject)
		c.JSON(http.StatusOK, gin.H{"message": "logged out", "revoked": false})
		return
	}
	ttl := time.Until(claims.ExpiresAt())
	if claims.ExpiresAt().IsZero() {
		ttl = 24 * time.Hour
	}
	if err := h.revocations.Revoke(c.Request.Context(), raw, ttl); err != nil {
		logger.Errorf("revoke credential: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke access token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out", "revoked": true})
}

// Me returns the authenticated caller, recording the sign-in when a profile store is configured.
func (h *AuthHandler) Me(c *gin.Context) {
	caller, _ := middleware.CallerFrom(c)
	if h.usersSvc == nil {
		c.JSON(http.StatusOK, gin.H{"id": caller.ID, "email": caller.Email})
		return
	}
	p, err := h.usersSvc.Touch(c.Request.Context(), caller)
	if err != nil {
		logger.Warnf("profile upsert for %s failed: %v", caller.ID, err)
		c.JSON(http.StatusOK, gin.H{"id": caller.ID, "email": caller.Email})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": p.ID, "email": p.Email, "createdAt": p.CreatedAt})
}
