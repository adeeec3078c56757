package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Check probes one dependency for the readiness endpoint.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// RegisterHealth registers /health (liveness) and /ready, which returns 200
// only when every check passes.
func RegisterHealth(r gin.IRouter, started time.Time, checks ...Check) {
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		ready := true
		deps := map[string]bool{}
		for _, chk := range checks {
			ok := chk.Probe(ctx) == nil
			deps[chk.Name] = ok
			ready = ready && ok
		}
		status, code := "ready", http.StatusOK
		if !ready {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(started).String()})
	})
}
