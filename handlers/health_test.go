package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	r := gin.New()
	RegisterHealth(r, time.Now())
	w := call(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", w.Body.String())
}

func TestReady(t *testing.T) {
	var datastoreErr error
	r := gin.New()
	RegisterHealth(r, time.Now(),
		Check{Name: "datastore", Probe: func(context.Context) error { return datastoreErr }},
		Check{Name: "storage", Probe: func(context.Context) error { return nil }},
	)

	w := call(r, http.MethodGet, "/ready", "")
	require.Equal(t, http.StatusOK, w.Code)

	datastoreErr = errors.New("server selection timeout")
	w = call(r, http.MethodGet, "/ready", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body struct {
		Status string          `json:"status"`
		Deps   map[string]bool `json:"deps"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "not_ready", body.Status)
	assert.Equal(t, map[string]bool{"datastore": false, "storage": true}, body.Deps)
}
