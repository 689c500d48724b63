package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveHealth(t *testing.T, h *HealthHandler, path string) *httptest.ResponseRecorder {
	t.Helper()
	r := gin.New()
	r.GET("/healthz", h.Liveness)
	r.GET("/readyz", h.Readiness)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealthHandler_Liveness(t *testing.T) {
	w := serveHealth(t, NewHealthHandler("1.2.3"), "/healthz")
	require.Equal(t, http.StatusOK, w.Code)

	var resp LivenessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alive", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
}

func TestHealthHandler_Readiness(t *testing.T) {
	ok := CheckFunc("cache", func(context.Context) error { return nil })
	down := CheckFunc("authority", func(context.Context) error { return stderrors.New("connection refused") })

	t.Run("no checkers", func(t *testing.T) {
		w := serveHealth(t, NewHealthHandler("dev"), "/readyz")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("all healthy", func(t *testing.T) {
		w := serveHealth(t, NewHealthHandler("dev", ok), "/readyz")
		require.Equal(t, http.StatusOK, w.Code)

		var resp ReadinessResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "ready", resp.Status)
		assert.Equal(t, "healthy", resp.Components["cache"].Status)
	})

	t.Run("one unhealthy", func(t *testing.T) {
		w := serveHealth(t, NewHealthHandler("dev", ok, down), "/readyz")
		require.Equal(t, http.StatusServiceUnavailable, w.Code)

		var resp ReadinessResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "not_ready", resp.Status)
		assert.Equal(t, "unhealthy", resp.Components["authority"].Status)
		assert.Equal(t, "connection refused", resp.Components["authority"].Error)
		assert.Equal(t, "healthy", resp.Components["cache"].Status)
	})
}

//Personal.AI order the ending
