package http

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/BioMapper/internal/interfaces/http/middleware"
	"github.com/turtacn/BioMapper/internal/testutil"
)

func TestServer_ServeAndStop(t *testing.T) {
	r, _ := newTestRouter(t, middleware.DefaultRateLimitConfig())
	logger := testutil.NewMockLogger()
	srv := NewServer(ServerConfig{ShutdownTimeout: 5 * time.Second}, r, logger)
	assert.Equal(t, http.Handler(r), srv.Handler())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"alive"`)

	require.NoError(t, srv.Stop(context.Background()))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.True(t, logger.HasMessage("info", "HTTP server listening"))
	assert.True(t, logger.HasMessage("info", "HTTP server stopped"))
}

func TestServer_StartFailsOnBusyAddress(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	srv := NewServer(ServerConfig{ListenAddr: ln.Addr().String()}, http.NotFoundHandler(), nil)
	err = srv.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COMMON_008")
}

//Personal.AI order the ending
