package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/livedesk/internal/interfaces/http/handlers/testutil"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

func TestHealthHandler_Ready(t *testing.T) {
	ok := PingFunc(func(ctx context.Context) error { return nil })
	down := PingFunc(func(ctx context.Context) error { return errors.New("connection refused") })

	t.Run("all dependencies up", func(t *testing.T) {
		handler := NewHealthHandler(map[string]Pinger{"database": ok, "redis": ok}, nil, logger.NewNopLogger())
		c, w := testutil.NewTestContext(http.MethodGet, "/ready", nil)
		handler.Ready(c)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("one dependency down", func(t *testing.T) {
		handler := NewHealthHandler(map[string]Pinger{"database": ok, "redis": down}, nil, logger.NewNopLogger())
		c, w := testutil.NewTestContext(http.MethodGet, "/ready", nil)
		handler.Ready(c)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var body struct {
			Checks map[string]string `json:"checks"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "ok", body.Checks["database"])
		assert.Equal(t, "unavailable", body.Checks["redis"])
	})
}

type fixedConnections int

func (n fixedConnections) ConnectionCount() int { return int(n) }

func TestHealthHandler_HealthCheck(t *testing.T) {
	handler := NewHealthHandler(nil, fixedConnections(3), logger.NewNopLogger())
	c, w := testutil.NewTestContext(http.MethodGet, "/health", nil)
	handler.HealthCheck(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, 3, body.Connections)
}

func TestHealthHandler_Version(t *testing.T) {
	handler := NewHealthHandler(nil, nil, logger.NewNopLogger())
	c, w := testutil.NewTestContext(http.MethodGet, "/version", nil)
	handler.Version(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version":"dev"`)
}
