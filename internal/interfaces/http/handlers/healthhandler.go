package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/livedesk/internal/shared/logger"
	"github.com/orris-inc/livedesk/internal/shared/version"
)

const healthCheckTimeout = 2 * time.Second

// Pinger is a dependency the readiness check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// ConnectionCounter reports the websocket connections held by this instance.
type ConnectionCounter interface {
	ConnectionCount() int
}

type HealthHandler struct {
	deps   map[string]Pinger
	conns  ConnectionCounter
	logger logger.Interface
}

// NewHealthHandler builds the health endpoints. conns may be nil.
func NewHealthHandler(deps map[string]Pinger, conns ConnectionCounter, log logger.Interface) *HealthHandler {
	return &HealthHandler{deps: deps, conns: conns, logger: log}
}

// HealthCheck handles GET /health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	body := gin.H{
		"status":  "healthy",
		"service": "livedesk",
	}
	if h.conns != nil {
		body["connections"] = h.conns.ConnectionCount()
	}
	c.JSON(http.StatusOK, body)
}

// Ready handles GET /ready and reports each dependency.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	checks := make(gin.H, len(h.deps))
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			h.logger.Warnw("readiness check failed", "dependency", name, "error", err)
			checks[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	c.JSON(status, gin.H{"checks": checks})
}

// Version handles GET /version
func (h *HealthHandler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, version.Get())
}
