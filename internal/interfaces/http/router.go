package http

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/livedesk/internal/interfaces/http/middleware"
	"github.com/orris-inc/livedesk/internal/interfaces/http/routes"
	"github.com/orris-inc/livedesk/internal/shared/goroutine"
)

// SetupRoutes configures all HTTP routes
func (c *Container) SetupRoutes() {
	c.engine.Use(middleware.RequestID())
	c.engine.Use(middleware.CustomLogger(c.log))
	c.engine.Use(middleware.Recovery(c.log))
	c.engine.Use(middleware.SecurityHeaders())
	c.engine.Use(middleware.CORS(c.cfg.Server.AllowedOrigins))

	h := c.hdlrs
	c.engine.GET("/health", h.healthHandler.HealthCheck)
	c.engine.GET("/ready", h.healthHandler.Ready)
	c.engine.GET("/version", h.healthHandler.Version)

	api := c.engine.Group("/api/v1", middleware.APIVersion())

	routes.SetupTicketRoutes(api, &routes.TicketRouteConfig{
		TicketHandler:        h.ticketHandler,
		AuthMiddleware:       c.authMiddleware,
		PermissionMiddleware: c.permissionMiddleware,
	})
	routes.SetupMessageRoutes(api, &routes.MessageRouteConfig{
		MessageHandler:       h.messageHandler,
		TicketHandler:        h.ticketHandler,
		AuthMiddleware:       c.authMiddleware,
		PermissionMiddleware: c.permissionMiddleware,
	})
	routes.SetupAgentRoutes(api, &routes.AgentRouteConfig{
		AgentHandler:         h.agentHandler,
		AuthMiddleware:       c.authMiddleware,
		PermissionMiddleware: c.permissionMiddleware,
	})
	routes.SetupRealtimeRoutes(c.engine, &routes.RealtimeRouteConfig{
		WSHandler:            h.wsHandler,
		AuthMiddleware:       c.authMiddleware,
		PermissionMiddleware: c.permissionMiddleware,
	})
}

// GetEngine returns the Gin engine
func (c *Container) GetEngine() *gin.Engine {
	return c.engine
}

// StartBackground starts the cross-instance relay and the status monitor.
func (c *Container) StartBackground() {
	relayCtx, cancel := context.WithCancel(context.Background())
	c.relayMu.Lock()
	c.relayCancel = cancel
	c.relayMu.Unlock()

	goroutine.SafeGo(c.log, "realtime-relay", func() {
		if err := c.broadcaster.Relay(relayCtx); err != nil && !errors.Is(err, context.Canceled) {
			c.log.Errorw("realtime relay stopped", "error", err)
		}
	})

	c.schedulerManager.Start()
}

// Shutdown stops background work and releases connections. The HTTP server
// must already be shut down.
func (c *Container) Shutdown() {
	if err := c.schedulerManager.Stop(); err != nil {
		c.log.Warnw("failed to stop scheduler", "error", err)
	}

	c.relayMu.Lock()
	if c.relayCancel != nil {
		c.relayCancel()
		c.relayCancel = nil
	}
	c.relayMu.Unlock()

	if c.closePush != nil {
		if err := c.closePush(); err != nil {
			c.log.Warnw("failed to close push sender", "error", err)
		}
	}

	if err := c.redis.Close(); err != nil {
		c.log.Warnw("failed to close redis client", "error", err)
	}
}
