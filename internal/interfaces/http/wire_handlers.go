package http

import (
	"context"

	"github.com/orris-inc/livedesk/internal/interfaces/http/handlers"
	agentHandlers "github.com/orris-inc/livedesk/internal/interfaces/http/handlers/agent"
	messageHandlers "github.com/orris-inc/livedesk/internal/interfaces/http/handlers/message"
	realtimeHandlers "github.com/orris-inc/livedesk/internal/interfaces/http/handlers/realtime"
	ticketHandlers "github.com/orris-inc/livedesk/internal/interfaces/http/handlers/ticket"
)

// allHandlers holds all HTTP handler instances used by the application.
type allHandlers struct {
	healthHandler  *handlers.HealthHandler
	ticketHandler  *ticketHandlers.TicketHandler
	agentHandler   *agentHandlers.AgentHandler
	messageHandler *messageHandlers.MessageHandler
	wsHandler      *realtimeHandlers.WSHandler
}

func (c *Container) newHandlers() *allHandlers {
	ucs := c.ucs
	log := c.log

	return &allHandlers{
		healthHandler: handlers.NewHealthHandler(map[string]handlers.Pinger{
			"database": handlers.PingFunc(func(ctx context.Context) error {
				sqlDB, err := c.db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			}),
			"redis": handlers.PingFunc(func(ctx context.Context) error {
				return c.redis.Ping(ctx).Err()
			}),
		}, c.hub, log),
		ticketHandler: ticketHandlers.NewTicketHandler(
			ucs.openTicketUC, ucs.transferTicketUC, ucs.closeTicketUC, ucs.getTicketUC, log,
		),
		agentHandler: agentHandlers.NewAgentHandler(
			ucs.provisionAgentUC, ucs.setAgentStatusUC, ucs.getAgentStatusUC, ucs.listAgentsUC, log,
		),
		messageHandler: messageHandlers.NewMessageHandler(ucs.postMessageUC, c.tracker, ucs.recordActivityUC, log),
		wsHandler: realtimeHandlers.NewWSHandler(
			c.hub, c.presence, c.tracker, ucs.recordActivityUC, c.cfg.Server.AllowedOrigins, log.Named("realtime.ws"),
		),
	}
}
