package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/orris-inc/livedesk/internal/infrastructure/permission"
	tickethandlers "github.com/orris-inc/livedesk/internal/interfaces/http/handlers/ticket"
	"github.com/orris-inc/livedesk/internal/interfaces/http/middleware"
)

type TicketRouteConfig struct {
	TicketHandler        *tickethandlers.TicketHandler
	AuthMiddleware       *middleware.AuthMiddleware
	PermissionMiddleware *middleware.PermissionMiddleware
}

func SetupTicketRoutes(api *gin.RouterGroup, config *TicketRouteConfig) {
	perm := config.PermissionMiddleware

	tickets := api.Group("/tickets")
	tickets.Use(config.AuthMiddleware.RequireAuth())
	{
		tickets.POST("",
			perm.RequirePermission(permission.ResourceTicket, permission.ActionOpen),
			config.TicketHandler.OpenTicket)

		// Action endpoints before the bare /:id route
		tickets.POST("/:id/transfer",
			perm.RequirePermission(permission.ResourceTicket, permission.ActionTransfer),
			config.TicketHandler.TransferTicket)
		tickets.POST("/:id/close",
			perm.RequirePermission(permission.ResourceTicket, permission.ActionClose),
			config.TicketHandler.CloseTicket)

		tickets.GET("/:id",
			perm.RequirePermission(permission.ResourceTicket, permission.ActionRead),
			config.TicketHandler.GetTicket)
	}
}
