package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/orris-inc/livedesk/internal/infrastructure/permission"
	messagehandlers "github.com/orris-inc/livedesk/internal/interfaces/http/handlers/message"
	tickethandlers "github.com/orris-inc/livedesk/internal/interfaces/http/handlers/ticket"
	"github.com/orris-inc/livedesk/internal/interfaces/http/middleware"
)

type MessageRouteConfig struct {
	MessageHandler       *messagehandlers.MessageHandler
	TicketHandler        *tickethandlers.TicketHandler
	AuthMiddleware       *middleware.AuthMiddleware
	PermissionMiddleware *middleware.PermissionMiddleware
}

func SetupMessageRoutes(api *gin.RouterGroup, config *MessageRouteConfig) {
	perm := config.PermissionMiddleware
	ack := perm.RequirePermission(permission.ResourceDelivery, permission.ActionAck)

	rooms := api.Group("/rooms/:room_id")
	rooms.Use(config.AuthMiddleware.RequireAuth())
	{
		rooms.GET("/ticket",
			perm.RequirePermission(permission.ResourceTicket, permission.ActionRead),
			config.TicketHandler.GetRoomTicket)
		rooms.POST("/messages",
			perm.RequirePermission(permission.ResourceMessage, permission.ActionPost),
			config.MessageHandler.PostMessage)
		rooms.POST("/read", ack, config.MessageHandler.MarkRoomRead)
	}

	messages := api.Group("/messages/:id")
	messages.Use(config.AuthMiddleware.RequireAuth())
	{
		messages.POST("/delivered", ack, config.MessageHandler.AcknowledgeDelivered)
		messages.POST("/read", ack, config.MessageHandler.AcknowledgeRead)
		messages.GET("/status", ack, config.MessageHandler.GetMyStatus)
		messages.GET("/receipts",
			perm.RequirePermission(permission.ResourceDelivery, permission.ActionRead),
			config.MessageHandler.ListReceipts)
	}
}
