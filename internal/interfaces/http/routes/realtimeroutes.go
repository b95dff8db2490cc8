package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/orris-inc/livedesk/internal/infrastructure/permission"
	realtimehandlers "github.com/orris-inc/livedesk/internal/interfaces/http/handlers/realtime"
	"github.com/orris-inc/livedesk/internal/interfaces/http/middleware"
)

type RealtimeRouteConfig struct {
	WSHandler            *realtimehandlers.WSHandler
	AuthMiddleware       *middleware.AuthMiddleware
	PermissionMiddleware *middleware.PermissionMiddleware
}

// SetupRealtimeRoutes registers the chat websocket. Browsers cannot set
// headers on the upgrade request, so the token may come as access_token.
func SetupRealtimeRoutes(engine *gin.Engine, config *RealtimeRouteConfig) {
	engine.GET("/ws",
		config.AuthMiddleware.RequireAuth(),
		config.PermissionMiddleware.RequirePermission(permission.ResourceRealtime, permission.ActionConnect),
		config.WSHandler.Connect)
}
