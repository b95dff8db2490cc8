package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/orris-inc/livedesk/internal/infrastructure/permission"
	agenthandlers "github.com/orris-inc/livedesk/internal/interfaces/http/handlers/agent"
	"github.com/orris-inc/livedesk/internal/interfaces/http/middleware"
)

type AgentRouteConfig struct {
	AgentHandler         *agenthandlers.AgentHandler
	AuthMiddleware       *middleware.AuthMiddleware
	PermissionMiddleware *middleware.PermissionMiddleware
}

func SetupAgentRoutes(api *gin.RouterGroup, config *AgentRouteConfig) {
	perm := config.PermissionMiddleware

	agents := api.Group("/agents")
	agents.Use(config.AuthMiddleware.RequireAuth())
	{
		agents.POST("",
			perm.RequirePermission(permission.ResourceAgent, permission.ActionProvision),
			config.AgentHandler.ProvisionAgent)
		agents.GET("",
			perm.RequirePermission(permission.ResourceAgent, permission.ActionList),
			config.AgentHandler.ListAgents)

		// /me before /:id
		agents.GET("/me/status",
			perm.RequirePermission(permission.ResourceAgent, permission.ActionRead),
			config.AgentHandler.GetMyStatus)
		agents.PUT("/me/status",
			perm.RequirePermission(permission.ResourceAgent, permission.ActionSetStatus),
			config.AgentHandler.SetMyStatus)

		agents.GET("/:id/status",
			perm.RequirePermission(permission.ResourceAgent, permission.ActionRead),
			config.AgentHandler.GetAgentStatus)
	}
}
