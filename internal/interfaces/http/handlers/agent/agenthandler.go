// Package agent serves agent provisioning and availability endpoints.
package agent

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/livedesk/internal/application/agent/usecases"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/interfaces/http/middleware"
	"github.com/orris-inc/livedesk/internal/shared/logger"
	"github.com/orris-inc/livedesk/internal/shared/utils"
)

type AgentHandler struct {
	provisionUC usecases.ProvisionAgentExecutor
	setStatusUC usecases.SetAgentStatusExecutor
	getStatusUC usecases.GetAgentStatusExecutor
	listUC      usecases.ListAgentsExecutor
	logger      logger.Interface
}

func NewAgentHandler(
	provisionUC usecases.ProvisionAgentExecutor,
	setStatusUC usecases.SetAgentStatusExecutor,
	getStatusUC usecases.GetAgentStatusExecutor,
	listUC usecases.ListAgentsExecutor,
	logger logger.Interface,
) *AgentHandler {
	return &AgentHandler{
		provisionUC: provisionUC,
		setStatusUC: setStatusUC,
		getStatusUC: getStatusUC,
		listUC:      listUC,
		logger:      logger,
	}
}

// ProvisionAgent handles POST /agents
func (h *AgentHandler) ProvisionAgent(c *gin.Context) {
	var req ProvisionAgentRequest
	if err := utils.BindJSON(c, &req); err != nil {
		h.logger.Warnw("invalid request body for provision agent", "error", err)
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.provisionUC.Execute(c.Request.Context(), req.ToCommand())
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.CreatedResponse(c, result, "Agent provisioned successfully")
}

// ListAgents handles GET /agents
func (h *AgentHandler) ListAgents(c *gin.Context) {
	result, err := h.listUC.Execute(c.Request.Context())
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}

// GetMyStatus handles GET /agents/me/status
func (h *AgentHandler) GetMyStatus(c *gin.Context) {
	userID, _, ok := middleware.CurrentUser(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "user not authenticated")
		return
	}
	h.getStatus(c, usecases.GetAgentStatusQuery{UserID: userID})
}

// GetAgentStatus handles GET /agents/:id/status
func (h *AgentHandler) GetAgentStatus(c *gin.Context) {
	agentID, err := utils.ParseUintParam(c, "id", "agent")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	h.getStatus(c, usecases.GetAgentStatusQuery{AgentID: ids.AgentID(agentID)})
}

func (h *AgentHandler) getStatus(c *gin.Context, query usecases.GetAgentStatusQuery) {
	result, err := h.getStatusUC.Execute(c.Request.Context(), query)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}

// SetMyStatus handles PUT /agents/me/status
func (h *AgentHandler) SetMyStatus(c *gin.Context) {
	userID, _, ok := middleware.CurrentUser(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "user not authenticated")
		return
	}

	var req SetStatusRequest
	if err := utils.BindJSON(c, &req); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.setStatusUC.Execute(c.Request.Context(), usecases.SetAgentStatusCommand{
		UserID: userID,
		Status: req.Status,
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Status updated", SetStatusResponse{
		AgentID:           result.AgentID,
		Previous:          result.Previous,
		Status:            result.Status,
		TicketsReassigned: result.TicketsReassigned,
	})
}
