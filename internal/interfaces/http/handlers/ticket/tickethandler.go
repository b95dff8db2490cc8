// Package ticket serves the support ticket endpoints.
package ticket

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/livedesk/internal/application/ticket/usecases"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/interfaces/http/middleware"
	sharedauth "github.com/orris-inc/livedesk/internal/shared/auth"
	"github.com/orris-inc/livedesk/internal/shared/logger"
	"github.com/orris-inc/livedesk/internal/shared/utils"
)

type TicketHandler struct {
	openTicketUC     usecases.OpenTicketExecutor
	transferTicketUC usecases.TransferTicketExecutor
	closeTicketUC    usecases.CloseTicketExecutor
	getTicketUC      usecases.GetTicketExecutor
	logger           logger.Interface
}

func NewTicketHandler(
	openTicketUC usecases.OpenTicketExecutor,
	transferTicketUC usecases.TransferTicketExecutor,
	closeTicketUC usecases.CloseTicketExecutor,
	getTicketUC usecases.GetTicketExecutor,
	logger logger.Interface,
) *TicketHandler {
	return &TicketHandler{
		openTicketUC:     openTicketUC,
		transferTicketUC: transferTicketUC,
		closeTicketUC:    closeTicketUC,
		getTicketUC:      getTicketUC,
		logger:           logger,
	}
}

// OpenTicket handles POST /tickets
func (h *TicketHandler) OpenTicket(c *gin.Context) {
	userID, role, ok := middleware.CurrentUser(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "user not authenticated")
		return
	}

	var req OpenTicketRequest
	if err := utils.BindOptionalJSON(c, &req); err != nil {
		h.logger.Warnw("invalid request body for open ticket", "error", err)
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.openTicketUC.Execute(c.Request.Context(), req.ToCommand(userID, sharedauth.IsGuest(role)))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.CreatedResponse(c, result, "Ticket opened successfully")
}

// GetTicket handles GET /tickets/:id
func (h *TicketHandler) GetTicket(c *gin.Context) {
	ticketID, err := utils.ParseUintParam(c, "id", "ticket")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	h.getTicket(c, usecases.GetTicketQuery{TicketID: ids.TicketID(ticketID)})
}

// GetRoomTicket handles GET /rooms/:room_id/ticket
func (h *TicketHandler) GetRoomTicket(c *gin.Context) {
	roomID, err := utils.ParseUintParam(c, "room_id", "room")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}
	h.getTicket(c, usecases.GetTicketQuery{RoomID: ids.RoomID(roomID)})
}

func (h *TicketHandler) getTicket(c *gin.Context, query usecases.GetTicketQuery) {
	userID, role, ok := middleware.CurrentUser(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "user not authenticated")
		return
	}
	query.ViewerID = userID
	query.IsStaff = sharedauth.IsStaff(role)

	result, err := h.getTicketUC.Execute(c.Request.Context(), query)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}

// TransferTicket handles POST /tickets/:id/transfer
func (h *TicketHandler) TransferTicket(c *gin.Context) {
	userID, _, ok := middleware.CurrentUser(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "user not authenticated")
		return
	}

	ticketID, err := utils.ParseUintParam(c, "id", "ticket")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	var req TransferTicketRequest
	if err := utils.BindOptionalJSON(c, &req); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	cmd := usecases.TransferTicketCommand{
		TicketID:    ids.TicketID(ticketID),
		RequestedBy: userID,
	}
	if req.ToAgentID != nil {
		cmd.ToAgentID = ids.AgentIDPtr(ids.AgentID(*req.ToAgentID))
	}

	result, err := h.transferTicketUC.Execute(c.Request.Context(), cmd)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Ticket transferred successfully", result)
}

// CloseTicket handles POST /tickets/:id/close
func (h *TicketHandler) CloseTicket(c *gin.Context) {
	userID, role, ok := middleware.CurrentUser(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "user not authenticated")
		return
	}

	ticketID, err := utils.ParseUintParam(c, "id", "ticket")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.closeTicketUC.Execute(c.Request.Context(), usecases.CloseTicketCommand{
		TicketID: ids.TicketID(ticketID),
		ClosedBy: userID,
		IsStaff:  sharedauth.IsStaff(role),
	})
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Ticket closed successfully", CloseTicketResponse{
		TicketID: result.TicketID,
		Status:   result.Status,
		ClosedAt: result.ClosedAt.UTC().Format(time.RFC3339),
	})
}
