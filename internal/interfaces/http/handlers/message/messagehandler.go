// Package message serves posting messages and delivery acknowledgements.
package message

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	agentusecases "github.com/orris-inc/livedesk/internal/application/agent/usecases"
	"github.com/orris-inc/livedesk/internal/application/message/usecases"
	domain "github.com/orris-inc/livedesk/internal/domain/delivery"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/interfaces/http/middleware"
	"github.com/orris-inc/livedesk/internal/shared/errors"
	"github.com/orris-inc/livedesk/internal/shared/logger"
	"github.com/orris-inc/livedesk/internal/shared/utils"
)

// DeliveryTracker is the part of the delivery tracker the handlers drive.
type DeliveryTracker interface {
	AcknowledgeDelivered(ctx context.Context, messageID ids.MessageID, userID ids.UserID) (bool, error)
	AcknowledgeRead(ctx context.Context, messageID ids.MessageID, userID ids.UserID) (bool, error)
	MarkRoomRead(ctx context.Context, userID ids.UserID, roomID ids.RoomID) (int, error)
	GetStatus(ctx context.Context, messageID ids.MessageID, recipientID ids.UserID) (domain.State, error)
	ListRecipients(ctx context.Context, messageID ids.MessageID) ([]*domain.Status, error)
}

type MessageHandler struct {
	postUC   usecases.PostMessageExecutor
	tracker  DeliveryTracker
	activity agentusecases.RecordActivityExecutor
	logger   logger.Interface
}

func NewMessageHandler(
	postUC usecases.PostMessageExecutor,
	tracker DeliveryTracker,
	activity agentusecases.RecordActivityExecutor,
	logger logger.Interface,
) *MessageHandler {
	return &MessageHandler{
		postUC:   postUC,
		tracker:  tracker,
		activity: activity,
		logger:   logger,
	}
}

// PostMessage handles POST /rooms/:room_id/messages
func (h *MessageHandler) PostMessage(c *gin.Context) {
	userID, _, ok := middleware.CurrentUser(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "user not authenticated")
		return
	}

	roomID, err := utils.ParseUintParam(c, "room_id", "room")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	var req PostMessageRequest
	if err := utils.BindJSON(c, &req); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.postUC.Execute(c.Request.Context(), req.ToCommand(ids.RoomID(roomID), userID))
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.CreatedResponse(c, result, "Message posted")
}

// MarkRoomRead handles POST /rooms/:room_id/read
func (h *MessageHandler) MarkRoomRead(c *gin.Context) {
	userID, _, ok := middleware.CurrentUser(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "user not authenticated")
		return
	}

	roomID, err := utils.ParseUintParam(c, "room_id", "room")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	marked, err := h.tracker.MarkRoomRead(c.Request.Context(), userID, ids.RoomID(roomID))
	if err != nil {
		h.logger.Errorw("failed to mark room read", "room_id", roomID, "user_id", userID, "error", err)
		utils.ErrorResponseWithError(c, err)
		return
	}
	h.recordActivity(c.Request.Context(), userID)

	utils.SuccessResponse(c, http.StatusOK, "", MarkRoomReadResponse{RoomID: ids.RoomID(roomID), Marked: marked})
}

// AcknowledgeDelivered handles POST /messages/:id/delivered
func (h *MessageHandler) AcknowledgeDelivered(c *gin.Context) {
	h.acknowledge(c, h.tracker.AcknowledgeDelivered, false)
}

// AcknowledgeRead handles POST /messages/:id/read
func (h *MessageHandler) AcknowledgeRead(c *gin.Context) {
	h.acknowledge(c, h.tracker.AcknowledgeRead, true)
}

type ackFunc func(ctx context.Context, messageID ids.MessageID, userID ids.UserID) (bool, error)

func (h *MessageHandler) acknowledge(c *gin.Context, ack ackFunc, isRead bool) {
	userID, _, ok := middleware.CurrentUser(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "user not authenticated")
		return
	}

	messageID, err := utils.ParseUintParam(c, "id", "message")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	changed, err := ack(c.Request.Context(), ids.MessageID(messageID), userID)
	if err != nil {
		h.logger.Errorw("failed to acknowledge message", "message_id", messageID, "user_id", userID, "read", isRead, "error", err)
		utils.ErrorResponseWithError(c, err)
		return
	}
	if isRead {
		h.recordActivity(c.Request.Context(), userID)
	}

	utils.SuccessResponse(c, http.StatusOK, "", AckResponse{MessageID: ids.MessageID(messageID), Changed: changed})
}

// GetMyStatus handles GET /messages/:id/status
func (h *MessageHandler) GetMyStatus(c *gin.Context) {
	userID, _, ok := middleware.CurrentUser(c)
	if !ok {
		utils.ErrorResponse(c, http.StatusUnauthorized, "user not authenticated")
		return
	}

	messageID, err := utils.ParseUintParam(c, "id", "message")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	state, err := h.tracker.GetStatus(c.Request.Context(), ids.MessageID(messageID), userID)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", StatusResponse{
		MessageID:   ids.MessageID(messageID),
		RecipientID: userID,
		Status:      state.String(),
	})
}

// ListReceipts handles GET /messages/:id/receipts
func (h *MessageHandler) ListReceipts(c *gin.Context) {
	messageID, err := utils.ParseUintParam(c, "id", "message")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	statuses, err := h.tracker.ListRecipients(c.Request.Context(), ids.MessageID(messageID))
	if err != nil {
		if !errors.IsNotFoundError(err) {
			h.logger.Errorw("failed to list receipts", "message_id", messageID, "error", err)
		}
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", toReceiptResponses(statuses))
}

// Reading counts as agent activity; the recorder ignores non-agents.
func (h *MessageHandler) recordActivity(ctx context.Context, userID ids.UserID) {
	if err := h.activity.Execute(ctx, agentusecases.RecordActivityCommand{UserID: userID}); err != nil {
		h.logger.Warnw("failed to record reader activity", "user_id", userID, "error", err)
	}
}
