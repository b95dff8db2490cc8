package usecases

import (
	"context"
	"slices"
	"strings"
	"unicode/utf8"

	agentusecases "github.com/orris-inc/livedesk/internal/application/agent/usecases"
	"github.com/orris-inc/livedesk/internal/application/message/dto"
	"github.com/orris-inc/livedesk/internal/domain/conversation"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/domain/shared/realtime"
	"github.com/orris-inc/livedesk/internal/domain/ticket"
	"github.com/orris-inc/livedesk/internal/shared/errors"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

const (
	maxBodyLength      = 4000
	defaultNotifyTitle = "New message"
)

// NewMessageNotifier pushes a stored message to participants who are away
// from the room.
type NewMessageNotifier interface {
	NotifyNewMessage(ctx context.Context, msg *conversation.Message, title string) (int, error)
}

type PostMessageCommand struct {
	RoomID     ids.RoomID
	SenderID   ids.UserID
	SenderName string
	Body       string
}

type PostMessageExecutor interface {
	Execute(ctx context.Context, cmd PostMessageCommand) (*dto.MessageDTO, error)
}

type PostMessageUseCase struct {
	conv        conversation.Store
	tickets     ticket.Repository
	activity    agentusecases.RecordActivityExecutor
	notifier    NewMessageNotifier
	broadcaster realtime.Broadcaster
	logger      logger.Interface
}

func NewPostMessageUseCase(
	conv conversation.Store,
	tickets ticket.Repository,
	activity agentusecases.RecordActivityExecutor,
	notifier NewMessageNotifier,
	broadcaster realtime.Broadcaster,
	logger logger.Interface,
) *PostMessageUseCase {
	return &PostMessageUseCase{
		conv:        conv,
		tickets:     tickets,
		activity:    activity,
		notifier:    notifier,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

func (uc *PostMessageUseCase) Execute(ctx context.Context, cmd PostMessageCommand) (*dto.MessageDTO, error) {
	body := strings.TrimSpace(cmd.Body)
	if err := uc.validateCommand(cmd, body); err != nil {
		return nil, err
	}

	participants, err := uc.conv.ListParticipants(ctx, cmd.RoomID)
	if err != nil {
		uc.logger.Errorw("failed to list participants", "room_id", cmd.RoomID, "error", err)
		return nil, errors.NewInternalError("failed to post message")
	}
	if !slices.Contains(participants, cmd.SenderID) {
		return nil, errors.NewForbiddenError("sender is not a participant of this conversation")
	}

	t, err := uc.tickets.GetByRoomID(ctx, cmd.RoomID)
	switch {
	case err == nil && !t.IsActive():
		return nil, errors.NewConflictError("conversation is closed")
	case err != nil && !errors.IsNotFoundError(err):
		uc.logger.Errorw("failed to get ticket of room", "room_id", cmd.RoomID, "error", err)
		return nil, errors.NewInternalError("failed to post message")
	}

	msg, err := uc.conv.PostMessage(ctx, cmd.RoomID, cmd.SenderID, body)
	if err != nil {
		uc.logger.Errorw("failed to store message", "room_id", cmd.RoomID, "sender_id", cmd.SenderID, "error", err)
		return nil, errors.NewInternalError("failed to post message")
	}

	uc.broadcaster.SendToRoom(ctx, msg.RoomID, realtime.EventMessageNew, msg.Payload())

	// Non-agents are ignored by the activity recorder.
	if err := uc.activity.Execute(ctx, agentusecases.RecordActivityCommand{UserID: cmd.SenderID}); err != nil {
		uc.logger.Warnw("failed to record sender activity", "user_id", cmd.SenderID, "error", err)
	}

	title := cmd.SenderName
	if title == "" {
		title = defaultNotifyTitle
	}
	if _, err := uc.notifier.NotifyNewMessage(ctx, msg, title); err != nil {
		uc.logger.Warnw("failed to notify participants", "message_id", msg.ID, "error", err)
	}

	return dto.ToMessageDTO(msg), nil
}

func (uc *PostMessageUseCase) validateCommand(cmd PostMessageCommand, body string) error {
	if cmd.RoomID == 0 {
		return errors.NewValidationError("room ID is required")
	}

	if cmd.SenderID == 0 {
		return errors.NewValidationError("sender is required")
	}

	if body == "" {
		return errors.NewValidationError("message body is required")
	}

	if utf8.RuneCountInString(body) > maxBodyLength {
		return errors.NewValidationError("message body exceeds maximum length of 4000 characters")
	}

	return nil
}
