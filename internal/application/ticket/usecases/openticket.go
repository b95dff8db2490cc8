package usecases

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/orris-inc/livedesk/internal/application/assignment"
	"github.com/orris-inc/livedesk/internal/application/ticket/dto"
	"github.com/orris-inc/livedesk/internal/domain/conversation"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/domain/shared/realtime"
	"github.com/orris-inc/livedesk/internal/domain/ticket"
	"github.com/orris-inc/livedesk/internal/shared/biztime"
	"github.com/orris-inc/livedesk/internal/shared/db"
	"github.com/orris-inc/livedesk/internal/shared/errors"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

const (
	defaultSubject   = "Support request"
	maxSubjectLength = 200

	defaultBotGreeting = "Hi! All of our agents are busy at the moment. I will keep you company and a member of the team will join as soon as one is free."
)

type OpenTicketCommand struct {
	RequesterID    ids.UserID
	Guest          bool
	Subject        string
	RegionID       *ids.RegionID
	InitialMessage string
}

type OpenTicketUseCase struct {
	tickets     ticket.Repository
	conv        conversation.Store
	router      TicketRouter
	responder   BotResponder
	broadcaster realtime.Broadcaster
	txm         db.Transactor
	clock       biztime.Clock
	logger      logger.Interface
}

// NewOpenTicketUseCase wires the use case. responder may be nil, in which
// case bots greet with a fixed text.
func NewOpenTicketUseCase(
	tickets ticket.Repository,
	conv conversation.Store,
	router TicketRouter,
	responder BotResponder,
	broadcaster realtime.Broadcaster,
	txm db.Transactor,
	clock biztime.Clock,
	logger logger.Interface,
) *OpenTicketUseCase {
	return &OpenTicketUseCase{
		tickets:     tickets,
		conv:        conv,
		router:      router,
		responder:   responder,
		broadcaster: broadcaster,
		txm:         txm,
		clock:       clock,
		logger:      logger,
	}
}

func (uc *OpenTicketUseCase) Execute(ctx context.Context, cmd OpenTicketCommand) (*dto.TicketDTO, error) {
	uc.logger.Infow("executing open ticket use case", "requester_id", cmd.RequesterID, "guest", cmd.Guest)

	if err := uc.validateCommand(cmd); err != nil {
		uc.logger.Errorw("invalid open ticket command", "error", err)
		return nil, err
	}

	subject := strings.TrimSpace(cmd.Subject)
	if subject == "" {
		subject = defaultSubject
	}

	var (
		t     *ticket.SupportTicket
		first *conversation.Message
	)
	err := uc.txm.RunInTransaction(ctx, func(txCtx context.Context) error {
		roomID, err := uc.conv.CreateRoom(txCtx, subject)
		if err != nil {
			return err
		}

		t, err = ticket.NewSupportTicket(cmd.RequesterID, cmd.Guest, subject, cmd.RegionID, roomID, uc.clock.Now())
		if err != nil {
			return errors.NewValidationError(err.Error())
		}
		if err := uc.tickets.Create(txCtx, t); err != nil {
			return err
		}
		if err := uc.conv.AddParticipant(txCtx, roomID, cmd.RequesterID); err != nil {
			return err
		}

		if body := strings.TrimSpace(cmd.InitialMessage); body != "" {
			first, err = uc.conv.PostMessage(txCtx, roomID, cmd.RequesterID, body)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.IsValidationError(err) {
			return nil, err
		}
		uc.logger.Errorw("failed to open ticket", "requester_id", cmd.RequesterID, "error", err)
		return nil, errors.NewInternalError("failed to open ticket")
	}

	if first != nil {
		uc.broadcaster.SendToRoom(ctx, first.RoomID, realtime.EventMessageNew, first.Payload())
	}

	result, err := uc.router.AssignTicket(ctx, t.ID())
	if err != nil {
		// The ticket stays open and unassigned; the status sweep retries it.
		uc.logger.Errorw("failed to assign new ticket", "ticket_id", t.ID(), "error", err)
		return dto.ToTicketDTO(t, nil), nil
	}

	if result.Agent != nil && result.Agent.IsBot() {
		uc.greet(ctx, t, result)
	}

	uc.logger.Infow("ticket opened",
		"ticket_id", t.ID(),
		"room_id", t.ChatRoomID(),
		"assigned", result.Agent != nil,
	)

	out := dto.ToTicketDTO(t, result.Agent)
	out.Status = result.Status
	if result.Agent != nil {
		agentID := result.Agent.ID()
		out.AssignedAgentID = &agentID
		out.AgentName = result.Agent.DisplayName()
		out.AgentIsBot = result.Agent.IsBot()
	}
	return out, nil
}

// greet posts the bot's opening message. Failures only cost the greeting.
func (uc *OpenTicketUseCase) greet(ctx context.Context, t *ticket.SupportTicket, result *assignment.Assignment) {
	bot := result.Agent
	body := defaultBotGreeting
	if uc.responder != nil {
		text, err := uc.responder.Greeting(ctx, GreetingRequest{
			Subject: t.Subject(),
			Guest:   t.IsGuest(),
			BotName: bot.DisplayName(),
		})
		if err != nil {
			uc.logger.Warnw("bot responder failed, using default greeting", "ticket_id", t.ID(), "error", err)
		} else if text = strings.TrimSpace(text); text != "" {
			body = text
		}
	}

	msg, err := uc.conv.PostMessage(ctx, t.ChatRoomID(), bot.UserID(), body)
	if err != nil {
		uc.logger.Warnw("failed to post bot greeting", "ticket_id", t.ID(), "error", err)
		return
	}
	uc.broadcaster.SendToRoom(ctx, msg.RoomID, realtime.EventMessageNew, msg.Payload())
}

func (uc *OpenTicketUseCase) validateCommand(cmd OpenTicketCommand) error {
	if cmd.RequesterID == 0 {
		return errors.NewValidationError("requester is required")
	}

	if utf8.RuneCountInString(cmd.Subject) > maxSubjectLength {
		return errors.NewValidationError("subject exceeds maximum length of 200 characters")
	}

	return nil
}
