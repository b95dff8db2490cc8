package usecases

import (
	"context"

	"github.com/orris-inc/livedesk/internal/application/ticket/dto"
	"github.com/orris-inc/livedesk/internal/domain/agent"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/domain/ticket"
	"github.com/orris-inc/livedesk/internal/shared/errors"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

// GetTicketQuery looks a ticket up by id, or by its chat room when TicketID
// is 0. Non-staff viewers only see their own tickets.
type GetTicketQuery struct {
	TicketID ids.TicketID
	RoomID   ids.RoomID
	ViewerID ids.UserID
	IsStaff  bool
}

type GetTicketUseCase struct {
	tickets ticket.Repository
	agents  agent.Repository
	logger  logger.Interface
}

func NewGetTicketUseCase(tickets ticket.Repository, agents agent.Repository, logger logger.Interface) *GetTicketUseCase {
	return &GetTicketUseCase{
		tickets: tickets,
		agents:  agents,
		logger:  logger,
	}
}

func (uc *GetTicketUseCase) Execute(ctx context.Context, query GetTicketQuery) (*dto.TicketDTO, error) {
	if query.TicketID == 0 && query.RoomID == 0 {
		return nil, errors.NewValidationError("ticket ID or room ID is required")
	}

	var (
		t   *ticket.SupportTicket
		err error
	)
	if query.TicketID != 0 {
		t, err = uc.tickets.GetByID(ctx, query.TicketID)
	} else {
		t, err = uc.tickets.GetByRoomID(ctx, query.RoomID)
	}
	if err != nil {
		if errors.IsNotFoundError(err) {
			return nil, errors.NewNotFoundError("ticket not found")
		}
		uc.logger.Errorw("failed to get ticket", "ticket_id", query.TicketID, "room_id", query.RoomID, "error", err)
		return nil, errors.NewInternalError("failed to get ticket")
	}

	if !query.IsStaff && t.RequesterID() != query.ViewerID {
		// Hide existence from other customers.
		return nil, errors.NewNotFoundError("ticket not found")
	}

	var assignee *agent.Agent
	if id := t.AssignedAgentID(); id != nil {
		assignee, err = uc.agents.GetByID(ctx, *id)
		if err != nil && !errors.IsNotFoundError(err) {
			uc.logger.Warnw("failed to load ticket assignee", "ticket_id", t.ID(), "agent_id", *id, "error", err)
		}
	}
	return dto.ToTicketDTO(t, assignee), nil
}
