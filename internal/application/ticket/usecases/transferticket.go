package usecases

import (
	"context"

	"github.com/orris-inc/livedesk/internal/application/ticket/dto"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/domain/ticket"
	"github.com/orris-inc/livedesk/internal/shared/errors"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

// TransferTicketCommand moves a ticket to ToAgentID, or to the best other
// available agent when ToAgentID is nil.
type TransferTicketCommand struct {
	TicketID    ids.TicketID
	ToAgentID   *ids.AgentID
	RequestedBy ids.UserID
}

type TransferTicketUseCase struct {
	tickets ticket.Repository
	router  TicketRouter
	logger  logger.Interface
}

func NewTransferTicketUseCase(tickets ticket.Repository, router TicketRouter, logger logger.Interface) *TransferTicketUseCase {
	return &TransferTicketUseCase{
		tickets: tickets,
		router:  router,
		logger:  logger,
	}
}

func (uc *TransferTicketUseCase) Execute(ctx context.Context, cmd TransferTicketCommand) (*dto.TicketDTO, error) {
	uc.logger.Infow("executing transfer ticket use case",
		"ticket_id", cmd.TicketID,
		"to_agent_id", cmd.ToAgentID,
		"requested_by", cmd.RequestedBy,
	)

	if cmd.TicketID == 0 {
		return nil, errors.NewValidationError("ticket ID is required")
	}
	if cmd.ToAgentID != nil && *cmd.ToAgentID == 0 {
		return nil, errors.NewValidationError("target agent ID must be positive")
	}

	result, err := uc.router.TransferTicket(ctx, cmd.TicketID, cmd.ToAgentID)
	if err != nil {
		if errors.GetAppError(err) != nil {
			return nil, err
		}
		uc.logger.Errorw("failed to transfer ticket", "ticket_id", cmd.TicketID, "error", err)
		return nil, errors.NewInternalError("failed to transfer ticket")
	}

	t, err := uc.tickets.GetByID(ctx, cmd.TicketID)
	if err != nil {
		uc.logger.Errorw("failed to reload transferred ticket", "ticket_id", cmd.TicketID, "error", err)
		return nil, errors.NewInternalError("failed to transfer ticket")
	}

	uc.logger.Infow("ticket transferred", "ticket_id", cmd.TicketID, "agent_id", result.Agent.ID())
	return dto.ToTicketDTO(t, result.Agent), nil
}
