package usecases

import (
	"context"
	"time"

	"github.com/orris-inc/livedesk/internal/domain/conversation"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/domain/shared/realtime"
	"github.com/orris-inc/livedesk/internal/domain/ticket"
	"github.com/orris-inc/livedesk/internal/shared/biztime"
	"github.com/orris-inc/livedesk/internal/shared/db"
	"github.com/orris-inc/livedesk/internal/shared/errors"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

const msgClosed = "This conversation has been closed."

type CloseTicketCommand struct {
	TicketID ids.TicketID
	ClosedBy ids.UserID
	// IsStaff lets agents and admins close tickets they did not open.
	IsStaff bool
}

type CloseTicketResult struct {
	TicketID ids.TicketID
	Status   string
	ClosedAt time.Time
}

type CloseTicketUseCase struct {
	tickets     ticket.Repository
	conv        conversation.Store
	router      TicketRouter
	sweeper     SweepTrigger
	broadcaster realtime.Broadcaster
	txm         db.Transactor
	clock       biztime.Clock
	logger      logger.Interface
}

func NewCloseTicketUseCase(
	tickets ticket.Repository,
	conv conversation.Store,
	router TicketRouter,
	sweeper SweepTrigger,
	broadcaster realtime.Broadcaster,
	txm db.Transactor,
	clock biztime.Clock,
	logger logger.Interface,
) *CloseTicketUseCase {
	return &CloseTicketUseCase{
		tickets:     tickets,
		conv:        conv,
		router:      router,
		sweeper:     sweeper,
		broadcaster: broadcaster,
		txm:         txm,
		clock:       clock,
		logger:      logger,
	}
}

func (uc *CloseTicketUseCase) Execute(ctx context.Context, cmd CloseTicketCommand) (*CloseTicketResult, error) {
	uc.logger.Infow("executing close ticket use case", "ticket_id", cmd.TicketID, "closed_by", cmd.ClosedBy)

	if err := uc.validateCommand(cmd); err != nil {
		uc.logger.Errorw("invalid close ticket command", "error", err)
		return nil, err
	}

	var (
		t        *ticket.SupportTicket
		released ids.AgentID
	)
	err := uc.txm.RunInTransaction(ctx, func(txCtx context.Context) error {
		var err error
		t, err = uc.tickets.GetByID(txCtx, cmd.TicketID)
		if err != nil {
			return err
		}
		if !cmd.IsStaff && t.RequesterID() != cmd.ClosedBy {
			return errors.NewForbiddenError("only the requester or staff can close this ticket")
		}
		if err := t.Close(uc.clock.Now()); err != nil {
			return errors.NewConflictError("ticket is already closed")
		}
		if err := uc.tickets.Update(txCtx, t); err != nil {
			return err
		}
		released, err = uc.router.ReleaseTicket(txCtx, t)
		if err != nil {
			return err
		}
		_, err = uc.conv.AddSystemMessage(txCtx, t.ChatRoomID(), msgClosed)
		return err
	})
	if err != nil {
		if errors.GetAppError(err) != nil {
			return nil, err
		}
		uc.logger.Errorw("failed to close ticket", "ticket_id", cmd.TicketID, "error", err)
		return nil, errors.NewInternalError("failed to close ticket")
	}

	uc.router.RefreshAgent(ctx, released)

	uc.broadcaster.SendToRoom(ctx, t.ChatRoomID(), realtime.EventTicketClosed, realtime.TicketPayload{
		TicketID: t.ID(),
		RoomID:   t.ChatRoomID(),
		Status:   t.Status().String(),
		AgentID:  t.AssignedAgentID(),
	})

	// A slot just opened up; let waiting tickets have it.
	if err := uc.sweeper.TriggerSweep(); err != nil {
		uc.logger.Warnw("failed to trigger sweep after close", "ticket_id", t.ID(), "error", err)
	}

	uc.logger.Infow("ticket closed successfully", "ticket_id", t.ID())

	return &CloseTicketResult{
		TicketID: t.ID(),
		Status:   t.Status().String(),
		ClosedAt: *t.ClosedAt(),
	}, nil
}

func (uc *CloseTicketUseCase) validateCommand(cmd CloseTicketCommand) error {
	if cmd.TicketID == 0 {
		return errors.NewValidationError("ticket ID is required")
	}

	if cmd.ClosedBy == 0 {
		return errors.NewValidationError("closed by user ID is required")
	}

	return nil
}
