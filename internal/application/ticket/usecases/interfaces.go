package usecases

import (
	"context"

	"github.com/orris-inc/livedesk/internal/application/assignment"
	"github.com/orris-inc/livedesk/internal/application/ticket/dto"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/domain/ticket"
)

// TicketRouter is the assignment engine as seen by the ticket use cases.
type TicketRouter interface {
	AssignTicket(ctx context.Context, ticketID ids.TicketID) (*assignment.Assignment, error)
	TransferTicket(ctx context.Context, ticketID ids.TicketID, toAgentID *ids.AgentID) (*assignment.Assignment, error)
	ReleaseTicket(ctx context.Context, t *ticket.SupportTicket) (ids.AgentID, error)
	RefreshAgent(ctx context.Context, agentID ids.AgentID)
}

// GreetingRequest describes the conversation a bot is greeting.
type GreetingRequest struct {
	Subject string
	Guest   bool
	BotName string
}

// BotResponder writes the first message of a bot-held conversation.
type BotResponder interface {
	Greeting(ctx context.Context, req GreetingRequest) (string, error)
}

// SweepTrigger requests an out-of-schedule status sweep.
type SweepTrigger interface {
	TriggerSweep() error
}

type OpenTicketExecutor interface {
	Execute(ctx context.Context, cmd OpenTicketCommand) (*dto.TicketDTO, error)
}

type TransferTicketExecutor interface {
	Execute(ctx context.Context, cmd TransferTicketCommand) (*dto.TicketDTO, error)
}

type CloseTicketExecutor interface {
	Execute(ctx context.Context, cmd CloseTicketCommand) (*CloseTicketResult, error)
}

type GetTicketExecutor interface {
	Execute(ctx context.Context, query GetTicketQuery) (*dto.TicketDTO, error)
}
