package ticket

import (
	"context"

	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
)

// Repository persists support tickets. Listing methods return tickets
// ordered by creation time, oldest first.
type Repository interface {
	Create(ctx context.Context, t *SupportTicket) error
	// Update is guarded by the ticket version; a stale version is a conflict.
	Update(ctx context.Context, t *SupportTicket) error
	GetByID(ctx context.Context, id ids.TicketID) (*SupportTicket, error)
	GetByRoomID(ctx context.Context, roomID ids.RoomID) (*SupportTicket, error)
	ListActiveByAgent(ctx context.Context, agentID ids.AgentID) ([]*SupportTicket, error)
	ListActiveHeldByBots(ctx context.Context) ([]*SupportTicket, error)
	ListUnassignedOpen(ctx context.Context) ([]*SupportTicket, error)
	CountActiveByAgent(ctx context.Context, agentID ids.AgentID) (int64, error)
}
