package dto

import (
	"time"

	"github.com/orris-inc/livedesk/internal/domain/agent"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/domain/ticket"
)

type TicketDTO struct {
	ID              ids.TicketID  `json:"id"`
	RequesterID     ids.UserID    `json:"requester_id"`
	Guest           bool          `json:"guest"`
	Subject         string        `json:"subject"`
	Status          string        `json:"status"`
	RegionID        *ids.RegionID `json:"region_id,omitempty"`
	ChatRoomID      ids.RoomID    `json:"chat_room_id"`
	AssignedAgentID *ids.AgentID  `json:"assigned_agent_id,omitempty"`
	AgentName       string        `json:"agent_name,omitempty"`
	AgentIsBot      bool          `json:"agent_is_bot,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	ClosedAt        *time.Time    `json:"closed_at,omitempty"`
}

// ToTicketDTO maps a ticket. assignee may be nil or stale; it is only used
// when it matches the ticket's assigned agent.
func ToTicketDTO(t *ticket.SupportTicket, assignee *agent.Agent) *TicketDTO {
	if t == nil {
		return nil
	}

	out := &TicketDTO{
		ID:              t.ID(),
		RequesterID:     t.RequesterID(),
		Guest:           t.IsGuest(),
		Subject:         t.Subject(),
		Status:          t.Status().String(),
		RegionID:        t.RegionID(),
		ChatRoomID:      t.ChatRoomID(),
		AssignedAgentID: t.AssignedAgentID(),
		CreatedAt:       t.CreatedAt(),
		UpdatedAt:       t.UpdatedAt(),
		ClosedAt:        t.ClosedAt(),
	}
	if assignee != nil && t.IsAssignedTo(assignee.ID()) {
		out.AgentName = assignee.DisplayName()
		out.AgentIsBot = assignee.IsBot()
	}
	return out
}
