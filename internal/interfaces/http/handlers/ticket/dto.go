package ticket

import (
	"github.com/orris-inc/livedesk/internal/application/ticket/usecases"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
)

type OpenTicketRequest struct {
	Subject        string `json:"subject" validate:"max=200"`
	RegionID       *uint  `json:"region_id" validate:"omitempty,gt=0"`
	InitialMessage string `json:"initial_message" validate:"max=4000"`
}

func (r *OpenTicketRequest) ToCommand(requesterID ids.UserID, guest bool) usecases.OpenTicketCommand {
	var region *ids.RegionID
	if r.RegionID != nil {
		region = ids.RegionPtr(ids.RegionID(*r.RegionID))
	}
	return usecases.OpenTicketCommand{
		RequesterID:    requesterID,
		Guest:          guest,
		Subject:        r.Subject,
		RegionID:       region,
		InitialMessage: r.InitialMessage,
	}
}

// TransferTicketRequest names the target agent; without one the best
// available other agent is chosen.
type TransferTicketRequest struct {
	ToAgentID *uint `json:"to_agent_id" validate:"omitempty,gt=0"`
}

type CloseTicketResponse struct {
	TicketID ids.TicketID `json:"ticket_id"`
	Status   string       `json:"status"`
	ClosedAt string       `json:"closed_at"`
}
