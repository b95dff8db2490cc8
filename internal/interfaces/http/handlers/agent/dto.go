package agent

import (
	"github.com/orris-inc/livedesk/internal/application/agent/usecases"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
)

type ProvisionAgentRequest struct {
	UserID             uint   `json:"user_id" validate:"required,gt=0"`
	Kind               string `json:"kind" validate:"omitempty,oneof=human bot"`
	DisplayName        string `json:"display_name" validate:"required,max=100"`
	MaxConcurrentChats int    `json:"max_concurrent_chats" validate:"omitempty,gte=1,lte=100"`
	PrimaryRegion      *uint  `json:"primary_region" validate:"omitempty,gt=0"`
	SecondaryRegions   []uint `json:"secondary_regions" validate:"omitempty,dive,gt=0"`
}

func (r *ProvisionAgentRequest) ToCommand() usecases.ProvisionAgentCommand {
	cmd := usecases.ProvisionAgentCommand{
		UserID:             ids.UserID(r.UserID),
		Kind:               r.Kind,
		DisplayName:        r.DisplayName,
		MaxConcurrentChats: r.MaxConcurrentChats,
	}
	if r.PrimaryRegion != nil {
		cmd.PrimaryRegion = ids.RegionPtr(ids.RegionID(*r.PrimaryRegion))
	}
	for _, region := range r.SecondaryRegions {
		cmd.SecondaryRegions = append(cmd.SecondaryRegions, ids.RegionID(region))
	}
	return cmd
}

type SetStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=available busy away offline"`
}

type SetStatusResponse struct {
	AgentID           ids.AgentID `json:"agent_id"`
	Previous          string      `json:"previous"`
	Status            string      `json:"status"`
	TicketsReassigned int         `json:"tickets_reassigned"`
}
