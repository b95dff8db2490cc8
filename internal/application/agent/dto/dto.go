package dto

import (
	"time"

	"github.com/orris-inc/livedesk/internal/domain/agent"
	vo "github.com/orris-inc/livedesk/internal/domain/agent/valueobjects"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/shared/mapper"
)

type AgentDTO struct {
	ID                 ids.AgentID    `json:"id"`
	UserID             ids.UserID     `json:"user_id"`
	Kind               string         `json:"kind"`
	DisplayName        string         `json:"display_name"`
	IsActive           bool           `json:"is_active"`
	PrimaryRegion      *ids.RegionID  `json:"primary_region,omitempty"`
	SecondaryRegions   []ids.RegionID `json:"secondary_regions"`
	Status             string         `json:"status"`
	ManualStatus       *string        `json:"manual_status,omitempty"`
	ManualStatusExpiry *time.Time     `json:"manual_status_expiry,omitempty"`
	LastActivityAt     *time.Time     `json:"last_activity_at,omitempty"`
	CurrentActiveChats int            `json:"current_active_chats"`
	MaxConcurrentChats int            `json:"max_concurrent_chats"`
	CreatedAt          time.Time      `json:"created_at"`
}

// AgentStatusDTO is the availability view shown to the agent and supervisors.
type AgentStatusDTO struct {
	AgentID            ids.AgentID `json:"agent_id"`
	Status             string      `json:"status"`
	ManualOverride     bool        `json:"manual_override"`
	ManualStatusExpiry *time.Time  `json:"manual_status_expiry,omitempty"`
	LastActivityAt     *time.Time  `json:"last_activity_at,omitempty"`
	CurrentActiveChats int         `json:"current_active_chats"`
	MaxConcurrentChats int         `json:"max_concurrent_chats"`
	ActiveTickets      int         `json:"active_tickets"`
}

// ToAgentDTO maps an agent with its effective status as evaluated by the caller.
func ToAgentDTO(a *agent.Agent, effective vo.Status) *AgentDTO {
	if a == nil {
		return nil
	}

	var manual *string
	if s := a.ManualStatus(); s != nil {
		v := s.String()
		manual = &v
	}

	return &AgentDTO{
		ID:                 a.ID(),
		UserID:             a.UserID(),
		Kind:               string(a.Kind()),
		DisplayName:        a.DisplayName(),
		IsActive:           a.IsActive(),
		PrimaryRegion:      a.PrimaryRegion(),
		SecondaryRegions:   a.SecondaryRegions(),
		Status:             effective.String(),
		ManualStatus:       manual,
		ManualStatusExpiry: a.ManualStatusExpiry(),
		LastActivityAt:     a.LastActivityAt(),
		CurrentActiveChats: a.CurrentActiveChats(),
		MaxConcurrentChats: a.MaxConcurrentChats(),
		CreatedAt:          a.CreatedAt(),
	}
}

// ToAgentDTOList maps agents, resolving each effective status through status.
func ToAgentDTOList(agents []*agent.Agent, status func(*agent.Agent) vo.Status) []*AgentDTO {
	return mapper.MapSlice(agents, func(a *agent.Agent) *AgentDTO {
		return ToAgentDTO(a, status(a))
	})
}
