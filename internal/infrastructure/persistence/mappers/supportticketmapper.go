package mappers

import (
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/domain/ticket"
	vo "github.com/orris-inc/livedesk/internal/domain/ticket/valueobjects"
	"github.com/orris-inc/livedesk/internal/infrastructure/persistence/models"
	"github.com/orris-inc/livedesk/internal/shared/mapper"
)

// SupportTicketMapper handles the conversion between SupportTicket domain
// entities and persistence models.
type SupportTicketMapper interface {
	ToModel(t *ticket.SupportTicket) *models.SupportTicketModel
	ToDomain(model *models.SupportTicketModel) (*ticket.SupportTicket, error)
	ToDomainList(list []models.SupportTicketModel) ([]*ticket.SupportTicket, error)
}

type SupportTicketMapperImpl struct{}

func NewSupportTicketMapper() SupportTicketMapper {
	return &SupportTicketMapperImpl{}
}

func (m *SupportTicketMapperImpl) ToModel(t *ticket.SupportTicket) *models.SupportTicketModel {
	s := t.Snapshot()

	var assigned *uint
	if s.AssignedAgentID != nil {
		v := uint(*s.AssignedAgentID)
		assigned = &v
	}

	return &models.SupportTicketModel{
		ID:              uint(s.ID),
		RequesterID:     uint(s.RequesterID),
		Guest:           s.Guest,
		Subject:         s.Subject,
		AssignedAgentID: assigned,
		RegionID:        regionToUint(s.RegionID),
		Status:          s.Status.String(),
		ChatRoomID:      uint(s.ChatRoomID),
		Version:         s.Version,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
		ClosedAt:        s.ClosedAt,
	}
}

func (m *SupportTicketMapperImpl) ToDomain(model *models.SupportTicketModel) (*ticket.SupportTicket, error) {
	var assigned *ids.AgentID
	if model.AssignedAgentID != nil {
		assigned = ids.AgentIDPtr(ids.AgentID(*model.AssignedAgentID))
	}

	return ticket.ReconstructSupportTicket(ticket.Snapshot{
		ID:              ids.TicketID(model.ID),
		RequesterID:     ids.UserID(model.RequesterID),
		Guest:           model.Guest,
		Subject:         model.Subject,
		AssignedAgentID: assigned,
		RegionID:        uintToRegion(model.RegionID),
		Status:          vo.TicketStatus(model.Status),
		ChatRoomID:      ids.RoomID(model.ChatRoomID),
		Version:         model.Version,
		CreatedAt:       model.CreatedAt.UTC(),
		UpdatedAt:       model.UpdatedAt.UTC(),
		ClosedAt:        utcPtr(model.ClosedAt),
	})
}

func (m *SupportTicketMapperImpl) ToDomainList(list []models.SupportTicketModel) ([]*ticket.SupportTicket, error) {
	return mapper.MapSliceWithIndex(list, m.ToDomain)
}
