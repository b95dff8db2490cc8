package mappers

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/orris-inc/livedesk/internal/domain/agent"
	vo "github.com/orris-inc/livedesk/internal/domain/agent/valueobjects"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/infrastructure/persistence/models"
	"github.com/orris-inc/livedesk/internal/shared/mapper"
)

// AgentMapper handles the conversion between Agent domain entities and persistence models.
type AgentMapper interface {
	ToModel(a *agent.Agent) (*models.AgentModel, error)
	ToDomain(model *models.AgentModel) (*agent.Agent, error)
	ToDomainList(list []models.AgentModel) ([]*agent.Agent, error)
}

type AgentMapperImpl struct{}

func NewAgentMapper() AgentMapper {
	return &AgentMapperImpl{}
}

func (m *AgentMapperImpl) ToModel(a *agent.Agent) (*models.AgentModel, error) {
	s := a.Snapshot()

	var secondary datatypes.JSON
	if len(s.SecondaryRegions) > 0 {
		raw, err := json.Marshal(s.SecondaryRegions)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal secondary regions: %w", err)
		}
		secondary = raw
	}

	var manual *string
	if s.ManualStatus != nil {
		v := s.ManualStatus.String()
		manual = &v
	}

	return &models.AgentModel{
		ID:                 uint(s.ID),
		UserID:             uint(s.UserID),
		Kind:               string(s.Kind),
		DisplayName:        s.DisplayName,
		IsActive:           s.IsActive,
		PrimaryRegionID:    regionToUint(s.PrimaryRegion),
		SecondaryRegionIDs: secondary,
		CurrentActiveChats: s.CurrentActiveChats,
		MaxConcurrentChats: s.MaxConcurrentChats,
		Status:             s.Status.String(),
		AutoDetectedStatus: s.AutoDetectedStatus.String(),
		ManualStatus:       manual,
		ManualStatusSetAt:  s.ManualStatusSetAt,
		ManualStatusExpiry: s.ManualStatusExpiry,
		LastActivityAt:     s.LastActivityAt,
		Version:            s.Version,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}, nil
}

func (m *AgentMapperImpl) ToDomain(model *models.AgentModel) (*agent.Agent, error) {
	var secondary []ids.RegionID
	if len(model.SecondaryRegionIDs) > 0 {
		if err := json.Unmarshal(model.SecondaryRegionIDs, &secondary); err != nil {
			return nil, fmt.Errorf("failed to unmarshal secondary regions (agent=%d): %w", model.ID, err)
		}
	}

	var manual *vo.Status
	if model.ManualStatus != nil {
		v := vo.Status(*model.ManualStatus)
		manual = &v
	}

	return agent.ReconstructAgent(agent.Snapshot{
		ID:                 ids.AgentID(model.ID),
		UserID:             ids.UserID(model.UserID),
		Kind:               vo.Kind(model.Kind),
		DisplayName:        model.DisplayName,
		IsActive:           model.IsActive,
		PrimaryRegion:      uintToRegion(model.PrimaryRegionID),
		SecondaryRegions:   secondary,
		CurrentActiveChats: model.CurrentActiveChats,
		MaxConcurrentChats: model.MaxConcurrentChats,
		Status:             vo.Status(model.Status),
		AutoDetectedStatus: vo.Status(model.AutoDetectedStatus),
		ManualStatus:       manual,
		ManualStatusSetAt:  utcPtr(model.ManualStatusSetAt),
		ManualStatusExpiry: utcPtr(model.ManualStatusExpiry),
		LastActivityAt:     utcPtr(model.LastActivityAt),
		Version:            model.Version,
		CreatedAt:          model.CreatedAt.UTC(),
		UpdatedAt:          model.UpdatedAt.UTC(),
	})
}

func (m *AgentMapperImpl) ToDomainList(list []models.AgentModel) ([]*agent.Agent, error) {
	return mapper.MapSliceWithIndex(list, m.ToDomain)
}
