package usecases

import (
	"context"

	"github.com/orris-inc/livedesk/internal/application/agent/dto"
	"github.com/orris-inc/livedesk/internal/domain/agent"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/shared/biztime"
	"github.com/orris-inc/livedesk/internal/shared/errors"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

// GetAgentStatusQuery selects the agent by id, or by user id when AgentID is 0.
type GetAgentStatusQuery struct {
	AgentID ids.AgentID
	UserID  ids.UserID
}

type GetAgentStatusUseCase struct {
	agents     agent.Repository
	resolver   StatusResolver
	reassigner WorkloadReassigner
	clock      biztime.Clock
	logger     logger.Interface
}

func NewGetAgentStatusUseCase(
	agents agent.Repository,
	resolver StatusResolver,
	reassigner WorkloadReassigner,
	clock biztime.Clock,
	logger logger.Interface,
) *GetAgentStatusUseCase {
	return &GetAgentStatusUseCase{
		agents:     agents,
		resolver:   resolver,
		reassigner: reassigner,
		clock:      clock,
		logger:     logger,
	}
}

func (uc *GetAgentStatusUseCase) Execute(ctx context.Context, query GetAgentStatusQuery) (*dto.AgentStatusDTO, error) {
	if query.AgentID == 0 && query.UserID == 0 {
		return nil, errors.NewValidationError("agent ID or user ID is required")
	}

	a, err := uc.load(ctx, query)
	if err != nil {
		if errors.IsNotFoundError(err) {
			return nil, errors.NewNotFoundError("agent not found")
		}
		uc.logger.Errorw("failed to get agent", "agent_id", query.AgentID, "user_id", query.UserID, "error", err)
		return nil, errors.NewInternalError("failed to get agent status")
	}

	status, err := uc.resolver.GetEffectiveStatus(ctx, a.ID())
	if err != nil {
		uc.logger.Errorw("failed to resolve agent status", "agent_id", a.ID(), "error", err)
		return nil, errors.NewInternalError("failed to get agent status")
	}

	workload, err := uc.reassigner.GetAgentWorkload(ctx, a.ID())
	if err != nil {
		uc.logger.Errorw("failed to get agent workload", "agent_id", a.ID(), "error", err)
		return nil, errors.NewInternalError("failed to get agent status")
	}

	result := &dto.AgentStatusDTO{
		AgentID:            a.ID(),
		Status:             status.String(),
		ManualOverride:     a.ManualOverrideActive(uc.clock.Now()),
		LastActivityAt:     a.LastActivityAt(),
		CurrentActiveChats: a.CurrentActiveChats(),
		MaxConcurrentChats: a.MaxConcurrentChats(),
		ActiveTickets:      workload,
	}
	if result.ManualOverride {
		result.ManualStatusExpiry = a.ManualStatusExpiry()
	}
	return result, nil
}

func (uc *GetAgentStatusUseCase) load(ctx context.Context, query GetAgentStatusQuery) (*agent.Agent, error) {
	if query.AgentID != 0 {
		return uc.agents.GetByID(ctx, query.AgentID)
	}
	return uc.agents.GetByUserID(ctx, query.UserID)
}
