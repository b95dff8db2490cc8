package usecases

import (
	"context"

	"github.com/orris-inc/livedesk/internal/application/agent/dto"
	"github.com/orris-inc/livedesk/internal/domain/agent"
	"github.com/orris-inc/livedesk/internal/shared/errors"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

type ListAgentsUseCase struct {
	agents   agent.Repository
	resolver StatusResolver
	logger   logger.Interface
}

func NewListAgentsUseCase(agents agent.Repository, resolver StatusResolver, logger logger.Interface) *ListAgentsUseCase {
	return &ListAgentsUseCase{
		agents:   agents,
		resolver: resolver,
		logger:   logger,
	}
}

func (uc *ListAgentsUseCase) Execute(ctx context.Context) ([]*dto.AgentDTO, error) {
	all, err := uc.agents.List(ctx)
	if err != nil {
		uc.logger.Errorw("failed to list agents", "error", err)
		return nil, errors.NewInternalError("failed to list agents")
	}
	return dto.ToAgentDTOList(all, uc.resolver.EffectiveStatusOf), nil
}
