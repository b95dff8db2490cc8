package usecases

import (
	"context"

	"github.com/orris-inc/livedesk/internal/application/agent/dto"
	"github.com/orris-inc/livedesk/internal/domain/agent"
	vo "github.com/orris-inc/livedesk/internal/domain/agent/valueobjects"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/shared/biztime"
	"github.com/orris-inc/livedesk/internal/shared/errors"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

type ProvisionAgentCommand struct {
	UserID             ids.UserID
	Kind               string
	DisplayName        string
	MaxConcurrentChats int
	PrimaryRegion      *ids.RegionID
	SecondaryRegions   []ids.RegionID
}

type ProvisionAgentUseCase struct {
	agents   agent.Repository
	resolver StatusResolver
	clock    biztime.Clock
	logger   logger.Interface
}

func NewProvisionAgentUseCase(
	agents agent.Repository,
	resolver StatusResolver,
	clock biztime.Clock,
	logger logger.Interface,
) *ProvisionAgentUseCase {
	return &ProvisionAgentUseCase{
		agents:   agents,
		resolver: resolver,
		clock:    clock,
		logger:   logger,
	}
}

func (uc *ProvisionAgentUseCase) Execute(ctx context.Context, cmd ProvisionAgentCommand) (*dto.AgentDTO, error) {
	uc.logger.Infow("executing provision agent use case", "user_id", cmd.UserID, "kind", cmd.Kind)

	if err := uc.validateCommand(cmd); err != nil {
		uc.logger.Errorw("invalid provision agent command", "error", err)
		return nil, err
	}

	if _, err := uc.agents.GetByUserID(ctx, cmd.UserID); err == nil {
		return nil, errors.NewConflictError("user is already an agent")
	} else if !errors.IsNotFoundError(err) {
		uc.logger.Errorw("failed to check existing agent", "user_id", cmd.UserID, "error", err)
		return nil, errors.NewInternalError("failed to provision agent")
	}

	var (
		a   *agent.Agent
		err error
	)
	now := uc.clock.Now()
	if vo.Kind(cmd.Kind) == vo.KindBot {
		a, err = agent.NewBot(cmd.UserID, cmd.DisplayName, cmd.PrimaryRegion, now)
	} else {
		a, err = agent.NewHuman(cmd.UserID, cmd.DisplayName, cmd.MaxConcurrentChats, cmd.PrimaryRegion, cmd.SecondaryRegions, now)
	}
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	if err := uc.agents.Create(ctx, a); err != nil {
		if errors.IsConflictError(err) || errors.IsDuplicateError(err) {
			return nil, errors.NewConflictError("agent already exists for this user or region")
		}
		uc.logger.Errorw("failed to create agent", "user_id", cmd.UserID, "error", err)
		return nil, errors.NewInternalError("failed to provision agent")
	}

	uc.logger.Infow("agent provisioned", "agent_id", a.ID(), "user_id", a.UserID(), "kind", a.Kind())
	return dto.ToAgentDTO(a, uc.resolver.EffectiveStatusOf(a)), nil
}

func (uc *ProvisionAgentUseCase) validateCommand(cmd ProvisionAgentCommand) error {
	if cmd.UserID == 0 {
		return errors.NewValidationError("user ID is required")
	}

	kind := vo.Kind(cmd.Kind)
	if !kind.IsValid() {
		return errors.NewValidationError("kind must be human or bot")
	}

	if kind == vo.KindHuman {
		if cmd.DisplayName == "" {
			return errors.NewValidationError("display name is required")
		}
		if cmd.MaxConcurrentChats <= 0 {
			return errors.NewValidationError("max concurrent chats must be positive")
		}
	}

	return nil
}
