package usecases

import (
	"context"

	"github.com/orris-inc/livedesk/internal/domain/agent"
	vo "github.com/orris-inc/livedesk/internal/domain/agent/valueobjects"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/shared/errors"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

// SetAgentStatusCommand is a manual availability toggle by the agent's own user.
type SetAgentStatusCommand struct {
	UserID ids.UserID
	Status string
}

type SetAgentStatusResult struct {
	AgentID           ids.AgentID
	Previous          string
	Status            string
	TicketsReassigned int
}

type SetAgentStatusUseCase struct {
	agents     agent.Repository
	resolver   StatusResolver
	reassigner WorkloadReassigner
	sweeper    SweepTrigger
	logger     logger.Interface
}

func NewSetAgentStatusUseCase(
	agents agent.Repository,
	resolver StatusResolver,
	reassigner WorkloadReassigner,
	sweeper SweepTrigger,
	logger logger.Interface,
) *SetAgentStatusUseCase {
	return &SetAgentStatusUseCase{
		agents:     agents,
		resolver:   resolver,
		reassigner: reassigner,
		sweeper:    sweeper,
		logger:     logger,
	}
}

func (uc *SetAgentStatusUseCase) Execute(ctx context.Context, cmd SetAgentStatusCommand) (*SetAgentStatusResult, error) {
	uc.logger.Infow("executing set agent status use case", "user_id", cmd.UserID, "status", cmd.Status)

	if cmd.UserID == 0 {
		return nil, errors.NewValidationError("user ID is required")
	}
	status, err := vo.ParseStatus(cmd.Status)
	if err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	a, err := uc.agents.GetByUserID(ctx, cmd.UserID)
	if err != nil {
		if errors.IsNotFoundError(err) {
			return nil, errors.NewNotFoundError("agent not found", cmd.UserID.String())
		}
		uc.logger.Errorw("failed to get agent", "user_id", cmd.UserID, "error", err)
		return nil, errors.NewInternalError("failed to set agent status")
	}

	change, err := uc.resolver.SetManualStatus(ctx, a.ID(), status)
	if err != nil {
		if errors.GetAppError(err) != nil {
			return nil, err
		}
		uc.logger.Errorw("failed to set manual status", "agent_id", a.ID(), "error", err)
		return nil, errors.NewInternalError("failed to set agent status")
	}

	result := &SetAgentStatusResult{
		AgentID:  a.ID(),
		Previous: change.Previous.String(),
		Status:   change.Current.String(),
	}

	switch {
	case change.Current.IsUnavailable():
		moved, err := uc.reassigner.ReassignOnAgentUnavailable(ctx, a.ID())
		if err != nil {
			// The status is already recorded; the monitor picks up what is left.
			uc.logger.Errorw("failed to reassign tickets after status toggle", "agent_id", a.ID(), "error", err)
		}
		result.TicketsReassigned = moved
	case change.Current == vo.StatusAvailable:
		if err := uc.sweeper.TriggerSweep(); err != nil {
			uc.logger.Warnw("failed to trigger sweep after status toggle", "agent_id", a.ID(), "error", err)
		}
	}

	uc.logger.Infow("agent status set",
		"agent_id", a.ID(),
		"previous", result.Previous,
		"status", result.Status,
		"tickets_reassigned", result.TicketsReassigned,
	)
	return result, nil
}
