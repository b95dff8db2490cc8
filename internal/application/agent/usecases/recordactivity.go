package usecases

import (
	"context"

	"github.com/orris-inc/livedesk/internal/domain/agent"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/shared/errors"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

// RecordActivityCommand marks a user as active. Users who are not agents are
// ignored. An agent coming back to available triggers a sweep so waiting
// tickets reach them.
type RecordActivityCommand struct {
	UserID ids.UserID
}

type RecordActivityUseCase struct {
	agents   agent.Repository
	resolver StatusResolver
	sweeper  SweepTrigger
	logger   logger.Interface
}

func NewRecordActivityUseCase(agents agent.Repository, resolver StatusResolver, sweeper SweepTrigger, logger logger.Interface) *RecordActivityUseCase {
	return &RecordActivityUseCase{
		agents:   agents,
		resolver: resolver,
		sweeper:  sweeper,
		logger:   logger,
	}
}

func (uc *RecordActivityUseCase) Execute(ctx context.Context, cmd RecordActivityCommand) error {
	a, err := uc.agents.GetByUserID(ctx, cmd.UserID)
	if err != nil {
		if errors.IsNotFoundError(err) {
			return nil
		}
		return err
	}
	if a.IsBot() {
		return nil
	}

	change, err := uc.resolver.UpdateActivity(ctx, a.ID())
	if err != nil {
		uc.logger.Warnw("failed to record agent activity", "agent_id", a.ID(), "error", err)
		return err
	}
	if change.Changed() {
		uc.logger.Debugw("agent status changed on activity",
			"agent_id", a.ID(),
			"previous", change.Previous,
			"status", change.Current,
		)
	}
	if change.BecameAvailable() {
		if err := uc.sweeper.TriggerSweep(); err != nil {
			uc.logger.Warnw("failed to trigger sweep after agent returned", "agent_id", a.ID(), "error", err)
		}
	}
	return nil
}
