// Package monitor holds the recurring status sweep that keeps agent
// statuses and ticket routing current without any request driving it.
package monitor

import (
	"context"
	"time"

	"github.com/orris-inc/livedesk/internal/application/agentstatus"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

// StatusBatcher recomputes statuses in bulk.
type StatusBatcher interface {
	UpdateExpiredManualStatuses(ctx context.Context) ([]agentstatus.StatusChange, error)
	UpdateAllAgentStatuses(ctx context.Context) ([]agentstatus.StatusChange, error)
}

// Reassigner moves tickets after availability changes.
type Reassigner interface {
	ReassignOnAgentUnavailable(ctx context.Context, agentID ids.AgentID) (int, error)
	ReassignBotTicketsToAvailableAgents(ctx context.Context) (int, error)
	ReassignUnassignedTickets(ctx context.Context) (int, error)
}

// StatusSweepJob is one pass of the status monitor. Execute returns the number
// of tickets that changed hands.
type StatusSweepJob struct {
	statuses   StatusBatcher
	reassigner Reassigner
	logger     logger.Interface
}

func NewStatusSweepJob(statuses StatusBatcher, reassigner Reassigner, log logger.Interface) *StatusSweepJob {
	return &StatusSweepJob{
		statuses:   statuses,
		reassigner: reassigner,
		logger:     log,
	}
}

// Execute runs the sweep steps in order. A failing step is logged and the
// remaining steps still run.
func (j *StatusSweepJob) Execute(ctx context.Context) (int, error) {
	start := time.Now()

	// Step 1: revert lapsed manual overrides
	expired, err := j.statuses.UpdateExpiredManualStatuses(ctx)
	if err != nil {
		j.logger.Errorw("failed to revert expired manual statuses", "error", err)
	}

	// Step 2: recompute everyone else from activity
	changes, err := j.statuses.UpdateAllAgentStatuses(ctx)
	if err != nil {
		j.logger.Errorw("failed to update agent statuses", "error", err)
	}

	moved := 0
	for _, agentID := range wentOffline(expired, changes) {
		if ctx.Err() != nil {
			return moved, ctx.Err()
		}
		n, err := j.reassigner.ReassignOnAgentUnavailable(ctx, agentID)
		if err != nil {
			j.logger.Errorw("failed to reassign tickets of offline agent", "agent_id", agentID, "error", err)
			continue
		}
		moved += n
	}

	// Step 3: hand bot-held tickets to humans that became free
	n, err := j.reassigner.ReassignBotTicketsToAvailableAgents(ctx)
	if err != nil {
		j.logger.Errorw("failed to reassign bot-held tickets", "error", err)
	}
	moved += n

	// Step 4: retry tickets nobody could take
	n, err = j.reassigner.ReassignUnassignedTickets(ctx)
	if err != nil {
		j.logger.Errorw("failed to assign pending tickets", "error", err)
	}
	moved += n

	j.logger.Debugw("status sweep finished",
		"expired_overrides", len(expired),
		"status_changes", len(changes),
		"tickets_moved", moved,
		"duration", time.Since(start),
	)
	return moved, nil
}

func wentOffline(batches ...[]agentstatus.StatusChange) []ids.AgentID {
	seen := make(map[ids.AgentID]struct{})
	out := make([]ids.AgentID, 0)
	for _, batch := range batches {
		for _, c := range batch {
			if !c.WentOffline() {
				continue
			}
			if _, ok := seen[c.AgentID]; ok {
				continue
			}
			seen[c.AgentID] = struct{}{}
			out = append(out, c.AgentID)
		}
	}
	return out
}
