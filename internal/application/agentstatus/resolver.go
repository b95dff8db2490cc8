// Package agentstatus resolves an agent's effective availability from a
// time-bounded manual override and its recent activity.
package agentstatus

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/orris-inc/livedesk/internal/domain/agent"
	vo "github.com/orris-inc/livedesk/internal/domain/agent/valueobjects"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/domain/shared/realtime"
	"github.com/orris-inc/livedesk/internal/shared/biztime"
	"github.com/orris-inc/livedesk/internal/shared/errors"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

const (
	defaultMaxWriteAttempts = 5
	defaultBatchConcurrency = 8
)

type Settings struct {
	ManualStatusTTL time.Duration
	Windows         agent.ActivityWindows
}

func DefaultSettings() Settings {
	return Settings{
		ManualStatusTTL: 30 * time.Minute,
		Windows: agent.ActivityWindows{
			Available: 5 * time.Minute,
			Away:      30 * time.Minute,
		},
	}
}

// StatusChange describes the effective status of an agent before and after
// an operation.
type StatusChange struct {
	AgentID  ids.AgentID
	UserID   ids.UserID
	Previous vo.Status
	Current  vo.Status
}

func (c StatusChange) Changed() bool {
	return c.Previous != c.Current
}

func (c StatusChange) WentOffline() bool {
	return c.Previous != vo.StatusOffline && c.Current == vo.StatusOffline
}

func (c StatusChange) BecameAvailable() bool {
	return c.Previous != vo.StatusAvailable && c.Current == vo.StatusAvailable
}

type Resolver struct {
	agents      agent.Repository
	clock       biztime.Clock
	settings    Settings
	broadcaster realtime.Broadcaster
	logger      logger.Interface

	recompute        singleflight.Group
	maxWriteAttempts uint
	batchConcurrency int
}

func NewResolver(
	agents agent.Repository,
	clock biztime.Clock,
	settings Settings,
	broadcaster realtime.Broadcaster,
	log logger.Interface,
) *Resolver {
	return &Resolver{
		agents:           agents,
		clock:            clock,
		settings:         settings,
		broadcaster:      broadcaster,
		logger:           log,
		maxWriteAttempts: defaultMaxWriteAttempts,
		batchConcurrency: defaultBatchConcurrency,
	}
}

// Settings exposes the configured windows to callers that evaluate loaded
// agents themselves.
func (r *Resolver) Settings() Settings {
	return r.settings
}

// EffectiveStatusOf evaluates an already loaded agent without touching storage.
func (r *Resolver) EffectiveStatusOf(a *agent.Agent) vo.Status {
	return a.EffectiveStatus(r.clock.Now(), r.settings.Windows)
}

// AvailableApartFromLoad checks a loaded agent that already holds a freshly
// reserved slot.
func (r *Resolver) AvailableApartFromLoad(a *agent.Agent) bool {
	return a.AvailableApartFromLoad(r.clock.Now(), r.settings.Windows)
}

// SetManualStatus records a staff override that stays authoritative for the
// configured TTL.
func (r *Resolver) SetManualStatus(ctx context.Context, agentID ids.AgentID, status vo.Status) (StatusChange, error) {
	if !status.IsValid() {
		return StatusChange{}, errors.NewValidationError("invalid agent status", string(status))
	}

	change, err := r.mutate(ctx, agentID, func(a *agent.Agent, now time.Time) (bool, error) {
		if a.IsBot() {
			return false, errors.NewValidationError("bot agents do not accept manual status")
		}
		if err := a.SetManualStatus(status, now, r.settings.ManualStatusTTL, r.settings.Windows); err != nil {
			return false, errors.NewValidationError(err.Error())
		}
		return true, nil
	})
	if errors.IsNotFoundError(err) {
		r.logger.Warnw("manual status for unknown agent ignored", "agent_id", agentID)
		return StatusChange{AgentID: agentID, Previous: vo.StatusOffline, Current: vo.StatusOffline}, nil
	}
	if err != nil {
		return StatusChange{}, err
	}

	r.logger.Infow("agent manual status set",
		"agent_id", agentID,
		"status", status,
		"effective", change.Current,
		"ttl", r.settings.ManualStatusTTL,
	)
	return change, nil
}

// DetectAutomaticStatus classifies the agent from activity alone. Unknown
// agents are offline.
func (r *Resolver) DetectAutomaticStatus(ctx context.Context, agentID ids.AgentID) (vo.Status, error) {
	a, err := r.agents.GetByID(ctx, agentID)
	if err != nil {
		if errors.IsNotFoundError(err) {
			return vo.StatusOffline, nil
		}
		return vo.StatusOffline, err
	}
	return a.DetectStatus(r.clock.Now(), r.settings.Windows), nil
}

// GetEffectiveStatus returns the unexpired override or the freshly computed
// automatic status, persisting the latter when it differs from storage.
// Concurrent calls for the same agent share one computation.
func (r *Resolver) GetEffectiveStatus(ctx context.Context, agentID ids.AgentID) (vo.Status, error) {
	v, err, _ := r.recompute.Do(agentID.String(), func() (any, error) {
		change, err := r.mutate(ctx, agentID, func(a *agent.Agent, now time.Time) (bool, error) {
			return a.Refresh(now, r.settings.Windows), nil
		})
		return change.Current, err
	})
	if err != nil {
		if errors.IsNotFoundError(err) {
			return vo.StatusOffline, nil
		}
		return vo.StatusOffline, err
	}
	return v.(vo.Status), nil
}

// RefreshStatus re-derives the persisted status after a capacity change.
func (r *Resolver) RefreshStatus(ctx context.Context, agentID ids.AgentID) (StatusChange, error) {
	change, err := r.mutate(ctx, agentID, func(a *agent.Agent, now time.Time) (bool, error) {
		return a.Refresh(now, r.settings.Windows), nil
	})
	if errors.IsNotFoundError(err) {
		return StatusChange{AgentID: agentID, Previous: vo.StatusOffline, Current: vo.StatusOffline}, nil
	}
	return change, err
}

// UpdateActivity stamps activity and, without an active override,
// recomputes the automatic status in the same write.
func (r *Resolver) UpdateActivity(ctx context.Context, agentID ids.AgentID) (StatusChange, error) {
	change, err := r.mutate(ctx, agentID, func(a *agent.Agent, now time.Time) (bool, error) {
		a.RecordActivity(now)
		a.Refresh(now, r.settings.Windows)
		return true, nil
	})
	if errors.IsNotFoundError(err) {
		return StatusChange{AgentID: agentID, Previous: vo.StatusOffline, Current: vo.StatusOffline}, nil
	}
	return change, err
}

// UpdateExpiredManualStatuses reverts every agent whose override has lapsed
// to automatic detection and returns the resulting transitions.
func (r *Resolver) UpdateExpiredManualStatuses(ctx context.Context) ([]StatusChange, error) {
	now := r.clock.Now()
	expired, err := r.agents.ListWithExpiredManualStatus(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired manual statuses: %w", err)
	}

	agentIDs := make([]ids.AgentID, 0, len(expired))
	for _, a := range expired {
		agentIDs = append(agentIDs, a.ID())
	}

	changes := r.refreshAll(ctx, agentIDs)
	if len(agentIDs) > 0 {
		r.logger.Infow("expired manual statuses reverted", "count", len(agentIDs))
	}
	return changes, nil
}

// UpdateAllAgentStatuses recomputes every agent not under an active override
// and returns the effective transitions that occurred.
func (r *Resolver) UpdateAllAgentStatuses(ctx context.Context) ([]StatusChange, error) {
	all, err := r.agents.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}

	now := r.clock.Now()
	agentIDs := make([]ids.AgentID, 0, len(all))
	for _, a := range all {
		if a.ManualOverrideActive(now) {
			continue
		}
		agentIDs = append(agentIDs, a.ID())
	}

	return r.refreshAll(ctx, agentIDs), nil
}

// refreshAll refreshes agents concurrently. A failure on one agent is logged
// and does not stop the others.
func (r *Resolver) refreshAll(ctx context.Context, agentIDs []ids.AgentID) []StatusChange {
	results := make([]StatusChange, len(agentIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.batchConcurrency)
	for i, id := range agentIDs {
		g.Go(func() error {
			change, err := r.RefreshStatus(gctx, id)
			if err != nil {
				r.logger.Errorw("failed to refresh agent status", "agent_id", id, "error", err)
				return nil
			}
			results[i] = change
			return nil
		})
	}
	_ = g.Wait()

	changes := make([]StatusChange, 0, len(results))
	for _, c := range results {
		if c.AgentID != 0 && c.Changed() {
			changes = append(changes, c)
		}
	}
	return changes
}

// mutate loads the agent, applies fn and writes it back under the
// optimistic version check, retrying on conflicts with a fresh copy.
func (r *Resolver) mutate(ctx context.Context, agentID ids.AgentID, fn func(a *agent.Agent, now time.Time) (bool, error)) (StatusChange, error) {
	op := func() (StatusChange, error) {
		a, err := r.agents.GetByID(ctx, agentID)
		if err != nil {
			return StatusChange{}, backoff.Permanent(err)
		}

		now := r.clock.Now()
		change := StatusChange{
			AgentID:  a.ID(),
			UserID:   a.UserID(),
			Previous: a.Status(),
		}

		dirty, err := fn(a, now)
		if err != nil {
			return StatusChange{}, backoff.Permanent(err)
		}
		change.Current = a.EffectiveStatus(now, r.settings.Windows)

		if !dirty {
			return change, nil
		}
		if err := r.agents.Update(ctx, a); err != nil {
			if errors.IsConflictError(err) {
				return StatusChange{}, err
			}
			return StatusChange{}, backoff.Permanent(err)
		}
		return change, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	bo.MaxInterval = 200 * time.Millisecond

	change, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(r.maxWriteAttempts),
	)
	if err != nil {
		return StatusChange{}, err
	}

	if change.Changed() && r.broadcaster != nil {
		r.broadcaster.SendToUser(ctx, change.UserID, realtime.EventAgentStatus, map[string]any{
			"agent_id": change.AgentID,
			"status":   change.Current,
			"previous": change.Previous,
		})
	}
	return change, nil
}
