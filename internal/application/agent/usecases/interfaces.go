package usecases

import (
	"context"

	"github.com/orris-inc/livedesk/internal/application/agent/dto"
	"github.com/orris-inc/livedesk/internal/application/agentstatus"
	"github.com/orris-inc/livedesk/internal/domain/agent"
	vo "github.com/orris-inc/livedesk/internal/domain/agent/valueobjects"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
)

// StatusResolver is the part of the agent status resolver the use cases need.
type StatusResolver interface {
	EffectiveStatusOf(a *agent.Agent) vo.Status
	SetManualStatus(ctx context.Context, agentID ids.AgentID, status vo.Status) (agentstatus.StatusChange, error)
	GetEffectiveStatus(ctx context.Context, agentID ids.AgentID) (vo.Status, error)
	UpdateActivity(ctx context.Context, agentID ids.AgentID) (agentstatus.StatusChange, error)
}

// WorkloadReassigner moves tickets off agents and reports their load.
type WorkloadReassigner interface {
	ReassignOnAgentUnavailable(ctx context.Context, agentID ids.AgentID) (int, error)
	GetAgentWorkload(ctx context.Context, agentID ids.AgentID) (int, error)
}

// SweepTrigger requests an out-of-schedule status sweep.
type SweepTrigger interface {
	TriggerSweep() error
}

type ProvisionAgentExecutor interface {
	Execute(ctx context.Context, cmd ProvisionAgentCommand) (*dto.AgentDTO, error)
}

type SetAgentStatusExecutor interface {
	Execute(ctx context.Context, cmd SetAgentStatusCommand) (*SetAgentStatusResult, error)
}

type RecordActivityExecutor interface {
	Execute(ctx context.Context, cmd RecordActivityCommand) error
}

type GetAgentStatusExecutor interface {
	Execute(ctx context.Context, query GetAgentStatusQuery) (*dto.AgentStatusDTO, error)
}

type ListAgentsExecutor interface {
	Execute(ctx context.Context) ([]*dto.AgentDTO, error)
}
