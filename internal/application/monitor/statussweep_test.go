package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/livedesk/internal/application/agentstatus"
	"github.com/orris-inc/livedesk/internal/application/assignment"
	"github.com/orris-inc/livedesk/internal/application/testutil"
	"github.com/orris-inc/livedesk/internal/domain/agent"
	vo "github.com/orris-inc/livedesk/internal/domain/agent/valueobjects"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/domain/ticket"
	"github.com/orris-inc/livedesk/internal/shared/biztime"
	"github.com/orris-inc/livedesk/internal/shared/db"
	"github.com/orris-inc/livedesk/internal/shared/errors"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

// ---------------------------------------------------------------------------
// Func-field mocks
// ---------------------------------------------------------------------------

type mockStatusBatcher struct {
	UpdateExpiredFunc func(ctx context.Context) ([]agentstatus.StatusChange, error)
	UpdateAllFunc     func(ctx context.Context) ([]agentstatus.StatusChange, error)
}

func (m *mockStatusBatcher) UpdateExpiredManualStatuses(ctx context.Context) ([]agentstatus.StatusChange, error) {
	return m.UpdateExpiredFunc(ctx)
}

func (m *mockStatusBatcher) UpdateAllAgentStatuses(ctx context.Context) ([]agentstatus.StatusChange, error) {
	return m.UpdateAllFunc(ctx)
}

type mockReassigner struct {
	mu          sync.Mutex
	unavailable []ids.AgentID
	botSweeps   int
	pendingRuns int

	UnavailableErr error
	BotErr         error
}

func (m *mockReassigner) ReassignOnAgentUnavailable(ctx context.Context, agentID ids.AgentID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = append(m.unavailable, agentID)
	if m.UnavailableErr != nil {
		return 0, m.UnavailableErr
	}
	return 2, nil
}

func (m *mockReassigner) ReassignBotTicketsToAvailableAgents(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.botSweeps++
	if m.BotErr != nil {
		return 0, m.BotErr
	}
	return 1, nil
}

func (m *mockReassigner) ReassignUnassignedTickets(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingRuns++
	return 1, nil
}

func change(id ids.AgentID, from, to vo.Status) agentstatus.StatusChange {
	return agentstatus.StatusChange{AgentID: id, UserID: ids.UserID(id) + 100, Previous: from, Current: to}
}

func TestStatusSweepJob_ReassignsEachOfflineAgentOnce(t *testing.T) {
	statuses := &mockStatusBatcher{
		UpdateExpiredFunc: func(ctx context.Context) ([]agentstatus.StatusChange, error) {
			return []agentstatus.StatusChange{
				change(1, vo.StatusAway, vo.StatusOffline),
				change(2, vo.StatusOffline, vo.StatusAvailable),
			}, nil
		},
		UpdateAllFunc: func(ctx context.Context) ([]agentstatus.StatusChange, error) {
			return []agentstatus.StatusChange{
				change(1, vo.StatusAway, vo.StatusOffline),
				change(3, vo.StatusAvailable, vo.StatusAway),
				change(4, vo.StatusBusy, vo.StatusOffline),
			}, nil
		},
	}
	reassigner := &mockReassigner{}
	job := NewStatusSweepJob(statuses, reassigner, logger.NewNopLogger())

	moved, err := job.Execute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []ids.AgentID{1, 4}, reassigner.unavailable)
	assert.Equal(t, 1, reassigner.botSweeps)
	assert.Equal(t, 1, reassigner.pendingRuns)
	assert.Equal(t, 2+2+1+1, moved)
}

func TestStatusSweepJob_ContinuesAfterFailures(t *testing.T) {
	statuses := &mockStatusBatcher{
		UpdateExpiredFunc: func(ctx context.Context) ([]agentstatus.StatusChange, error) {
			return nil, errors.NewInternalError("database unavailable")
		},
		UpdateAllFunc: func(ctx context.Context) ([]agentstatus.StatusChange, error) {
			return []agentstatus.StatusChange{change(7, vo.StatusAvailable, vo.StatusOffline)}, nil
		},
	}
	reassigner := &mockReassigner{
		UnavailableErr: errors.NewInternalError("lock timeout"),
		BotErr:         errors.NewInternalError("lock timeout"),
	}
	job := NewStatusSweepJob(statuses, reassigner, logger.NewNopLogger())

	moved, err := job.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []ids.AgentID{7}, reassigner.unavailable)
	assert.Equal(t, 1, reassigner.botSweeps)
	assert.Equal(t, 1, reassigner.pendingRuns)
	assert.Equal(t, 1, moved)
}

func TestStatusSweepJob_StopsReassigningWhenCancelled(t *testing.T) {
	statuses := &mockStatusBatcher{
		UpdateExpiredFunc: func(ctx context.Context) ([]agentstatus.StatusChange, error) { return nil, nil },
		UpdateAllFunc: func(ctx context.Context) ([]agentstatus.StatusChange, error) {
			return []agentstatus.StatusChange{change(1, vo.StatusAway, vo.StatusOffline)}, nil
		},
	}
	reassigner := &mockReassigner{}
	job := NewStatusSweepJob(statuses, reassigner, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := job.Execute(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, reassigner.unavailable)
}

// ---------------------------------------------------------------------------
// End to end with the real resolver and engine
// ---------------------------------------------------------------------------

func TestStatusSweepJob_IdleAgentTicketsFlowToBotAndBack(t *testing.T) {
	ctx := context.Background()
	clock := biztime.NewManualClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	agents := testutil.NewMemoryAgentRepository()
	tickets := testutil.NewMemoryTicketRepository(agents)
	conv := testutil.NewMemoryConversationStore(clock.Now)
	broadcaster := testutil.NewRecordingBroadcaster()
	resolver := agentstatus.NewResolver(agents, clock, agentstatus.DefaultSettings(), broadcaster, logger.NewNopLogger())
	engine := assignment.NewEngine(agents, tickets, conv, resolver, broadcaster, testutil.NewRecordingNotifier(), db.NoopTransactor{}, clock, logger.NewNopLogger())
	job := NewStatusSweepJob(resolver, engine, logger.NewNopLogger())

	human := func(userID ids.UserID, name string) *agent.Agent {
		a, err := agent.NewHuman(userID, name, 2, nil, nil, clock.Now())
		require.NoError(t, err)
		a = agents.Seed(a)
		_, err = resolver.UpdateActivity(ctx, a.ID())
		require.NoError(t, err)
		return a
	}

	alice := human(10, "Alice")
	b, err := agent.NewBot(90, "Support Bot", nil, clock.Now())
	require.NoError(t, err)
	bot := agents.Seed(b)

	roomID, err := conv.CreateRoom(ctx, "support")
	require.NoError(t, err)
	require.NoError(t, conv.AddParticipant(ctx, roomID, 1))
	tk, err := ticket.NewSupportTicket(1, false, "printer on fire", nil, roomID, clock.Now())
	require.NoError(t, err)
	require.NoError(t, tickets.Create(ctx, tk))

	result, err := engine.AssignTicket(ctx, tk.ID())
	require.NoError(t, err)
	require.Equal(t, alice.ID(), result.Agent.ID())

	// Alice stops responding past the away window.
	clock.Advance(31 * time.Minute)
	moved, err := job.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	stored := agents.MustGet(alice.ID())
	assert.Equal(t, vo.StatusOffline, stored.Status())
	assert.Equal(t, 0, stored.CurrentActiveChats())
	assert.True(t, tickets.MustGet(tk.ID()).IsAssignedTo(bot.ID()))

	// Bob comes online; the next run hands the ticket over.
	bob := human(11, "Bob")
	moved, err = job.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)
	assert.True(t, tickets.MustGet(tk.ID()).IsAssignedTo(bob.ID()))
	assert.Equal(t, 1, agents.MustGet(bob.ID()).CurrentActiveChats())

	// Nothing left to do.
	moved, err = job.Execute(ctx)
	require.NoError(t, err)
	assert.Zero(t, moved)
}
