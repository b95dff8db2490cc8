package usecases

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/livedesk/internal/application/agentstatus"
	"github.com/orris-inc/livedesk/internal/application/assignment"
	"github.com/orris-inc/livedesk/internal/application/testutil"
	"github.com/orris-inc/livedesk/internal/domain/agent"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/domain/shared/realtime"
	ticketvo "github.com/orris-inc/livedesk/internal/domain/ticket/valueobjects"
	"github.com/orris-inc/livedesk/internal/shared/biztime"
	"github.com/orris-inc/livedesk/internal/shared/db"
	"github.com/orris-inc/livedesk/internal/shared/errors"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

type mockResponder struct {
	GreetingFunc func(ctx context.Context, req GreetingRequest) (string, error)
	requests     []GreetingRequest
}

func (m *mockResponder) Greeting(ctx context.Context, req GreetingRequest) (string, error) {
	m.requests = append(m.requests, req)
	return m.GreetingFunc(ctx, req)
}

type fixture struct {
	clock       *biztime.ManualClock
	agents      *testutil.MemoryAgentRepository
	tickets     *testutil.MemoryTicketRepository
	conv        *testutil.MemoryConversationStore
	broadcaster *testutil.RecordingBroadcaster
	trigger     *testutil.CountingTrigger
	resolver    *agentstatus.Resolver
	engine      *assignment.Engine
}

func newFixture() *fixture {
	f := &fixture{
		clock:       biztime.NewManualClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)),
		agents:      testutil.NewMemoryAgentRepository(),
		broadcaster: testutil.NewRecordingBroadcaster(),
		trigger:     &testutil.CountingTrigger{},
	}
	f.tickets = testutil.NewMemoryTicketRepository(f.agents)
	f.conv = testutil.NewMemoryConversationStore(f.clock.Now)
	f.resolver = agentstatus.NewResolver(f.agents, f.clock, agentstatus.DefaultSettings(), f.broadcaster, logger.NewNopLogger())
	f.engine = assignment.NewEngine(f.agents, f.tickets, f.conv, f.resolver, f.broadcaster, testutil.NewRecordingNotifier(), db.NoopTransactor{}, f.clock, logger.NewNopLogger())
	return f
}

func (f *fixture) openUseCase(responder BotResponder) *OpenTicketUseCase {
	return NewOpenTicketUseCase(f.tickets, f.conv, f.engine, responder, f.broadcaster, db.NoopTransactor{}, f.clock, logger.NewNopLogger())
}

func (f *fixture) closeUseCase() *CloseTicketUseCase {
	return NewCloseTicketUseCase(f.tickets, f.conv, f.engine, f.trigger, f.broadcaster, db.NoopTransactor{}, f.clock, logger.NewNopLogger())
}

// commitFailingTransactor runs the work and then reports a failed commit.
type commitFailingTransactor struct{}

func (commitFailingTransactor) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		return err
	}
	return fmt.Errorf("commit failed")
}

func (f *fixture) human(t *testing.T, userID ids.UserID, name string, maxChats int) *agent.Agent {
	t.Helper()
	a, err := agent.NewHuman(userID, name, maxChats, nil, nil, f.clock.Now())
	require.NoError(t, err)
	a = f.agents.Seed(a)
	_, err = f.resolver.UpdateActivity(context.Background(), a.ID())
	require.NoError(t, err)
	return f.agents.MustGet(a.ID())
}

func (f *fixture) bot(t *testing.T) *agent.Agent {
	t.Helper()
	b, err := agent.NewBot(90, "Helper Bot", nil, f.clock.Now())
	require.NoError(t, err)
	return f.agents.Seed(b)
}

func messageBodies(events []testutil.RecordedEvent) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		if p, ok := e.Payload.(realtime.MessagePayload); ok {
			out = append(out, p.Body)
		}
	}
	return out
}

func TestOpenTicketUseCase_AssignsAvailableAgent(t *testing.T) {
	f := newFixture()
	dana := f.human(t, 10, "Dana", 2)

	result, err := f.openUseCase(nil).Execute(context.Background(), OpenTicketCommand{
		RequesterID:    500,
		Subject:        "  Cannot log in ",
		InitialMessage: "I keep getting a 403",
	})
	require.NoError(t, err)

	assert.Equal(t, "Cannot log in", result.Subject)
	assert.Equal(t, ticketvo.StatusInProgress.String(), result.Status)
	require.NotNil(t, result.AssignedAgentID)
	assert.Equal(t, dana.ID(), *result.AssignedAgentID)
	assert.Equal(t, "Dana", result.AgentName)
	assert.False(t, result.AgentIsBot)

	assert.Equal(t, 1, f.agents.MustGet(dana.ID()).CurrentActiveChats())
	participants, err := f.conv.ListParticipants(context.Background(), result.ChatRoomID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []ids.UserID{500, 10}, participants)
	assert.Equal(t, []string{"Dana has joined the conversation."}, f.conv.SystemMessages(result.ChatRoomID))

	assert.Equal(t, []string{"I keep getting a 403"}, messageBodies(f.broadcaster.EventsNamed(realtime.EventMessageNew)))
	assert.Len(t, f.broadcaster.EventsNamed(realtime.EventTicketAssigned), 1)
}

func TestOpenTicketUseCase_BotGreetsWhenNoAgentIsFree(t *testing.T) {
	f := newFixture()
	bot := f.bot(t)
	responder := &mockResponder{GreetingFunc: func(ctx context.Context, req GreetingRequest) (string, error) {
		return "Hello! I can help with billing while you wait.", nil
	}}

	result, err := f.openUseCase(responder).Execute(context.Background(), OpenTicketCommand{
		RequesterID: 500,
		Guest:       true,
		Subject:     "Billing",
	})
	require.NoError(t, err)

	require.NotNil(t, result.AssignedAgentID)
	assert.Equal(t, bot.ID(), *result.AssignedAgentID)
	assert.True(t, result.AgentIsBot)
	require.Len(t, responder.requests, 1)
	assert.Equal(t, GreetingRequest{Subject: "Billing", Guest: true, BotName: "Helper Bot"}, responder.requests[0])

	greetings := f.broadcaster.EventsNamed(realtime.EventMessageNew)
	require.Len(t, greetings, 1)
	payload := greetings[0].Payload.(realtime.MessagePayload)
	assert.Equal(t, "Hello! I can help with billing while you wait.", payload.Body)
	require.NotNil(t, payload.SenderID)
	assert.Equal(t, bot.UserID(), *payload.SenderID)
}

func TestOpenTicketUseCase_ResponderFailureFallsBackToDefaultGreeting(t *testing.T) {
	f := newFixture()
	f.bot(t)
	responder := &mockResponder{GreetingFunc: func(ctx context.Context, req GreetingRequest) (string, error) {
		return "", errors.NewInternalError("rate limited")
	}}

	_, err := f.openUseCase(responder).Execute(context.Background(), OpenTicketCommand{RequesterID: 500})
	require.NoError(t, err)

	assert.Equal(t, []string{defaultBotGreeting}, messageBodies(f.broadcaster.EventsNamed(realtime.EventMessageNew)))
}

func TestOpenTicketUseCase_NobodyAvailable(t *testing.T) {
	f := newFixture()

	result, err := f.openUseCase(nil).Execute(context.Background(), OpenTicketCommand{RequesterID: 500})
	require.NoError(t, err)

	assert.Equal(t, defaultSubject, result.Subject)
	assert.Equal(t, ticketvo.StatusOpen.String(), result.Status)
	assert.Nil(t, result.AssignedAgentID)
	assert.Len(t, f.conv.SystemMessages(result.ChatRoomID), 1)
	assert.Contains(t, f.conv.SystemMessages(result.ChatRoomID)[0], "currently unavailable")
}

func TestOpenTicketUseCase_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		cmd  OpenTicketCommand
	}{
		{name: "missing requester", cmd: OpenTicketCommand{Subject: "x"}},
		{name: "subject too long", cmd: OpenTicketCommand{RequesterID: 1, Subject: strings.Repeat("é", 201)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.openUseCase(nil).Execute(context.Background(), tt.cmd)
			assert.True(t, errors.IsValidationError(err))
		})
	}
}

func TestCloseTicketUseCase_ReleasesAgentAndTriggersSweep(t *testing.T) {
	f := newFixture()
	dana := f.human(t, 10, "Dana", 1)
	opened, err := f.openUseCase(nil).Execute(context.Background(), OpenTicketCommand{RequesterID: 500})
	require.NoError(t, err)
	require.True(t, f.agents.MustGet(dana.ID()).AtCapacity())

	f.clock.Advance(time.Minute)
	result, err := f.closeUseCase().Execute(context.Background(), CloseTicketCommand{TicketID: opened.ID, ClosedBy: 500})
	require.NoError(t, err)

	assert.Equal(t, ticketvo.StatusClosed.String(), result.Status)
	assert.Equal(t, f.clock.Now(), result.ClosedAt)
	assert.Equal(t, 0, f.agents.MustGet(dana.ID()).CurrentActiveChats())
	assert.Equal(t, 1, f.trigger.Count())
	assert.Contains(t, f.conv.SystemMessages(opened.ChatRoomID), msgClosed)

	closed := f.broadcaster.EventsNamed(realtime.EventTicketClosed)
	require.Len(t, closed, 1)
	assert.Equal(t, opened.ChatRoomID, closed[0].RoomID)

	_, err = f.closeUseCase().Execute(context.Background(), CloseTicketCommand{TicketID: opened.ID, ClosedBy: 500})
	assert.True(t, errors.IsConflictError(err))
	assert.Equal(t, 0, f.agents.MustGet(dana.ID()).CurrentActiveChats(), "a second close does not release twice")
}

func TestCloseTicketUseCase_NothingAnnouncedWhenCommitFails(t *testing.T) {
	f := newFixture()
	f.human(t, 10, "Dana", 1)
	opened, err := f.openUseCase(nil).Execute(context.Background(), OpenTicketCommand{RequesterID: 500})
	require.NoError(t, err)
	statusEvents := len(f.broadcaster.EventsNamed(realtime.EventAgentStatus))

	uc := NewCloseTicketUseCase(f.tickets, f.conv, f.engine, f.trigger, f.broadcaster, commitFailingTransactor{}, f.clock, logger.NewNopLogger())
	_, err = uc.Execute(context.Background(), CloseTicketCommand{TicketID: opened.ID, ClosedBy: 500})
	require.Error(t, err)
	require.NotNil(t, errors.GetAppError(err))
	assert.Equal(t, errors.ErrorTypeInternal, errors.GetAppError(err).Type)

	assert.Len(t, f.broadcaster.EventsNamed(realtime.EventAgentStatus), statusEvents, "no status change announced for a rolled back close")
	assert.Empty(t, f.broadcaster.EventsNamed(realtime.EventTicketClosed))
	assert.Equal(t, 0, f.trigger.Count())
}

func TestCloseTicketUseCase_AnnouncesStatusAfterCommit(t *testing.T) {
	f := newFixture()
	dana := f.human(t, 10, "Dana", 1)
	opened, err := f.openUseCase(nil).Execute(context.Background(), OpenTicketCommand{RequesterID: 500})
	require.NoError(t, err)
	statusEvents := len(f.broadcaster.EventsNamed(realtime.EventAgentStatus))

	_, err = f.closeUseCase().Execute(context.Background(), CloseTicketCommand{TicketID: opened.ID, ClosedBy: 500})
	require.NoError(t, err)

	events := f.broadcaster.EventsNamed(realtime.EventAgentStatus)
	require.Len(t, events, statusEvents+1)
	assert.Equal(t, "available", f.agents.MustGet(dana.ID()).Status().String())
}

func TestCloseTicketUseCase_Authorization(t *testing.T) {
	f := newFixture()
	opened, err := f.openUseCase(nil).Execute(context.Background(), OpenTicketCommand{RequesterID: 500})
	require.NoError(t, err)

	_, err = f.closeUseCase().Execute(context.Background(), CloseTicketCommand{TicketID: opened.ID, ClosedBy: 501})
	assert.True(t, errors.IsForbiddenError(err))
	assert.True(t, f.tickets.MustGet(opened.ID).IsActive())

	_, err = f.closeUseCase().Execute(context.Background(), CloseTicketCommand{TicketID: opened.ID, ClosedBy: 10, IsStaff: true})
	require.NoError(t, err)

	_, err = f.closeUseCase().Execute(context.Background(), CloseTicketCommand{TicketID: 999, ClosedBy: 10, IsStaff: true})
	assert.True(t, errors.IsNotFoundError(err))
}

func TestTransferTicketUseCase_Execute(t *testing.T) {
	f := newFixture()
	dana := f.human(t, 10, "Dana", 2)
	opened, err := f.openUseCase(nil).Execute(context.Background(), OpenTicketCommand{RequesterID: 500})
	require.NoError(t, err)
	lee := f.human(t, 11, "Lee", 2)

	uc := NewTransferTicketUseCase(f.tickets, f.engine, logger.NewNopLogger())
	result, err := uc.Execute(context.Background(), TransferTicketCommand{
		TicketID:    opened.ID,
		ToAgentID:   ids.AgentIDPtr(lee.ID()),
		RequestedBy: 10,
	})
	require.NoError(t, err)
	require.NotNil(t, result.AssignedAgentID)
	assert.Equal(t, lee.ID(), *result.AssignedAgentID)
	assert.Equal(t, "Lee", result.AgentName)
	assert.Equal(t, 0, f.agents.MustGet(dana.ID()).CurrentActiveChats())
	assert.Equal(t, 1, f.agents.MustGet(lee.ID()).CurrentActiveChats())

	// Back to "anyone else": Dana is the only other human.
	result, err = uc.Execute(context.Background(), TransferTicketCommand{TicketID: opened.ID, RequestedBy: 11})
	require.NoError(t, err)
	assert.Equal(t, dana.ID(), *result.AssignedAgentID)

	_, err = uc.Execute(context.Background(), TransferTicketCommand{TicketID: opened.ID, ToAgentID: ids.AgentIDPtr(0)})
	assert.True(t, errors.IsValidationError(err))
}

func TestGetTicketUseCase_Execute(t *testing.T) {
	f := newFixture()
	f.human(t, 10, "Dana", 2)
	opened, err := f.openUseCase(nil).Execute(context.Background(), OpenTicketCommand{RequesterID: 500, Subject: "Refund"})
	require.NoError(t, err)

	uc := NewGetTicketUseCase(f.tickets, f.agents, logger.NewNopLogger())

	own, err := uc.Execute(context.Background(), GetTicketQuery{RoomID: opened.ChatRoomID, ViewerID: 500})
	require.NoError(t, err)
	assert.Equal(t, opened.ID, own.ID)
	assert.Equal(t, "Refund", own.Subject)
	assert.Equal(t, "Dana", own.AgentName)

	_, err = uc.Execute(context.Background(), GetTicketQuery{TicketID: opened.ID, ViewerID: 501})
	assert.True(t, errors.IsNotFoundError(err))

	staff, err := uc.Execute(context.Background(), GetTicketQuery{TicketID: opened.ID, ViewerID: 10, IsStaff: true})
	require.NoError(t, err)
	assert.Equal(t, opened.ID, staff.ID)

	_, err = uc.Execute(context.Background(), GetTicketQuery{ViewerID: 500})
	assert.True(t, errors.IsValidationError(err))
}
