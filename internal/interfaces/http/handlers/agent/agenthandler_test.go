package agent

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agentdto "github.com/orris-inc/livedesk/internal/application/agent/dto"
	"github.com/orris-inc/livedesk/internal/application/agent/usecases"
	"github.com/orris-inc/livedesk/internal/interfaces/http/handlers/testutil"
	"github.com/orris-inc/livedesk/internal/shared/constants"
	"github.com/orris-inc/livedesk/internal/shared/errors"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

type mockProvisionUC struct {
	ExecuteFunc func(ctx context.Context, cmd usecases.ProvisionAgentCommand) (*agentdto.AgentDTO, error)
}

func (m *mockProvisionUC) Execute(ctx context.Context, cmd usecases.ProvisionAgentCommand) (*agentdto.AgentDTO, error) {
	return m.ExecuteFunc(ctx, cmd)
}

type mockSetStatusUC struct {
	ExecuteFunc func(ctx context.Context, cmd usecases.SetAgentStatusCommand) (*usecases.SetAgentStatusResult, error)
}

func (m *mockSetStatusUC) Execute(ctx context.Context, cmd usecases.SetAgentStatusCommand) (*usecases.SetAgentStatusResult, error) {
	return m.ExecuteFunc(ctx, cmd)
}

type mockGetStatusUC struct {
	ExecuteFunc func(ctx context.Context, query usecases.GetAgentStatusQuery) (*agentdto.AgentStatusDTO, error)
}

func (m *mockGetStatusUC) Execute(ctx context.Context, query usecases.GetAgentStatusQuery) (*agentdto.AgentStatusDTO, error) {
	return m.ExecuteFunc(ctx, query)
}

type mockListUC struct {
	ExecuteFunc func(ctx context.Context) ([]*agentdto.AgentDTO, error)
}

func (m *mockListUC) Execute(ctx context.Context) ([]*agentdto.AgentDTO, error) {
	return m.ExecuteFunc(ctx)
}

func TestAgentHandler_ProvisionAgent(t *testing.T) {
	var captured usecases.ProvisionAgentCommand
	handler := NewAgentHandler(&mockProvisionUC{
		ExecuteFunc: func(ctx context.Context, cmd usecases.ProvisionAgentCommand) (*agentdto.AgentDTO, error) {
			captured = cmd
			return &agentdto.AgentDTO{ID: 1, UserID: cmd.UserID, DisplayName: cmd.DisplayName}, nil
		},
	}, nil, nil, nil, logger.NewNopLogger())

	primary := uint(2)
	c, w := testutil.NewTestContext(http.MethodPost, "/agents", ProvisionAgentRequest{
		UserID:             7,
		DisplayName:        "Ana",
		MaxConcurrentChats: 4,
		PrimaryRegion:      &primary,
		SecondaryRegions:   []uint{3, 4},
	})
	testutil.SetAuthContext(c, 1, constants.RoleAdmin)
	handler.ProvisionAgent(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.EqualValues(t, 7, captured.UserID)
	assert.Equal(t, 4, captured.MaxConcurrentChats)
	require.NotNil(t, captured.PrimaryRegion)
	assert.EqualValues(t, 2, *captured.PrimaryRegion)
	assert.Len(t, captured.SecondaryRegions, 2)
}

func TestAgentHandler_ProvisionAgent_Validation(t *testing.T) {
	handler := NewAgentHandler(&mockProvisionUC{
		ExecuteFunc: func(ctx context.Context, cmd usecases.ProvisionAgentCommand) (*agentdto.AgentDTO, error) {
			t.Fatal("use case must not run")
			return nil, nil
		},
	}, nil, nil, nil, logger.NewNopLogger())

	tests := map[string]any{
		"missing body":  nil,
		"missing user":  ProvisionAgentRequest{DisplayName: "Ana"},
		"unknown kind":  ProvisionAgentRequest{UserID: 7, DisplayName: "Ana", Kind: "robot"},
		"zero capacity": ProvisionAgentRequest{UserID: 7, DisplayName: "Ana", MaxConcurrentChats: -1},
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			c, w := testutil.NewTestContext(http.MethodPost, "/agents", body)
			handler.ProvisionAgent(c)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestAgentHandler_SetMyStatus(t *testing.T) {
	var captured usecases.SetAgentStatusCommand
	handler := NewAgentHandler(nil, &mockSetStatusUC{
		ExecuteFunc: func(ctx context.Context, cmd usecases.SetAgentStatusCommand) (*usecases.SetAgentStatusResult, error) {
			captured = cmd
			return &usecases.SetAgentStatusResult{AgentID: 3, Previous: "available", Status: "away", TicketsReassigned: 2}, nil
		},
	}, nil, nil, logger.NewNopLogger())

	c, w := testutil.NewTestContext(http.MethodPut, "/agents/me/status", SetStatusRequest{Status: "away"})
	testutil.SetAuthContext(c, 7, constants.RoleAgent)
	handler.SetMyStatus(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 7, captured.UserID)
	assert.Equal(t, "away", captured.Status)

	var resp testutil.APIResponse
	require.NoError(t, testutil.ParseResponse(w, &resp))
	assert.JSONEq(t, `{"agent_id":3,"previous":"available","status":"away","tickets_reassigned":2}`, string(resp.Data))

	c, w = testutil.NewTestContext(http.MethodPut, "/agents/me/status", SetStatusRequest{Status: "sleeping"})
	testutil.SetAuthContext(c, 7, constants.RoleAgent)
	handler.SetMyStatus(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAgentHandler_GetStatus(t *testing.T) {
	var queries []usecases.GetAgentStatusQuery
	handler := NewAgentHandler(nil, nil, &mockGetStatusUC{
		ExecuteFunc: func(ctx context.Context, query usecases.GetAgentStatusQuery) (*agentdto.AgentStatusDTO, error) {
			queries = append(queries, query)
			if query.AgentID == 99 {
				return nil, errors.NewNotFoundError("agent not found")
			}
			return &agentdto.AgentStatusDTO{AgentID: 3, Status: "available"}, nil
		},
	}, nil, logger.NewNopLogger())

	c, w := testutil.NewTestContext(http.MethodGet, "/agents/me/status", nil)
	testutil.SetAuthContext(c, 7, constants.RoleAgent)
	handler.GetMyStatus(c)
	assert.Equal(t, http.StatusOK, w.Code)

	c, w = testutil.NewTestContext(http.MethodGet, "/agents/99/status", nil)
	testutil.SetURLParam(c, "id", "99")
	testutil.SetAuthContext(c, 1, constants.RoleAdmin)
	handler.GetAgentStatus(c)
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Len(t, queries, 2)
	assert.EqualValues(t, 7, queries[0].UserID)
	assert.EqualValues(t, 99, queries[1].AgentID)
}

func TestAgentHandler_ListAgents(t *testing.T) {
	handler := NewAgentHandler(nil, nil, nil, &mockListUC{
		ExecuteFunc: func(ctx context.Context) ([]*agentdto.AgentDTO, error) {
			return []*agentdto.AgentDTO{{ID: 1, DisplayName: "Ana"}, {ID: 2, DisplayName: "Bot"}}, nil
		},
	}, logger.NewNopLogger())

	c, w := testutil.NewTestContext(http.MethodGet, "/agents", nil)
	testutil.SetAuthContext(c, 1, constants.RoleAdmin)
	handler.ListAgents(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp testutil.APIResponse
	require.NoError(t, testutil.ParseResponse(w, &resp))
	assert.Contains(t, string(resp.Data), `"display_name":"Bot"`)
}
