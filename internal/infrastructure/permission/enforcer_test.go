package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/orris-inc/livedesk/internal/shared/constants"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

func newTestEnforcer(t *testing.T) (*Enforcer, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	e, err := NewEnforcer(db, "", logger.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, e.SeedDefaultPolicies())
	return e, db
}

func TestEnforcer_DefaultPolicies(t *testing.T) {
	e, _ := newTestEnforcer(t)

	tests := []struct {
		role     string
		resource string
		action   string
		allowed  bool
	}{
		{constants.RoleGuest, ResourceTicket, ActionOpen, true},
		{constants.RoleCustomer, ResourceTicket, ActionOpen, true},
		{constants.RoleCustomer, ResourceMessage, ActionPost, true},
		{constants.RoleCustomer, ResourceTicket, ActionTransfer, false},
		{constants.RoleAgent, ResourceTicket, ActionTransfer, true},
		{constants.RoleAgent, ResourceTicket, ActionOpen, false},
		{constants.RoleAgent, ResourceAgent, ActionProvision, false},
		{constants.RoleAdmin, ResourceAgent, ActionProvision, true},
		{constants.RoleAdmin, ResourceTicket, ActionTransfer, true},
		{"unknown", ResourceTicket, ActionRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.role+"/"+tt.resource+"/"+tt.action, func(t *testing.T) {
			allowed, err := e.Enforce(tt.role, tt.resource, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, allowed)
		})
	}
}

func TestEnforcer_PoliciesPersist(t *testing.T) {
	e, db := newTestEnforcer(t)
	require.NoError(t, e.AddPolicy(constants.RoleGuest, ResourceAgent, ActionRead))

	reloaded, err := NewEnforcer(db, "", logger.NewNopLogger())
	require.NoError(t, err)

	allowed, err := reloaded.Enforce(constants.RoleCustomer, ResourceAgent, ActionRead)
	require.NoError(t, err)
	assert.True(t, allowed)

	require.NoError(t, reloaded.RemovePolicy(constants.RoleGuest, ResourceAgent, ActionRead))
	require.NoError(t, e.LoadPolicy())
	allowed, err = e.Enforce(constants.RoleGuest, ResourceAgent, ActionRead)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestEnforcer_SeedIsIdempotent(t *testing.T) {
	e, _ := newTestEnforcer(t)
	require.NoError(t, e.SeedDefaultPolicies())

	perms, err := e.PermissionsForRole(constants.RoleAdmin)
	require.NoError(t, err)
	assert.Contains(t, perms, []string{constants.RoleAdmin, ResourceAgent, ActionProvision})
	assert.Contains(t, perms, []string{constants.RoleAgent, ResourceTicket, ActionTransfer})
}
