package permission

import (
	"fmt"

	"github.com/orris-inc/livedesk/internal/shared/constants"
)

// Resources and actions guarded by the HTTP layer.
const (
	ResourceTicket   = "ticket"
	ResourceMessage  = "message"
	ResourceDelivery = "delivery"
	ResourceAgent    = "agent"
	ResourceRealtime = "realtime"

	ActionOpen      = "open"
	ActionRead      = "read"
	ActionClose     = "close"
	ActionTransfer  = "transfer"
	ActionPost      = "post"
	ActionAck       = "ack"
	ActionConnect   = "connect"
	ActionSetStatus = "set_status"
	ActionList      = "list"
	ActionProvision = "provision"
)

func defaultPolicies() [][]string {
	return [][]string{
		// Guests and customers chat through their own tickets.
		{constants.RoleGuest, ResourceTicket, ActionOpen},
		{constants.RoleGuest, ResourceTicket, ActionRead},
		{constants.RoleGuest, ResourceTicket, ActionClose},
		{constants.RoleGuest, ResourceMessage, ActionPost},
		{constants.RoleGuest, ResourceDelivery, ActionAck},
		{constants.RoleGuest, ResourceRealtime, ActionConnect},

		// Agents handle conversations and their own status.
		{constants.RoleAgent, ResourceTicket, ActionRead},
		{constants.RoleAgent, ResourceTicket, ActionClose},
		{constants.RoleAgent, ResourceTicket, ActionTransfer},
		{constants.RoleAgent, ResourceMessage, ActionPost},
		{constants.RoleAgent, ResourceDelivery, ActionAck},
		{constants.RoleAgent, ResourceDelivery, ActionRead},
		{constants.RoleAgent, ResourceRealtime, ActionConnect},
		{constants.RoleAgent, ResourceAgent, ActionRead},
		{constants.RoleAgent, ResourceAgent, ActionSetStatus},

		{constants.RoleAdmin, ResourceAgent, ActionList},
		{constants.RoleAdmin, ResourceAgent, ActionProvision},
	}
}

func defaultRoleLinks() [][]string {
	return [][]string{
		{constants.RoleCustomer, constants.RoleGuest},
		{constants.RoleAdmin, constants.RoleAgent},
	}
}

// SeedDefaultPolicies adds the built-in policies. Existing rules are kept.
func (e *Enforcer) SeedDefaultPolicies() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, policy := range defaultPolicies() {
		if _, err := e.enforcer.AddPolicy(policy[0], policy[1], policy[2]); err != nil {
			e.logger.Errorw("failed to add permission policy",
				"error", err,
				"role", policy[0],
				"resource", policy[1],
				"action", policy[2])
			return fmt.Errorf("failed to add policy [%s, %s, %s]: %w",
				policy[0], policy[1], policy[2], err)
		}
	}

	for _, link := range defaultRoleLinks() {
		if _, err := e.enforcer.AddRoleForUser(link[0], link[1]); err != nil {
			return fmt.Errorf("failed to link role %s to %s: %w", link[0], link[1], err)
		}
	}

	e.logger.Infow("default permissions initialized")
	return nil
}
