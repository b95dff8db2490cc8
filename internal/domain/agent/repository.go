package agent

import (
	"context"
	"time"

	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
)

// Repository persists agents. Capacity counters are only ever changed
// through the atomic TryReserveChat, ReleaseChat and ResetActiveChats calls;
// Update never writes current_active_chats.
type Repository interface {
	Create(ctx context.Context, a *Agent) error
	// Update writes status and profile fields guarded by the agent version.
	// A stale version yields a conflict error.
	Update(ctx context.Context, a *Agent) error
	GetByID(ctx context.Context, id ids.AgentID) (*Agent, error)
	GetByUserID(ctx context.Context, userID ids.UserID) (*Agent, error)
	List(ctx context.Context) ([]*Agent, error)
	ListWithExpiredManualStatus(ctx context.Context, now time.Time) ([]*Agent, error)
	// ListAssignable returns active humans with at least one free slot.
	ListAssignable(ctx context.Context) ([]*Agent, error)
	// FindBot returns the bot of region, falling back to the global bot.
	FindBot(ctx context.Context, region *ids.RegionID) (*Agent, error)

	// TryReserveChat increments the counter only if a slot is free, in a
	// single atomic step. It reports false when the slot was lost.
	TryReserveChat(ctx context.Context, id ids.AgentID) (bool, error)
	ReleaseChat(ctx context.Context, id ids.AgentID) error
	ResetActiveChats(ctx context.Context, id ids.AgentID) error
}
