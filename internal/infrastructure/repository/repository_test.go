package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/orris-inc/livedesk/internal/domain/agent"
	vo "github.com/orris-inc/livedesk/internal/domain/agent/valueobjects"
	"github.com/orris-inc/livedesk/internal/domain/delivery"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/domain/ticket"
	ticketvo "github.com/orris-inc/livedesk/internal/domain/ticket/valueobjects"
	"github.com/orris-inc/livedesk/internal/infrastructure/persistence/models"
	"github.com/orris-inc/livedesk/internal/shared/biztime"
	"github.com/orris-inc/livedesk/internal/shared/db"
	"github.com/orris-inc/livedesk/internal/shared/errors"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

var testStart = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// Every pooled connection to :memory: would open a separate database.
	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = database.AutoMigrate(
		&models.AgentModel{},
		&models.SupportTicketModel{},
		&models.ChatRoomModel{},
		&models.ChatMessageModel{},
		&models.RoomParticipantModel{},
		&models.DeliveryStatusModel{},
	)
	require.NoError(t, err)
	return database
}

func newHuman(t *testing.T, userID ids.UserID, maxChats int, primary *ids.RegionID) *agent.Agent {
	t.Helper()
	a, err := agent.NewHuman(userID, "Agent "+userID.String(), maxChats, primary, []ids.RegionID{7, 8}, testStart)
	require.NoError(t, err)
	return a
}

func TestAgentRepository_CreateAndGet(t *testing.T) {
	database := setupTestDB(t)
	repo := NewAgentRepository(database, biztime.NewManualClock(testStart), logger.NewNopLogger())
	ctx := context.Background()

	a := newHuman(t, 10, 2, ids.RegionPtr(5))
	require.NoError(t, repo.Create(ctx, a))
	assert.NotZero(t, a.ID())

	found, err := repo.GetByUserID(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, a.ID(), found.ID())
	assert.Equal(t, vo.KindHuman, found.Kind())
	assert.Equal(t, []ids.RegionID{7, 8}, found.SecondaryRegions())
	require.NotNil(t, found.PrimaryRegion())
	assert.Equal(t, ids.RegionID(5), *found.PrimaryRegion())
	assert.Equal(t, vo.StatusOffline, found.Status())

	err = repo.Create(ctx, newHuman(t, 10, 1, nil))
	assert.True(t, errors.IsConflictError(err))

	_, err = repo.GetByID(ctx, 999)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestAgentRepository_UpdateIsVersionGuarded(t *testing.T) {
	database := setupTestDB(t)
	repo := NewAgentRepository(database, biztime.NewManualClock(testStart), logger.NewNopLogger())
	ctx := context.Background()

	a := newHuman(t, 10, 2, nil)
	require.NoError(t, repo.Create(ctx, a))

	first, err := repo.GetByID(ctx, a.ID())
	require.NoError(t, err)
	stale, err := repo.GetByID(ctx, a.ID())
	require.NoError(t, err)

	windows := agent.ActivityWindows{Available: 5 * time.Minute, Away: 30 * time.Minute}
	require.NoError(t, first.SetManualStatus(vo.StatusAway, testStart, 30*time.Minute, windows))
	require.NoError(t, repo.Update(ctx, first))
	assert.Equal(t, 2, first.Version())

	stale.RecordActivity(testStart)
	err = repo.Update(ctx, stale)
	assert.True(t, errors.IsConflictError(err))

	stored, err := repo.GetByID(ctx, a.ID())
	require.NoError(t, err)
	require.NotNil(t, stored.ManualStatus())
	assert.Equal(t, vo.StatusAway, *stored.ManualStatus())
	assert.Nil(t, stored.LastActivityAt())
}

func TestAgentRepository_UpdateDoesNotTouchCapacity(t *testing.T) {
	database := setupTestDB(t)
	repo := NewAgentRepository(database, biztime.NewManualClock(testStart), logger.NewNopLogger())
	ctx := context.Background()

	a := newHuman(t, 10, 3, nil)
	require.NoError(t, repo.Create(ctx, a))
	loaded, err := repo.GetByID(ctx, a.ID())
	require.NoError(t, err)

	ok, err := repo.TryReserveChat(ctx, a.ID())
	require.NoError(t, err)
	require.True(t, ok)

	// loaded is now stale; a fresh copy still keeps the reserved slot.
	assert.True(t, errors.IsConflictError(repo.Update(ctx, loaded)))
	fresh, err := repo.GetByID(ctx, a.ID())
	require.NoError(t, err)
	fresh.RecordActivity(testStart)
	require.NoError(t, repo.Update(ctx, fresh))

	stored, err := repo.GetByID(ctx, a.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentActiveChats())
}

func TestAgentRepository_TryReserveChat(t *testing.T) {
	database := setupTestDB(t)
	repo := NewAgentRepository(database, biztime.NewManualClock(testStart), logger.NewNopLogger())
	ctx := context.Background()

	a := newHuman(t, 10, 2, nil)
	a.RecordActivity(testStart)
	a.Refresh(testStart, agent.ActivityWindows{Available: 5 * time.Minute, Away: 30 * time.Minute})
	require.NoError(t, repo.Create(ctx, a))

	ok, err := repo.TryReserveChat(ctx, a.ID())
	require.NoError(t, err)
	assert.True(t, ok)
	stored, _ := repo.GetByID(ctx, a.ID())
	assert.Equal(t, 1, stored.CurrentActiveChats())
	assert.Equal(t, vo.StatusAvailable, stored.Status())

	ok, err = repo.TryReserveChat(ctx, a.ID())
	require.NoError(t, err)
	assert.True(t, ok)
	stored, _ = repo.GetByID(ctx, a.ID())
	assert.Equal(t, 2, stored.CurrentActiveChats())
	assert.Equal(t, vo.StatusBusy, stored.Status(), "last slot flips the agent to busy")

	ok, err = repo.TryReserveChat(ctx, a.ID())
	require.NoError(t, err)
	assert.False(t, ok)
	stored, _ = repo.GetByID(ctx, a.ID())
	assert.Equal(t, 2, stored.CurrentActiveChats())

	_, err = repo.TryReserveChat(ctx, 999)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestAgentRepository_TryReserveChatKeepsOfflineStatus(t *testing.T) {
	database := setupTestDB(t)
	repo := NewAgentRepository(database, biztime.NewManualClock(testStart), logger.NewNopLogger())
	ctx := context.Background()

	a := newHuman(t, 10, 1, nil)
	require.NoError(t, repo.Create(ctx, a))

	ok, err := repo.TryReserveChat(ctx, a.ID())
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := repo.GetByID(ctx, a.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentActiveChats())
	assert.Equal(t, vo.StatusOffline, stored.Status(), "only an available agent flips to busy")
}
func TestAgentRepository_BotsNeverConsumeSlots(t *testing.T) {
	database := setupTestDB(t)
	repo := NewAgentRepository(database, biztime.NewManualClock(testStart), logger.NewNopLogger())
	ctx := context.Background()

	bot, err := agent.NewBot(90, "", nil, testStart)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, bot))

	for range 3 {
		ok, err := repo.TryReserveChat(ctx, bot.ID())
		require.NoError(t, err)
		assert.True(t, ok)
	}
	require.NoError(t, repo.ReleaseChat(ctx, bot.ID()))

	stored, err := repo.GetByID(ctx, bot.ID())
	require.NoError(t, err)
	assert.Zero(t, stored.CurrentActiveChats())
}

func TestAgentRepository_ReleaseAndReset(t *testing.T) {
	database := setupTestDB(t)
	repo := NewAgentRepository(database, biztime.NewManualClock(testStart), logger.NewNopLogger())
	ctx := context.Background()

	a := newHuman(t, 10, 3, nil)
	require.NoError(t, repo.Create(ctx, a))
	for range 2 {
		_, err := repo.TryReserveChat(ctx, a.ID())
		require.NoError(t, err)
	}

	require.NoError(t, repo.ReleaseChat(ctx, a.ID()))
	require.NoError(t, repo.ResetActiveChats(ctx, a.ID()))
	require.NoError(t, repo.ReleaseChat(ctx, a.ID()), "releasing at zero is a no-op")

	stored, err := repo.GetByID(ctx, a.ID())
	require.NoError(t, err)
	assert.Zero(t, stored.CurrentActiveChats())

	assert.True(t, errors.IsNotFoundError(repo.ReleaseChat(ctx, 999)))
	assert.True(t, errors.IsNotFoundError(repo.ResetActiveChats(ctx, 999)))
}

func TestAgentRepository_Listings(t *testing.T) {
	database := setupTestDB(t)
	clock := biztime.NewManualClock(testStart)
	repo := NewAgentRepository(database, clock, logger.NewNopLogger())
	ctx := context.Background()
	windows := agent.ActivityWindows{Available: 5 * time.Minute, Away: 30 * time.Minute}

	free := newHuman(t, 10, 1, nil)
	full := newHuman(t, 11, 1, nil)
	inactive := newHuman(t, 12, 1, nil)
	inactive.Deactivate(testStart)
	bot, err := agent.NewBot(90, "", nil, testStart)
	require.NoError(t, err)
	for _, a := range []*agent.Agent{free, full, inactive, bot} {
		require.NoError(t, repo.Create(ctx, a))
	}
	_, err = repo.TryReserveChat(ctx, full.ID())
	require.NoError(t, err)

	assignable, err := repo.ListAssignable(ctx)
	require.NoError(t, err)
	require.Len(t, assignable, 1)
	assert.Equal(t, free.ID(), assignable[0].ID())

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	loaded, err := repo.GetByID(ctx, free.ID())
	require.NoError(t, err)
	require.NoError(t, loaded.SetManualStatus(vo.StatusAway, testStart, 30*time.Minute, windows))
	require.NoError(t, repo.Update(ctx, loaded))

	expired, err := repo.ListWithExpiredManualStatus(ctx, testStart.Add(29*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, expired)

	expired, err = repo.ListWithExpiredManualStatus(ctx, testStart.Add(31*time.Minute))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, free.ID(), expired[0].ID())
}

func TestAgentRepository_FindBot(t *testing.T) {
	database := setupTestDB(t)
	repo := NewAgentRepository(database, biztime.NewManualClock(testStart), logger.NewNopLogger())
	ctx := context.Background()

	_, err := repo.FindBot(ctx, nil)
	assert.True(t, errors.IsNotFoundError(err))

	global, err := agent.NewBot(90, "Global Bot", nil, testStart)
	require.NoError(t, err)
	regional, err := agent.NewBot(91, "EU Bot", ids.RegionPtr(3), testStart)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, global))
	require.NoError(t, repo.Create(ctx, regional))

	found, err := repo.FindBot(ctx, ids.RegionPtr(3))
	require.NoError(t, err)
	assert.Equal(t, regional.ID(), found.ID())

	found, err = repo.FindBot(ctx, ids.RegionPtr(4))
	require.NoError(t, err)
	assert.Equal(t, global.ID(), found.ID())

	found, err = repo.FindBot(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, global.ID(), found.ID())
}

func TestSupportTicketRepository_Lifecycle(t *testing.T) {
	database := setupTestDB(t)
	repo := NewSupportTicketRepository(database, logger.NewNopLogger())
	ctx := context.Background()

	tk, err := ticket.NewSupportTicket(500, true, "Where is my order?", ids.RegionPtr(3), 42, testStart)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, tk))
	assert.NotZero(t, tk.ID())

	dup, err := ticket.NewSupportTicket(501, false, "", nil, 42, testStart)
	require.NoError(t, err)
	assert.True(t, errors.IsConflictError(repo.Create(ctx, dup)))

	found, err := repo.GetByRoomID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, tk.ID(), found.ID())
	assert.True(t, found.IsGuest())
	assert.Equal(t, ticketvo.StatusOpen, found.Status())

	stale, err := repo.GetByID(ctx, tk.ID())
	require.NoError(t, err)

	require.NoError(t, found.AssignTo(7, testStart.Add(time.Minute)))
	require.NoError(t, repo.Update(ctx, found))

	require.NoError(t, stale.Close(testStart.Add(2*time.Minute)))
	assert.True(t, errors.IsConflictError(repo.Update(ctx, stale)))

	stored, err := repo.GetByID(ctx, tk.ID())
	require.NoError(t, err)
	assert.Equal(t, ticketvo.StatusInProgress, stored.Status())
	require.NotNil(t, stored.AssignedAgentID())
	assert.Equal(t, ids.AgentID(7), *stored.AssignedAgentID())

	_, err = repo.GetByID(ctx, 999)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestSupportTicketRepository_Queues(t *testing.T) {
	database := setupTestDB(t)
	agents := NewAgentRepository(database, biztime.NewManualClock(testStart), logger.NewNopLogger())
	repo := NewSupportTicketRepository(database, logger.NewNopLogger())
	ctx := context.Background()

	human := newHuman(t, 10, 3, nil)
	bot, err := agent.NewBot(90, "", nil, testStart)
	require.NoError(t, err)
	require.NoError(t, agents.Create(ctx, human))
	require.NoError(t, agents.Create(ctx, bot))

	open := func(room ids.RoomID, offset time.Duration, assignee *ids.AgentID) *ticket.SupportTicket {
		tk, err := ticket.NewSupportTicket(500, false, "", nil, room, testStart.Add(offset))
		require.NoError(t, err)
		if assignee != nil {
			require.NoError(t, tk.AssignTo(*assignee, testStart.Add(offset)))
		}
		require.NoError(t, repo.Create(ctx, tk))
		return tk
	}

	newer := open(1, 2*time.Minute, nil)
	older := open(2, time.Minute, nil)
	withBot := open(3, 0, ids.AgentIDPtr(bot.ID()))
	withHuman := open(4, 0, ids.AgentIDPtr(human.ID()))
	closed := open(5, 0, ids.AgentIDPtr(bot.ID()))
	require.NoError(t, closed.Close(testStart))
	require.NoError(t, repo.Update(ctx, closed))

	unassigned, err := repo.ListUnassignedOpen(ctx)
	require.NoError(t, err)
	require.Len(t, unassigned, 2)
	assert.Equal(t, older.ID(), unassigned[0].ID(), "oldest first")
	assert.Equal(t, newer.ID(), unassigned[1].ID())

	held, err := repo.ListActiveHeldByBots(ctx)
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, withBot.ID(), held[0].ID())

	byHuman, err := repo.ListActiveByAgent(ctx, human.ID())
	require.NoError(t, err)
	require.Len(t, byHuman, 1)
	assert.Equal(t, withHuman.ID(), byHuman[0].ID())

	count, err := repo.CountActiveByAgent(ctx, bot.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDeliveryStatusRepository_OnlyMovesForward(t *testing.T) {
	database := setupTestDB(t)
	repo := NewDeliveryStatusRepository(database)
	ctx := context.Background()

	changed, err := repo.Upgrade(ctx, 1, 500, delivery.StateDelivered, testStart)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.Upgrade(ctx, 1, 500, delivery.StateDelivered, testStart.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = repo.Upgrade(ctx, 1, 500, delivery.StateSent, testStart.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = repo.Upgrade(ctx, 1, 500, delivery.StateRead, testStart.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, changed)

	status, err := repo.Get(ctx, 1, 500)
	require.NoError(t, err)
	assert.Equal(t, delivery.StateRead, status.State())
	assert.Equal(t, testStart.Add(2*time.Minute), status.StatusAt())

	_, err = repo.Get(ctx, 1, 501)
	assert.True(t, errors.IsNotFoundError(err))

	_, err = repo.Upgrade(ctx, 1, 500, delivery.State(9), testStart)
	assert.True(t, errors.IsValidationError(err))
}

func TestDeliveryStatusRepository_UpgradeMany(t *testing.T) {
	database := setupTestDB(t)
	repo := NewDeliveryStatusRepository(database)
	ctx := context.Background()

	_, err := repo.Upgrade(ctx, 2, 500, delivery.StateRead, testStart)
	require.NoError(t, err)

	changed, err := repo.UpgradeMany(ctx, []ids.MessageID{1, 2, 3}, 500, delivery.StateDelivered, testStart)
	require.NoError(t, err)
	assert.Equal(t, []ids.MessageID{1, 3}, changed)

	_, err = repo.Upgrade(ctx, 1, 400, delivery.StateSent, testStart)
	require.NoError(t, err)
	list, err := repo.ListByMessage(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ids.UserID(400), list[0].RecipientID())
	assert.Equal(t, delivery.StateSent, list[0].State())
	assert.Equal(t, delivery.StateDelivered, list[1].State())
}

func TestConversationStore_UnreadTracking(t *testing.T) {
	database := setupTestDB(t)
	clock := biztime.NewManualClock(testStart)
	store := NewConversationStore(database, clock, logger.NewNopLogger())
	ctx := context.Background()

	room, err := store.CreateRoom(ctx, "support")
	require.NoError(t, err)
	require.NoError(t, store.AddParticipant(ctx, room, 500))
	require.NoError(t, store.AddParticipant(ctx, room, 10))
	require.NoError(t, store.AddParticipant(ctx, room, 10), "adding twice is a no-op")

	participants, err := store.ListParticipants(ctx, room)
	require.NoError(t, err)
	assert.ElementsMatch(t, []ids.UserID{500, 10}, participants)

	first, err := store.PostMessage(ctx, room, 500, "hi")
	require.NoError(t, err)
	_, err = store.AddSystemMessage(ctx, room, "Dana joined")
	require.NoError(t, err)
	second, err := store.PostMessage(ctx, room, 500, "anyone?")
	require.NoError(t, err)
	_, err = store.PostMessage(ctx, room, 10, "hello")
	require.NoError(t, err)

	unread, err := store.ListUnreadIncoming(ctx, room, 10, 0)
	require.NoError(t, err)
	require.Len(t, unread, 2, "own and system messages are excluded")
	assert.Equal(t, first.ID, unread[0].ID)
	assert.Equal(t, second.ID, unread[1].ID)
	require.NotNil(t, unread[0].SenderID)
	assert.Equal(t, ids.UserID(500), *unread[0].SenderID)

	moved, err := store.AdvanceReadWatermark(ctx, room, 10, first.ID)
	require.NoError(t, err)
	assert.True(t, moved)
	moved, err = store.AdvanceReadWatermark(ctx, room, 10, first.ID)
	require.NoError(t, err)
	assert.False(t, moved, "watermark never moves backwards or sideways")

	watermark, err := store.GetReadWatermark(ctx, room, 10)
	require.NoError(t, err)
	assert.Equal(t, first.ID, watermark)

	count, err := store.RecountUnread(ctx, room, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	var row models.RoomParticipantModel
	require.NoError(t, database.Where("room_id = ? AND user_id = ?", uint(room), 10).First(&row).Error)
	assert.Equal(t, 1, row.UnreadCount)

	require.NoError(t, store.RemoveParticipant(ctx, room, 10))
	participants, err = store.ListParticipants(ctx, room)
	require.NoError(t, err)
	assert.Equal(t, []ids.UserID{500}, participants)
}

func TestConversationStore_Errors(t *testing.T) {
	database := setupTestDB(t)
	store := NewConversationStore(database, biztime.NewManualClock(testStart), logger.NewNopLogger())
	ctx := context.Background()

	_, err := store.PostMessage(ctx, 404, 500, "hi")
	assert.True(t, errors.IsNotFoundError(err))

	_, err = store.GetMessage(ctx, 404)
	assert.True(t, errors.IsNotFoundError(err))

	watermark, err := store.GetReadWatermark(ctx, 404, 500)
	require.NoError(t, err)
	assert.Zero(t, watermark)
}

func TestTransactionManager_RollsBack(t *testing.T) {
	database := setupTestDB(t)
	txm := db.NewTransactionManager(database)
	store := NewConversationStore(database, biztime.NewManualClock(testStart), logger.NewNopLogger())
	ctx := context.Background()

	boom := errors.NewInternalError("boom")
	err := txm.RunInTransaction(ctx, func(txCtx context.Context) error {
		if _, err := store.CreateRoom(txCtx, "doomed"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, database.Model(&models.ChatRoomModel{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestConversationStore_IsParticipant(t *testing.T) {
	database := setupTestDB(t)
	store := NewConversationStore(database, biztime.NewManualClock(testStart), logger.NewNopLogger())
	ctx := context.Background()

	room, err := store.CreateRoom(ctx, "support")
	require.NoError(t, err)
	require.NoError(t, store.AddParticipant(ctx, room, 500))

	member, err := store.IsParticipant(ctx, room, 500)
	require.NoError(t, err)
	assert.True(t, member)

	member, err = store.IsParticipant(ctx, room, 999)
	require.NoError(t, err)
	assert.False(t, member)

	require.NoError(t, store.RemoveParticipant(ctx, room, 500))
	member, err = store.IsParticipant(ctx, room, 500)
	require.NoError(t, err)
	assert.False(t, member)
}
