package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/livedesk/internal/application/testutil"
	domain "github.com/orris-inc/livedesk/internal/domain/delivery"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/domain/shared/realtime"
	"github.com/orris-inc/livedesk/internal/shared/biztime"
	"github.com/orris-inc/livedesk/internal/shared/db"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

const (
	alice ids.UserID = 1
	bob   ids.UserID = 2
	carol ids.UserID = 3
)

type fixture struct {
	clock       *biztime.ManualClock
	statuses    *testutil.MemoryDeliveryRepository
	conv        *testutil.MemoryConversationStore
	broadcaster *testutil.RecordingBroadcaster
	tracker     *Tracker
	room        ids.RoomID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock:       biztime.NewManualClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)),
		statuses:    testutil.NewMemoryDeliveryRepository(),
		broadcaster: testutil.NewRecordingBroadcaster(),
	}
	f.conv = testutil.NewMemoryConversationStore(f.clock.Now)

	tracker, err := NewTracker(f.statuses, f.conv, f.broadcaster, db.NoopTransactor{}, f.clock, logger.NewNopLogger(), 16)
	require.NoError(t, err)
	f.tracker = tracker

	ctx := context.Background()
	f.room, err = f.conv.CreateRoom(ctx, "support")
	require.NoError(t, err)
	for _, u := range []ids.UserID{alice, bob, carol} {
		require.NoError(t, f.conv.AddParticipant(ctx, f.room, u))
	}
	return f
}

func (f *fixture) post(t *testing.T, sender ids.UserID, body string) ids.MessageID {
	t.Helper()
	msg, err := f.conv.PostMessage(context.Background(), f.room, sender, body)
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	return msg.ID
}

func TestAcknowledgeDelivered_NotifiesSenderOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	msgID := f.post(t, alice, "hello")

	changed, err := f.tracker.AcknowledgeDelivered(ctx, msgID, bob)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = f.tracker.AcknowledgeDelivered(ctx, msgID, bob)
	require.NoError(t, err)
	assert.False(t, changed)

	events := f.broadcaster.EventsNamed(realtime.EventMessageDelivered)
	require.Len(t, events, 1)
	assert.Equal(t, alice, events[0].UserID)
	payload := events[0].Payload.(realtime.DeliveryPayload)
	assert.Equal(t, bob, payload.RecipientID)
	assert.Equal(t, "delivered", payload.Status)
}

func TestAcknowledge_IgnoresSenderAndUnknownMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	msgID := f.post(t, alice, "hello")

	changed, err := f.tracker.AcknowledgeDelivered(ctx, msgID, alice)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = f.tracker.AcknowledgeRead(ctx, msgID, alice)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = f.tracker.AcknowledgeRead(ctx, 9999, bob)
	require.NoError(t, err)
	assert.False(t, changed)

	assert.Empty(t, f.broadcaster.Events())
}

func TestAcknowledge_NeverMovesBackwards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	msgID := f.post(t, alice, "hello")

	_, err := f.tracker.AcknowledgeRead(ctx, msgID, bob)
	require.NoError(t, err)

	changed, err := f.tracker.AcknowledgeDelivered(ctx, msgID, bob)
	require.NoError(t, err)
	assert.False(t, changed)

	state, err := f.tracker.GetStatus(ctx, msgID, bob)
	require.NoError(t, err)
	assert.Equal(t, domain.StateRead, state)
}

func TestAcknowledgeRead_AdvancesWatermarkAndUnreadCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.post(t, alice, "one")
	second := f.post(t, alice, "two")
	f.post(t, alice, "three")
	require.Equal(t, 3, f.conv.Unread(f.room, bob))

	_, err := f.tracker.AcknowledgeRead(ctx, second, bob)
	require.NoError(t, err)

	watermark, err := f.conv.GetReadWatermark(ctx, f.room, bob)
	require.NoError(t, err)
	assert.Equal(t, second, watermark)
	assert.Equal(t, 1, f.conv.Unread(f.room, bob))

	// Reading an older message never moves the watermark back.
	_, err = f.tracker.AcknowledgeRead(ctx, first, bob)
	require.NoError(t, err)
	watermark, err = f.conv.GetReadWatermark(ctx, f.room, bob)
	require.NoError(t, err)
	assert.Equal(t, second, watermark)

	unread := f.broadcaster.EventsNamed(realtime.EventRoomUnread)
	require.Len(t, unread, 2)
	assert.Equal(t, bob, unread[1].UserID)
	assert.Equal(t, 1, unread[1].Payload.(realtime.UnreadPayload).UnreadCount)
}

func TestMarkRoomRead_NotifiesEachSenderOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a1 := f.post(t, alice, "a1")
	c1 := f.post(t, carol, "c1")
	a2 := f.post(t, alice, "a2")
	f.post(t, bob, "own message")

	// a1 was already read individually.
	_, err := f.tracker.AcknowledgeRead(ctx, a1, bob)
	require.NoError(t, err)
	f.broadcaster.Reset()

	n, err := f.tracker.MarkRoomRead(ctx, bob, f.room)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	read := f.broadcaster.EventsNamed(realtime.EventMessagesRead)
	require.Len(t, read, 2)
	bySender := map[ids.UserID][]ids.MessageID{}
	for _, e := range read {
		bySender[e.UserID] = e.Payload.(realtime.BulkReadPayload).MessageIDs
	}
	assert.Equal(t, []ids.MessageID{a2}, bySender[alice])
	assert.Equal(t, []ids.MessageID{c1}, bySender[carol])

	watermark, err := f.conv.GetReadWatermark(ctx, f.room, bob)
	require.NoError(t, err)
	assert.Equal(t, a2, watermark)
	assert.Zero(t, f.conv.Unread(f.room, bob))

	// Nothing left to mark.
	n, err = f.tracker.MarkRoomRead(ctx, bob, f.room)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLookupUsesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	msgID := f.post(t, alice, "hello")

	_, err := f.tracker.AcknowledgeDelivered(ctx, msgID, bob)
	require.NoError(t, err)
	assert.True(t, f.tracker.refs.Contains(msgID))
}

func TestAcknowledge_IgnoresUsersOutsideTheRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const outsider ids.UserID = 999
	msgID := f.post(t, alice, "hello")

	changed, err := f.tracker.AcknowledgeDelivered(ctx, msgID, outsider)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = f.tracker.AcknowledgeRead(ctx, msgID, outsider)
	require.NoError(t, err)
	assert.False(t, changed)

	n, err := f.tracker.MarkRoomRead(ctx, outsider, f.room)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Empty(t, f.broadcaster.Events())
	recipients, err := f.tracker.ListRecipients(ctx, msgID)
	require.NoError(t, err)
	assert.Empty(t, recipients)
	watermark, err := f.conv.GetReadWatermark(ctx, f.room, outsider)
	require.NoError(t, err)
	assert.Zero(t, watermark)
}

func TestAcknowledge_IgnoresFormerMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	msgID := f.post(t, alice, "hello")
	require.NoError(t, f.conv.RemoveParticipant(ctx, f.room, carol))

	changed, err := f.tracker.AcknowledgeRead(ctx, msgID, carol)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, f.broadcaster.EventsNamed(realtime.EventMessageRead))

	state, err := f.tracker.GetStatus(ctx, msgID, carol)
	require.NoError(t, err)
	assert.Equal(t, domain.StateSent, state)
}
