// Package delivery advances per-recipient message delivery state and tells
// senders when their messages were delivered or read.
package delivery

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/orris-inc/livedesk/internal/domain/conversation"
	domain "github.com/orris-inc/livedesk/internal/domain/delivery"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/domain/shared/realtime"
	"github.com/orris-inc/livedesk/internal/shared/biztime"
	"github.com/orris-inc/livedesk/internal/shared/db"
	"github.com/orris-inc/livedesk/internal/shared/errors"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

const DefaultLookupCacheSize = 4096

// messageRef is the part of a message the tracker needs. Messages never
// change once stored, so cached refs never go stale.
type messageRef struct {
	sender *ids.UserID
	room   ids.RoomID
}

func (r messageRef) sentBy(userID ids.UserID) bool {
	return r.sender != nil && *r.sender == userID
}

type Tracker struct {
	statuses    domain.Repository
	conv        conversation.Store
	broadcaster realtime.Broadcaster
	txm         db.Transactor
	clock       biztime.Clock
	logger      logger.Interface
	refs        *lru.Cache[ids.MessageID, messageRef]
}

func NewTracker(
	statuses domain.Repository,
	conv conversation.Store,
	broadcaster realtime.Broadcaster,
	txm db.Transactor,
	clock biztime.Clock,
	log logger.Interface,
	cacheSize int,
) (*Tracker, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultLookupCacheSize
	}
	refs, err := lru.New[ids.MessageID, messageRef](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create message lookup cache: %w", err)
	}
	return &Tracker{
		statuses:    statuses,
		conv:        conv,
		broadcaster: broadcaster,
		txm:         txm,
		clock:       clock,
		logger:      log,
		refs:        refs,
	}, nil
}

// lookup resolves a message to its sender and room. ok is false for unknown ids.
func (t *Tracker) lookup(ctx context.Context, messageID ids.MessageID) (messageRef, bool, error) {
	if ref, ok := t.refs.Get(messageID); ok {
		return ref, true, nil
	}
	msg, err := t.conv.GetMessage(ctx, messageID)
	if err != nil {
		if errors.IsNotFoundError(err) {
			return messageRef{}, false, nil
		}
		return messageRef{}, false, fmt.Errorf("failed to load message %d: %w", messageID, err)
	}
	ref := t.remember(msg)
	return ref, true, nil
}

func (t *Tracker) remember(msg *conversation.Message) messageRef {
	ref := messageRef{sender: msg.SenderID, room: msg.RoomID}
	t.refs.Add(msg.ID, ref)
	return ref
}

// recipient resolves a message and reports whether userID may acknowledge
// it: the message exists, userID did not send it and is in its room.
func (t *Tracker) recipient(ctx context.Context, messageID ids.MessageID, userID ids.UserID) (messageRef, bool, error) {
	ref, ok, err := t.lookup(ctx, messageID)
	if err != nil || !ok || ref.sentBy(userID) {
		return messageRef{}, false, err
	}
	member, err := t.conv.IsParticipant(ctx, ref.room, userID)
	if err != nil {
		return messageRef{}, false, fmt.Errorf("failed to check room membership: %w", err)
	}
	if !member {
		t.logger.Debugw("ignoring acknowledgement from non-member",
			"message_id", messageID,
			"room_id", ref.room,
			"user_id", userID,
		)
		return messageRef{}, false, nil
	}
	return ref, true, nil
}

// AcknowledgeDelivered records that userID's client received the message.
// It reports whether the stored state moved.
func (t *Tracker) AcknowledgeDelivered(ctx context.Context, messageID ids.MessageID, userID ids.UserID) (bool, error) {
	ref, ok, err := t.recipient(ctx, messageID, userID)
	if err != nil || !ok {
		return false, err
	}

	changed, err := t.statuses.Upgrade(ctx, messageID, userID, domain.StateDelivered, t.clock.Now())
	if err != nil {
		return false, fmt.Errorf("failed to record delivery: %w", err)
	}
	if changed && ref.sender != nil {
		t.broadcaster.SendToUser(ctx, *ref.sender, realtime.EventMessageDelivered, realtime.DeliveryPayload{
			MessageID:   messageID,
			RoomID:      ref.room,
			RecipientID: userID,
			Status:      domain.StateDelivered.String(),
		})
	}
	return changed, nil
}

// AcknowledgeRead records a read, advances the reader's watermark and
// refreshes the reader's unread count.
func (t *Tracker) AcknowledgeRead(ctx context.Context, messageID ids.MessageID, userID ids.UserID) (bool, error) {
	ref, ok, err := t.recipient(ctx, messageID, userID)
	if err != nil || !ok {
		return false, err
	}

	var changed bool
	var unread int
	err = t.txm.RunInTransaction(ctx, func(txCtx context.Context) error {
		var err error
		changed, err = t.statuses.Upgrade(txCtx, messageID, userID, domain.StateRead, t.clock.Now())
		if err != nil {
			return fmt.Errorf("failed to record read: %w", err)
		}
		if _, err := t.conv.AdvanceReadWatermark(txCtx, ref.room, userID, messageID); err != nil {
			return fmt.Errorf("failed to advance read watermark: %w", err)
		}
		unread, err = t.conv.RecountUnread(txCtx, ref.room, userID)
		if err != nil {
			return fmt.Errorf("failed to recount unread messages: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	if changed && ref.sender != nil {
		t.broadcaster.SendToUser(ctx, *ref.sender, realtime.EventMessageRead, realtime.DeliveryPayload{
			MessageID:   messageID,
			RoomID:      ref.room,
			RecipientID: userID,
			Status:      domain.StateRead.String(),
		})
	}
	t.broadcaster.SendToUser(ctx, userID, realtime.EventRoomUnread, realtime.UnreadPayload{
		RoomID:      ref.room,
		UnreadCount: unread,
	})
	return changed, nil
}

// MarkRoomRead marks every incoming message above the reader's watermark as
// read in one pass and notifies each distinct sender once. It returns the
// number of messages whose state changed. Non-members change nothing.
func (t *Tracker) MarkRoomRead(ctx context.Context, userID ids.UserID, roomID ids.RoomID) (int, error) {
	member, err := t.conv.IsParticipant(ctx, roomID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to check room membership: %w", err)
	}
	if !member {
		return 0, nil
	}

	var pending []*conversation.Message
	var changed []ids.MessageID
	var unread int

	err = t.txm.RunInTransaction(ctx, func(txCtx context.Context) error {
		watermark, err := t.conv.GetReadWatermark(txCtx, roomID, userID)
		if err != nil {
			return fmt.Errorf("failed to load read watermark: %w", err)
		}
		pending, err = t.conv.ListUnreadIncoming(txCtx, roomID, userID, watermark)
		if err != nil {
			return fmt.Errorf("failed to list unread messages: %w", err)
		}
		if len(pending) == 0 {
			return nil
		}

		messageIDs := make([]ids.MessageID, 0, len(pending))
		highest := watermark
		for _, msg := range pending {
			t.remember(msg)
			messageIDs = append(messageIDs, msg.ID)
			highest = max(highest, msg.ID)
		}

		changed, err = t.statuses.UpgradeMany(txCtx, messageIDs, userID, domain.StateRead, t.clock.Now())
		if err != nil {
			return fmt.Errorf("failed to record reads: %w", err)
		}
		if _, err := t.conv.AdvanceReadWatermark(txCtx, roomID, userID, highest); err != nil {
			return fmt.Errorf("failed to advance read watermark: %w", err)
		}
		unread, err = t.conv.RecountUnread(txCtx, roomID, userID)
		if err != nil {
			return fmt.Errorf("failed to recount unread messages: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	t.notifyReaders(ctx, userID, roomID, pending, changed)
	t.broadcaster.SendToUser(ctx, userID, realtime.EventRoomUnread, realtime.UnreadPayload{
		RoomID:      roomID,
		UnreadCount: unread,
	})

	t.logger.Debugw("room marked read",
		"room_id", roomID,
		"user_id", userID,
		"messages", len(pending),
		"changed", len(changed),
	)
	return len(changed), nil
}

// notifyReaders sends one messages.read event per sender covering the ids
// that actually changed.
func (t *Tracker) notifyReaders(ctx context.Context, readerID ids.UserID, roomID ids.RoomID, pending []*conversation.Message, changed []ids.MessageID) {
	changedSet := make(map[ids.MessageID]struct{}, len(changed))
	for _, id := range changed {
		changedSet[id] = struct{}{}
	}

	bySender := make(map[ids.UserID][]ids.MessageID)
	order := make([]ids.UserID, 0)
	for _, msg := range pending {
		if _, ok := changedSet[msg.ID]; !ok || msg.SenderID == nil {
			continue
		}
		sender := *msg.SenderID
		if _, seen := bySender[sender]; !seen {
			order = append(order, sender)
		}
		bySender[sender] = append(bySender[sender], msg.ID)
	}

	for _, sender := range order {
		t.broadcaster.SendToUser(ctx, sender, realtime.EventMessagesRead, realtime.BulkReadPayload{
			RoomID:     roomID,
			ReaderID:   readerID,
			MessageIDs: bySender[sender],
			Status:     domain.StateRead.String(),
		})
	}
}

// GetStatus returns the recorded state for a pair, or Sent when nothing was
// acknowledged yet.
func (t *Tracker) GetStatus(ctx context.Context, messageID ids.MessageID, recipientID ids.UserID) (domain.State, error) {
	s, err := t.statuses.Get(ctx, messageID, recipientID)
	if err != nil {
		if errors.IsNotFoundError(err) {
			return domain.StateSent, nil
		}
		return 0, err
	}
	return s.State(), nil
}

// ListRecipients returns the recorded state of every recipient of a message.
func (t *Tracker) ListRecipients(ctx context.Context, messageID ids.MessageID) ([]*domain.Status, error) {
	return t.statuses.ListByMessage(ctx, messageID)
}
