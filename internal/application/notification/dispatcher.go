// Package notification fans new-message pushes out to room participants who
// are not looking at the room.
package notification

import (
	"context"
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/orris-inc/livedesk/internal/domain/conversation"
	"github.com/orris-inc/livedesk/internal/domain/presence"
	"github.com/orris-inc/livedesk/internal/domain/shared/realtime"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

const defaultMaxBodyRunes = 140

type Dispatcher struct {
	presence     presence.Store
	conv         conversation.Store
	sender       realtime.NotificationSender
	policy       *bluemonday.Policy
	maxBodyRunes int
	logger       logger.Interface
}

func NewDispatcher(presenceStore presence.Store, conv conversation.Store, sender realtime.NotificationSender, log logger.Interface) *Dispatcher {
	return &Dispatcher{
		presence:     presenceStore,
		conv:         conv,
		sender:       sender,
		policy:       bluemonday.StrictPolicy(),
		maxBodyRunes: defaultMaxBodyRunes,
		logger:       log,
	}
}

// NotifyNewMessage pushes msg to every participant other than its sender who
// has no connection viewing the room. Failures for one recipient are logged
// and do not stop the others. It returns the number of pushes sent.
func (d *Dispatcher) NotifyNewMessage(ctx context.Context, msg *conversation.Message, title string) (int, error) {
	participants, err := d.conv.ListParticipants(ctx, msg.RoomID)
	if err != nil {
		return 0, fmt.Errorf("failed to list participants of room %d: %w", msg.RoomID, err)
	}

	body := d.Preview(msg.Body)
	data := map[string]string{
		"type":       "new_message",
		"room_id":    msg.RoomID.String(),
		"message_id": msg.ID.String(),
	}

	sent := 0
	for _, recipient := range participants {
		if msg.IsFrom(recipient) {
			continue
		}
		viewing, err := d.presence.IsUserViewingRoom(ctx, recipient, msg.RoomID)
		if err != nil {
			d.logger.Warnw("presence lookup failed, sending push anyway",
				"user_id", recipient,
				"room_id", msg.RoomID,
				"error", err,
			)
		}
		if viewing {
			continue
		}
		if err := d.sender.SendNewMessageNotification(ctx, recipient, msg.RoomID, title, body, data); err != nil {
			d.logger.Errorw("failed to send new message notification",
				"user_id", recipient,
				"room_id", msg.RoomID,
				"message_id", msg.ID,
				"error", err,
			)
			continue
		}
		sent++
	}
	return sent, nil
}

// Preview strips markup and truncates body for a lock-screen notification.
func (d *Dispatcher) Preview(body string) string {
	text := strings.Join(strings.Fields(html.UnescapeString(d.policy.Sanitize(body))), " ")
	if utf8.RuneCountInString(text) <= d.maxBodyRunes {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:d.maxBodyRunes-1])) + "…"
}
