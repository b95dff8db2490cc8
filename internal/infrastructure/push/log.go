package push

import (
	"context"

	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

// LogSender records pushes in the log instead of delivering them. It backs
// local development and deployments without a push gateway.
type LogSender struct {
	logger logger.Interface
}

func NewLogSender(log logger.Interface) *LogSender {
	return &LogSender{logger: log}
}

func (s *LogSender) SendNewMessageNotification(ctx context.Context, recipient ids.UserID, roomID ids.RoomID, title, body string, data map[string]string) error {
	s.logger.Infow("push notification",
		"recipient_id", recipient,
		"room_id", roomID,
		"title", title,
		"body", body,
		"data", data,
	)
	return nil
}
