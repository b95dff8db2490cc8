package delivery

import (
	"context"
	"time"

	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
)

// Status is the delivery state of one message for one recipient.
type Status struct {
	messageID   ids.MessageID
	recipientID ids.UserID
	state       State
	statusAt    time.Time
}

func NewStatus(messageID ids.MessageID, recipientID ids.UserID, state State, at time.Time) *Status {
	return &Status{messageID: messageID, recipientID: recipientID, state: state, statusAt: at}
}

func (s *Status) MessageID() ids.MessageID { return s.messageID }
func (s *Status) RecipientID() ids.UserID  { return s.recipientID }
func (s *Status) State() State             { return s.state }
func (s *Status) StatusAt() time.Time      { return s.statusAt }

// Repository stores delivery states. Upgrades are conditional writes so
// concurrent acknowledgements for the same pair can never move it backwards.
type Repository interface {
	// Upgrade creates the pair at state or advances it to state. It reports
	// whether the stored state changed.
	Upgrade(ctx context.Context, messageID ids.MessageID, recipientID ids.UserID, state State, at time.Time) (bool, error)
	// UpgradeMany applies Upgrade to every message and returns the ids whose
	// state changed.
	UpgradeMany(ctx context.Context, messageIDs []ids.MessageID, recipientID ids.UserID, state State, at time.Time) ([]ids.MessageID, error)
	Get(ctx context.Context, messageID ids.MessageID, recipientID ids.UserID) (*Status, error)
	ListByMessage(ctx context.Context, messageID ids.MessageID) ([]*Status, error)
}
