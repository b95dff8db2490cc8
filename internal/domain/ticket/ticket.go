package ticket

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	vo "github.com/orris-inc/livedesk/internal/domain/ticket/valueobjects"
)

// SupportTicket is the routing record of one support conversation.
type SupportTicket struct {
	id              ids.TicketID
	requesterID     ids.UserID
	guest           bool
	subject         string
	assignedAgentID *ids.AgentID
	regionID        *ids.RegionID
	status          vo.TicketStatus
	chatRoomID      ids.RoomID
	version         int
	createdAt       time.Time
	updatedAt       time.Time
	closedAt        *time.Time
}

func NewSupportTicket(requesterID ids.UserID, guest bool, subject string, regionID *ids.RegionID, chatRoomID ids.RoomID, now time.Time) (*SupportTicket, error) {
	if requesterID == 0 {
		return nil, fmt.Errorf("requester is required")
	}
	if chatRoomID == 0 {
		return nil, fmt.Errorf("chat room is required")
	}
	if utf8.RuneCountInString(subject) > 200 {
		return nil, fmt.Errorf("subject exceeds maximum length of 200 characters")
	}

	return &SupportTicket{
		requesterID: requesterID,
		guest:       guest,
		subject:     subject,
		regionID:    regionID,
		status:      vo.StatusOpen,
		chatRoomID:  chatRoomID,
		version:     1,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

type Snapshot struct {
	ID              ids.TicketID
	RequesterID     ids.UserID
	Guest           bool
	Subject         string
	AssignedAgentID *ids.AgentID
	RegionID        *ids.RegionID
	Status          vo.TicketStatus
	ChatRoomID      ids.RoomID
	Version         int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ClosedAt        *time.Time
}

func ReconstructSupportTicket(s Snapshot) (*SupportTicket, error) {
	if s.ID == 0 {
		return nil, fmt.Errorf("ticket ID cannot be zero")
	}
	if !s.Status.IsValid() {
		return nil, fmt.Errorf("invalid ticket status: %q", s.Status)
	}

	return &SupportTicket{
		id:              s.ID,
		requesterID:     s.RequesterID,
		guest:           s.Guest,
		subject:         s.Subject,
		assignedAgentID: s.AssignedAgentID,
		regionID:        s.RegionID,
		status:          s.Status,
		chatRoomID:      s.ChatRoomID,
		version:         s.Version,
		createdAt:       s.CreatedAt,
		updatedAt:       s.UpdatedAt,
		closedAt:        s.ClosedAt,
	}, nil
}

func (t *SupportTicket) ID() ids.TicketID              { return t.id }
func (t *SupportTicket) RequesterID() ids.UserID       { return t.requesterID }
func (t *SupportTicket) IsGuest() bool                 { return t.guest }
func (t *SupportTicket) Subject() string               { return t.subject }
func (t *SupportTicket) AssignedAgentID() *ids.AgentID { return t.assignedAgentID }
func (t *SupportTicket) RegionID() *ids.RegionID       { return t.regionID }
func (t *SupportTicket) Status() vo.TicketStatus       { return t.status }
func (t *SupportTicket) ChatRoomID() ids.RoomID        { return t.chatRoomID }
func (t *SupportTicket) Version() int                  { return t.version }
func (t *SupportTicket) CreatedAt() time.Time          { return t.createdAt }
func (t *SupportTicket) UpdatedAt() time.Time          { return t.updatedAt }
func (t *SupportTicket) ClosedAt() *time.Time          { return t.closedAt }

func (t *SupportTicket) SetID(id ids.TicketID) error {
	if t.id != 0 {
		return fmt.Errorf("ticket ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("ticket ID cannot be zero")
	}
	t.id = id
	return nil
}

func (t *SupportTicket) IncrementVersion() {
	t.version++
}

func (t *SupportTicket) IsActive() bool {
	return t.status.IsActive()
}

func (t *SupportTicket) IsAssignedTo(agentID ids.AgentID) bool {
	return t.assignedAgentID != nil && *t.assignedAgentID == agentID
}

// AssignTo hands the ticket to agentID and marks it in progress.
func (t *SupportTicket) AssignTo(agentID ids.AgentID, now time.Time) error {
	if t.status == vo.StatusClosed {
		return ErrTicketClosed
	}
	if agentID == 0 {
		return fmt.Errorf("agent ID is required")
	}
	id := agentID
	t.assignedAgentID = &id
	t.status = vo.StatusInProgress
	t.updatedAt = now
	return nil
}

// Unassign puts the ticket back in the open queue.
func (t *SupportTicket) Unassign(now time.Time) error {
	if t.status == vo.StatusClosed {
		return ErrTicketClosed
	}
	t.assignedAgentID = nil
	t.status = vo.StatusOpen
	t.updatedAt = now
	return nil
}

// Close is terminal. The assignee is kept for history.
func (t *SupportTicket) Close(now time.Time) error {
	if t.status == vo.StatusClosed {
		return ErrTicketClosed
	}
	closedAt := now
	t.status = vo.StatusClosed
	t.closedAt = &closedAt
	t.updatedAt = now
	return nil
}

func (t *SupportTicket) Snapshot() Snapshot {
	return Snapshot{
		ID:              t.id,
		RequesterID:     t.requesterID,
		Guest:           t.guest,
		Subject:         t.subject,
		AssignedAgentID: t.assignedAgentID,
		RegionID:        t.regionID,
		Status:          t.status,
		ChatRoomID:      t.chatRoomID,
		Version:         t.version,
		CreatedAt:       t.createdAt,
		UpdatedAt:       t.updatedAt,
		ClosedAt:        t.closedAt,
	}
}
