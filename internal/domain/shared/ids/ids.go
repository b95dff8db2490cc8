// Package ids declares the identifier types shared across aggregates.
// Agent and user identities are deliberately distinct types: an assigned
// agent is always referenced by AgentID, never by the staff member's UserID.
package ids

import "strconv"

type (
	UserID    uint
	AgentID   uint
	TicketID  uint
	RoomID    uint
	MessageID uint
	RegionID  uint
)

// ConnectionID identifies one live client session.
type ConnectionID string

func (id UserID) String() string    { return strconv.FormatUint(uint64(id), 10) }
func (id AgentID) String() string   { return strconv.FormatUint(uint64(id), 10) }
func (id TicketID) String() string  { return strconv.FormatUint(uint64(id), 10) }
func (id RoomID) String() string    { return strconv.FormatUint(uint64(id), 10) }
func (id MessageID) String() string { return strconv.FormatUint(uint64(id), 10) }

// RegionPtr is a convenience for optional region arguments.
func RegionPtr(id RegionID) *RegionID {
	return &id
}

func AgentIDPtr(id AgentID) *AgentID {
	return &id
}
