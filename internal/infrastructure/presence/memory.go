// Package presence implements presence.Store in process memory and in Redis.
package presence

import (
	"context"
	"sync"

	"github.com/orris-inc/livedesk/internal/domain/presence"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
)

var _ presence.Store = (*MemoryStore)(nil)

type connection struct {
	userID     ids.UserID
	activeRoom ids.RoomID
}

// MemoryStore keeps presence for a single process.
type MemoryStore struct {
	mu     sync.RWMutex
	conns  map[ids.ConnectionID]*connection
	byUser map[ids.UserID]map[ids.ConnectionID]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conns:  make(map[ids.ConnectionID]*connection),
		byUser: make(map[ids.UserID]map[ids.ConnectionID]struct{}),
	}
}

func (s *MemoryStore) Register(ctx context.Context, userID ids.UserID, connID ids.ConnectionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.conns[connID]; ok {
		if c.userID == userID {
			return nil
		}
		s.detach(c.userID, connID)
	}

	s.conns[connID] = &connection{userID: userID}
	set, ok := s.byUser[userID]
	if !ok {
		set = make(map[ids.ConnectionID]struct{})
		s.byUser[userID] = set
	}
	set[connID] = struct{}{}
	return nil
}

func (s *MemoryStore) Unregister(ctx context.Context, connID ids.ConnectionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conns[connID]
	if !ok {
		return nil
	}
	delete(s.conns, connID)
	s.detach(c.userID, connID)
	return nil
}

// detach removes connID from the user's set. Callers hold mu.
func (s *MemoryStore) detach(userID ids.UserID, connID ids.ConnectionID) {
	set := s.byUser[userID]
	delete(set, connID)
	if len(set) == 0 {
		delete(s.byUser, userID)
	}
}

func (s *MemoryStore) SetActiveRoom(ctx context.Context, connID ids.ConnectionID, roomID ids.RoomID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.conns[connID]; ok {
		c.activeRoom = roomID
	}
	return nil
}

func (s *MemoryStore) ClearActiveRoom(ctx context.Context, connID ids.ConnectionID) error {
	return s.SetActiveRoom(ctx, connID, 0)
}

func (s *MemoryStore) IsUserViewingRoom(ctx context.Context, userID ids.UserID, roomID ids.RoomID) (bool, error) {
	if roomID == 0 {
		return false, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for connID := range s.byUser[userID] {
		if c := s.conns[connID]; c != nil && c.activeRoom == roomID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) UserConnections(ctx context.Context, userID ids.UserID) ([]ids.ConnectionID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ids.ConnectionID, 0, len(s.byUser[userID]))
	for connID := range s.byUser[userID] {
		out = append(out, connID)
	}
	return out, nil
}

// Touch is a no-op: in-process records live exactly as long as the connection.
func (s *MemoryStore) Touch(ctx context.Context, connID ids.ConnectionID) error {
	return nil
}
