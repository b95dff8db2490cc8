// Package testutil provides in-memory implementations of the domain ports
// for application-layer tests. Repositories store snapshots and hand out
// fresh aggregates, so optimistic version checks behave like the database.
package testutil

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/orris-inc/livedesk/internal/domain/agent"
	"github.com/orris-inc/livedesk/internal/domain/conversation"
	"github.com/orris-inc/livedesk/internal/domain/delivery"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/domain/ticket"
	"github.com/orris-inc/livedesk/internal/shared/errors"
)

// MemoryAgentRepository implements agent.Repository.
type MemoryAgentRepository struct {
	mu     sync.Mutex
	agents map[ids.AgentID]agent.Snapshot
	nextID ids.AgentID

	// Error injection
	UpdateErr  error
	ReserveErr error
	// ReserveHook runs inside TryReserveChat before the slot check, with the
	// lock released, letting tests interleave concurrent reservations.
	ReserveHook func(id ids.AgentID)
}

func NewMemoryAgentRepository() *MemoryAgentRepository {
	return &MemoryAgentRepository{agents: make(map[ids.AgentID]agent.Snapshot)}
}

func (m *MemoryAgentRepository) Create(ctx context.Context, a *agent.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.agents {
		if existing.UserID == a.UserID() {
			return errors.NewConflictError("agent already exists", a.UserID().String())
		}
	}
	if a.ID() == 0 {
		m.nextID++
		if err := a.SetID(m.nextID); err != nil {
			return err
		}
	}
	m.agents[a.ID()] = a.Snapshot()
	return nil
}

func (m *MemoryAgentRepository) Update(ctx context.Context, a *agent.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	stored, ok := m.agents[a.ID()]
	if !ok {
		return errors.NewNotFoundError("agent not found")
	}
	if stored.Version != a.Version() {
		return errors.NewConflictError("agent was modified concurrently")
	}

	next := a.Snapshot()
	next.CurrentActiveChats = stored.CurrentActiveChats
	next.Version = stored.Version + 1
	m.agents[a.ID()] = next
	a.IncrementVersion()
	return nil
}

func (m *MemoryAgentRepository) GetByID(ctx context.Context, id ids.AgentID) (*agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.agents[id]
	if !ok {
		return nil, errors.NewNotFoundError("agent not found")
	}
	return agent.ReconstructAgent(s)
}

func (m *MemoryAgentRepository) GetByUserID(ctx context.Context, userID ids.UserID) (*agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.agents {
		if s.UserID == userID {
			return agent.ReconstructAgent(s)
		}
	}
	return nil, errors.NewNotFoundError("agent not found")
}

func (m *MemoryAgentRepository) List(ctx context.Context) ([]*agent.Agent, error) {
	return m.filter(func(agent.Snapshot) bool { return true })
}

func (m *MemoryAgentRepository) ListWithExpiredManualStatus(ctx context.Context, now time.Time) ([]*agent.Agent, error) {
	return m.filter(func(s agent.Snapshot) bool {
		return s.ManualStatusExpiry != nil && now.After(*s.ManualStatusExpiry)
	})
}

func (m *MemoryAgentRepository) ListAssignable(ctx context.Context) ([]*agent.Agent, error) {
	return m.filter(func(s agent.Snapshot) bool {
		a, _ := agent.ReconstructAgent(s)
		return s.IsActive && !a.IsBot() && a.HasCapacity()
	})
}

func (m *MemoryAgentRepository) FindBot(ctx context.Context, region *ids.RegionID) (*agent.Agent, error) {
	bots, _ := m.filter(func(s agent.Snapshot) bool {
		a, _ := agent.ReconstructAgent(s)
		return s.IsActive && a.IsBot()
	})
	var global *agent.Agent
	for _, b := range bots {
		switch {
		case region != nil && b.PrimaryRegion() != nil && *b.PrimaryRegion() == *region:
			return b, nil
		case b.PrimaryRegion() == nil && global == nil:
			global = b
		}
	}
	if global == nil {
		return nil, errors.NewNotFoundError("bot agent not found")
	}
	return global, nil
}

func (m *MemoryAgentRepository) TryReserveChat(ctx context.Context, id ids.AgentID) (bool, error) {
	if m.ReserveHook != nil {
		m.ReserveHook(id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ReserveErr != nil {
		return false, m.ReserveErr
	}
	return m.apply(id, func(a *agent.Agent) bool { return a.ReserveChat() })
}

func (m *MemoryAgentRepository) ReleaseChat(ctx context.Context, id ids.AgentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.apply(id, func(a *agent.Agent) bool { a.ReleaseChat(); return true })
	return err
}

func (m *MemoryAgentRepository) ResetActiveChats(ctx context.Context, id ids.AgentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.apply(id, func(a *agent.Agent) bool { a.ResetActiveChats(); return true })
	return err
}

// apply mutates a stored agent in place. Callers hold mu.
func (m *MemoryAgentRepository) apply(id ids.AgentID, fn func(a *agent.Agent) bool) (bool, error) {
	s, ok := m.agents[id]
	if !ok {
		return false, errors.NewNotFoundError("agent not found")
	}
	a, err := agent.ReconstructAgent(s)
	if err != nil {
		return false, err
	}
	if !fn(a) {
		return false, nil
	}
	next := a.Snapshot()
	next.Version = s.Version + 1
	m.agents[id] = next
	return true, nil
}

func (m *MemoryAgentRepository) filter(keep func(agent.Snapshot) bool) ([]*agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*agent.Agent, 0, len(m.agents))
	for _, s := range m.agents {
		if !keep(s) {
			continue
		}
		a, err := agent.ReconstructAgent(s)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

// Seed stores an agent built by the caller and returns it reloaded.
func (m *MemoryAgentRepository) Seed(a *agent.Agent) *agent.Agent {
	if err := m.Create(context.Background(), a); err != nil {
		panic(err)
	}
	return m.MustGet(a.ID())
}

func (m *MemoryAgentRepository) MustGet(id ids.AgentID) *agent.Agent {
	a, err := m.GetByID(context.Background(), id)
	if err != nil {
		panic(err)
	}
	return a
}

// MemoryTicketRepository implements ticket.Repository. It needs the agent
// repository to tell bot-held tickets apart.
type MemoryTicketRepository struct {
	mu      sync.Mutex
	tickets map[ids.TicketID]ticket.Snapshot
	nextID  ids.TicketID
	agents  *MemoryAgentRepository

	// UpdateErrFor fails Update for the given ticket.
	UpdateErrFor map[ids.TicketID]error
}

func NewMemoryTicketRepository(agents *MemoryAgentRepository) *MemoryTicketRepository {
	return &MemoryTicketRepository{
		tickets:      make(map[ids.TicketID]ticket.Snapshot),
		agents:       agents,
		UpdateErrFor: make(map[ids.TicketID]error),
	}
}

func (m *MemoryTicketRepository) Create(ctx context.Context, t *ticket.SupportTicket) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.tickets {
		if s.ChatRoomID == t.ChatRoomID() {
			return errors.NewConflictError("chat room already has a ticket")
		}
	}
	if t.ID() == 0 {
		m.nextID++
		if err := t.SetID(m.nextID); err != nil {
			return err
		}
	}
	m.tickets[t.ID()] = t.Snapshot()
	return nil
}

func (m *MemoryTicketRepository) Update(ctx context.Context, t *ticket.SupportTicket) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.UpdateErrFor[t.ID()]; err != nil {
		return err
	}
	stored, ok := m.tickets[t.ID()]
	if !ok {
		return errors.NewNotFoundError("ticket not found")
	}
	if stored.Version != t.Version() {
		return errors.NewConflictError("ticket was modified concurrently")
	}
	next := t.Snapshot()
	next.Version++
	m.tickets[t.ID()] = next
	t.IncrementVersion()
	return nil
}

func (m *MemoryTicketRepository) GetByID(ctx context.Context, id ids.TicketID) (*ticket.SupportTicket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.tickets[id]
	if !ok {
		return nil, errors.NewNotFoundError("ticket not found")
	}
	return ticket.ReconstructSupportTicket(s)
}

func (m *MemoryTicketRepository) GetByRoomID(ctx context.Context, roomID ids.RoomID) (*ticket.SupportTicket, error) {
	list, _ := m.filter(func(s ticket.Snapshot) bool { return s.ChatRoomID == roomID })
	if len(list) == 0 {
		return nil, errors.NewNotFoundError("ticket not found")
	}
	return list[0], nil
}

func (m *MemoryTicketRepository) ListActiveByAgent(ctx context.Context, agentID ids.AgentID) ([]*ticket.SupportTicket, error) {
	return m.filter(func(s ticket.Snapshot) bool {
		return s.Status.IsActive() && s.AssignedAgentID != nil && *s.AssignedAgentID == agentID
	})
}

func (m *MemoryTicketRepository) ListActiveHeldByBots(ctx context.Context) ([]*ticket.SupportTicket, error) {
	return m.filter(func(s ticket.Snapshot) bool {
		if !s.Status.IsActive() || s.AssignedAgentID == nil {
			return false
		}
		a, err := m.agents.GetByID(ctx, *s.AssignedAgentID)
		return err == nil && a.IsBot()
	})
}

func (m *MemoryTicketRepository) ListUnassignedOpen(ctx context.Context) ([]*ticket.SupportTicket, error) {
	return m.filter(func(s ticket.Snapshot) bool {
		return s.Status.IsActive() && s.AssignedAgentID == nil
	})
}

func (m *MemoryTicketRepository) CountActiveByAgent(ctx context.Context, agentID ids.AgentID) (int64, error) {
	list, err := m.ListActiveByAgent(ctx, agentID)
	return int64(len(list)), err
}

func (m *MemoryTicketRepository) filter(keep func(ticket.Snapshot) bool) ([]*ticket.SupportTicket, error) {
	m.mu.Lock()
	snaps := make([]ticket.Snapshot, 0, len(m.tickets))
	for _, s := range m.tickets {
		snaps = append(snaps, s)
	}
	m.mu.Unlock()

	sort.Slice(snaps, func(i, j int) bool {
		if !snaps[i].CreatedAt.Equal(snaps[j].CreatedAt) {
			return snaps[i].CreatedAt.Before(snaps[j].CreatedAt)
		}
		return snaps[i].ID < snaps[j].ID
	})

	out := make([]*ticket.SupportTicket, 0, len(snaps))
	for _, s := range snaps {
		if !keep(s) {
			continue
		}
		t, err := ticket.ReconstructSupportTicket(s)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *MemoryTicketRepository) MustGet(id ids.TicketID) *ticket.SupportTicket {
	t, err := m.GetByID(context.Background(), id)
	if err != nil {
		panic(err)
	}
	return t
}

// MemoryDeliveryRepository implements delivery.Repository.
type MemoryDeliveryRepository struct {
	mu       sync.Mutex
	statuses map[deliveryKey]*delivery.Status
}

type deliveryKey struct {
	message   ids.MessageID
	recipient ids.UserID
}

func NewMemoryDeliveryRepository() *MemoryDeliveryRepository {
	return &MemoryDeliveryRepository{statuses: make(map[deliveryKey]*delivery.Status)}
}

func (m *MemoryDeliveryRepository) Upgrade(ctx context.Context, messageID ids.MessageID, recipientID ids.UserID, state delivery.State, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := deliveryKey{messageID, recipientID}
	s, ok := m.statuses[key]
	if !ok {
		m.statuses[key] = delivery.NewStatus(messageID, recipientID, state, at)
		return true, nil
	}
	if !state.IsValid() || state <= s.State() {
		return false, nil
	}
	m.statuses[key] = delivery.NewStatus(messageID, recipientID, state, at)
	return true, nil
}

func (m *MemoryDeliveryRepository) UpgradeMany(ctx context.Context, messageIDs []ids.MessageID, recipientID ids.UserID, state delivery.State, at time.Time) ([]ids.MessageID, error) {
	changed := make([]ids.MessageID, 0, len(messageIDs))
	for _, id := range messageIDs {
		ok, err := m.Upgrade(ctx, id, recipientID, state, at)
		if err != nil {
			return nil, err
		}
		if ok {
			changed = append(changed, id)
		}
	}
	return changed, nil
}

func (m *MemoryDeliveryRepository) Get(ctx context.Context, messageID ids.MessageID, recipientID ids.UserID) (*delivery.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.statuses[deliveryKey{messageID, recipientID}]
	if !ok {
		return nil, errors.NewNotFoundError("delivery status not found")
	}
	return delivery.NewStatus(s.MessageID(), s.RecipientID(), s.State(), s.StatusAt()), nil
}

func (m *MemoryDeliveryRepository) ListByMessage(ctx context.Context, messageID ids.MessageID) ([]*delivery.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*delivery.Status, 0)
	for k, s := range m.statuses {
		if k.message == messageID {
			out = append(out, delivery.NewStatus(s.MessageID(), s.RecipientID(), s.State(), s.StatusAt()))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecipientID() < out[j].RecipientID() })
	return out, nil
}

// MemoryConversationStore implements conversation.Store.
type MemoryConversationStore struct {
	mu           sync.Mutex
	nextRoom     ids.RoomID
	nextMessage  ids.MessageID
	rooms        map[ids.RoomID]string
	messages     []*conversation.Message
	participants map[ids.RoomID][]ids.UserID
	watermarks   map[roomUser]ids.MessageID
	unread       map[roomUser]int
	now          func() time.Time

	// SystemMessageErr fails AddSystemMessage.
	SystemMessageErr error
}

type roomUser struct {
	room ids.RoomID
	user ids.UserID
}

func NewMemoryConversationStore(now func() time.Time) *MemoryConversationStore {
	return &MemoryConversationStore{
		rooms:        make(map[ids.RoomID]string),
		participants: make(map[ids.RoomID][]ids.UserID),
		watermarks:   make(map[roomUser]ids.MessageID),
		unread:       make(map[roomUser]int),
		now:          now,
	}
}

func (m *MemoryConversationStore) CreateRoom(ctx context.Context, title string) (ids.RoomID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextRoom++
	m.rooms[m.nextRoom] = title
	return m.nextRoom, nil
}

func (m *MemoryConversationStore) PostMessage(ctx context.Context, roomID ids.RoomID, senderID ids.UserID, body string) (*conversation.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[roomID]; !ok {
		return nil, errors.NewNotFoundError("room not found")
	}
	sender := senderID
	msg := m.appendLocked(roomID, &sender, conversation.MessageKindUser, body)
	for _, p := range m.participants[roomID] {
		if p != senderID {
			m.unread[roomUser{roomID, p}]++
		}
	}
	return msg, nil
}

func (m *MemoryConversationStore) AddSystemMessage(ctx context.Context, roomID ids.RoomID, body string) (*conversation.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SystemMessageErr != nil {
		return nil, m.SystemMessageErr
	}
	return m.appendLocked(roomID, nil, conversation.MessageKindSystem, body), nil
}

func (m *MemoryConversationStore) appendLocked(roomID ids.RoomID, sender *ids.UserID, kind conversation.MessageKind, body string) *conversation.Message {
	m.nextMessage++
	msg := &conversation.Message{
		ID:        m.nextMessage,
		RoomID:    roomID,
		SenderID:  sender,
		Kind:      kind,
		Body:      body,
		CreatedAt: m.now(),
	}
	m.messages = append(m.messages, msg)
	return msg
}

func (m *MemoryConversationStore) GetMessage(ctx context.Context, id ids.MessageID) (*conversation.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msg := range m.messages {
		if msg.ID == id {
			cp := *msg
			return &cp, nil
		}
	}
	return nil, errors.NewNotFoundError("message not found")
}

func (m *MemoryConversationStore) AddParticipant(ctx context.Context, roomID ids.RoomID, userID ids.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(m.participants[roomID], userID) {
		m.participants[roomID] = append(m.participants[roomID], userID)
	}
	return nil
}

func (m *MemoryConversationStore) RemoveParticipant(ctx context.Context, roomID ids.RoomID, userID ids.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.participants[roomID] = slices.DeleteFunc(m.participants[roomID], func(u ids.UserID) bool { return u == userID })
	return nil
}

func (m *MemoryConversationStore) ListParticipants(ctx context.Context, roomID ids.RoomID) ([]ids.UserID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.participants[roomID]), nil
}

func (m *MemoryConversationStore) IsParticipant(ctx context.Context, roomID ids.RoomID, userID ids.UserID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Contains(m.participants[roomID], userID), nil
}

func (m *MemoryConversationStore) GetReadWatermark(ctx context.Context, roomID ids.RoomID, userID ids.UserID) (ids.MessageID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.watermarks[roomUser{roomID, userID}], nil
}

func (m *MemoryConversationStore) AdvanceReadWatermark(ctx context.Context, roomID ids.RoomID, userID ids.UserID, messageID ids.MessageID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := roomUser{roomID, userID}
	if messageID <= m.watermarks[key] {
		return false, nil
	}
	m.watermarks[key] = messageID
	return true, nil
}

func (m *MemoryConversationStore) ListUnreadIncoming(ctx context.Context, roomID ids.RoomID, userID ids.UserID, after ids.MessageID) ([]*conversation.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*conversation.Message, 0)
	for _, msg := range m.messages {
		if msg.RoomID == roomID && msg.ID > after && msg.SenderID != nil && *msg.SenderID != userID {
			cp := *msg
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryConversationStore) RecountUnread(ctx context.Context, roomID ids.RoomID, userID ids.UserID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := roomUser{roomID, userID}
	watermark := m.watermarks[key]
	count := 0
	for _, msg := range m.messages {
		if msg.RoomID == roomID && msg.ID > watermark && msg.SenderID != nil && *msg.SenderID != userID {
			count++
		}
	}
	m.unread[key] = count
	return count, nil
}

// SystemMessages returns the bodies of system messages posted to roomID.
func (m *MemoryConversationStore) SystemMessages(roomID ids.RoomID) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0)
	for _, msg := range m.messages {
		if msg.RoomID == roomID && msg.Kind == conversation.MessageKindSystem {
			out = append(out, msg.Body)
		}
	}
	return out
}

func (m *MemoryConversationStore) Unread(roomID ids.RoomID, userID ids.UserID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unread[roomUser{roomID, userID}]
}

// RecordedEvent is one call captured by RecordingBroadcaster.
type RecordedEvent struct {
	UserID  ids.UserID
	RoomID  ids.RoomID
	Event   string
	Payload any
}

func (e RecordedEvent) String() string {
	if e.RoomID != 0 {
		return fmt.Sprintf("room:%d %s", e.RoomID, e.Event)
	}
	return fmt.Sprintf("user:%d %s", e.UserID, e.Event)
}

// RecordingBroadcaster implements realtime.Broadcaster.
type RecordingBroadcaster struct {
	mu     sync.Mutex
	events []RecordedEvent
}

func NewRecordingBroadcaster() *RecordingBroadcaster {
	return &RecordingBroadcaster{}
}

func (b *RecordingBroadcaster) SendToUser(ctx context.Context, userID ids.UserID, event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, RecordedEvent{UserID: userID, Event: event, Payload: payload})
}

func (b *RecordingBroadcaster) SendToRoom(ctx context.Context, roomID ids.RoomID, event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, RecordedEvent{RoomID: roomID, Event: event, Payload: payload})
}

func (b *RecordingBroadcaster) Events() []RecordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.events)
}

// EventsNamed returns the recorded events with the given name.
func (b *RecordingBroadcaster) EventsNamed(name string) []RecordedEvent {
	out := make([]RecordedEvent, 0)
	for _, e := range b.Events() {
		if e.Event == name {
			out = append(out, e)
		}
	}
	return out
}

func (b *RecordingBroadcaster) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

// SentNotification is one push captured by RecordingNotifier.
type SentNotification struct {
	Recipient ids.UserID
	RoomID    ids.RoomID
	Title     string
	Body      string
	Data      map[string]string
}

// RecordingNotifier implements realtime.NotificationSender.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []SentNotification
	Err  error
}

func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

func (n *RecordingNotifier) SendNewMessageNotification(ctx context.Context, recipient ids.UserID, roomID ids.RoomID, title, body string, data map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.sent = append(n.sent, SentNotification{Recipient: recipient, RoomID: roomID, Title: title, Body: body, Data: data})
	return nil
}

func (n *RecordingNotifier) Sent() []SentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.sent)
}

// CountingTrigger records sweep trigger requests.
type CountingTrigger struct {
	mu    sync.Mutex
	count int
}

func (c *CountingTrigger) TriggerSweep() error {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
	return nil
}

func (c *CountingTrigger) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}
