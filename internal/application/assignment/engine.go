// Package assignment routes support tickets to agents under capacity and
// region constraints and moves them when availability changes.
package assignment

import (
	"context"
	"fmt"
	"sort"

	"github.com/orris-inc/livedesk/internal/application/agentstatus"
	"github.com/orris-inc/livedesk/internal/domain/agent"
	vo "github.com/orris-inc/livedesk/internal/domain/agent/valueobjects"
	"github.com/orris-inc/livedesk/internal/domain/conversation"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/domain/shared/realtime"
	"github.com/orris-inc/livedesk/internal/domain/ticket"
	"github.com/orris-inc/livedesk/internal/shared/biztime"
	"github.com/orris-inc/livedesk/internal/shared/db"
	"github.com/orris-inc/livedesk/internal/shared/errors"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

const (
	msgJoined      = "%s has joined the conversation."
	msgHandoff     = "This conversation has been transferred from %s to %s."
	msgUnavailable = "All of our agents are currently unavailable. Support will respond as soon as possible."

	notifyAssignmentTitle = "New conversation assigned"
)

// StatusResolver is the part of the status resolver the engine consults.
type StatusResolver interface {
	EffectiveStatusOf(a *agent.Agent) vo.Status
	AvailableApartFromLoad(a *agent.Agent) bool
	RefreshStatus(ctx context.Context, agentID ids.AgentID) (agentstatus.StatusChange, error)
}

// Assignment is the outcome of routing one ticket. Agent is nil when the
// ticket was left unassigned; Changed is false when nothing was written.
type Assignment struct {
	TicketID ids.TicketID
	RoomID   ids.RoomID
	Agent    *agent.Agent
	Previous *agent.Agent
	Status   string
	Changed  bool
}

type Engine struct {
	agents      agent.Repository
	tickets     ticket.Repository
	conv        conversation.Store
	resolver    StatusResolver
	broadcaster realtime.Broadcaster
	notifier    realtime.NotificationSender
	txm         db.Transactor
	clock       biztime.Clock
	logger      logger.Interface
}

func NewEngine(
	agents agent.Repository,
	tickets ticket.Repository,
	conv conversation.Store,
	resolver StatusResolver,
	broadcaster realtime.Broadcaster,
	notifier realtime.NotificationSender,
	txm db.Transactor,
	clock biztime.Clock,
	log logger.Interface,
) *Engine {
	return &Engine{
		agents:      agents,
		tickets:     tickets,
		conv:        conv,
		resolver:    resolver,
		broadcaster: broadcaster,
		notifier:    notifier,
		txm:         txm,
		clock:       clock,
		logger:      log,
	}
}

type selection struct {
	exclude  ids.AgentID
	allowBot bool
}

// GetBestAvailableAgent picks the least loaded available human serving region
// and reserves one of its slots, or falls back to the region or global bot.
// It returns nil when neither exists.
func (e *Engine) GetBestAvailableAgent(ctx context.Context, regionID *ids.RegionID) (*agent.Agent, error) {
	return e.selectAgent(ctx, regionID, selection{allowBot: true})
}

func (e *Engine) selectAgent(ctx context.Context, regionID *ids.RegionID, sel selection) (*agent.Agent, error) {
	candidates, err := e.rankCandidates(ctx, regionID, sel.exclude)
	if err != nil {
		return nil, err
	}

	for _, c := range candidates {
		ok, err := e.agents.TryReserveChat(ctx, c.ID())
		if err != nil {
			return nil, fmt.Errorf("failed to reserve chat slot for agent %d: %w", c.ID(), err)
		}
		if !ok {
			e.logger.Debugw("chat slot taken concurrently, trying next candidate", "agent_id", c.ID())
			continue
		}
		reserved, err := e.agents.GetByID(ctx, c.ID())
		if err != nil {
			return nil, fmt.Errorf("failed to reload agent %d: %w", c.ID(), err)
		}
		// The agent may have left between ranking and the reservation.
		if !e.resolver.AvailableApartFromLoad(reserved) {
			e.logger.Infow("agent became unavailable while reserving, trying next candidate",
				"agent_id", reserved.ID(),
				"status", reserved.Status(),
			)
			e.undoReservation(ctx, reserved)
			continue
		}
		return reserved, nil
	}

	if !sel.allowBot {
		return nil, nil
	}
	bot, err := e.agents.FindBot(ctx, regionID)
	if err != nil {
		if errors.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find bot agent: %w", err)
	}
	if sel.exclude != 0 && bot.ID() == sel.exclude {
		return nil, nil
	}
	return bot, nil
}

// rankCandidates orders routable humans by load, then by longest idle.
// Never-active agents sort first.
func (e *Engine) rankCandidates(ctx context.Context, regionID *ids.RegionID, exclude ids.AgentID) ([]*agent.Agent, error) {
	assignable, err := e.agents.ListAssignable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignable agents: %w", err)
	}

	candidates := make([]*agent.Agent, 0, len(assignable))
	for _, a := range assignable {
		if a.ID() == exclude || a.IsBot() || !a.IsActive() || !a.HasCapacity() {
			continue
		}
		if !a.ServesRegion(regionID) {
			continue
		}
		if e.resolver.EffectiveStatusOf(a) != vo.StatusAvailable {
			continue
		}
		candidates = append(candidates, a)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.CurrentActiveChats() != b.CurrentActiveChats() {
			return a.CurrentActiveChats() < b.CurrentActiveChats()
		}
		la, lb := a.LastActivityAt(), b.LastActivityAt()
		switch {
		case la == nil && lb != nil:
			return true
		case la != nil && lb == nil:
			return false
		case la != nil && lb != nil && !la.Equal(*lb):
			return la.Before(*lb)
		}
		return a.ID() < b.ID()
	})
	return candidates, nil
}

// AssignTicket routes an unassigned ticket. A ticket that already has an
// assignee is returned unchanged.
func (e *Engine) AssignTicket(ctx context.Context, ticketID ids.TicketID) (*Assignment, error) {
	result, err := e.assign(ctx, ticketID, true)
	if err != nil {
		return nil, err
	}
	e.emitAssignment(ctx, result, realtime.EventTicketAssigned)
	return result, nil
}

func (e *Engine) assign(ctx context.Context, ticketID ids.TicketID, announceUnmatched bool) (*Assignment, error) {
	var result *Assignment
	err := e.txm.RunInTransaction(ctx, func(txCtx context.Context) error {
		t, err := e.tickets.GetByID(txCtx, ticketID)
		if err != nil {
			return err
		}
		if !t.IsActive() {
			return errors.NewConflictError("ticket is closed", t.ID().String())
		}
		if t.AssignedAgentID() != nil {
			current, err := e.agents.GetByID(txCtx, *t.AssignedAgentID())
			if err != nil {
				return err
			}
			result = &Assignment{TicketID: t.ID(), RoomID: t.ChatRoomID(), Agent: current, Status: t.Status().String()}
			return nil
		}

		chosen, err := e.selectAgent(txCtx, t.RegionID(), selection{allowBot: true})
		if err != nil {
			return err
		}
		if chosen == nil {
			if announceUnmatched {
				if _, err := e.conv.AddSystemMessage(txCtx, t.ChatRoomID(), msgUnavailable); err != nil {
					return fmt.Errorf("failed to add system message: %w", err)
				}
			}
			result = &Assignment{TicketID: t.ID(), RoomID: t.ChatRoomID(), Status: t.Status().String()}
			return nil
		}

		if err := e.handOver(txCtx, t, nil, chosen); err != nil {
			e.undoReservation(txCtx, chosen)
			return err
		}
		result = &Assignment{TicketID: t.ID(), RoomID: t.ChatRoomID(), Agent: chosen, Status: t.Status().String(), Changed: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// handOver assigns t to next, swaps room membership and announces the change.
// The caller owns the reservation on next.
func (e *Engine) handOver(ctx context.Context, t *ticket.SupportTicket, previous, next *agent.Agent) error {
	if err := t.AssignTo(next.ID(), e.clock.Now()); err != nil {
		return err
	}
	if err := e.tickets.Update(ctx, t); err != nil {
		return fmt.Errorf("failed to update ticket %d: %w", t.ID(), err)
	}

	if previous != nil {
		if err := e.conv.RemoveParticipant(ctx, t.ChatRoomID(), previous.UserID()); err != nil {
			return fmt.Errorf("failed to remove participant: %w", err)
		}
	}
	if err := e.conv.AddParticipant(ctx, t.ChatRoomID(), next.UserID()); err != nil {
		return fmt.Errorf("failed to add participant: %w", err)
	}

	body := fmt.Sprintf(msgJoined, next.DisplayName())
	if previous != nil && !previous.IsBot() {
		body = fmt.Sprintf(msgHandoff, previous.DisplayName(), next.DisplayName())
	}
	if _, err := e.conv.AddSystemMessage(ctx, t.ChatRoomID(), body); err != nil {
		return fmt.Errorf("failed to add system message: %w", err)
	}
	return nil
}

// undoReservation gives back a slot taken by a failed hand-over. Inside a
// database transaction the rollback covers it as well.
func (e *Engine) undoReservation(ctx context.Context, a *agent.Agent) {
	if a == nil || a.IsBot() {
		return
	}
	if err := e.agents.ReleaseChat(ctx, a.ID()); err != nil {
		e.logger.Errorw("failed to undo chat reservation", "agent_id", a.ID(), "error", err)
	}
}

// ReassignOnAgentUnavailable moves every active ticket away from an agent
// that went offline or away, then resets its counter. It returns the number
// of tickets handed to another agent.
func (e *Engine) ReassignOnAgentUnavailable(ctx context.Context, agentID ids.AgentID) (int, error) {
	vacating, err := e.agents.GetByID(ctx, agentID)
	if err != nil {
		if errors.IsNotFoundError(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to load agent %d: %w", agentID, err)
	}

	held, err := e.tickets.ListActiveByAgent(ctx, agentID)
	if err != nil {
		return 0, fmt.Errorf("failed to list tickets of agent %d: %w", agentID, err)
	}

	moved := 0
	for _, t := range held {
		result, err := e.moveAway(ctx, t.ID(), vacating)
		if err != nil {
			e.logger.Errorw("failed to reassign ticket",
				"ticket_id", t.ID(),
				"from_agent_id", agentID,
				"error", err,
			)
			continue
		}
		if result == nil {
			continue
		}
		if result.Agent != nil {
			moved++
			e.emitAssignment(ctx, result, realtime.EventTicketReassigned)
		} else {
			e.emitUnassigned(ctx, result)
		}
	}

	if !vacating.IsBot() {
		if err := e.agents.ResetActiveChats(ctx, agentID); err != nil {
			return moved, fmt.Errorf("failed to reset active chats of agent %d: %w", agentID, err)
		}
		if _, err := e.resolver.RefreshStatus(ctx, agentID); err != nil {
			e.logger.Warnw("failed to refresh vacating agent status", "agent_id", agentID, "error", err)
		}
	}

	if len(held) > 0 {
		e.logger.Infow("tickets reassigned from unavailable agent",
			"agent_id", agentID,
			"tickets", len(held),
			"moved", moved,
		)
	}
	return moved, nil
}

func (e *Engine) moveAway(ctx context.Context, ticketID ids.TicketID, vacating *agent.Agent) (*Assignment, error) {
	var result *Assignment
	err := e.txm.RunInTransaction(ctx, func(txCtx context.Context) error {
		t, err := e.tickets.GetByID(txCtx, ticketID)
		if err != nil {
			return err
		}
		if !t.IsActive() || !t.IsAssignedTo(vacating.ID()) {
			return nil
		}

		next, err := e.selectAgent(txCtx, t.RegionID(), selection{exclude: vacating.ID(), allowBot: true})
		if err != nil {
			return err
		}

		if next == nil {
			if err := t.Unassign(e.clock.Now()); err != nil {
				return err
			}
			if err := e.tickets.Update(txCtx, t); err != nil {
				return fmt.Errorf("failed to update ticket %d: %w", t.ID(), err)
			}
			if err := e.conv.RemoveParticipant(txCtx, t.ChatRoomID(), vacating.UserID()); err != nil {
				return fmt.Errorf("failed to remove participant: %w", err)
			}
			if _, err := e.conv.AddSystemMessage(txCtx, t.ChatRoomID(), msgUnavailable); err != nil {
				return fmt.Errorf("failed to add system message: %w", err)
			}
			result = &Assignment{TicketID: t.ID(), RoomID: t.ChatRoomID(), Previous: vacating, Status: t.Status().String(), Changed: true}
			return nil
		}

		if err := e.handOver(txCtx, t, vacating, next); err != nil {
			e.undoReservation(txCtx, next)
			return err
		}
		result = &Assignment{TicketID: t.ID(), RoomID: t.ChatRoomID(), Agent: next, Previous: vacating, Status: t.Status().String(), Changed: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ReassignBotTicketsToAvailableAgents moves bot-held tickets, oldest first,
// to available humans. It returns the number of tickets moved.
func (e *Engine) ReassignBotTicketsToAvailableAgents(ctx context.Context) (int, error) {
	held, err := e.tickets.ListActiveHeldByBots(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list bot-held tickets: %w", err)
	}
	if len(held) == 0 {
		return 0, nil
	}

	moved := 0
	for _, t := range held {
		result, err := e.moveFromBot(ctx, t.ID())
		if err != nil {
			e.logger.Errorw("failed to move bot-held ticket", "ticket_id", t.ID(), "error", err)
			continue
		}
		if result == nil {
			continue
		}
		moved++
		e.emitAssignment(ctx, result, realtime.EventTicketReassigned)
	}

	if moved > 0 {
		e.logger.Infow("bot-held tickets moved to agents", "moved", moved, "pending", len(held)-moved)
	}
	return moved, nil
}

func (e *Engine) moveFromBot(ctx context.Context, ticketID ids.TicketID) (*Assignment, error) {
	var result *Assignment
	err := e.txm.RunInTransaction(ctx, func(txCtx context.Context) error {
		t, err := e.tickets.GetByID(txCtx, ticketID)
		if err != nil {
			return err
		}
		if !t.IsActive() || t.AssignedAgentID() == nil {
			return nil
		}
		bot, err := e.agents.GetByID(txCtx, *t.AssignedAgentID())
		if err != nil {
			return err
		}
		if !bot.IsBot() {
			return nil
		}

		human, err := e.selectAgent(txCtx, t.RegionID(), selection{allowBot: false})
		if err != nil || human == nil {
			return err
		}

		if err := e.handOver(txCtx, t, bot, human); err != nil {
			e.undoReservation(txCtx, human)
			return err
		}
		result = &Assignment{TicketID: t.ID(), RoomID: t.ChatRoomID(), Agent: human, Previous: bot, Status: t.Status().String(), Changed: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ReassignUnassignedTickets retries routing for open tickets left without
// any assignee, oldest first.
func (e *Engine) ReassignUnassignedTickets(ctx context.Context) (int, error) {
	pending, err := e.tickets.ListUnassignedOpen(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list unassigned tickets: %w", err)
	}

	assigned := 0
	for _, t := range pending {
		result, err := e.assign(ctx, t.ID(), false)
		if err != nil {
			e.logger.Errorw("failed to assign pending ticket", "ticket_id", t.ID(), "error", err)
			continue
		}
		if result.Agent == nil || !result.Changed {
			continue
		}
		assigned++
		e.emitAssignment(ctx, result, realtime.EventTicketAssigned)
	}
	return assigned, nil
}

// TransferTicket moves an active ticket to toAgentID, or to the best other
// available human when toAgentID is nil. The previous agent's slot is freed.
func (e *Engine) TransferTicket(ctx context.Context, ticketID ids.TicketID, toAgentID *ids.AgentID) (*Assignment, error) {
	var result *Assignment
	err := e.txm.RunInTransaction(ctx, func(txCtx context.Context) error {
		t, err := e.tickets.GetByID(txCtx, ticketID)
		if err != nil {
			return err
		}
		if !t.IsActive() {
			return errors.NewConflictError("ticket is closed", t.ID().String())
		}

		var previous *agent.Agent
		exclude := ids.AgentID(0)
		if t.AssignedAgentID() != nil {
			exclude = *t.AssignedAgentID()
			previous, err = e.agents.GetByID(txCtx, exclude)
			if err != nil && !errors.IsNotFoundError(err) {
				return err
			}
		}

		next, err := e.reserveTarget(txCtx, t, toAgentID, exclude)
		if err != nil {
			return err
		}

		if err := e.handOver(txCtx, t, previous, next); err != nil {
			e.undoReservation(txCtx, next)
			return err
		}
		if previous != nil && !previous.IsBot() {
			if err := e.agents.ReleaseChat(txCtx, previous.ID()); err != nil {
				return fmt.Errorf("failed to release chat slot of agent %d: %w", previous.ID(), err)
			}
		}
		result = &Assignment{TicketID: t.ID(), RoomID: t.ChatRoomID(), Agent: next, Previous: previous, Status: t.Status().String(), Changed: true}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Previous != nil && !result.Previous.IsBot() {
		e.RefreshAgent(ctx, result.Previous.ID())
	}
	e.emitAssignment(ctx, result, realtime.EventTicketReassigned)
	return result, nil
}

func (e *Engine) reserveTarget(ctx context.Context, t *ticket.SupportTicket, toAgentID *ids.AgentID, exclude ids.AgentID) (*agent.Agent, error) {
	if toAgentID == nil {
		next, err := e.selectAgent(ctx, t.RegionID(), selection{exclude: exclude})
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, errors.NewConflictError("no other agent is available")
		}
		return next, nil
	}

	if *toAgentID == exclude {
		return nil, errors.NewValidationError("ticket is already assigned to this agent")
	}
	target, err := e.agents.GetByID(ctx, *toAgentID)
	if err != nil {
		return nil, err
	}
	if !target.IsActive() {
		return nil, errors.NewConflictError("agent is deactivated")
	}
	if target.IsBot() {
		return target, nil
	}
	ok, err := e.agents.TryReserveChat(ctx, target.ID())
	if err != nil {
		return nil, fmt.Errorf("failed to reserve chat slot for agent %d: %w", target.ID(), err)
	}
	if !ok {
		return nil, errors.NewConflictError("agent has no free capacity")
	}
	return e.agents.GetByID(ctx, target.ID())
}

// GetAgentWorkload counts the agent's open and in-progress tickets. Unknown
// agents have no workload.
func (e *Engine) GetAgentWorkload(ctx context.Context, agentID ids.AgentID) (int, error) {
	if _, err := e.agents.GetByID(ctx, agentID); err != nil {
		if errors.IsNotFoundError(err) {
			return 0, nil
		}
		return 0, err
	}
	n, err := e.tickets.CountActiveByAgent(ctx, agentID)
	if err != nil {
		return 0, fmt.Errorf("failed to count tickets of agent %d: %w", agentID, err)
	}
	return int(n), nil
}

// ReleaseTicket frees the slot the ticket's human assignee holds and returns
// that agent, or 0 when nothing was released. It only writes the counter, so
// it joins the caller's transaction; call RefreshAgent once that commits.
func (e *Engine) ReleaseTicket(ctx context.Context, t *ticket.SupportTicket) (ids.AgentID, error) {
	if t.AssignedAgentID() == nil {
		return 0, nil
	}
	a, err := e.agents.GetByID(ctx, *t.AssignedAgentID())
	if err != nil {
		if errors.IsNotFoundError(err) {
			return 0, nil
		}
		return 0, err
	}
	if a.IsBot() {
		return 0, nil
	}
	if err := e.agents.ReleaseChat(ctx, a.ID()); err != nil {
		return 0, fmt.Errorf("failed to release chat slot of agent %d: %w", a.ID(), err)
	}
	return a.ID(), nil
}

// RefreshAgent re-derives an agent's status after its capacity changed and
// announces the transition. Failures are logged.
func (e *Engine) RefreshAgent(ctx context.Context, agentID ids.AgentID) {
	if agentID == 0 {
		return
	}
	if _, err := e.resolver.RefreshStatus(ctx, agentID); err != nil {
		e.logger.Warnw("failed to refresh agent status after release", "agent_id", agentID, "error", err)
	}
}

func (e *Engine) emitAssignment(ctx context.Context, result *Assignment, event string) {
	if result == nil || result.Agent == nil || !result.Changed {
		return
	}
	agentID := result.Agent.ID()
	payload := realtime.TicketPayload{
		TicketID:  result.TicketID,
		RoomID:    result.RoomID,
		Status:    result.Status,
		AgentID:   &agentID,
		AgentName: result.Agent.DisplayName(),
	}
	if result.Previous != nil {
		prev := result.Previous.ID()
		payload.PreviousAgentID = &prev
	}
	e.broadcaster.SendToRoom(ctx, result.RoomID, event, payload)

	if result.Agent.IsBot() {
		return
	}
	e.broadcaster.SendToUser(ctx, result.Agent.UserID(), realtime.EventAgentNewAssignment, payload)
	if result.Agent.AtCapacity() {
		e.broadcaster.SendToUser(ctx, result.Agent.UserID(), realtime.EventAgentStatus, map[string]any{
			"agent_id": agentID,
			"status":   vo.StatusBusy,
		})
	}

	if e.notifier == nil {
		return
	}
	data := map[string]string{
		"type":      "new_assignment",
		"ticket_id": result.TicketID.String(),
		"room_id":   result.RoomID.String(),
	}
	body := fmt.Sprintf("Conversation #%d needs your attention.", result.TicketID)
	if err := e.notifier.SendNewMessageNotification(ctx, result.Agent.UserID(), result.RoomID, notifyAssignmentTitle, body, data); err != nil {
		e.logger.Warnw("failed to send assignment notification",
			"agent_id", agentID,
			"ticket_id", result.TicketID,
			"error", err,
		)
	}
}

func (e *Engine) emitUnassigned(ctx context.Context, result *Assignment) {
	payload := realtime.TicketPayload{
		TicketID: result.TicketID,
		RoomID:   result.RoomID,
		Status:   result.Status,
	}
	if result.Previous != nil {
		prev := result.Previous.ID()
		payload.PreviousAgentID = &prev
	}
	e.broadcaster.SendToRoom(ctx, result.RoomID, realtime.EventTicketUnassigned, payload)
}
