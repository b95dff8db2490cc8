package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	vo "github.com/orris-inc/livedesk/internal/domain/agent/valueobjects"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/domain/ticket"
	ticketvo "github.com/orris-inc/livedesk/internal/domain/ticket/valueobjects"
	"github.com/orris-inc/livedesk/internal/infrastructure/persistence/mappers"
	"github.com/orris-inc/livedesk/internal/infrastructure/persistence/models"
	"github.com/orris-inc/livedesk/internal/shared/constants"
	"github.com/orris-inc/livedesk/internal/shared/db"
	"github.com/orris-inc/livedesk/internal/shared/errors"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

type SupportTicketRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.SupportTicketMapper
	logger logger.Interface
}

func NewSupportTicketRepository(database *gorm.DB, log logger.Interface) *SupportTicketRepositoryImpl {
	return &SupportTicketRepositoryImpl{
		db:     database,
		mapper: mappers.NewSupportTicketMapper(),
		logger: log,
	}
}

func (r *SupportTicketRepositoryImpl) Create(ctx context.Context, t *ticket.SupportTicket) error {
	model := r.mapper.ToModel(t)
	tx := db.GetTxFromContext(ctx, r.db)

	if err := tx.Create(model).Error; err != nil {
		if errors.IsDuplicateError(err) {
			return errors.NewConflictError("chat room already has a ticket", t.ChatRoomID().String())
		}
		r.logger.Errorw("failed to create support ticket", "room_id", t.ChatRoomID(), "error", err)
		return fmt.Errorf("failed to create support ticket: %w", err)
	}

	return t.SetID(ids.TicketID(model.ID))
}

func (r *SupportTicketRepositoryImpl) Update(ctx context.Context, t *ticket.SupportTicket) error {
	model := r.mapper.ToModel(t)
	tx := db.GetTxFromContext(ctx, r.db)

	result := tx.Model(&models.SupportTicketModel{}).
		Where("id = ? AND version = ?", model.ID, model.Version).
		Updates(map[string]any{
			"subject":           model.Subject,
			"assigned_agent_id": model.AssignedAgentID,
			"region_id":         model.RegionID,
			"status":            model.Status,
			"version":           model.Version + 1,
			"updated_at":        model.UpdatedAt,
			"closed_at":         model.ClosedAt,
		})
	if result.Error != nil {
		r.logger.Errorw("failed to update support ticket", "id", model.ID, "error", result.Error)
		return fmt.Errorf("failed to update support ticket: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := tx.Model(&models.SupportTicketModel{}).Where("id = ?", model.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check support ticket: %w", err)
		}
		if count == 0 {
			return errors.NewNotFoundError("ticket not found", t.ID().String())
		}
		return errors.NewConflictError("ticket was modified concurrently", t.ID().String())
	}

	t.IncrementVersion()
	return nil
}

func (r *SupportTicketRepositoryImpl) GetByID(ctx context.Context, id ids.TicketID) (*ticket.SupportTicket, error) {
	return r.findOne(ctx, "id = ?", uint(id))
}

func (r *SupportTicketRepositoryImpl) GetByRoomID(ctx context.Context, roomID ids.RoomID) (*ticket.SupportTicket, error) {
	return r.findOne(ctx, "chat_room_id = ?", uint(roomID))
}

func (r *SupportTicketRepositoryImpl) ListActiveByAgent(ctx context.Context, agentID ids.AgentID) ([]*ticket.SupportTicket, error) {
	query := db.GetTxFromContext(ctx, r.db).
		Where("assigned_agent_id = ? AND status IN ?", uint(agentID), activeStatuses())
	return r.findMany(query)
}

// ListActiveHeldByBots returns active tickets whose assignee is a bot agent.
func (r *SupportTicketRepositoryImpl) ListActiveHeldByBots(ctx context.Context) ([]*ticket.SupportTicket, error) {
	t := constants.TableSupportTickets
	query := db.GetTxFromContext(ctx, r.db).
		Table(t).
		Select(t+".*").
		Joins(fmt.Sprintf("JOIN %s ON %s.id = %s.assigned_agent_id", constants.TableAgents, constants.TableAgents, t)).
		Where(constants.TableAgents+".kind = ?", string(vo.KindBot)).
		Where(t+".status IN ?", activeStatuses())
	return r.findManyOrdered(query, t+".created_at ASC, "+t+".id ASC")
}

func (r *SupportTicketRepositoryImpl) ListUnassignedOpen(ctx context.Context) ([]*ticket.SupportTicket, error) {
	query := db.GetTxFromContext(ctx, r.db).
		Where("assigned_agent_id IS NULL AND status IN ?", activeStatuses())
	return r.findMany(query)
}

func (r *SupportTicketRepositoryImpl) CountActiveByAgent(ctx context.Context, agentID ids.AgentID) (int64, error) {
	var count int64
	err := db.GetTxFromContext(ctx, r.db).
		Model(&models.SupportTicketModel{}).
		Where("assigned_agent_id = ? AND status IN ?", uint(agentID), activeStatuses()).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count active tickets: %w", err)
	}
	return count, nil
}

func (r *SupportTicketRepositoryImpl) findOne(ctx context.Context, query string, args ...any) (*ticket.SupportTicket, error) {
	var model models.SupportTicketModel
	tx := db.GetTxFromContext(ctx, r.db)

	if err := tx.Where(query, args...).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("ticket not found")
		}
		return nil, fmt.Errorf("failed to find support ticket: %w", err)
	}

	return r.mapper.ToDomain(&model)
}

func (r *SupportTicketRepositoryImpl) findMany(query *gorm.DB) ([]*ticket.SupportTicket, error) {
	return r.findManyOrdered(query, "created_at ASC, id ASC")
}

func (r *SupportTicketRepositoryImpl) findManyOrdered(query *gorm.DB, order string) ([]*ticket.SupportTicket, error) {
	var list []models.SupportTicketModel
	if err := query.Order(order).Find(&list).Error; err != nil {
		r.logger.Errorw("failed to list support tickets", "error", err)
		return nil, fmt.Errorf("failed to list support tickets: %w", err)
	}
	return r.mapper.ToDomainList(list)
}

func activeStatuses() []string {
	statuses := ticketvo.ActiveStatuses()
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, s.String())
	}
	return out
}
