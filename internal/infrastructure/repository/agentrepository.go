package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/orris-inc/livedesk/internal/domain/agent"
	vo "github.com/orris-inc/livedesk/internal/domain/agent/valueobjects"
	"github.com/orris-inc/livedesk/internal/domain/shared/ids"
	"github.com/orris-inc/livedesk/internal/infrastructure/persistence/mappers"
	"github.com/orris-inc/livedesk/internal/infrastructure/persistence/models"
	"github.com/orris-inc/livedesk/internal/shared/biztime"
	"github.com/orris-inc/livedesk/internal/shared/constants"
	"github.com/orris-inc/livedesk/internal/shared/db"
	"github.com/orris-inc/livedesk/internal/shared/errors"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

// The status flip is listed first: MySQL evaluates SET assignments left to
// right against already-updated columns, SQLite against the old row. Only an
// available agent flips to busy; away and offline are kept.
var reserveChatSQL = fmt.Sprintf(`UPDATE %s SET
	status = CASE WHEN current_active_chats + 1 >= max_concurrent_chats AND status = ? THEN ? ELSE status END,
	current_active_chats = current_active_chats + 1,
	version = version + 1,
	updated_at = ?
WHERE id = ? AND kind = ? AND is_active = ? AND current_active_chats < max_concurrent_chats`, constants.TableAgents)

// AgentRepositoryImpl implements agent.Repository on gorm.
type AgentRepositoryImpl struct {
	db     *gorm.DB
	mapper mappers.AgentMapper
	clock  biztime.Clock
	logger logger.Interface
}

func NewAgentRepository(database *gorm.DB, clock biztime.Clock, log logger.Interface) *AgentRepositoryImpl {
	return &AgentRepositoryImpl{
		db:     database,
		mapper: mappers.NewAgentMapper(),
		clock:  clock,
		logger: log,
	}
}

func (r *AgentRepositoryImpl) Create(ctx context.Context, a *agent.Agent) error {
	model, err := r.mapper.ToModel(a)
	if err != nil {
		return fmt.Errorf("failed to map agent: %w", err)
	}

	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Create(model).Error; err != nil {
		if errors.IsDuplicateError(err) {
			return errors.NewConflictError("agent already exists", a.UserID().String())
		}
		r.logger.Errorw("failed to create agent", "user_id", a.UserID(), "error", err)
		return fmt.Errorf("failed to create agent: %w", err)
	}

	return a.SetID(ids.AgentID(model.ID))
}

// Update writes every field except the capacity counter, guarded by version.
func (r *AgentRepositoryImpl) Update(ctx context.Context, a *agent.Agent) error {
	model, err := r.mapper.ToModel(a)
	if err != nil {
		return fmt.Errorf("failed to map agent: %w", err)
	}

	tx := db.GetTxFromContext(ctx, r.db)
	result := tx.Model(&models.AgentModel{}).
		Where("id = ? AND version = ?", model.ID, model.Version).
		Updates(map[string]any{
			"display_name":         model.DisplayName,
			"is_active":            model.IsActive,
			"primary_region_id":    model.PrimaryRegionID,
			"secondary_region_ids": model.SecondaryRegionIDs,
			"max_concurrent_chats": model.MaxConcurrentChats,
			"status":               model.Status,
			"auto_detected_status": model.AutoDetectedStatus,
			"manual_status":        model.ManualStatus,
			"manual_status_set_at": model.ManualStatusSetAt,
			"manual_status_expiry": model.ManualStatusExpiry,
			"last_activity_at":     model.LastActivityAt,
			"version":              model.Version + 1,
			"updated_at":           model.UpdatedAt,
		})
	if result.Error != nil {
		r.logger.Errorw("failed to update agent", "id", model.ID, "error", result.Error)
		return fmt.Errorf("failed to update agent: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		if err := r.ensureExists(ctx, a.ID()); err != nil {
			return err
		}
		return errors.NewConflictError("agent was modified concurrently", a.ID().String())
	}

	a.IncrementVersion()
	return nil
}

func (r *AgentRepositoryImpl) GetByID(ctx context.Context, id ids.AgentID) (*agent.Agent, error) {
	return r.findOne(ctx, "id = ?", uint(id))
}

func (r *AgentRepositoryImpl) GetByUserID(ctx context.Context, userID ids.UserID) (*agent.Agent, error) {
	return r.findOne(ctx, "user_id = ?", uint(userID))
}

func (r *AgentRepositoryImpl) List(ctx context.Context) ([]*agent.Agent, error) {
	return r.findMany(ctx, db.GetTxFromContext(ctx, r.db))
}

func (r *AgentRepositoryImpl) ListWithExpiredManualStatus(ctx context.Context, now time.Time) ([]*agent.Agent, error) {
	query := db.GetTxFromContext(ctx, r.db).
		Where("manual_status_expiry IS NOT NULL AND manual_status_expiry < ?", now)
	return r.findMany(ctx, query)
}

func (r *AgentRepositoryImpl) ListAssignable(ctx context.Context) ([]*agent.Agent, error) {
	query := db.GetTxFromContext(ctx, r.db).
		Where("is_active = ? AND kind = ? AND current_active_chats < max_concurrent_chats", true, string(vo.KindHuman))
	return r.findMany(ctx, query)
}

// FindBot prefers the bot bound to region and falls back to the global bot
// (the one without a primary region).
func (r *AgentRepositoryImpl) FindBot(ctx context.Context, region *ids.RegionID) (*agent.Agent, error) {
	tx := db.GetTxFromContext(ctx, r.db)
	base := func() *gorm.DB {
		return tx.Model(&models.AgentModel{}).
			Where("kind = ? AND is_active = ?", string(vo.KindBot), true).
			Order("id ASC")
	}

	if region != nil {
		var regional []models.AgentModel
		if err := base().Where("primary_region_id = ?", uint(*region)).Limit(1).Find(&regional).Error; err != nil {
			return nil, fmt.Errorf("failed to find regional bot: %w", err)
		}
		if len(regional) == 1 {
			return r.mapper.ToDomain(&regional[0])
		}
	}

	var global []models.AgentModel
	if err := base().Where("primary_region_id IS NULL").Limit(1).Find(&global).Error; err != nil {
		return nil, fmt.Errorf("failed to find global bot: %w", err)
	}
	if len(global) == 0 {
		return nil, errors.NewNotFoundError("bot agent not found")
	}
	return r.mapper.ToDomain(&global[0])
}

// TryReserveChat takes a slot with a single guarded UPDATE. Zero affected
// rows means the agent is full, inactive or a bot; bots always succeed.
func (r *AgentRepositoryImpl) TryReserveChat(ctx context.Context, id ids.AgentID) (bool, error) {
	tx := db.GetTxFromContext(ctx, r.db)
	result := tx.Exec(reserveChatSQL,
		vo.StatusAvailable.String(), vo.StatusBusy.String(), r.clock.Now(), uint(id), string(vo.KindHuman), true)
	if result.Error != nil {
		r.logger.Errorw("failed to reserve chat slot", "agent_id", id, "error", result.Error)
		return false, fmt.Errorf("failed to reserve chat slot: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	a, err := r.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return a.IsBot(), nil
}

func (r *AgentRepositoryImpl) ReleaseChat(ctx context.Context, id ids.AgentID) error {
	tx := db.GetTxFromContext(ctx, r.db)
	result := tx.Model(&models.AgentModel{}).
		Where("id = ? AND kind = ? AND current_active_chats > 0", uint(id), string(vo.KindHuman)).
		Updates(map[string]any{
			"current_active_chats": gorm.Expr("current_active_chats - 1"),
			"version":              gorm.Expr("version + 1"),
			"updated_at":           r.clock.Now(),
		})
	if result.Error != nil {
		r.logger.Errorw("failed to release chat slot", "agent_id", id, "error", result.Error)
		return fmt.Errorf("failed to release chat slot: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return r.ensureExists(ctx, id)
	}
	return nil
}

func (r *AgentRepositoryImpl) ResetActiveChats(ctx context.Context, id ids.AgentID) error {
	tx := db.GetTxFromContext(ctx, r.db)
	result := tx.Model(&models.AgentModel{}).
		Where("id = ?", uint(id)).
		Updates(map[string]any{
			"current_active_chats": 0,
			"version":              gorm.Expr("version + 1"),
			"updated_at":           r.clock.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to reset active chats: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("agent not found", id.String())
	}
	return nil
}

func (r *AgentRepositoryImpl) findOne(ctx context.Context, query string, args ...any) (*agent.Agent, error) {
	var model models.AgentModel
	tx := db.GetTxFromContext(ctx, r.db)

	if err := tx.Where(query, args...).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("agent not found")
		}
		return nil, fmt.Errorf("failed to find agent: %w", err)
	}

	return r.mapper.ToDomain(&model)
}

func (r *AgentRepositoryImpl) findMany(ctx context.Context, query *gorm.DB) ([]*agent.Agent, error) {
	var list []models.AgentModel
	if err := query.Order("id ASC").Find(&list).Error; err != nil {
		r.logger.Errorw("failed to list agents", "error", err)
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	return r.mapper.ToDomainList(list)
}

func (r *AgentRepositoryImpl) ensureExists(ctx context.Context, id ids.AgentID) error {
	var count int64
	tx := db.GetTxFromContext(ctx, r.db)
	if err := tx.Model(&models.AgentModel{}).Where("id = ?", uint(id)).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check agent: %w", err)
	}
	if count == 0 {
		return errors.NewNotFoundError("agent not found", id.String())
	}
	return nil
}
