package http

import (
	"context"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/orris-inc/livedesk/internal/application/agentstatus"
	"github.com/orris-inc/livedesk/internal/application/assignment"
	"github.com/orris-inc/livedesk/internal/application/delivery"
	"github.com/orris-inc/livedesk/internal/application/notification"
	ticketusecases "github.com/orris-inc/livedesk/internal/application/ticket/usecases"
	"github.com/orris-inc/livedesk/internal/domain/presence"
	"github.com/orris-inc/livedesk/internal/domain/shared/realtime"
	"github.com/orris-inc/livedesk/internal/infrastructure/auth"
	"github.com/orris-inc/livedesk/internal/infrastructure/config"
	"github.com/orris-inc/livedesk/internal/infrastructure/permission"
	"github.com/orris-inc/livedesk/internal/infrastructure/pubsub"
	"github.com/orris-inc/livedesk/internal/infrastructure/scheduler"
	"github.com/orris-inc/livedesk/internal/infrastructure/services/realtimehub"
	"github.com/orris-inc/livedesk/internal/interfaces/http/middleware"
	"github.com/orris-inc/livedesk/internal/shared/biztime"
	"github.com/orris-inc/livedesk/internal/shared/db"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

// Container holds all infrastructure components, repositories, use cases, handlers,
// and background services. It is responsible for wiring everything together and
// providing a Shutdown() method for graceful termination.
type Container struct {
	// Core infrastructure
	engine *gin.Engine
	db     *gorm.DB
	cfg    *config.Config
	log    logger.Interface
	redis  *redis.Client
	clock  biztime.Clock
	txm    db.Transactor

	repos *repositories
	ucs   *allUseCases
	hdlrs *allHandlers

	// Middlewares
	authMiddleware       *middleware.AuthMiddleware
	permissionMiddleware *middleware.PermissionMiddleware

	// Auth
	jwtSvc   *auth.JWTService
	enforcer *permission.Enforcer

	// Realtime
	presence    presence.Store
	hub         *realtimehub.Hub
	realtimeBus *pubsub.RedisRealtimeBus
	broadcaster *realtimehub.ClusterBroadcaster
	relayCancel context.CancelFunc
	relayMu     sync.Mutex

	// Push notifications
	pushSender  realtime.NotificationSender
	closePush   func() error
	dispatcher  *notification.Dispatcher
	responder   ticketusecases.BotResponder

	// Routing
	resolver         *agentstatus.Resolver
	engineSvc        *assignment.Engine
	tracker          *delivery.Tracker
	schedulerManager *scheduler.SchedulerManager
}

// NewContainer creates a new Container with all dependencies wired together.
// Each section depends only on the ones before it.
func NewContainer(database *gorm.DB, cfg *config.Config, log logger.Interface) (*Container, error) {
	c := &Container{
		engine: gin.New(),
		db:     database,
		cfg:    cfg,
		log:    log,
		clock:  biztime.SystemClock{},
		txm:    db.NewTransactionManager(database),
	}

	// Section 1: Infrastructure - Redis, Repositories
	if err := c.initInfrastructure(); err != nil {
		return nil, err
	}

	// Section 2: Auth - JWT, Casbin, Middlewares
	if err := c.initAuth(); err != nil {
		return nil, err
	}

	// Section 3: Realtime - Presence, Hub, Cross-instance Relay
	c.initRealtime()

	// Section 4: Notifications - Push Sender, Bot Responder
	if err := c.initNotifications(); err != nil {
		return nil, err
	}

	// Section 5: Routing - Status Resolver, Assignment Engine, Status Monitor
	if err := c.initRouting(); err != nil {
		return nil, err
	}

	// Section 6: Use Cases and Handlers
	c.ucs = c.newUseCases()
	c.hdlrs = c.newHandlers()

	return c, nil
}
