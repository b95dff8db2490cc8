package http

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/orris-inc/livedesk/internal/application/agentstatus"
	"github.com/orris-inc/livedesk/internal/application/assignment"
	"github.com/orris-inc/livedesk/internal/application/delivery"
	"github.com/orris-inc/livedesk/internal/application/monitor"
	"github.com/orris-inc/livedesk/internal/application/notification"
	"github.com/orris-inc/livedesk/internal/domain/agent"
	"github.com/orris-inc/livedesk/internal/infrastructure/auth"
	"github.com/orris-inc/livedesk/internal/infrastructure/botreply"
	"github.com/orris-inc/livedesk/internal/infrastructure/config"
	"github.com/orris-inc/livedesk/internal/infrastructure/permission"
	"github.com/orris-inc/livedesk/internal/infrastructure/presence"
	"github.com/orris-inc/livedesk/internal/infrastructure/pubsub"
	"github.com/orris-inc/livedesk/internal/infrastructure/push"
	"github.com/orris-inc/livedesk/internal/infrastructure/scheduler"
	"github.com/orris-inc/livedesk/internal/infrastructure/services/realtimehub"
	"github.com/orris-inc/livedesk/internal/interfaces/http/middleware"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

// ============================================================
// Section 1: Infrastructure - Redis, Repositories
// ============================================================

func (c *Container) initInfrastructure() error {
	redisClient, err := initRedis(c.cfg, c.log)
	if err != nil {
		return err
	}
	c.redis = redisClient
	c.repos = newRepositories(c.db, c.clock, c.log)
	return nil
}

// initRedis creates and tests the Redis client connection.
func initRedis(cfg *config.Config, log logger.Interface) (*redis.Client, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Infow("Redis connection established successfully", "addr", cfg.Redis.GetAddr())

	return redisClient, nil
}

// ============================================================
// Section 2: Auth - JWT, Casbin, Middlewares
// ============================================================

func (c *Container) initAuth() error {
	cfg := c.cfg

	c.jwtSvc = auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessExpMin)

	enforcer, err := permission.NewEnforcer(c.db, cfg.Auth.CasbinModel, c.log.Named("permission"))
	if err != nil {
		return fmt.Errorf("failed to initialize permission enforcer: %w", err)
	}
	if err := enforcer.SeedDefaultPolicies(); err != nil {
		return fmt.Errorf("failed to seed default policies: %w", err)
	}
	c.enforcer = enforcer

	c.authMiddleware = middleware.NewAuthMiddleware(c.jwtSvc, c.log)
	c.permissionMiddleware = middleware.NewPermissionMiddleware(enforcer, c.log)
	return nil
}

// ============================================================
// Section 3: Realtime - Presence, Hub, Cross-instance Relay
// ============================================================

func (c *Container) initRealtime() {
	switch c.cfg.Presence.Backend {
	case "redis":
		c.presence = presence.NewRedisStore(c.redis, c.cfg.Presence.TTL())
	default:
		c.presence = presence.NewMemoryStore()
	}
	c.log.Infow("presence store initialized", "backend", c.cfg.Presence.Backend)

	c.hub = realtimehub.NewHub(c.repos.conversation, c.presence, c.log.Named("realtime.hub"))
	c.realtimeBus = pubsub.NewRedisRealtimeBus(c.redis, c.log.Named("realtime.bus"))
	c.broadcaster = realtimehub.NewClusterBroadcaster(c.hub, c.realtimeBus, c.log.Named("realtime.cluster"))
}

// ============================================================
// Section 4: Notifications - Push Sender, Bot Responder
// ============================================================

func (c *Container) initNotifications() error {
	cfg := c.cfg

	switch cfg.Notification.Backend {
	case "kafka":
		producer, err := push.NewKafkaProducer(cfg.Notification.Kafka)
		if err != nil {
			return fmt.Errorf("failed to create kafka producer: %w", err)
		}
		sender := push.NewKafkaSender(producer, cfg.Notification.Kafka.Topic, c.log.Named("push.kafka"))
		c.pushSender = sender
		c.closePush = sender.Close
	default:
		c.pushSender = push.NewLogSender(c.log.Named("push"))
	}

	c.dispatcher = notification.NewDispatcher(c.presence, c.repos.conversation, c.pushSender, c.log.Named("notification"))

	switch {
	case cfg.Bot.OpenAIAPIKey != "":
		c.responder = botreply.NewOpenAIResponderFromKey(cfg.Bot.OpenAIAPIKey, cfg.Bot.OpenAIModel, c.log.Named("botreply"))
	case cfg.Bot.Greeting != "":
		c.responder = botreply.NewStaticResponder(cfg.Bot.Greeting)
	}
	return nil
}

// ============================================================
// Section 5: Routing - Status Resolver, Assignment Engine, Status Monitor
// ============================================================

func (c *Container) initRouting() error {
	cfg := c.cfg
	repos := c.repos

	c.resolver = agentstatus.NewResolver(
		repos.agentRepo,
		c.clock,
		agentstatus.Settings{
			ManualStatusTTL: cfg.AgentStatus.ManualStatusTTL(),
			Windows: agent.ActivityWindows{
				Available: cfg.AgentStatus.AvailableWindow(),
				Away:      cfg.AgentStatus.AwayWindow(),
			},
		},
		c.broadcaster,
		c.log.Named("agentstatus"),
	)

	c.engineSvc = assignment.NewEngine(
		repos.agentRepo,
		repos.ticketRepo,
		repos.conversation,
		c.resolver,
		c.broadcaster,
		c.pushSender,
		c.txm,
		c.clock,
		c.log.Named("assignment"),
	)

	tracker, err := delivery.NewTracker(
		repos.deliveryRepo,
		repos.conversation,
		c.broadcaster,
		c.txm,
		c.clock,
		c.log.Named("delivery"),
		delivery.DefaultLookupCacheSize,
	)
	if err != nil {
		return err
	}
	c.tracker = tracker

	schedulerManager, err := scheduler.NewSchedulerManager(c.log.Named("scheduler"))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	c.schedulerManager = schedulerManager

	if cfg.Monitor.Enabled {
		job := monitor.NewStatusSweepJob(c.resolver, c.engineSvc, c.log.Named("monitor"))
		if err := schedulerManager.RegisterStatusMonitor(job,
			time.Duration(cfg.Monitor.IntervalSeconds)*time.Second,
			time.Duration(cfg.Monitor.InitialDelaySeconds)*time.Second,
			time.Duration(cfg.Monitor.TimeoutSeconds)*time.Second,
		); err != nil {
			return fmt.Errorf("failed to register status monitor: %w", err)
		}
	}
	return nil
}
