package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/orris-inc/livedesk/internal/infrastructure/config"
	"github.com/orris-inc/livedesk/internal/infrastructure/database"
	"github.com/orris-inc/livedesk/internal/infrastructure/migration"
	httpRouter "github.com/orris-inc/livedesk/internal/interfaces/http"
	"github.com/orris-inc/livedesk/internal/shared/biztime"
	"github.com/orris-inc/livedesk/internal/shared/logger"
	"github.com/orris-inc/livedesk/internal/shared/version"
)

var (
	env                string
	autoMigrate        bool
	skipMigrationCheck bool
	verbose            bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP server",
		Long:  `Start the LiveDesk HTTP and websocket server together with the agent status monitor.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "Automatically run database migrations on startup (not recommended for production)")
	cmd.Flags().BoolVar(&skipMigrationCheck, "skip-migration-check", false, "Skip migration status check on startup")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log source locations at every level")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Server.Mode = mapEnvToGinMode(env)

	if err := logger.Init(&cfg.Logger, verbose); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.NewLogger()

	if err := biztime.Init(cfg.Server.Timezone); err != nil {
		return fmt.Errorf("failed to initialize business timezone: %w", err)
	}

	config.Watch(func(updated *config.Config) {
		logger.SetLevel(logger.ParseLevel(updated.Logger.Level))
		log.Infow("configuration reloaded", "log_level", updated.Logger.Level)
	})

	log.Infow("starting server",
		"environment", env,
		"version", version.Get().String(),
		"auto_migrate", autoMigrate)

	gin.SetMode(cfg.Server.Mode)
	gin.DefaultWriter = io.Discard
	gin.DebugPrintRouteFunc = func(httpMethod, absolutePath, handlerName string, nuHandlers int) {}

	if err := database.Init(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	if err := handleMigrations(log); err != nil {
		return fmt.Errorf("migration handling failed: %w", err)
	}

	container, err := httpRouter.NewContainer(database.Get(), cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	container.SetupRoutes()
	container.StartBackground()

	// WriteTimeout stays zero: websocket connections outlive any request deadline.
	srv := &http.Server{
		Addr:              cfg.Server.GetAddr(),
		Handler:           container.GetEngine(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("server starting",
			"address", cfg.Server.GetAddr(),
			"mode", cfg.Server.Mode)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverErr:
		container.Shutdown()
		return fmt.Errorf("failed to start server: %w", err)
	}

	log.Infow("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	container.Shutdown()

	log.Infow("server exited gracefully")
	return nil
}

func handleMigrations(log logger.Interface) error {
	if skipMigrationCheck && !autoMigrate {
		log.Infow("skipping migration check")
		return nil
	}

	manager := migration.NewManager(env)

	if autoMigrate {
		if env == "production" {
			log.Warnw("auto-migration is enabled in production environment - this is not recommended!")
		}
		return manager.Migrate(database.Get())
	}

	goose, err := manager.Goose()
	if err != nil {
		// Development databases follow the models; there is no version to report.
		log.Infow("migration check skipped", "strategy", manager.GetStrategy().GetName())
		return nil
	}

	current, err := goose.GetVersion(database.Get())
	if err != nil {
		log.Warnw("failed to check migration status", "error", err)
		return nil
	}
	pending, err := goose.Pending(current)
	if err != nil {
		log.Warnw("failed to list pending migrations", "error", err)
		return nil
	}
	if len(pending) > 0 {
		log.Warnw("database schema is behind, run `livedesk migrate up`",
			"version", current,
			"pending", len(pending))
		return nil
	}

	log.Infow("database schema is current", "version", current)
	return nil
}

func mapEnvToGinMode(environment string) string {
	switch environment {
	case "production", "prod", "release":
		return gin.ReleaseMode
	case "test", "testing":
		return gin.TestMode
	default:
		return gin.DebugMode
	}
}
