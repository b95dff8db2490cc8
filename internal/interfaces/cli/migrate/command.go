package migrate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orris-inc/livedesk/internal/infrastructure/config"
	"github.com/orris-inc/livedesk/internal/infrastructure/database"
	"github.com/orris-inc/livedesk/internal/infrastructure/migration"
	"github.com/orris-inc/livedesk/internal/infrastructure/migration/scripts"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

var (
	env   string
	steps int
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tools",
		Long:  `Manage database migrations: apply pending scripts, roll back and inspect the schema version.`,
	}

	cmd.PersistentFlags().StringVarP(&env, "env", "e", "production", "Environment (development, test, production)")

	cmd.AddCommand(
		newUpCommand(),
		newDownCommand(),
		newStatusCommand(),
	)

	return cmd
}

func newUpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Run all pending migrations",
		Long:  `Apply all pending database migrations. In development the schema follows the models instead.`,
		RunE:  runUp,
	}
}

func newDownCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		Long:  `Rollback a specified number of database migrations.`,
		RunE:  runDown,
	}

	cmd.Flags().IntVarP(&steps, "steps", "n", 1, "Number of migrations to rollback")

	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		Long:  `Display the current migration version and status of the database.`,
		RunE:  runStatus,
	}
}

func initEnv() (logger.Interface, func(), error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger, false); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.NewLogger()

	if err := database.Init(&cfg.Database); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return log, func() { _ = database.Close() }, nil
}

func runUp(cmd *cobra.Command, args []string) error {
	log, closeDB, err := initEnv()
	if err != nil {
		return err
	}
	defer closeDB()

	log.Infow("running up migrations", "environment", env)

	if err := migration.NewManager(env).Migrate(database.Get()); err != nil {
		return err
	}

	log.Infow("migrations completed successfully")
	return nil
}

func runDown(cmd *cobra.Command, args []string) error {
	if steps < 1 {
		return fmt.Errorf("steps must be at least 1")
	}

	log, closeDB, err := initEnv()
	if err != nil {
		return err
	}
	defer closeDB()

	log.Infow("rolling back migrations", "environment", env, "steps", steps)

	strategy := migration.NewGooseStrategy(scripts.FS, "mysql")
	if err := strategy.MigrateDown(database.Get(), steps); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}

	log.Infow("rollback completed successfully")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	_, closeDB, err := initEnv()
	if err != nil {
		return err
	}
	defer closeDB()

	strategy := migration.NewGooseStrategy(scripts.FS, "mysql")
	version, err := strategy.GetVersion(database.Get())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "current version: %d\n", version)

	return strategy.Status(database.Get())
}
