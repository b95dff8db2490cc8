package database

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/orris-inc/livedesk/internal/shared/config"
	appLogger "github.com/orris-inc/livedesk/internal/shared/logger"
)

const defaultSlowQuery = 200 * time.Millisecond

var (
	db   *gorm.DB
	dbMu sync.RWMutex
)

// Init opens the MySQL pool and waits for the server to answer, retrying up
// to cfg.ConnectAttempts times. Timestamps are stored and parsed in UTC.
func Init(cfg *config.DatabaseConfig) error {
	database, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       cfg.GetDSN(),
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger:      NewGormLogger(slowQueryThreshold(cfg)),
		PrepareStmt: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)

	attempts := cfg.ConnectAttempts
	if attempts < 1 {
		attempts = 1
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second

	_, err = backoff.Retry(context.Background(), func() (struct{}, error) {
		if pingErr := sqlDB.Ping(); pingErr != nil {
			appLogger.Warn("database not reachable yet", "database", cfg.Database, "error", pingErr)
			return struct{}{}, pingErr
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(attempts)))
	if err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("failed to connect to database after %d attempts: %w", attempts, err)
	}

	dbMu.Lock()
	db = database
	dbMu.Unlock()

	appLogger.Info("database connection established",
		"database", cfg.Database,
		"host", cfg.Host)

	return nil
}

func Get() *gorm.DB {
	dbMu.RLock()
	defer dbMu.RUnlock()
	return db
}

func Close() error {
	dbMu.Lock()
	currentDB := db
	db = nil
	dbMu.Unlock()

	if currentDB == nil {
		return nil
	}

	sqlDB, err := currentDB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	appLogger.Info("database connection closed")
	return nil
}

func slowQueryThreshold(cfg *config.DatabaseConfig) time.Duration {
	if cfg.SlowQueryMs <= 0 {
		return defaultSlowQuery
	}
	return time.Duration(cfg.SlowQueryMs) * time.Millisecond
}

// NewGormLogger routes gorm output through the application logger.
func NewGormLogger(slowThreshold time.Duration) logger.Interface {
	return logger.New(
		gormWriter{},
		logger.Config{
			SlowThreshold:             slowThreshold,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// gormWriter maps gorm's printf lines onto leveled records and drops the
// driver's version queries.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "information_schema.schemata"),
		strings.Contains(lower, "select version()"):
		return
	case strings.Contains(lower, "[error]"):
		appLogger.Error("database error", "details", msg)
	case strings.Contains(lower, "slow sql"):
		appLogger.Warn("slow query", "details", msg)
	default:
		appLogger.Debug("database query", "details", msg)
	}
}
