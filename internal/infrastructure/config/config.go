package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	sharedConfig "github.com/orris-inc/livedesk/internal/shared/config"
)

type Config struct {
	Server       sharedConfig.ServerConfig       `mapstructure:"server"`
	Database     sharedConfig.DatabaseConfig     `mapstructure:"database"`
	Logger       sharedConfig.LoggerConfig       `mapstructure:"logger"`
	Auth         sharedConfig.AuthConfig         `mapstructure:"auth"`
	Redis        sharedConfig.RedisConfig        `mapstructure:"redis"`
	Presence     sharedConfig.PresenceConfig     `mapstructure:"presence"`
	AgentStatus  sharedConfig.AgentStatusConfig  `mapstructure:"agent_status"`
	Monitor      sharedConfig.MonitorConfig      `mapstructure:"monitor"`
	Notification sharedConfig.NotificationConfig `mapstructure:"notification"`
	Bot          sharedConfig.BotConfig          `mapstructure:"bot"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load loads configuration from a .env file, the config file and
// environment variables, in increasing order of precedence.
func Load(env string) (*Config, error) {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../configs")
	viper.AddConfigPath("../../configs")

	viper.SetEnvPrefix("LIVEDESK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Allow env parameter to override server mode if provided
	if env != "" && env != "default" {
		viper.Set("server.mode", env)
	}

	config, err := decode()
	if err != nil {
		return nil, err
	}

	appConfigMu.Lock()
	appConfig = config
	appConfigMu.Unlock()

	return config, nil
}

func decode() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &config, nil
}

// Watch reloads the configuration when the config file changes and hands the
// new value to onChange. Only settings read at call time (such as the log
// level) take effect without a restart.
func Watch(onChange func(cfg *Config)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		config, err := decode()
		if err != nil {
			return
		}

		appConfigMu.Lock()
		appConfig = config
		appConfigMu.Unlock()

		onChange(config)
	})
	viper.WatchConfig()
}

// Get returns the loaded configuration
func Get() *Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return appConfig
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("server.timezone", "UTC")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)
	viper.SetDefault("database.username", "root")
	viper.SetDefault("database.password", "password")
	viper.SetDefault("database.database", "livedesk_dev")
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.max_open_conns", 100)
	viper.SetDefault("database.conn_max_lifetime", 60)
	viper.SetDefault("database.connect_attempts", 5)
	viper.SetDefault("database.slow_query_ms", 200)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
	viper.SetDefault("logger.output_path", "stdout")

	// Auth defaults
	viper.SetDefault("auth.jwt_secret", "change-me-in-production")
	viper.SetDefault("auth.jwt_issuer", "livedesk")
	viper.SetDefault("auth.casbin_model", "configs/rbac_model.conf")
	viper.SetDefault("auth.access_exp_minutes", 60)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Presence defaults
	viper.SetDefault("presence.backend", "memory")
	viper.SetDefault("presence.ttl_seconds", 90)

	// Agent status defaults
	viper.SetDefault("agent_status.manual_status_ttl_minutes", 30)
	viper.SetDefault("agent_status.available_window_minutes", 5)
	viper.SetDefault("agent_status.away_window_minutes", 30)

	// Status monitor defaults
	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.interval_seconds", 120)
	viper.SetDefault("monitor.initial_delay_seconds", 30)
	viper.SetDefault("monitor.timeout_seconds", 100)

	// Notification defaults
	viper.SetDefault("notification.backend", "log")
	viper.SetDefault("notification.kafka.topic", "livedesk.push")
	viper.SetDefault("notification.kafka.client_id", "livedesk")

	// Bot defaults
	viper.SetDefault("bot.openai_model", "gpt-4o-mini")
}
