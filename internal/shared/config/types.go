package config

import (
	"fmt"
	"time"
)

type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	Timezone       string   `mapstructure:"timezone"`
}

func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	ConnectAttempts int    `mapstructure:"connect_attempts"`
	SlowQueryMs     int    `mapstructure:"slow_query_ms"`
}

func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&collation=utf8mb4_general_ci&parseTime=true&loc=UTC",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type AuthConfig struct {
	JWTSecret    string `mapstructure:"jwt_secret"`
	JWTIssuer    string `mapstructure:"jwt_issuer"`
	CasbinModel  string `mapstructure:"casbin_model"`
	AccessExpMin int    `mapstructure:"access_exp_minutes"`
}

// PresenceConfig selects the presence store backend ("memory" or "redis").
type PresenceConfig struct {
	Backend    string `mapstructure:"backend"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

func (p *PresenceConfig) TTL() time.Duration {
	return time.Duration(p.TTLSeconds) * time.Second
}

// AgentStatusConfig holds the windows used to classify agent activity.
type AgentStatusConfig struct {
	ManualStatusTTLMinutes int `mapstructure:"manual_status_ttl_minutes"`
	AvailableWindowMinutes int `mapstructure:"available_window_minutes"`
	AwayWindowMinutes      int `mapstructure:"away_window_minutes"`
}

func (a *AgentStatusConfig) ManualStatusTTL() time.Duration {
	return time.Duration(a.ManualStatusTTLMinutes) * time.Minute
}

func (a *AgentStatusConfig) AvailableWindow() time.Duration {
	return time.Duration(a.AvailableWindowMinutes) * time.Minute
}

func (a *AgentStatusConfig) AwayWindow() time.Duration {
	return time.Duration(a.AwayWindowMinutes) * time.Minute
}

type MonitorConfig struct {
	Enabled             bool `mapstructure:"enabled"`
	IntervalSeconds     int  `mapstructure:"interval_seconds"`
	InitialDelaySeconds int  `mapstructure:"initial_delay_seconds"`
	TimeoutSeconds      int  `mapstructure:"timeout_seconds"`
}

type NotificationConfig struct {
	Backend string      `mapstructure:"backend"`
	Kafka   KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	ClientID string   `mapstructure:"client_id"`
}

type BotConfig struct {
	Greeting     string `mapstructure:"greeting"`
	OpenAIAPIKey string `mapstructure:"openai_api_key"`
	OpenAIModel  string `mapstructure:"openai_model"`
}
