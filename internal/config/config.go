/**
 * @description
 * Configuration for the dashboard service. Settings are read from environment
 * variables (and an optional .env file loaded in main) through viper.
 */
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the dashboard service.
type Config struct {
	ServerPort               string        `mapstructure:"SERVER_PORT"`
	APIBaseURL               string        `mapstructure:"API_BASE_URL"`
	APITimeout               time.Duration `mapstructure:"API_TIMEOUT"`
	RedisURL                 string        `mapstructure:"REDIS_URL"`
	SessionTTL               time.Duration `mapstructure:"SESSION_TTL"`
	DatabaseURL              string        `mapstructure:"DATABASE_URL"`
	RabbitMQURL              string        `mapstructure:"RABBITMQ_URL"`
	EventsExchange           string        `mapstructure:"EVENTS_EXCHANGE"`
	NotificationPollInterval time.Duration `mapstructure:"NOTIFICATION_POLL_INTERVAL"`
	QueryStaleTime           time.Duration `mapstructure:"QUERY_STALE_TIME"`
	UpcomingLookaheadDays    int           `mapstructure:"UPCOMING_LOOKAHEAD_DAYS"`
	DemoModeEnabled          bool          `mapstructure:"DEMO_MODE_ENABLED"`
	RateLimitRPS             float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst           int           `mapstructure:"RATE_LIMIT_BURST"`
	TrustProxyHeaders        bool          `mapstructure:"TRUST_PROXY_HEADERS"`
	AnonymousSessionIdle     time.Duration `mapstructure:"ANONYMOUS_SESSION_IDLE"`
	CORSAllowedOrigins       string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	LogLevel                 string        `mapstructure:"LOG_LEVEL"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	viper.SetDefault("SERVER_PORT", "8090")
	viper.SetDefault("API_BASE_URL", "http://localhost:8080/api")
	viper.SetDefault("API_TIMEOUT", "10s")
	viper.SetDefault("SESSION_TTL", "24h")
	viper.SetDefault("EVENTS_EXCHANGE", "subsentry.events")
	viper.SetDefault("NOTIFICATION_POLL_INTERVAL", "30s")
	viper.SetDefault("QUERY_STALE_TIME", "30s")
	viper.SetDefault("UPCOMING_LOOKAHEAD_DAYS", 7)
	viper.SetDefault("DEMO_MODE_ENABLED", true)
	viper.SetDefault("RATE_LIMIT_RPS", 20)
	viper.SetDefault("RATE_LIMIT_BURST", 40)
	viper.SetDefault("TRUST_PROXY_HEADERS", false)
	viper.SetDefault("ANONYMOUS_SESSION_IDLE", "5m")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.AutomaticEnv()

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	for _, key := range []string{
		"SERVER_PORT", "API_BASE_URL", "API_TIMEOUT", "REDIS_URL", "SESSION_TTL",
		"DATABASE_URL", "RABBITMQ_URL", "EVENTS_EXCHANGE", "NOTIFICATION_POLL_INTERVAL",
		"QUERY_STALE_TIME", "UPCOMING_LOOKAHEAD_DAYS", "DEMO_MODE_ENABLED", "RATE_LIMIT_RPS",
		"RATE_LIMIT_BURST", "TRUST_PROXY_HEADERS", "ANONYMOUS_SESSION_IDLE", "CORS_ALLOWED_ORIGINS", "LOG_LEVEL",
	} {
		_ = viper.BindEnv(key)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.APIBaseURL = strings.TrimRight(strings.TrimSpace(config.APIBaseURL), "/")
	if config.APIBaseURL == "" {
		return nil, fmt.Errorf("API_BASE_URL must not be empty")
	}
	if config.UpcomingLookaheadDays <= 0 {
		return nil, fmt.Errorf("UPCOMING_LOOKAHEAD_DAYS must be positive, got %d", config.UpcomingLookaheadDays)
	}
	if config.NotificationPollInterval <= 0 {
		return nil, fmt.Errorf("NOTIFICATION_POLL_INTERVAL must be positive")
	}

	return &config, nil
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}
