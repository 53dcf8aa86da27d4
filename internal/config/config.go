/**
 * @description
 * This package handles the configuration management for the credit service. It
 * uses the Viper library to read configuration from environment variables and an
 * optional .env file. The Config value is built once at startup and passed
 * explicitly to the components that need it.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverSQLite   = "sqlite"
)

// Config holds all the configuration variables for the credit service.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`

	StorageDriver string `mapstructure:"STORAGE_DRIVER"`
	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	SQLitePath    string `mapstructure:"SQLITE_PATH"`

	ScoringAPIKey             string `mapstructure:"SCORING_API_KEY"`
	ScoringAPIBaseURL         string `mapstructure:"SCORING_API_BASE_URL"`
	ScoringModel              string `mapstructure:"SCORING_MODEL"`
	ScoringHTTPTimeoutSeconds int    `mapstructure:"SCORING_HTTP_TIMEOUT_SECONDS"`

	RedisURL                      string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix          string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	CreditScoreRateLimitPerMinute int    `mapstructure:"CREDIT_SCORE_RATE_LIMIT_PER_MINUTE"`

	RabbitMQURL    string `mapstructure:"RABBITMQ_URL"`
	EventsExchange string `mapstructure:"EVENTS_EXCHANGE"`
	LoanEventQueue string `mapstructure:"LOAN_EVENT_QUEUE"`

	ScoreRefreshSchedule    string `mapstructure:"SCORE_REFRESH_SCHEDULE"`
	ScoreRefreshMaxAgeHours int    `mapstructure:"SCORE_REFRESH_MAX_AGE_HOURS"`
	ScoreRefreshBatchSize   int    `mapstructure:"SCORE_REFRESH_BATCH_SIZE"`

	SupabaseJWTSecret string `mapstructure:"SUPABASE_JWT_SECRET"`
	InternalAPIKey    string `mapstructure:"INTERNAL_API_KEY"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

// ScoringTimeout returns the outbound HTTP timeout for scoring calls.
func (c Config) ScoringTimeout() time.Duration {
	return time.Duration(c.ScoringHTTPTimeoutSeconds) * time.Second
}

// ScoreRefreshMaxAge returns how old a latest score may be before the refresh job rescores it.
func (c Config) ScoreRefreshMaxAge() time.Duration {
	return time.Duration(c.ScoreRefreshMaxAgeHours) * time.Hour
}

// Validate reports configuration that prevents startup. A missing scoring key
// is not fatal here; the calculate flow reports it per request.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORAGE_DRIVER=postgres")
		}
	case StorageDriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required when STORAGE_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver)
	}
	return nil
}

// LoadConfig reads configuration from environment variables and an optional
// .env file in path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("STORAGE_DRIVER", StorageDriverPostgres)
	viper.SetDefault("SQLITE_PATH", "data/credible.db")
	viper.SetDefault("SCORING_API_BASE_URL", "https://ai.gateway.lovable.dev")
	viper.SetDefault("SCORING_MODEL", "google/gemini-2.5-flash")
	viper.SetDefault("SCORING_HTTP_TIMEOUT_SECONDS", 60)
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "credible:rate_limit")
	viper.SetDefault("CREDIT_SCORE_RATE_LIMIT_PER_MINUTE", 5)
	viper.SetDefault("EVENTS_EXCHANGE", "credible.events")
	viper.SetDefault("LOAN_EVENT_QUEUE", "credit_service.loan_events")
	viper.SetDefault("SCORE_REFRESH_SCHEDULE", "@daily")
	viper.SetDefault("SCORE_REFRESH_MAX_AGE_HOURS", 720)
	viper.SetDefault("SCORE_REFRESH_BATCH_SIZE", 50)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")

	// Bind environment variables explicitly so they appear in Unmarshal.
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("STORAGE_DRIVER")
	_ = viper.BindEnv("DATABASE_URL", "DATABASE_URL", "SUPABASE_DB_URL")
	_ = viper.BindEnv("SQLITE_PATH")
	_ = viper.BindEnv("SCORING_API_KEY", "SCORING_API_KEY", "LOVABLE_API_KEY")
	_ = viper.BindEnv("SCORING_API_BASE_URL")
	_ = viper.BindEnv("SCORING_MODEL")
	_ = viper.BindEnv("SCORING_HTTP_TIMEOUT_SECONDS")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("CREDIT_SCORE_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENTS_EXCHANGE")
	_ = viper.BindEnv("LOAN_EVENT_QUEUE")
	_ = viper.BindEnv("SCORE_REFRESH_SCHEDULE")
	_ = viper.BindEnv("SCORE_REFRESH_MAX_AGE_HOURS")
	_ = viper.BindEnv("SCORE_REFRESH_BATCH_SIZE")
	_ = viper.BindEnv("SUPABASE_JWT_SECRET")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "CREDIT_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("LOG_LEVEL")
	_ = viper.BindEnv("LOG_FORMAT")

	// A missing .env file is fine; anything else is worth a warning.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("failed to read config file; using environment values", "component", "config", "error", err)
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}

	config.StorageDriver = strings.ToLower(strings.TrimSpace(config.StorageDriver))
	config.DatabaseURL = strings.TrimSpace(config.DatabaseURL)
	config.SQLitePath = strings.TrimSpace(config.SQLitePath)
	config.ScoringAPIKey = strings.TrimSpace(config.ScoringAPIKey)
	config.ScoringAPIBaseURL = strings.TrimRight(strings.TrimSpace(config.ScoringAPIBaseURL), "/")
	config.ScoringModel = strings.TrimSpace(config.ScoringModel)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "credible:rate_limit"
	}
	config.SupabaseJWTSecret = strings.TrimSpace(config.SupabaseJWTSecret)
	config.InternalAPIKey = strings.TrimSpace(config.InternalAPIKey)

	if config.ScoringHTTPTimeoutSeconds <= 0 {
		slog.Warn("invalid SCORING_HTTP_TIMEOUT_SECONDS; using default", "component", "config", "value", config.ScoringHTTPTimeoutSeconds)
		config.ScoringHTTPTimeoutSeconds = 60
	}
	if config.CreditScoreRateLimitPerMinute < 0 {
		config.CreditScoreRateLimitPerMinute = 0
	}
	if config.ScoreRefreshMaxAgeHours <= 0 {
		config.ScoreRefreshMaxAgeHours = 720
	}
	if config.ScoreRefreshBatchSize <= 0 {
		config.ScoreRefreshBatchSize = 50
	}
	if strings.TrimSpace(config.EventsExchange) == "" {
		config.EventsExchange = "credible.events"
	}
	if strings.TrimSpace(config.LoanEventQueue) == "" {
		config.LoanEventQueue = "credit_service.loan_events"
	}

	return
}
