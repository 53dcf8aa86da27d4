/**
 * @description
 * This is the main entry point for the credit-service. It loads configuration,
 * opens the data store, builds the scoring client, connects to RabbitMQ and
 * Redis when configured, starts the refresh scheduler and the loan event
 * consumer, and serves the HTTP API until SIGINT/SIGTERM.
 *
 * @dependencies
 * - context, net/http, os, os/signal, syscall, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/joho/godotenv: Local .env loading.
 * - github.com/prometheus/client_golang: Metrics registry.
 * - github.com/redis/go-redis/v9: Rate limiter backend.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/logging, pkg/rabbitmq, pkg/scoringclient: Shared clients.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/credible/credit-service/internal/api"
	"github.com/credible/credit-service/internal/app"
	"github.com/credible/credit-service/internal/config"
	"github.com/credible/credit-service/internal/store"
	"github.com/credible/credit-service/pkg/logging"
	"github.com/credible/credit-service/pkg/rabbitmq"
	"github.com/credible/credit-service/pkg/scoringclient"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("config load failed", "component", "bootstrap", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	bootLog := logger.With("component", "bootstrap")

	if err := cfg.Validate(); err != nil {
		bootLog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	bootLog.Info("starting credit-service", "port", cfg.ServerPort, "storage_driver", cfg.StorageDriver)

	repo, closeRepo, err := openRepository(cfg)
	if err != nil {
		bootLog.Error("data store unavailable", "driver", cfg.StorageDriver, "error", err)
		os.Exit(1)
	}
	defer closeRepo()
	bootLog.Info("data store connected", "driver", cfg.StorageDriver)

	// Leave scorer as a nil interface when the key is missing so each
	// calculation reports the configuration error.
	var scorer app.Scorer
	if cfg.ScoringAPIKey == "" {
		bootLog.Warn("scoring api key missing; credit score calculation disabled", "env", "SCORING_API_KEY")
	} else {
		client := scoringclient.NewClient(cfg.ScoringAPIBaseURL, cfg.ScoringAPIKey, cfg.ScoringModel, cfg.ScoringTimeout())
		client.Logger = logger.With("component", "scoring_client")
		scorer = client
	}

	var publisher rabbitmq.Publisher = &rabbitmq.EventProducerFallback{Logger: logger}
	if cfg.RabbitMQURL == "" {
		bootLog.Warn("rabbitmq url missing; credit score events disabled", "env", "RABBITMQ_URL")
	} else if producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, cfg.EventsExchange, logger); err != nil {
		bootLog.Warn("rabbitmq producer unavailable; using fallback", "error", err)
	} else {
		defer producer.Close()
		publisher = producer
		bootLog.Info("rabbitmq producer connected", "exchange", cfg.EventsExchange)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	creditService := app.NewService(repo, scorer, publisher, logger.With("component", "credit_service"))
	creditService.SetMetrics(app.NewMetrics(registry))

	if redisClient := connectRedis(cfg, bootLog); redisClient != nil {
		defer redisClient.Close()
		creditService.SetRateLimiter(app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix), cfg.CreditScoreRateLimitPerMinute)
	}

	jobs := app.NewJobs(creditService, repo, logger.With("component", "jobs"), cfg)
	scheduler := app.NewScheduler(jobs, logger.With("component", "scheduler"), cfg)
	if err := scheduler.Start(); err != nil {
		bootLog.Error("scheduler start failed", "schedule", cfg.ScoreRefreshSchedule, "error", err)
		os.Exit(1)
	}

	if cfg.RabbitMQURL != "" {
		consumer, err := rabbitmq.NewConsumer(cfg.RabbitMQURL, logger)
		if err != nil {
			bootLog.Warn("rabbitmq consumer unavailable; loan event rescoring disabled", "error", err)
		} else {
			defer consumer.Close()
			loanConsumer := creditService.LoanEventConsumer()
			if err := consumer.ConsumeWithBindings(cfg.EventsExchange, cfg.LoanEventQueue, loanConsumer.Bindings()); err != nil {
				bootLog.Error("loan event consumer start failed", "queue", cfg.LoanEventQueue, "error", err)
				os.Exit(1)
			}
			bootLog.Info("loan event consumer started", "queue", cfg.LoanEventQueue)
		}
	}

	handlers := api.NewCreditScoreHandlers(creditService, logger.With("component", "api"))
	router := api.NewRouter(handlers, api.RouterConfig{
		JWTSecret:      cfg.SupabaseJWTSecret,
		InternalAPIKey: cfg.InternalAPIKey,
		Gatherer:       registry,
	})
	if cfg.SupabaseJWTSecret == "" {
		bootLog.Warn("jwt secret missing; credit score routes are unauthenticated", "env", "SUPABASE_JWT_SECRET")
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", "component", "http", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", "component", "http", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown started", "component", "http")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", "component", "http", "error", err)
	}
	<-scheduler.Stop().Done()

	logger.Info("shutdown complete", "component", "http")
}

// openRepository returns the configured store and a function that releases it.
func openRepository(cfg config.Config) (store.Repository, func(), error) {
	if cfg.StorageDriver == config.StorageDriverSQLite {
		repo, err := store.NewSQLiteRepository(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse database url: %w", err)
	}
	poolConfig.MaxConns = 20
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	// Supabase's pooler does not support prepared statement caching.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, err
	}
	if err := dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	return store.NewPostgresRepository(dbpool), dbpool.Close, nil
}

// connectRedis returns a client for the calculate throttle, or nil when the
// throttle is disabled or Redis is unreachable.
func connectRedis(cfg config.Config, bootLog *slog.Logger) *redis.Client {
	if cfg.CreditScoreRateLimitPerMinute <= 0 {
		return nil
	}
	if cfg.RedisURL == "" {
		bootLog.Warn("redis url missing; credit score rate limiting disabled", "env", "REDIS_URL")
		return nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		bootLog.Warn("redis url parse failed; credit score rate limiting disabled", "error", err)
		return nil
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		bootLog.Warn("redis ping failed; credit score rate limiting disabled", "error", err)
		client.Close()
		return nil
	}
	bootLog.Info("redis connected")
	return client
}
