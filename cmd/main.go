/**
 * @description
 * This is the main entry point for the SubSentry dashboard service.
 * It loads configuration, connects the optional infrastructure (Redis sessions,
 * Postgres preferences, RabbitMQ invalidation relay), wires the workspace manager
 * and serves the dashboard API until a termination signal arrives.
 *
 * Key features:
 * - Every external dependency is optional; missing ones fall back to in-process stores.
 * - The in-process demo backend is mounted when DEMO_MODE_ENABLED is set.
 * - Graceful shutdown of the HTTP server, workspaces and connections.
 *
 * @dependencies
 * - pgxpool for the preference store, go-redis for sessions, rabbitmq for the relay,
 *   godotenv for local config.
 */
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/subsentry/dashboard-service/internal/api"
	"github.com/subsentry/dashboard-service/internal/app"
	"github.com/subsentry/dashboard-service/internal/config"
	"github.com/subsentry/dashboard-service/internal/demo"
	"github.com/subsentry/dashboard-service/internal/metrics"
	"github.com/subsentry/dashboard-service/internal/query"
	"github.com/subsentry/dashboard-service/internal/session"
	"github.com/subsentry/dashboard-service/internal/store"
	"github.com/subsentry/dashboard-service/pkg/rabbitmq"
	"github.com/subsentry/dashboard-service/pkg/subsentryclient"
)

const (
	workspaceEvictEvery = 5 * time.Minute
	cacheEvictAfter     = 10 * time.Minute
)

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func main() {
	// Load .env file for local development.
	envErr := godotenv.Load()

	// Load application configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)
	if envErr != nil {
		logger.Debug("no .env file found, using environment variables")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	m := metrics.New()

	// Session storage: Redis when configured and reachable, memory otherwise.
	var sessions session.Store = session.NewMemoryStore(cfg.SessionTTL)
	if strings.TrimSpace(cfg.RedisURL) == "" {
		logger.Warn("redis url missing; sessions kept in memory", "env", "REDIS_URL")
	} else if redisOptions, parseErr := redis.ParseURL(cfg.RedisURL); parseErr != nil {
		logger.Warn("redis url parse failed; sessions kept in memory", "error", parseErr)
	} else {
		redisClient := redis.NewClient(redisOptions)
		pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
		pingErr := redisClient.Ping(pingCtx).Err()
		cancelPing()
		if pingErr != nil {
			logger.Warn("redis ping failed; sessions kept in memory", "error", pingErr)
			redisClient.Close()
		} else {
			defer redisClient.Close()
			sessions = session.NewRedisStore(redisClient, "subsentry:session:", cfg.SessionTTL)
			logger.Info("redis connected")
		}
	}

	// Preference storage: Postgres when configured, memory otherwise.
	var preferences app.PreferenceRepository = store.NewMemoryRepository()
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		logger.Warn("database url missing; preferences kept in memory", "env", "DATABASE_URL")
	} else {
		poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
		if err != nil {
			logger.Error("unable to parse database URL", "error", err)
			os.Exit(1)
		}
		poolConfig.MaxConns = 20
		poolConfig.MinConns = 2
		poolConfig.MaxConnLifetime = 30 * time.Minute
		poolConfig.MaxConnIdleTime = 5 * time.Minute

		// Disable prepared statement caching to work with PgBouncer transaction pooling
		poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

		dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			logger.Error("unable to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbpool.Close()
		repository := store.NewRepository(dbpool)
		if err := repository.EnsureSchema(ctx); err != nil {
			logger.Error("failed to prepare preference table", "error", err)
			os.Exit(1)
		}
		preferences = repository
		logger.Info("database connection established")
	}

	// Change events: local registry, relayed across replicas through RabbitMQ when available.
	origin := session.NewID()
	registry := query.NewRegistry(origin, logger)
	if strings.TrimSpace(cfg.RabbitMQURL) == "" {
		logger.Warn("rabbitmq url missing; invalidation stays local to this replica", "env", "RABBITMQ_URL")
	} else {
		var producer rabbitmq.Publisher
		producer, err = rabbitmq.NewEventProducer(cfg.RabbitMQURL, cfg.EventsExchange, logger)
		if err != nil {
			logger.Warn("rabbitmq producer unavailable; using fallback", "error", err)
			producer = &rabbitmq.EventProducerFallback{Logger: logger}
		}
		defer producer.Close()
		registry.SetRelay(producer)

		consumer, err := rabbitmq.NewConsumer(cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Warn("rabbitmq consumer unavailable; remote invalidations ignored", "error", err)
		} else {
			defer consumer.Close()
			queueName := fmt.Sprintf("dashboard.invalidations.%s", origin)
			if err := consumer.ConsumeWithBindings(cfg.EventsExchange, queueName, rabbitmq.RegistryBindings(registry, logger)); err != nil {
				logger.Warn("failed to start invalidation consumer", "error", err)
			} else {
				logger.Info("invalidation relay started", "exchange", cfg.EventsExchange, "queue", queueName)
			}
		}
	}

	cache := query.NewCache(cfg.QueryStaleTime, cacheEvictAfter)
	cache.SetObserver(m)

	client := subsentryclient.NewClient(cfg.APIBaseURL,
		subsentryclient.WithHTTPClient(&http.Client{Timeout: cfg.APITimeout}),
		subsentryclient.WithLogger(logger),
		subsentryclient.WithObserver(m),
	)

	managerConfig := app.ManagerConfig{
		Client:        client,
		Sessions:      sessions,
		Preferences:   preferences,
		Cache:         cache,
		Registry:      registry,
		Observer:      m,
		Logger:        logger,
		PollInterval:  cfg.NotificationPollInterval,
		Lookahead:     cfg.UpcomingLookaheadDays,
		AnonymousIdle: cfg.AnonymousSessionIdle,
	}
	if cfg.DemoModeEnabled {
		managerConfig.Demo = demo.NewSandboxes(logger.With("backend", "demo"), cfg.SessionTTL)
		managerConfig.DemoClient = subsentryclient.NewClient(demo.BaseURL,
			subsentryclient.WithLogger(logger.With("backend", "demo")),
			subsentryclient.WithObserver(m),
		)
		logger.Info("demo mode available")
	}

	manager := app.NewManager(managerConfig)
	if err := manager.StartEviction(workspaceEvictEvery, cfg.SessionTTL); err != nil {
		logger.Error("failed to start workspace eviction", "error", err)
		os.Exit(1)
	}

	router := api.NewRouter(api.Options{
		Manager:           manager,
		Metrics:           m,
		Logger:            logger,
		AllowedOrigins:    cfg.AllowedOrigins(),
		RateLimitRPS:      cfg.RateLimitRPS,
		RateLimitBurst:    cfg.RateLimitBurst,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
	})

	// Configure and start the HTTP server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for an OS signal
	<-sigCh
	logger.Info("shutdown signal received, gracefully shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	manager.Shutdown()

	logger.Info("server stopped")
}
