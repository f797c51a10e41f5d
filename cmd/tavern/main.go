// Command tavern serves the quest marketplace API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tavern-guild/tavern/internal/api"
	"github.com/tavern-guild/tavern/internal/archive"
	"github.com/tavern-guild/tavern/internal/cache"
	"github.com/tavern-guild/tavern/internal/config"
	"github.com/tavern-guild/tavern/internal/docstore"
	"github.com/tavern-guild/tavern/internal/mattermost"
	"github.com/tavern-guild/tavern/internal/realtime"
	"github.com/tavern-guild/tavern/internal/repository"
	"github.com/tavern-guild/tavern/internal/service/adventurers"
	"github.com/tavern-guild/tavern/internal/service/auth"
	"github.com/tavern-guild/tavern/internal/service/certificates"
	"github.com/tavern-guild/tavern/internal/service/leaderboard"
	"github.com/tavern-guild/tavern/internal/service/notifications"
	"github.com/tavern-guild/tavern/internal/service/organizations"
	"github.com/tavern-guild/tavern/internal/service/quests"
	"github.com/tavern-guild/tavern/internal/service/scheduler"
	"github.com/tavern-guild/tavern/internal/service/trust"
	"github.com/tavern-guild/tavern/internal/store"
	"github.com/tavern-guild/tavern/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Tavern stopped")
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := backend.Close(closeCtx); err != nil {
			log.Error().Err(err).Msg("Failed to close store")
		}
	}()
	stores := backend.Stores()

	// Optional integrations stay nil interfaces when disabled.
	var (
		notificationCache notifications.Cache
		throttle          auth.Throttle
		cacheHealth       api.HealthChecker
		archiver          certificates.Archiver
	)
	if cfg.Database.Redis.Enabled() {
		redisCache, err := cache.New(&cfg.Database.Redis, log.Component("cache"))
		if err != nil {
			return err
		}
		defer redisCache.Close()
		notificationCache = redisCache
		throttle = redisCache
		cacheHealth = redisCache
	} else {
		log.Warn().Msg("Redis not configured: unread counts are not cached and login throttling is off")
	}

	if cfg.Archive.Enabled {
		s3Archiver, err := archive.NewS3Archiver(ctx, &cfg.Archive, log.Component("archive"))
		if err != nil {
			return err
		}
		archiver = s3Archiver
	}

	herald := mattermost.NewClient(&cfg.Mattermost, log.Component("mattermost"))
	hub := realtime.NewHub(&cfg.Realtime, cfg.Server.AllowedOrigins, log.Component("realtime"))
	defer hub.Close()

	authService, err := auth.NewService(stores, throttle, cfg.Auth, log.Component("auth"))
	if err != nil {
		return err
	}
	notificationService := notifications.NewService(stores, notificationCache, hub, log.Component("notifications"))
	certificateService := certificates.NewService(stores, archiver, log.Component("certificates"))
	trustService := trust.NewService(stores, log.Component("trust"))

	handler := api.NewHandler(api.Services{
		Auth:          authService,
		Adventurers:   adventurers.NewService(stores, certificateService, log.Component("adventurers")),
		Leaderboard:   leaderboard.NewService(stores, log.Component("leaderboard")),
		Organizations: organizations.NewService(stores, trustService, notificationService, herald, log.Component("organizations")),
		Quests:        quests.NewService(stores, certificateService, notificationService, herald, log.Component("quests")),
		Notifications: notificationService,
		Hub:           hub,
		Store:         backend,
		Cache:         cacheHealth,
	}, log.Component("api"))

	jobs := scheduler.NewService(&cfg.Scheduler, trustService, notificationService, log.Component("scheduler"))
	if err := jobs.Start(); err != nil {
		return err
	}
	defer jobs.Stop()

	if cfg.Metrics.Prometheus.Enabled {
		metricsServer := startMetricsServer(&cfg.Metrics.Prometheus, log)
		defer shutdown(metricsServer, 5*time.Second, log)
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Int("port", cfg.Server.Port).
			Str("environment", cfg.Server.Environment).
			Str("driver", cfg.Database.Driver).
			Msg("Tavern API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	}

	shutdown(server, time.Duration(cfg.Server.ShutdownTimeout)*time.Second, log)
	return nil
}

// openBackend connects the configured store and applies its schema.
func openBackend(ctx context.Context, cfg *config.Config, log *logger.Logger) (store.Backend, error) {
	if cfg.Database.Driver == config.DriverMongo {
		return docstore.Connect(ctx, &cfg.Database.Mongo, log.Component("docstore"))
	}

	db, err := repository.NewDB(&cfg.Database.Postgres, log.Component("repository"))
	if err != nil {
		return nil, err
	}

	if cfg.Database.Postgres.AutoMigrate {
		err = db.AutoMigrate()
	} else {
		err = db.Migrate()
	}
	if err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

func startMetricsServer(cfg *config.PrometheusConfig, log *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().
			Int("port", cfg.Port).
			Str("path", cfg.Path).
			Msg("Metrics server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	return server
}

func shutdown(server *http.Server, timeout time.Duration, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Str("addr", server.Addr).Msg("Graceful shutdown failed")
	}
}
