package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spacebook/internal/api"
	"spacebook/internal/auth"
	"spacebook/internal/config"
	"spacebook/internal/database"
	"spacebook/internal/domain"
	"spacebook/internal/events"
	"spacebook/internal/logging"
	"spacebook/internal/metrics"
	"spacebook/internal/mpesa"
	"spacebook/internal/repository"
	"spacebook/internal/service"
	"spacebook/internal/storage"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const tokenCacheTTL = 55 * time.Minute

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "database"))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go database.NewBackupService(db, cfg.Backup, logging.Component(logger, "backup")).Start(ctx)

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	tokens := initTokenStore(redisClient, logger)

	images, err := storage.NewLocalImageStore(cfg.Uploads.Dir)
	if err != nil {
		return err
	}

	metrics.Register()
	eventBus := initEventBus(logging.Component(logger, "events"))

	jwt := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	gateway := mpesa.NewClient(cfg.MPesa, tokens, logging.Component(logger, "mpesa"))
	serviceLogger := logging.Component(logger, "service")

	httpServer := api.NewHTTPServer(cfg.API, api.Deps{
		Users:      service.NewUserService(db, jwt, serviceLogger),
		Spaces:     service.NewSpaceService(db, images, serviceLogger),
		Bookings:   service.NewBookingService(db, db, gateway, eventBus, serviceLogger),
		Tokens:     jwt,
		DB:         db,
		UploadsDir: images.Dir(),
	}, logger)

	var healthServer *api.HealthServer
	if cfg.API.GRPC.Port > 0 {
		healthServer, err = api.NewHealthServer(cfg.API.GRPC, db, logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc health server")
			return err
		}
	}

	startMetrics(ctx, cfg, logger)

	return startServers(ctx, healthServer, httpServer, cfg, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}

	return cfg, logging.Component(baseLogger, "api-main"), closer, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, caching tokens in memory")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

func initTokenStore(client *redis.Client, logger *zerolog.Logger) domain.TokenStore {
	memory := repository.NewMemoryTokenStore(tokenCacheTTL)
	if client == nil {
		return memory
	}
	return repository.NewFailoverTokenStore(
		repository.NewRedisTokenStore(client, tokenCacheTTL),
		memory,
		logging.Component(logger, "token-store"),
	)
}

func initEventBus(logger *zerolog.Logger) *events.EventBus {
	bus := events.NewEventBus()
	bus.Subscribe(func(e *events.Event) error {
		var payload events.BookingEventPayload
		if err := e.Decode(&payload); err != nil {
			return err
		}
		metrics.IncBooking(e.Type)
		logger.Info().
			Str("event_id", e.ID).
			Str("event_type", e.Type).
			Int64("booking_id", payload.BookingID).
			Str("status", payload.Status).
			Str("merchant_request_id", payload.MerchantRequestID).
			Msg("booking event")
		return nil
	}, events.BookingEvents...)
	return bus
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	healthServer *api.HealthServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	errCh := make(chan error, 2)

	if healthServer != nil {
		go func() {
			if err := healthServer.Serve(ctx); err != nil {
				logger.Error().Err(err).Msg("grpc health server stopped")
			}
		}()
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	ev := logger.Info().Int("http_port", cfg.API.HTTP.Port)
	if healthServer != nil {
		ev = ev.Str("grpc_addr", healthServer.Addr())
	}
	ev.Msg("API server started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("server failed, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if healthServer != nil {
		healthServer.Shutdown(shutdownCtx)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("API server stopped")
	return runErr
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	logger.Info().Int("port", port).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
