package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/campusdesk/campusdesk/internal/apiclient"
	"github.com/campusdesk/campusdesk/internal/app"
	"github.com/campusdesk/campusdesk/internal/dashboard"
	"github.com/campusdesk/campusdesk/internal/observability"
	"github.com/campusdesk/campusdesk/internal/platform/cache"
	"github.com/campusdesk/campusdesk/internal/session"
	"github.com/campusdesk/campusdesk/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Warn("redis unavailable, caching disabled", slog.Any("error", err))
		redisClient = nil
	}
	if redisClient != nil {
		defer func(c *redis.Client) {
			if err := c.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}(redisClient)
	}

	metrics := observability.NewMetrics()
	api := apiclient.New(cfg.APIBaseURL, cfg.APITimeout,
		apiclient.WithLogger(logger),
		apiclient.WithObserver(metrics))
	sessions := session.NewManager(redisClient, api, cfg.JWTSecret, cfg.SessionTTL, logger)

	dashCache := dashboard.NewCache(redisClient, cfg.CacheTTL, metrics)
	if err := dashCache.ListenForInvalidation(ctx, cfg.InvalidationWindow, logger); err != nil {
		logger.Warn("subscribe to invalidations", slog.Any("error", err))
	}
	service := dashboard.NewService(api, dashCache, cfg.Location(), dashboard.WithLogger(logger))

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	var warmup dashboard.WarmupEnqueuer
	var jobHandler *jobs.Handler
	if redisClient != nil {
		jobClient := jobs.NewClient(redisOpts, sessions)
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		warmup = jobClient

		inspector := asynq.NewInspector(redisOpts)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	} else {
		jobHandler = jobs.NewHandler(nil, logger)
	}

	dashHandler := dashboard.NewHandler(service, api, warmup, logger, dashboard.WithSearchDebounce(cfg.SearchDebounce))
	router := app.NewRouter(app.RouterParams{
		Logger:    logger,
		Config:    cfg,
		Sessions:  sessions,
		Dashboard: dashHandler,
		Jobs:      jobHandler,
		Metrics:   metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("timezone", cfg.Location().String()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
