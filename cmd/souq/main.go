package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/odyssey-erp/souq/internal/app"
	"github.com/odyssey-erp/souq/internal/approval"
	"github.com/odyssey-erp/souq/internal/observability"
	"github.com/odyssey-erp/souq/internal/onboarding"
	"github.com/odyssey-erp/souq/internal/platform/cache"
	"github.com/odyssey-erp/souq/internal/platform/db"
	"github.com/odyssey-erp/souq/internal/rbac"
	"github.com/odyssey-erp/souq/internal/sensitivity"
	"github.com/odyssey-erp/souq/internal/shared"
	"github.com/odyssey-erp/souq/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	catalog := rbac.DefaultCatalog()
	store, err := app.NewPermissionStore(ctx, cfg, pool, redisClient, catalog)
	if err != nil {
		logger.Error("init permission store", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	evaluator := rbac.NewEvaluator(store, catalog, logger, metrics)
	rbacMiddleware := rbac.Middleware{
		Evaluator:  evaluator,
		Logger:     logger,
		IDHeader:   cfg.ActorIDHeader,
		RoleHeader: cfg.ActorRoleHeader,
	}
	resolver := sensitivity.NewResolver(sensitivity.NewRepository(pool))

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	queue := jobs.NewClient(redisOpts)
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() { _ = inspector.Close() }()
	notifier := jobs.NewNotifier(queue)
	recorder := shared.NewApprovalRecorder(pool, logger)

	onboardingService := onboarding.NewService(onboarding.NewRepository(pool), evaluator, resolver, recorder, notifier, logger)
	approvalService := approval.NewService(approval.NewRepository(pool), evaluator, resolver, onboardingService, recorder, notifier, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		RBACMiddleware:     rbacMiddleware,
		PermissionsHandler: rbac.NewPermissionsHandler(logger, evaluator, rbac.NewPostgresDirectory(pool), shared.NewAuditLogger(pool), rbacMiddleware),
		OnboardingHandler:  onboarding.NewHandler(logger, onboardingService, rbacMiddleware),
		ApprovalHandler:    approval.NewHandler(logger, approvalService, rbacMiddleware),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
		Readiness: map[string]app.Pinger{
			"postgres": pool,
			"redis":    app.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("permission_store", cfg.PermissionStore))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
