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

	"github.com/warden-auth/warden/internal/accounts"
	"github.com/warden-auth/warden/internal/app"
	"github.com/warden-auth/warden/internal/authz"
	"github.com/warden-auth/warden/internal/credential"
	"github.com/warden-auth/warden/internal/platform/cache"
	"github.com/warden-auth/warden/internal/platform/db"
	"github.com/warden-auth/warden/internal/rules"
	"github.com/warden-auth/warden/internal/session"
	"github.com/warden-auth/warden/internal/shared"
	"github.com/warden-auth/warden/jobs"
)

func main() {
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

	auditLogger := shared.NewAuditLogger(pool)

	sessionRepo := session.NewRepository(pool, cfg.StoreTimeout)
	sessionCache := session.NewCache(redisClient)
	sessions := session.NewService(sessionRepo, sessionCache, cfg.SessionTTL)

	hasher := credential.NewHasher(cfg.BcryptCost)

	accountsRepo := accounts.NewRepository(pool, cfg.StoreTimeout)
	accountsService := accounts.NewService(accountsRepo, hasher, sessions, auditLogger)

	guard := session.Guard{Sessions: sessions, Users: accountsService, Logger: logger}

	rulesRepo := rules.NewRepository(pool, cfg.StoreTimeout)
	rulesService := rules.NewService(rulesRepo, auditLogger)

	engine := authz.NewEngine(rulesService)
	authzMiddleware := authz.Middleware{Engine: engine, Logger: logger}

	accountsHandler := accounts.NewHandler(logger, accountsService, guard.RequireAuth, app.LoginRateLimiter(cfg))
	rulesHandler := rules.NewHandler(logger, rulesService, authzMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		SessionGuard:    guard,
		AccountsHandler: accountsHandler,
		RulesHandler:    rulesHandler,
		JobHandler:      jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
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
