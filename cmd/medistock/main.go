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
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/medistock/medistock/internal/app"
	"github.com/medistock/medistock/internal/auth"
	"github.com/medistock/medistock/internal/catalog"
	"github.com/medistock/medistock/internal/expenses"
	"github.com/medistock/medistock/internal/invoicing"
	"github.com/medistock/medistock/internal/observability"
	"github.com/medistock/medistock/internal/platform/cache"
	"github.com/medistock/medistock/internal/platform/db"
	"github.com/medistock/medistock/internal/shared"
	"github.com/medistock/medistock/internal/users"
	"github.com/medistock/medistock/jobs"
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
	decimal.MarshalJSONWithoutQuotes = true

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	applied, err := db.Migrate(ctx, dbpool)
	if err != nil {
		logger.Error("migrate", slog.Any("error", err))
		os.Exit(1)
	}
	if len(applied) > 0 {
		logger.Info("migrations applied", slog.Any("versions", applied))
	}

	var redisClient *redis.Client
	if client, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("redis unavailable, medicine list cache disabled", slog.Any("error", err))
	} else {
		redisClient = client
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	accessTokens, err := auth.NewTokenService(cfg.JWTAccessSecret)
	if err != nil {
		logger.Error("init access tokens", slog.Any("error", err))
		os.Exit(1)
	}
	refreshTokens, err := auth.NewTokenService(cfg.JWTRefreshSecret)
	if err != nil {
		logger.Error("init refresh tokens", slog.Any("error", err))
		os.Exit(1)
	}
	authMiddleware := auth.Middleware{Verifier: accessTokens, Logger: logger}

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	metrics := observability.NewMetrics()

	usersService := users.NewService(users.NewRepository(dbpool), accessTokens, refreshTokens, users.Config{
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})

	var catalogCache *catalog.Cache
	if redisClient != nil {
		catalogCache = catalog.NewCache(redisClient, cfg.CacheTTL)
	}
	catalogService := catalog.NewService(catalog.NewRepository(dbpool), catalogCache, logger)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	invoiceRepo := invoicing.NewRepository(dbpool)
	invoiceService := invoicing.NewService(invoiceRepo, auditLogger, idempotencyStore, invoicing.ServiceConfig{
		Mode:                invoicing.Mode(cfg.SettlementMode),
		CompensationTimeout: cfg.CompensationTimeout,
	}, invoicing.Hooks{
		Invalidator: catalogService,
		Notifier:    jobClient,
		Metrics:     metrics,
		Logger:      logger,
	})

	expenseService := expenses.NewService(expenses.NewRepository(dbpool), logger)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Authenticate:     authMiddleware.Authenticate,
		UsersHandler:     users.NewHandler(logger, usersService, authMiddleware.Authenticate),
		CatalogHandler:   catalog.NewHandler(logger, catalogService),
		InvoicingHandler: invoicing.NewHandler(logger, invoiceService, invoicing.NewQueryService(invoiceRepo)),
		ExpensesHandler:  expenses.NewHandler(logger, expenseService),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
		Database:         dbpool,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.String("settlement_mode", cfg.SettlementMode),
		)
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
