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
	"golang.org/x/sync/errgroup"

	"github.com/farmsync/farmsync/internal/app"
	"github.com/farmsync/farmsync/internal/inventory"
	"github.com/farmsync/farmsync/internal/masterdata/items"
	"github.com/farmsync/farmsync/internal/masterdata/locations"
	"github.com/farmsync/farmsync/internal/masterdata/suppliers"
	"github.com/farmsync/farmsync/internal/platform/db"
	"github.com/farmsync/farmsync/internal/procurement"
	"github.com/farmsync/farmsync/internal/shared"
	"github.com/farmsync/farmsync/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	receiptLock := shared.NewReceiptLock(redisClient, cfg.ReceiptLockTTL)

	supplierService := suppliers.NewService(suppliers.NewRepository(pool))
	itemService := items.NewService(items.NewRepository(pool))
	locationService := locations.NewService(locations.NewRepository(pool))

	inventoryService := inventory.NewService(logger, inventory.NewRepository(pool), locationService, idempotencyStore)
	procurementService := procurement.NewService(logger, procurement.NewRepository(pool), inventoryService, receiptLock, auditLogger)

	jobInspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobInspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Pool:               pool,
		SupplierHandler:    suppliers.NewHandler(logger, supplierService),
		ItemHandler:        items.NewHandler(logger, itemService),
		LocationHandler:    locations.NewHandler(logger, locationService),
		ProcurementHandler: procurement.NewHandler(logger, procurementService),
		InventoryHandler:   inventory.NewHandler(logger, inventoryService),
		JobHandler:         jobs.NewHandler(jobInspector, jobClient, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
