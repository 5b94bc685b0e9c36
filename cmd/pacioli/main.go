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

	"github.com/pacioli-erp/pacioli/internal/app"
	"github.com/pacioli-erp/pacioli/internal/entries"
	"github.com/pacioli-erp/pacioli/internal/fec"
	"github.com/pacioli-erp/pacioli/internal/history"
	"github.com/pacioli-erp/pacioli/internal/importer"
	"github.com/pacioli-erp/pacioli/internal/ledger"
	"github.com/pacioli-erp/pacioli/internal/masterdata/accounts"
	"github.com/pacioli-erp/pacioli/internal/masterdata/clients"
	"github.com/pacioli-erp/pacioli/internal/masterdata/exercices"
	"github.com/pacioli-erp/pacioli/internal/masterdata/journals"
	"github.com/pacioli-erp/pacioli/internal/observability"
	"github.com/pacioli-erp/pacioli/internal/platform/cache"
	"github.com/pacioli-erp/pacioli/internal/platform/db"
	"github.com/pacioli-erp/pacioli/internal/reports"
	"github.com/pacioli-erp/pacioli/jobs"
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

	metrics := observability.NewMetrics()

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo)
	ledgerHandler := ledger.NewHandler(logger, ledgerService, metrics)

	entriesRepo := entries.NewRepository(pool)
	entriesService := entries.NewService(entriesRepo)
	entriesHandler := entries.NewHandler(logger, entriesService)

	fecRepo := fec.NewRepository(pool)
	fecExporter := fec.NewExporter(fecRepo)
	fecHandler := fec.NewHandler(logger, fecExporter, metrics)

	reportsRepo := reports.NewRepository(pool)
	reportsService := reports.NewService(reportsRepo, redisClient, cfg.ReportCacheTTL)
	reportsHandler := reports.NewHandler(logger, reportsService)

	historyRepo := history.NewRepository(pool)
	historyService := history.NewService(historyRepo)
	historyHandler := history.NewHandler(logger, historyService)

	importerService := importer.NewService(ledgerRepo)
	importerHandler := importer.NewHandler(logger, importerService)

	clientsHandler := clients.NewHandler(logger, clients.NewRepository(pool))
	exercicesHandler := exercices.NewHandler(logger, exercices.NewRepository(pool))
	accountsHandler := accounts.NewHandler(logger, accounts.NewRepository(pool))
	journalsHandler := journals.NewHandler(logger, journals.NewRepository(pool))

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("job client init", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		LedgerHandler:    ledgerHandler,
		EntriesHandler:   entriesHandler,
		FECHandler:       fecHandler,
		ReportsHandler:   reportsHandler,
		HistoryHandler:   historyHandler,
		ImporterHandler:  importerHandler,
		ClientsHandler:   clientsHandler,
		ExercicesHandler: exercicesHandler,
		AccountsHandler:  accountsHandler,
		JournalsHandler:  journalsHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
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
