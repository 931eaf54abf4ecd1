package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/rabbitry/internal/config"
	"github.com/mamadbah2/rabbitry/internal/observability"
	"github.com/mamadbah2/rabbitry/internal/repository"
	"github.com/mamadbah2/rabbitry/internal/repository/memory"
	"github.com/mamadbah2/rabbitry/internal/repository/mongodb"
	"github.com/mamadbah2/rabbitry/internal/repository/sheets"
	"github.com/mamadbah2/rabbitry/internal/repository/sqlite"
	"github.com/mamadbah2/rabbitry/internal/scheduler"
	"github.com/mamadbah2/rabbitry/internal/server/handlers"
	"github.com/mamadbah2/rabbitry/internal/server/router"
	advisorsvc "github.com/mamadbah2/rabbitry/internal/service/advisor"
	breedingsvc "github.com/mamadbah2/rabbitry/internal/service/breeding"
	commandsvc "github.com/mamadbah2/rabbitry/internal/service/commands"
	farmsvc "github.com/mamadbah2/rabbitry/internal/service/farms"
	financesvc "github.com/mamadbah2/rabbitry/internal/service/finance"
	herdsvc "github.com/mamadbah2/rabbitry/internal/service/herd"
	housingsvc "github.com/mamadbah2/rabbitry/internal/service/housing"
	reportingsvc "github.com/mamadbah2/rabbitry/internal/service/reporting"
	whatsappsvc "github.com/mamadbah2/rabbitry/internal/service/whatsapp"
	"github.com/mamadbah2/rabbitry/pkg/clients/anthropic"
	whatsappclient "github.com/mamadbah2/rabbitry/pkg/clients/whatsapp"
	"github.com/mamadbah2/rabbitry/pkg/logger"
)

const advisorHistoryTurns = 10

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format}))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	store, err := openStore(context.Background(), cfg, baseLogger)
	if err != nil {
		baseLogger.Fatal("failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close store", zap.Error(err))
		}
	}()

	metrics := observability.NewMetrics()

	var mirror financesvc.Mirror = financesvc.NopMirror{}
	if cfg.Sheets.Enabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(context.Background(), cfg.Sheets, logger.Named(baseLogger, "repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		mirror = financesvc.NewSheetsMirror(sheetsRepo)
		baseLogger.Info("google sheets transaction mirror enabled")
	}

	farmSvc := farmsvc.NewService(store, logger.Named(baseLogger, "svc.farms"))
	housingSvc := housingsvc.NewService(store, metrics, logger.Named(baseLogger, "svc.housing"))
	financeSvc := financesvc.NewService(store, mirror, metrics, logger.Named(baseLogger, "svc.finance"))
	herdSvc := herdsvc.NewService(store, housingSvc, financeSvc, logger.Named(baseLogger, "svc.herd"))
	breedingSvc := breedingsvc.NewService(store, housingSvc, logger.Named(baseLogger, "svc.breeding"))
	reportingSvc := reportingsvc.NewService(store, logger.Named(baseLogger, "svc.reporting"))

	var aiClient anthropic.Client
	if cfg.AI.AnthropicKey != "" {
		aiClient = anthropic.NewClient(cfg.AI.AnthropicKey)
		baseLogger.Info("anthropic advisor enabled")
	} else {
		baseLogger.Warn("anthropic api key missing, advisor disabled")
	}
	advisorSvc := advisorsvc.NewService(store, aiClient, advisorsvc.NewSessionManager(advisorHistoryTurns), logger.Named(baseLogger, "svc.advisor"))

	h := router.Handlers{
		Farms:     handlers.NewFarmHandler(farmSvc, logger.Named(baseLogger, "handlers.farms")),
		Animals:   handlers.NewAnimalHandler(herdSvc, housingSvc, logger.Named(baseLogger, "handlers.animals")),
		Housing:   handlers.NewHousingHandler(housingSvc, logger.Named(baseLogger, "handlers.housing")),
		Breeding:  handlers.NewBreedingHandler(breedingSvc, logger.Named(baseLogger, "handlers.breeding")),
		Finance:   handlers.NewFinanceHandler(financeSvc, logger.Named(baseLogger, "handlers.finance")),
		Reporting: handlers.NewReportingHandler(reportingSvc, advisorSvc, logger.Named(baseLogger, "handlers.reporting")),
	}

	if cfg.WhatsApp.Enabled() {
		commandDispatcher := commandsvc.NewService(herdSvc, housingSvc, breedingSvc, reportingSvc, logger.Named(baseLogger, "svc.commands"))
		whatsClient := whatsappclient.NewClient(cfg.WhatsApp)
		messagingSvc := whatsappsvc.NewMetaWhatsAppService(cfg.WhatsApp, whatsClient, commandDispatcher, farmSvc, logger.Named(baseLogger, "svc.whatsapp"))
		h.Webhook = handlers.NewWebhookHandler(messagingSvc, logger.Named(baseLogger, "handlers.whatsapp"))
		baseLogger.Info("whatsapp command intake enabled", zap.String("farm_id", cfg.WhatsApp.FarmID))
	}

	engine := router.New(h, metrics, logger.Named(baseLogger, "router"))

	sched, err := scheduler.NewScheduler(cfg.Reminders, store, metrics, logger.Named(baseLogger, "scheduler"))
	if err != nil {
		baseLogger.Fatal("failed to init scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config, base *zap.Logger) (repository.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		return sqlite.NewStore(ctx, cfg.Store.SQLitePath, logger.Named(base, "repo.sqlite"))
	case config.DriverMongoDB:
		return mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName, logger.Named(base, "repo.mongodb"))
	default:
		base.Warn("using in-memory store, data is lost on restart")
		return memory.New(), nil
	}
}
