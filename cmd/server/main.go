package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mamadbah2/batchledger/internal/config"
	"github.com/mamadbah2/batchledger/internal/events"
	"github.com/mamadbah2/batchledger/internal/ledger"
	"github.com/mamadbah2/batchledger/internal/lock"
	"github.com/mamadbah2/batchledger/internal/metrics"
	"github.com/mamadbah2/batchledger/internal/repository"
	"github.com/mamadbah2/batchledger/internal/repository/memory"
	"github.com/mamadbah2/batchledger/internal/repository/mongodb"
	"github.com/mamadbah2/batchledger/internal/repository/sheets"
	"github.com/mamadbah2/batchledger/internal/repository/sqlite"
	"github.com/mamadbah2/batchledger/internal/scheduler"
	"github.com/mamadbah2/batchledger/internal/server/handlers"
	"github.com/mamadbah2/batchledger/internal/server/router"
	"github.com/mamadbah2/batchledger/internal/service/catalog"
	"github.com/mamadbah2/batchledger/internal/service/inventory"
	"github.com/mamadbah2/batchledger/internal/service/monitor"
	"github.com/mamadbah2/batchledger/internal/service/notify"
	"github.com/mamadbah2/batchledger/internal/service/production"
	"github.com/mamadbah2/batchledger/internal/service/reconcile"
	"github.com/mamadbah2/batchledger/internal/service/reporting"
	"github.com/mamadbah2/batchledger/internal/service/shipping"
	whatsappclient "github.com/mamadbah2/batchledger/pkg/clients/whatsapp"
	"github.com/mamadbah2/batchledger/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, baseLogger)
	if err != nil {
		baseLogger.Fatal("failed to init ledger store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer closeStore()

	var locker lock.Locker = lock.NewLocal()
	var cache catalog.Cache = catalog.NewMemoryCache(cfg.Cache.TTL, time.Now)
	if cfg.Redis.Enabled() {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			baseLogger.Fatal("failed to reach redis", zap.Error(err))
		}
		defer func() { _ = redisClient.Close() }()
		locker = lock.NewRedis(redisClient, cfg.Redis.LockTTL, baseLogger.Named("lock.redis"))
		cache = catalog.NewRedisCache(redisClient, cfg.Cache.TTL)
		baseLogger.Info("redis lock and catalog cache enabled")
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.Kafka.Enabled() {
		publisher = events.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic, baseLogger.Named("events.kafka"))
		baseLogger.Info("kafka event publishing enabled", zap.String("topic", cfg.Kafka.Topic))
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			baseLogger.Error("failed to close event publisher", zap.Error(err))
		}
	}()

	var archive reporting.Archive
	if cfg.MongoDB.Enabled() {
		mongoRepo, err := mongodb.NewReportArchive(ctx, cfg.MongoDB, baseLogger.Named("repo.mongodb"))
		if err != nil {
			baseLogger.Fatal("failed to init mongodb report archive", zap.Error(err))
		}
		defer func() {
			if err := mongoRepo.Close(context.Background()); err != nil {
				baseLogger.Error("failed to close mongodb connection", zap.Error(err))
			}
		}()
		archive = mongoRepo
	} else {
		baseLogger.Warn("mongodb not configured, daily reports are not archived")
	}

	var whatsClient whatsappclient.Client
	if cfg.WhatsApp.Enabled() {
		whatsClient = whatsappclient.NewClient(cfg.WhatsApp)
	} else {
		baseLogger.Warn("whatsapp access token missing, operator notifications disabled")
	}
	notifier := notify.NewWhatsAppNotifier(cfg.WhatsApp, whatsClient, baseLogger.Named("svc.notify"))

	m := metrics.New()
	lots := ledger.NewLots(store, ledger.NewID, time.Now, baseLogger.Named("ledger.lots"))
	batches := ledger.NewBatches(store, baseLogger.Named("ledger.batches"))
	finished := ledger.NewFinishedGoods(store, baseLogger.Named("ledger.finished"))

	catalogSvc := catalog.NewService(store, cache, baseLogger.Named("svc.catalog"))
	monitorSvc := monitor.NewService(store, lots, m, baseLogger.Named("svc.monitor"))
	reconcileSvc := reconcile.NewService(batches, lots, finished, catalogSvc, locker, m, baseLogger.Named("svc.reconcile"))
	reportingSvc := reporting.NewService(batches, lots, finished, monitorSvc, archive, time.Now, baseLogger.Named("svc.reporting"))

	handler := handlers.New(handlers.Services{
		Catalog:   catalogSvc,
		Inventory: inventory.NewService(lots, catalogSvc, locker, publisher, baseLogger.Named("svc.inventory")),
		Monitor:   monitorSvc,
		Allocator: production.NewAllocator(catalogSvc, lots, time.Now, baseLogger.Named("svc.allocator")),
		Recorder: production.NewRecorder(production.RecorderDeps{
			Batches:   batches,
			Lots:      lots,
			Finished:  finished,
			Locker:    locker,
			Publisher: publisher,
			Metrics:   m,
			IDs:       ledger.NewID,
		}, baseLogger.Named("svc.production")),
		Batches:   batches,
		Shipping:  shipping.NewService(finished, locker, publisher, m, ledger.NewID, time.Now, baseLogger.Named("svc.shipping")),
		Reconcile: reconcileSvc,
		Reporting: reportingSvc,
		Notifier:  notifier,
	}, baseLogger.Named("handlers"))
	engine := router.New(handler, m.Handler(), baseLogger.Named("router"))

	sched, err := scheduler.NewScheduler(cfg.Scheduler, scheduler.Jobs{
		Alerts:    monitorSvc,
		Auditor:   reconcileSvc,
		Reporter:  reportingSvc,
		Notifier:  notifier,
		Publisher: publisher,
	}, baseLogger.Named("scheduler"))
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
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// openStore opens the configured ledger backend and returns its closer.
func openStore(ctx context.Context, cfg *config.Config, baseLogger *zap.Logger) (repository.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverSheets:
		store, err := sheets.NewStore(ctx, cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLite, baseLogger.Named("repo.sqlite"))
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				baseLogger.Error("failed to close sqlite store", zap.Error(err))
			}
		}, nil
	case config.DriverMemory:
		baseLogger.Warn("memory store selected, ledger data is lost on exit")
		return memory.New(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
