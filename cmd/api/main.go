package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"travelbook/internal/allocator"
	"travelbook/internal/api"
	"travelbook/internal/auth"
	"travelbook/internal/availability"
	"travelbook/internal/catalog"
	"travelbook/internal/config"
	"travelbook/internal/database"
	"travelbook/internal/domain"
	"travelbook/internal/events"
	"travelbook/internal/logging"
	"travelbook/internal/metrics"
	"travelbook/internal/models"
	"travelbook/internal/repository"
	"travelbook/internal/rowstore"
	"travelbook/internal/service"
	"travelbook/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, base, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	logger := logging.Component(base, "api-main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, storeCloser, err := rowstore.Open(ctx, cfg.RowStore, logging.Component(base, "row-store"))
	if err != nil {
		return err
	}
	if storeCloser != nil {
		defer storeCloser.Close()
	}
	if err := seedCatalog(ctx, store, logging.Component(base, "catalog")); err != nil {
		return err
	}

	db, err := initDatabase(cfg, logging.Component(base, "database"))
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	ids, reseeders, closeIDs := buildAllocator(cfg, store, redisClient, logging.Component(base, "allocator"))
	defer closeIDs()

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
	}

	var wg sync.WaitGroup
	goRun := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	bus := events.NewEventBus(logging.Component(base, "events"))
	if len(cfg.Kafka.Brokers) > 0 {
		forwarder := events.NewKafkaForwarder(
			events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic),
			models.WorkerQueueSize,
			logging.Component(base, "kafka"),
		)
		forwarder.Attach(bus)
		goRun(forwarder.Start)
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka forwarding enabled")
	}

	tables := repository.NewTables(store, logging.Component(base, "tables"))
	engine := availability.NewEngine(tables, cfg.Booking.ReleaseCancelled())
	bookings := service.NewBookingService(tables, ids, engine, bus, logging.Component(base, "bookings"))

	authDeps := service.AuthDeps{
		Tables:     tables,
		IDs:        ids,
		Tokens:     auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.App.Name),
		SessionTTL: cfg.Auth.SessionTTL,
		Events:     bus,
		Logger:     logging.Component(base, "auth"),
	}
	if db != nil {
		authDeps.Users = db
		authDeps.Logins = db
	}

	if cfg.Worker.Enabled {
		var taskStore domain.TaskStore
		if db != nil {
			taskStore = db
		}
		syncWorker := worker.NewSyncWorker(taskStore, tables, redisClient, worker.RetryPolicy{
			MaxRetries:   cfg.Worker.MaxRetries,
			InitialDelay: cfg.Worker.InitialDelay,
			MaxDelay:     cfg.Worker.MaxDelay,
		}, cfg.Worker.PollInterval, logging.Component(base, "sync-worker"))
		authDeps.Queue = syncWorker
		goRun(syncWorker.Start)

		var users worker.UserIndex
		if db != nil {
			users = db
		}
		reconciler := worker.NewReconciler(bookings, users, tables, cfg.Worker.ReconcileInterval, cfg.Worker.OrphanGrace,
			logging.Component(base, "reconciler"), reseeders...)
		goRun(reconciler.Start)
	}

	if db != nil && cfg.Database.Backup.Enabled {
		backups := database.NewBackupService(db, cfg.Database.Backup, logging.Component(base, "backup"))
		goRun(backups.Start)
	}

	authSvc := service.NewAuthService(authDeps)
	if authSvc.SheetsOnly() {
		logger.Warn().Msg("no relational store configured, users live in the row store only")
	}

	separateMetrics := cfg.Monitoring.PrometheusEnabled && cfg.Monitoring.PrometheusPort != cfg.API.HTTP.Port
	if separateMetrics {
		goRun(func(ctx context.Context) { startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger) })
	}

	server := api.NewServer(cfg.API, api.Deps{
		Auth:     authSvc,
		Bookings: bookings,
		Search:   engine,
		Metrics:  cfg.Monitoring.PrometheusEnabled && !separateMetrics,
		Ready: func(ctx context.Context) error {
			_, err := store.ReadTable(ctx, models.TableCity)
			return err
		},
	}, logging.Component(base, "http"))

	err = startServer(ctx, server, logger)
	stop()
	wg.Wait()
	logger.Info().Msg("API server stopped")
	return err
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
	return cfg, baseLogger, closer, nil
}

// seedCatalog loads the reference inventory and appends entries missing from
// the row store. A missing catalog file is not an error.
func seedCatalog(ctx context.Context, store domain.RowStore, logger *zerolog.Logger) error {
	catalogPath := os.Getenv("CATALOG_PATH")
	if catalogPath == "" {
		catalogPath = "configs/catalog.yaml"
	}
	if _, err := os.Stat(catalogPath); errors.Is(err, fs.ErrNotExist) {
		logger.Warn().Str("catalog_path", catalogPath).Msg("catalog file not found, skipping seed")
		return nil
	}

	cat, err := catalog.Load(catalogPath)
	if err != nil {
		logger.Error().Err(err).Str("catalog_path", catalogPath).Msg("load catalog")
		return err
	}
	res, err := catalog.Seed(ctx, store, cat, logger)
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	logger.Info().Int("created", res.Created).Int("skipped", res.Skipped).Msg("catalog seeded")
	return nil
}

func initDatabase(cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	if cfg.Database.Driver == config.DriverNone {
		return nil, nil
	}
	db, err := database.NewDB(cfg.Database, logger)
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Database.Driver).Msg("init database")
		return nil, err
	}
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if _, err := redisClient.Ping(pingCtx).Result(); err != nil {
		if cfg.Allocator.Mode == config.AllocatorRedis {
			logger.Warn().Err(err).Msg("redis unreachable, sequences start on the local fallback")
			return redisClient
		}
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// buildAllocator wires the configured ID allocation mode. Counter modes fall
// back to the scan allocator when their sequence fails.
func buildAllocator(cfg *config.Config, store domain.RowStore, redisClient *redis.Client, logger *zerolog.Logger) (domain.IDAllocator, []worker.Reseeder, func()) {
	scan := allocator.NewScan(store, logger,
		allocator.WithMaxRetries(cfg.Allocator.MaxRetries),
		allocator.WithBackoff(cfg.Allocator.BackoffMin, cfg.Allocator.BackoffMax),
	)
	if cfg.Allocator.Mode == config.AllocatorScan {
		return scan, nil, func() {}
	}

	local := allocator.NewLocalSequence()
	var seq domain.Sequence = local
	if cfg.Allocator.Mode == config.AllocatorRedis && redisClient != nil {
		seq = repository.NewFailoverSequence(repository.NewRedisSequence(redisClient, ""), local, logger)
	}
	counter := allocator.NewCounter(seq, scan, logger)
	logger.Info().Str("mode", cfg.Allocator.Mode).Msg("counter allocator ready")
	return counter, []worker.Reseeder{counter}, local.Close
}

func startServer(ctx context.Context, server *api.Server, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
		return err
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return <-errCh
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
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
