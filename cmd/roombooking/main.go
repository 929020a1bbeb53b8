package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/config"
	"github.com/example/room-booking/internal/events"
	httptransport "github.com/example/room-booking/internal/http"
	"github.com/example/room-booking/internal/logging"
	"github.com/example/room-booking/internal/metrics"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/persistence/memory"
	"github.com/example/room-booking/internal/persistence/sqlite"
	"github.com/example/room-booking/internal/persistence/sqlite/migration"
	"github.com/example/room-booking/internal/roomlock"
)

const (
	serviceName          = "roombooking"
	listingCacheCapacity = 256
	redisPingTimeout     = 3 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: serviceName})

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("room booking service stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	app, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("room booking API listening", "addr", server.Addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server encountered error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// store is what the services need from a persistence backend.
type store interface {
	persistence.BranchRepository
	persistence.RoomRepository
	persistence.ScheduleStore
	Ping(ctx context.Context) error
	Close() error
}

type app struct {
	handler http.Handler
	closers []func() error
	logger  *slog.Logger
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("failed to release resource", "error", err)
		}
	}
	a.closers = nil
}

func build(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, st.Close)

	locks, closeLocks, err := openLocks(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if closeLocks != nil {
		a.closers = append(a.closers, closeLocks)
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.EventsEnabled() {
		kafkaPublisher, kerr := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		}, logger)
		if kerr != nil {
			return nil, fmt.Errorf("failed to configure event publisher: %w", kerr)
		}
		a.closers = append(a.closers, kafkaPublisher.Close)
		publisher = kafkaPublisher
		logger.Info("publishing booking events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	recorder := metrics.New()
	cache := application.NewListingCache(listingCacheTTL(cfg, logger), listingCacheCapacity, nil)

	bookings := application.NewBookingService(application.BookingServiceDeps{
		Rooms:       st,
		Schedules:   st,
		Locks:       locks,
		Events:      publisher,
		Cache:       cache,
		Metrics:     recorder,
		IDGenerator: uuid.NewString,
		Now:         time.Now,
		LockTimeout: cfg.LockTimeout,
		Logger:      logger,
	})
	queries := application.NewQueryService(st, st, cache, logger)
	rooms := application.NewRoomServiceWithLogger(st, uuid.NewString, time.Now, logger)

	a.handler = httptransport.NewRouter(httptransport.RouterConfig{
		Rooms:    httptransport.NewRoomHandler(rooms, logger),
		Bookings: httptransport.NewBookingHandler(bookings, queries, logger),
		Health:   httptransport.NewHealthHandler(st, logger),
		Metrics:  recorder.Handler(),
		Observer: recorder,
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
			httptransport.Requester(),
		},
	})
	return a, nil
}

// listingCacheTTL disables the listing cache when the Redis lock is in use.
// Other instances write to the same store, and their invalidations never
// reach this process.
func listingCacheTTL(cfg config.Config, logger *slog.Logger) time.Duration {
	if cfg.LockBackend == config.LockRedis && cfg.ListingCacheTTL > 0 {
		logger.Info("listing cache disabled for shared lock backend", "lock_backend", cfg.LockBackend)
		return 0
	}
	return cfg.ListingCacheTTL
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		logger.Warn("using in-memory store; bookings are lost on restart")
		return memory.New(), nil
	case config.StoreSQLite:
		st, err := sqlite.Open(ctx, migration.DefaultSQLiteConfig(cfg.SQLiteDSN), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open storage: %w", err)
		}
		logger.Info("storage ready", "backend", cfg.StoreBackend, "dsn", cfg.SQLiteDSN)
		return st, nil
	}
	return nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
}

func openLocks(ctx context.Context, cfg config.Config, logger *slog.Logger) (application.RoomLocker, func() error, error) {
	switch cfg.LockBackend {
	case config.LockLocal:
		return roomlock.NewLocal(), nil, nil
	case config.LockRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
		}
		logger.Info("using redis room locks", "addr", cfg.RedisAddr)
		return roomlock.NewRedis(client, roomlock.RedisConfig{TTL: cfg.LockTTL}, logger), client.Close, nil
	}
	return nil, nil, fmt.Errorf("unsupported lock backend %q", cfg.LockBackend)
}
