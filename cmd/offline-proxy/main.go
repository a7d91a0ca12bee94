// Command offline-proxy serves a site through the offline caching layer.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/DoctorThink/ourcreativity-sub001/pkg/cache"
	"github.com/DoctorThink/ourcreativity-sub001/pkg/config"
	"github.com/DoctorThink/ourcreativity-sub001/pkg/connectivity"
	"github.com/DoctorThink/ourcreativity-sub001/pkg/hooks"
	"github.com/DoctorThink/ourcreativity-sub001/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "offline-proxy: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, closeDeps, err := openDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDeps()

	srv := newServer(cfg, d)
	srv.start(ctx)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.ListenAddr).
			Str("origin", cfg.OriginURL).
			Str("store", cfg.StoreBackend).
			Msg("Starting offline proxy")
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		logger.Info().Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("HTTP shutdown incomplete")
	}
	if err := srv.drain(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Background work still running at shutdown")
	}
	return nil
}

// openDeps builds the configured backends. Redis, when used, also carries
// the deferred-write queue, notification channel and connectivity record.
func openDeps(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (deps, func(), error) {
	d := deps{
		transport: http.DefaultTransport,
		queue:     hooks.NewMemoryQueue(),
		displayer: hooks.NewLogDisplayer(logging.NewLogger(logging.ComponentPush)),
	}

	switch cfg.StoreBackend {
	case config.BackendRedis:
		redisClient, err := newRedisClient(cfg.RedisURL)
		if err != nil {
			return deps{}, nil, err
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return deps{}, nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisURL, err)
		}
		logger.Info().Str("redis", cfg.RedisURL).Msg("Connected to Redis")

		recorder := connectivity.NewRedisRecorder(redisClient)
		if previous, err := recorder.Load(ctx); err == nil {
			logger.Info().
				Bool("online", previous.Online).
				Time("last_change", previous.LastChange).
				Msg("Last recorded connectivity")
		}

		d.store = cache.NewRedisStore(redisClient)
		d.queue = hooks.NewRedisQueue(redisClient)
		d.displayer = hooks.NewRedisDisplayer(redisClient, cfg.NotificationChannel)
		d.recorder = recorder

	case config.BackendSQLite:
		store, err := cache.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return deps{}, nil, err
		}
		logger.Info().Str("path", cfg.SQLitePath).Msg("Opened SQLite store")
		d.store = store

	default:
		d.store = cache.NewMemoryStore()
	}

	closeFn := func() {
		if err := d.store.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close store")
		}
	}
	return d, closeFn, nil
}

// newRedisClient accepts a redis:// URL or a bare host:port address.
func newRedisClient(redisURL string) (*redis.Client, error) {
	if strings.Contains(redisURL, "://") {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}
