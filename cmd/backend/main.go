package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"quick-share/internal/config"
	"quick-share/internal/db"
	"quick-share/internal/events"
	"quick-share/internal/server"
	"quick-share/internal/share"
	"quick-share/internal/storage"
)

// sweepBatchLimit caps how many batches one sweep pass removes.
const sweepBatchLimit = 100

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "config_invalid", err)
		os.Exit(1)
	}
	for _, w := range cfg.Warnings() {
		log.Printf("service=backend msg=%q detail=%q", "config_warning", w)
	}

	// Database
	dbConn, err := db.OpenDB(cfg.DatabaseURL)
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "db_connect_failed", err)
		os.Exit(1)
	}
	defer func() { _ = dbConn.Close() }()

	// Run migrations
	log.Printf("service=backend msg=%q", "running_migrations")
	if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Printf("service=backend msg=%q err=%v", "migration_failed", err)
		os.Exit(1)
	}
	log.Printf("service=backend msg=%q", "migrations_complete")

	index := db.NewIndex(dbConn)
	logIndexStats(index)

	// Object storage
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := storage.New(ctx, storage.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		Bucket:    cfg.S3.Bucket,
		Region:    cfg.S3.Region,
	})
	cancel()
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "storage_init_failed", err)
		os.Exit(1)
	}

	breaker := storage.NewCircuitBreaker(5, 30*time.Second)
	breaker.OnStateChange = func(from, to storage.CircuitState) {
		log.Printf("service=backend msg=%q from=%s to=%s", "storage_circuit", from, to)
	}
	objects := storage.NewGuardedStore(store, breaker)

	manager := share.NewManager(index)
	uploader := share.NewUploader(objects, index, manager, share.UploaderConfig{TTL: cfg.FileTTL})
	resolver := share.NewResolver(objects, index, share.ResolverConfig{BaseURL: cfg.BaseURL})

	limiter := newLimiter(cfg)
	publisher := newPublisher(cfg)

	srv := server.New(server.Config{
		Addr:           cfg.Addr,
		Build:          server.BuildInfo{Version: cfg.Build.Version, Commit: cfg.Build.Commit},
		Uploader:       uploader,
		Resolver:       resolver,
		Events:         publisher,
		Limiter:        limiter,
		RateWindow:     cfg.RateWindow,
		CORSOrigins:    cfg.CORSOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes,
		DB:             dbConn,
		Storage:        objects,
	})

	// Expired batch sweeper. Runs until shutdown.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go server.StartCleanupJob(sweepCtx, server.CleanupConfig{
		Enabled:  cfg.Cleanup.Enabled,
		Interval: cfg.Cleanup.Interval,
		Sweeper:  share.NewSweeper(objects, index, cfg.Cleanup.Grace, sweepBatchLimit),
	})

	// Start the HTTP server in a background goroutine.
	// This allows us to listen for OS signals while the server runs.
	errCh := make(chan error, 1)
	go func() {
		log.Printf("service=backend msg=%q addr=%s version=%s commit=%s",
			"starting", cfg.Addr, cfg.Build.Version, cfg.Build.Commit)
		errCh <- srv.Start()
	}()

	// Set up signal handling for graceful shutdown on SIGINT (Ctrl+C) or SIGTERM (container stop).
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Block until either a shutdown signal is received or the server encounters an error.
	select {
	case sig := <-sigCh:
		log.Printf("service=backend msg=%q signal=%s", "shutting_down", sig.String())
		stopSweep()
		// Give the server 5 seconds to finish in-flight requests and cleanup.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("service=backend msg=%q err=%v", "shutdown_error", err)
			os.Exit(1)
		}
		closeLimiter(limiter)
		log.Printf("service=backend msg=%q", "shutdown_complete")
	case err := <-errCh:
		// Server error: exit immediately.
		if err != nil {
			log.Printf("service=backend msg=%q err=%v", "server_error", err)
			os.Exit(1)
		}
	}
}

// newLimiter shares limits through Redis when it is configured.
func newLimiter(cfg *config.Config) server.Limiter {
	if cfg.Redis.Addr == "" {
		return server.NewMemoryLimiter(cfg.RateLimit, cfg.RateWindow)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		// The limiter fails open, so a Redis outage only loosens limits.
		log.Printf("service=backend msg=%q addr=%s err=%v", "redis_unreachable", cfg.Redis.Addr, err)
	}
	return server.NewRedisLimiter(client, cfg.RateLimit, cfg.RateWindow)
}

// closeLimiter stops background work held by the limiter, if any.
func closeLimiter(l server.Limiter) {
	c, ok := l.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		log.Printf("service=backend msg=%q err=%v", "limiter_close_failed", err)
	}
}

// newPublisher returns an AMQP publisher, or one that drops events when no
// broker is configured or reachable.
func newPublisher(cfg *config.Config) events.Publisher {
	if cfg.AMQP.URL == "" {
		return events.Nop{}
	}
	p, err := events.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "amqp_connect_failed", err)
		return events.Nop{}
	}
	log.Printf("service=backend msg=%q exchange=%s", "amqp_connected", cfg.AMQP.Exchange)
	return p
}

func logIndexStats(index *db.Index) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	batches, bytes, err := index.Stats(ctx)
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "index_stats_failed", err)
		return
	}
	log.Printf("service=backend msg=%q live_batches=%d live_bytes=%d", "index_ready", batches, bytes)
}
