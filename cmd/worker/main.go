// Package main is the entry point for the retailledger background worker.
// It purges expired idempotency keys from postgres on a fixed interval.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"retailledger/internal/config"
	"retailledger/internal/infrastructure/storage/postgres"
	"retailledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Development(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting retailledger worker")

	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.ApplicationName = "retailledger-worker"
	poolCfg.MaxConns = 2
	poolCfg.MinConns = 1
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool, cfg.StatementTimeout)
	store := postgres.NewIdempotencyStore(txManager, cfg.IdempotencyTTL)

	worker := NewWorker(store, log, getInterval())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Cleaner removes expired idempotency records.
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Worker runs periodic housekeeping.
type Worker struct {
	cleaner  Cleaner
	log      *logger.Logger
	interval time.Duration
}

// NewWorker creates a worker ticking every interval.
func NewWorker(cleaner Cleaner, log *logger.Logger, interval time.Duration) *Worker {
	return &Worker{
		cleaner:  cleaner,
		log:      log.WithComponent("worker"),
		interval: interval,
	}
}

// Run cleans once immediately and then on every tick until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.cleanupIdempotency(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.cleanupIdempotency(ctx)
		}
	}
}

func (w *Worker) cleanupIdempotency(ctx context.Context) {
	n, err := w.cleaner.CleanupExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Errorw("idempotency cleanup failed", "error", err)
		}
		return
	}
	if n > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", n)
	}
}

func getInterval() time.Duration {
	if value := os.Getenv("WORKER_CLEANUP_INTERVAL"); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return time.Hour
}
