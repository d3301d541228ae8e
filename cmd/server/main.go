// Package main is the entry point for the retailledger API server.
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

	"retailledger/internal/app"
	"retailledger/internal/config"
	"retailledger/internal/domain/amortization"
	"retailledger/internal/domain/auth"
	"retailledger/internal/domain/backup"
	"retailledger/internal/infrastructure/cache"
	v1 "retailledger/internal/infrastructure/http/v1"
	"retailledger/internal/infrastructure/http/v1/handlers"
	"retailledger/internal/infrastructure/http/v1/middleware"
	"retailledger/internal/infrastructure/storage/postgres"
	"retailledger/migrations"
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

	ctx := context.Background()
	ctx = logger.WithLogger(ctx, log)
	log.Infow("starting retailledger server", "env", cfg.Env)

	// --- Schema ---
	if cfg.MigrateOnStart {
		if err := migrate(cfg.DatabaseURL); err != nil {
			log.Fatalw("failed to apply migrations", "error", err)
		}
		log.Info("database schema up to date")
	}

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.MaxConns = int32(cfg.DBMaxConns)
	poolCfg.MinConns = int32(cfg.DBMinConns)
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool, cfg.StatementTimeout)
	healthChecks := map[string]handlers.Pinger{"database": txManager}

	// --- Redis (optional) ---
	var (
		guard       backup.Guard
		idempotency middleware.IdempotencyStore
	)
	if cfg.RedisEnabled() {
		rdb, err := cache.NewClient(ctx, cache.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Fatalw("failed to connect to redis", "error", err)
		}
		defer closeRedis(log, rdb)

		guard = cache.NewMaintenanceLock(rdb)
		if cfg.IdempotencyEnabled {
			idempotency = cache.NewIdempotencyStore(rdb, cfg.IdempotencyTTL)
		}
		healthChecks["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		log.Infow("redis connection established", "address", cfg.RedisAddress)
	} else {
		log.Warn("REDIS_ADDRESS not set, maintenance lock is process-local")
		if cfg.IdempotencyEnabled {
			idempotency = postgres.NewIdempotencyStore(txManager, cfg.IdempotencyTTL)
		}
	}

	// --- Services ---
	services, err := app.NewServices(app.PostgresRepositories(txManager), txManager, app.Options{
		Limits: amortization.Limits{
			MaxCount:           cfg.MaxInstallments,
			MaxInterestPercent: cfg.MaxInterestPercent,
		},
		AllowNegativeStock:   cfg.AllowNegativeStock,
		StrictUnitConversion: cfg.StrictUnitConversion,
		ImportTimeout:        cfg.ImportTimeout,
		Guard:                guard,
	})
	if err != nil {
		log.Fatalw("failed to build services", "error", err)
	}

	// --- JWT ---
	jwtService := auth.NewJWTService(auth.JWTConfig{
		Secret:         cfg.JWTSecret,
		Issuer:         cfg.JWTIssuer,
		AccessTokenTTL: cfg.JWTTTL,
	})

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Logger:         log,
		JWTValidator:   jwtService,
		Services:       services,
		Idempotency:    idempotency,
		HealthChecks:   healthChecks,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Debug:          cfg.Development(),
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ImportTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.Port, "idempotency", idempotency != nil)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func migrate(databaseURL string) error {
	m, err := postgres.NewMigrator(migrations.FS, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up()
}

func closeRedis(log *logger.Logger, rdb *redis.Client) {
	if err := rdb.Close(); err != nil {
		log.Warnw("failed to close redis client", "error", err)
	}
}
