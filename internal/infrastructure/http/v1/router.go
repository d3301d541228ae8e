// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"retailledger/internal/domain/backup"
	"retailledger/internal/domain/cashregister"
	"retailledger/internal/domain/expenses"
	"retailledger/internal/domain/installments"
	"retailledger/internal/domain/payments"
	"retailledger/internal/domain/returns"
	"retailledger/internal/domain/sales"
	"retailledger/internal/infrastructure/http/v1/handlers"
	"retailledger/internal/infrastructure/http/v1/middleware"
	"retailledger/pkg/logger"
)

// Services are the lifecycle managers exposed over HTTP.
type Services struct {
	Sales        *sales.Manager
	Payments     *payments.Manager
	Installments *installments.Manager
	Register     *cashregister.Service
	Expenses     *expenses.Service
	Returns      *returns.Service
	Backup       *backup.Service
	Codec        *backup.Codec
}

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	Services Services

	// Idempotency is optional; nil disables replay protection.
	Idempotency middleware.IdempotencyStore

	// HealthChecks are pinged by /health/ready.
	HealthChecks map[string]handlers.Pinger

	// AllowedOrigins for CORS; "*" allows any origin.
	AllowedOrigins []string

	// Debug switches gin to debug mode.
	Debug bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.HealthChecks)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	v1 := router.Group("/api/v1")
	protected := v1.Group("")
	protected.Use(middleware.Auth(cfg.JWTValidator))
	if cfg.Services.Backup != nil {
		protected.Use(middleware.Maintenance(cfg.Services.Backup))
	}
	if cfg.Idempotency != nil {
		protected.Use(middleware.Idempotency(cfg.Idempotency))
	}

	registerLedgerRoutes(protected, cfg.Services)

	return router
}

func registerLedgerRoutes(rg *gin.RouterGroup, s Services) {
	base := handlers.NewBaseHandler()

	handlers.NewSaleHandler(base, s.Sales).RegisterRoutes(rg.Group("/sales"))
	handlers.NewPaymentHandler(base, s.Payments).RegisterRoutes(rg)
	handlers.NewInstallmentHandler(base, s.Installments).RegisterRoutes(rg)
	handlers.NewDailyCashHandler(base, s.Register).RegisterRoutes(rg.Group("/daily-cash"))
	handlers.NewExpenseHandler(base, s.Expenses).RegisterRoutes(rg.Group("/expenses"))
	handlers.NewReturnHandler(base, s.Returns).RegisterRoutes(rg.Group("/returns"))

	if s.Backup != nil && s.Codec != nil {
		handlers.NewBackupHandler(base, s.Backup, s.Codec).RegisterRoutes(rg.Group("/backup"))
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AddAllowHeaders("Authorization", middleware.HeaderIdempotencyKey, middleware.HeaderRequestID, "Content-Encoding")
	cfg.AddExposeHeaders("Content-Length", "Content-Disposition", middleware.HeaderRequestID, middleware.HeaderTraceID)
	return cfg
}
