// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds every runtime setting of the server.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL      string
	DBMaxConns       int
	DBMinConns       int
	StatementTimeout time.Duration
	ImportTimeout    time.Duration
	MigrateOnStart   bool

	JWTSecret string
	JWTIssuer string
	JWTTTL    time.Duration

	RedisAddress  string
	RedisPassword string
	RedisDB       int

	IdempotencyEnabled bool
	IdempotencyTTL     time.Duration

	CORSAllowedOrigins []string

	AllowNegativeStock   bool
	StrictUnitConversion bool
	MaxInstallments      int
	MaxInterestPercent   decimal.Decimal
}

// Development reports whether the server runs in development mode.
func (c *Config) Development() bool {
	return c.Env == "development"
}

// RedisEnabled reports whether a redis address was configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddress != ""
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Port:     getEnv("APP_PORT", "8080"),
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL:      getEnv("DATABASE_URL", ""),
		DBMaxConns:       getEnvInt("DB_MAX_CONNS", 25),
		DBMinConns:       getEnvInt("DB_MIN_CONNS", 5),
		StatementTimeout: getEnvDuration("TX_STATEMENT_TIMEOUT", 30*time.Second),
		ImportTimeout:    getEnvDuration("BACKUP_IMPORT_TIMEOUT", 60*time.Second),
		MigrateOnStart:   getEnvBool("MIGRATE_ON_START", true),

		JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTIssuer: getEnv("JWT_ISSUER", "retailledger"),
		JWTTTL:    getEnvDuration("JWT_TTL", 15*time.Minute),

		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		IdempotencyEnabled: getEnvBool("IDEMPOTENCY_ENABLED", false),
		IdempotencyTTL:     getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),

		AllowNegativeStock:   getEnvBool("ALLOW_NEGATIVE_STOCK", false),
		StrictUnitConversion: getEnvBool("STRICT_UNIT_CONVERSION", false),
		MaxInstallments:      getEnvInt("MAX_INSTALLMENTS", 48),
		MaxInterestPercent:   getEnvDecimal("MAX_INTEREST_PERCENT", decimal.NewFromInt(200)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that have no safe default.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if !c.Development() && len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters outside development")
	}
	if c.MaxInstallments < 1 {
		return fmt.Errorf("MAX_INSTALLMENTS must be positive, got %d", c.MaxInstallments)
	}
	if c.MaxInterestPercent.IsNegative() {
		return errors.New("MAX_INTEREST_PERCENT must not be negative")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
