// Command migrate applies or rolls back the ledger schema.
//
// Usage: migrate [up|down|version]
package main

import (
	"fmt"
	"os"

	"retailledger/internal/config"
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

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.Development()})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	m, err := postgres.NewMigrator(migrations.FS, cfg.DatabaseURL)
	if err != nil {
		log.Fatalw("failed to open migrator", "error", err)
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warnw("failed to close migrator", "error", err)
		}
	}()

	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "version":
	default:
		log.Fatalw("unknown command", "command", cmd)
	}
	if err != nil {
		log.Fatalw("migration failed", "command", cmd, "error", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		log.Fatalw("failed to read schema version", "error", err)
	}
	log.Infow("schema version", "version", version, "dirty", dirty)
}
