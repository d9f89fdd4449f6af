// Iris Core - Maintenance Management Backend
//
// This is the main entry point for the Iris Core application: the
// authentication, authorisation, and work order backend for the Iris
// maintenance management system (CMMS).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/irislab/iris-core/migrations"

	"github.com/irislab/iris-core/internal/api"
	"github.com/irislab/iris-core/internal/audit"
	"github.com/irislab/iris-core/internal/auth"
	"github.com/irislab/iris-core/internal/infrastructure/config"
	"github.com/irislab/iris-core/internal/infrastructure/database"
	"github.com/irislab/iris-core/internal/infrastructure/logging"
	"github.com/irislab/iris-core/internal/workorder"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Iris Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	if cfg.UsingInsecureSecret() {
		log.Warn("running with the default JWT signing secret",
			"action_required", "set IRIS_JWT_SECRET before exposing this instance",
		)
	}

	// Open database
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Repositories
	identityRepo := auth.NewIdentityRepository(db.DB)
	workOrderRepo := workorder.NewRepository(db.DB)
	auditRepo := audit.NewSQLiteRepository(db.DB)

	hasher := auth.NewHasher(cfg.Security.Password.Cost)
	guard := auth.NewGuard(identityRepo, auditRepo, cfg.Security.JWT.Secret)

	// Backfill permission rows for modules added since identities were
	// created. Idempotent; a second instance racing this one is harmless.
	if _, err := auth.BackfillPermissions(ctx, identityRepo, log.Logger); err != nil {
		return fmt.Errorf("backfilling permissions: %w", err)
	}

	// Seed the first admin account on an empty database
	if _, err := auth.SeedAdmin(ctx, identityRepo, hasher, log.Logger); err != nil {
		return fmt.Errorf("seeding admin: %w", err)
	}

	// Start API server
	server, err := api.New(api.Deps{
		Config:     cfg.API,
		Security:   cfg.Security,
		Logger:     log.With("component", "api"),
		Identities: identityRepo,
		WorkOrders: workOrderRepo,
		Audit:      auditRepo,
		Guard:      guard,
		Hasher:     hasher,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, server); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("Iris Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses IRIS_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("IRIS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure components are healthy.
func healthCheck(ctx context.Context, db *database.DB, server *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
