package migrate

import (
	"context"
	"fmt"
	"sync"

	"github.com/batchlane/batchlane/pkg/logger"
	"github.com/batchlane/batchlane/pkg/storage"
	"github.com/batchlane/batchlane/pkg/storage/mysql"
	"github.com/batchlane/batchlane/pkg/storage/postgres"
	"github.com/batchlane/batchlane/pkg/storage/sqlite"
)

// MigrationConfig contains the configuration needed for running migrations
type MigrationConfig = storage.MigrationConfig

var (
	// defaultRegistry is the global migration provider registry
	defaultRegistry *storage.MigratorRegistry
	registryOnce    sync.Once
)

// initDefaultRegistry initializes the default migration registry with built-in providers
func initDefaultRegistry() {
	registryOnce.Do(func() {
		defaultRegistry = storage.NewMigratorRegistry()

		defaultRegistry.RegisterProvider("postgres", postgres.NewPostgresMigrationProvider())
		defaultRegistry.RegisterProvider("mysql", mysql.NewMySQLMigrationProvider())
		defaultRegistry.RegisterProvider("sqlite", sqlite.NewSQLiteMigrationProvider())
	})
}

// GetDefaultRegistry returns the default migration provider registry
func GetDefaultRegistry() *storage.MigratorRegistry {
	initDefaultRegistry()
	return defaultRegistry
}

// RunMigrationsWithRegistry runs migrations using a specific migration registry
func RunMigrationsWithRegistry(ctx context.Context, registry *storage.MigratorRegistry, cfg MigrationConfig) error {
	if cfg.Engine == "memory" {
		if cfg.Logger != nil {
			cfg.Logger.Info("no migrations to run for `memory` datastore")
		}
		return nil
	}

	provider, exists := registry.GetProvider(cfg.Engine)
	if !exists {
		return fmt.Errorf("no migration provider registered for engine: %s", cfg.Engine)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoopLogger()
	}
	return provider.RunMigrations(ctx, cfg)
}

// RunMigrations runs the migrations for the given config using the default registry.
func RunMigrations(ctx context.Context, cfg MigrationConfig) error {
	return RunMigrationsWithRegistry(ctx, GetDefaultRegistry(), cfg)
}

// CurrentVersion reports the schema version of the datastore described by cfg.
func CurrentVersion(ctx context.Context, cfg MigrationConfig) (int64, error) {
	provider, exists := GetDefaultRegistry().GetProvider(cfg.Engine)
	if !exists {
		return 0, fmt.Errorf("no migration provider registered for engine: %s", cfg.Engine)
	}
	return provider.GetCurrentVersion(ctx, cfg)
}
