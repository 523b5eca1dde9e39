package migrate_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/batchlane/batchlane/pkg/logger"
	"github.com/batchlane/batchlane/pkg/storage/migrate"
)

func TestDefaultRegistry(t *testing.T) {
	require.Equal(t, []string{"mysql", "postgres", "sqlite"}, migrate.GetDefaultRegistry().GetSupportedEngines())
}

func TestMigrateMemoryIsNoop(t *testing.T) {
	l, logs := logger.NewObserverLogger("info")

	err := migrate.RunMigrations(context.Background(), migrate.MigrationConfig{Engine: "memory", Logger: l})
	require.NoError(t, err)
	require.Equal(t, 1, logs.FilterMessage("no migrations to run for `memory` datastore").Len())
}

func TestMigrateUnknownEngine(t *testing.T) {
	err := migrate.RunMigrations(context.Background(), migrate.MigrationConfig{Engine: "oracle"})
	require.ErrorContains(t, err, "no migration provider registered")

	_, err = migrate.CurrentVersion(context.Background(), migrate.MigrationConfig{Engine: "oracle"})
	require.Error(t, err)
}

func TestMigrateCommandRollbacks(t *testing.T) {
	ctx := context.Background()
	cfg := migrate.MigrationConfig{
		Engine:  "sqlite",
		URI:     filepath.Join(t.TempDir(), "rollback.db"),
		Timeout: 5 * time.Second,
		Verbose: true,
	}
	require.NoError(t, migrate.RunMigrations(ctx, cfg))

	for version := int64(2); version >= 1; version-- {
		t.Logf("migrating to version %d", version)
		cfg.TargetVersion = uint(version)
		require.NoError(t, migrate.RunMigrations(ctx, cfg))

		got, err := migrate.CurrentVersion(ctx, cfg)
		require.NoError(t, err)
		require.Equal(t, version, got)
	}
}
