package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/batchlane/batchlane/internal/build"
	"github.com/batchlane/batchlane/pkg/storage"
	"github.com/batchlane/batchlane/pkg/storage/sqlcommon"
)

func TestSQLiteMigrationProvider(t *testing.T) {
	provider := NewSQLiteMigrationProvider()

	t.Run("GetSupportedEngine", func(t *testing.T) {
		require.Equal(t, "sqlite", provider.GetSupportedEngine())
		require.Implements(t, (*storage.MigrationProvider)(nil), provider)
	})

	t.Run("InvalidPath", func(t *testing.T) {
		err := provider.RunMigrations(context.Background(), storage.MigrationConfig{
			Engine:  "sqlite",
			URI:     "/invalid/path/that/does/not/exist/db.sqlite",
			Timeout: time.Second,
		})
		require.Error(t, err)
	})

	t.Run("UpDownAndUp", func(t *testing.T) {
		ctx := context.Background()
		cfg := storage.MigrationConfig{
			Engine:  "sqlite",
			URI:     filepath.Join(t.TempDir(), "migrate.db"),
			Timeout: 5 * time.Second,
		}

		require.NoError(t, provider.RunMigrations(ctx, cfg))
		version, err := provider.GetCurrentVersion(ctx, cfg)
		require.NoError(t, err)
		require.Equal(t, int64(2), version)

		cfg.TargetVersion = 1
		require.NoError(t, provider.RunMigrations(ctx, cfg))
		version, err = provider.GetCurrentVersion(ctx, cfg)
		require.NoError(t, err)
		require.Equal(t, int64(1), version)

		cfg.TargetVersion = 2
		require.NoError(t, provider.RunMigrations(ctx, cfg))
		version, err = provider.GetCurrentVersion(ctx, cfg)
		require.NoError(t, err)
		require.Equal(t, int64(2), version)
	})

	t.Run("NotReadyBeforeMigrations", func(t *testing.T) {
		ds, err := New(filepath.Join(t.TempDir(), "fresh.db"), sqlcommon.NewConfig())
		require.NoError(t, err)
		defer ds.Close()

		status, err := ds.IsReady(context.Background())
		require.NoError(t, err)
		require.False(t, status.IsReady)
		require.Contains(t, status.Message, "batchlane migrate")
		require.Positive(t, build.MinimumSupportedDatastoreSchemaRevision)
	})
}
