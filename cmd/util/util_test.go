package util

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/batchlane/batchlane/internal/config"
	"github.com/batchlane/batchlane/pkg/logger"
	"github.com/batchlane/batchlane/pkg/storage/memory"
	"github.com/batchlane/batchlane/pkg/storage/migrate"
)

func TestOpenDatastore(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		ds, err := OpenDatastore(config.DatastoreConfig{Engine: "memory"}, logger.NewNoopLogger())
		require.NoError(t, err)
		defer ds.Close()
		require.IsType(t, &memory.MemoryBackend{}, ds)
	})

	t.Run("sqlite", func(t *testing.T) {
		uri := "file:" + filepath.Join(t.TempDir(), "offsets.db")
		require.NoError(t, migrate.RunMigrations(context.Background(), migrate.MigrationConfig{Engine: "sqlite", URI: uri, Timeout: 5 * time.Second}))

		ds, err := OpenDatastore(config.DatastoreConfig{Engine: "sqlite", URI: uri}, logger.NewNoopLogger())
		require.NoError(t, err)
		defer ds.Close()

		require.NoError(t, ds.CommitOffset(context.Background(), "p", "7"))
		off, err := ds.ReadOffset(context.Background(), "p")
		require.NoError(t, err)
		require.Equal(t, "7", off.BatchID)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := OpenDatastore(config.DatastoreConfig{Engine: "cassandra"}, logger.NewNoopLogger())
		require.EqualError(t, err, "storage engine 'cassandra' is unsupported")
	})
}

func TestPrepareTempConfigFile(t *testing.T) {
	PrepareTempConfigFile(t, "log:\n  level: debug\n")

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(home, ".batchlane", "config.yaml"))
	require.NoError(t, err)
	require.Equal(t, "log:\n  level: debug\n", string(b))
}
