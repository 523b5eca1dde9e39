package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/batchlane/batchlane/pkg/storage"
)

// RunAllTests runs the offset store conformance suite against ds. Each test
// uses its own pipeline names so ds may be shared.
func RunAllTests(t *testing.T, ds storage.OffsetStore) {
	t.Run("TestDatastoreIsReady", func(t *testing.T) {
		status, err := ds.IsReady(context.Background())
		require.NoError(t, err)
		require.True(t, status.IsReady)
	})

	t.Run("TestReadOffsetNotFound", func(t *testing.T) { ReadOffsetNotFoundTest(t, ds) })
	t.Run("TestCommitAndRead", func(t *testing.T) { CommitAndReadTest(t, ds) })
	t.Run("TestCommitValidation", func(t *testing.T) { CommitValidationTest(t, ds) })
	t.Run("TestListCommits", func(t *testing.T) { ListCommitsTest(t, ds) })
	t.Run("TestPipelinesAreIsolated", func(t *testing.T) { PipelinesAreIsolatedTest(t, ds) })
}
