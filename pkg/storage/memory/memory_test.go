package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/batchlane/batchlane/pkg/storage"
	"github.com/batchlane/batchlane/pkg/storage/test"
)

func TestMemdbStorage(t *testing.T) {
	ds := New()
	test.RunAllTests(t, ds)
}

func TestCommitUsesClock(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ds := New(WithClock(func() time.Time { return fixed }))

	require.NoError(t, ds.CommitOffset(context.Background(), "orders", "1"))
	got, err := ds.ReadOffset(context.Background(), "orders")
	require.NoError(t, err)
	require.Equal(t, fixed, got.CommittedAt)
	require.Equal(t, []string{"orders"}, ds.Pipelines())
}

func TestCommitCancelled(t *testing.T) {
	ds := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, ds.CommitOffset(ctx, "orders", "1"), storage.ErrCancelled)
	_, err := ds.ReadOffset(context.Background(), "orders")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestConcurrentCommits(t *testing.T) {
	ds := New()
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_ = ds.CommitOffset(context.Background(), "orders", "x")
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	commits, err := ds.ListCommits(context.Background(), "orders", 0)
	require.NoError(t, err)
	require.Len(t, commits, 8)
}
