package test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/batchlane/batchlane/pkg/id"
	"github.com/batchlane/batchlane/pkg/storage"
)

var cmpOpts = []cmp.Option{
	cmpopts.IgnoreFields(storage.Offset{}, "CommittedAt"),
}

func uniquePipeline(t *testing.T) string {
	t.Helper()
	s, err := id.NewRunString()
	require.NoError(t, err)
	return "pipeline-" + s
}

func ReadOffsetNotFoundTest(t *testing.T, ds storage.OffsetStore) {
	_, err := ds.ReadOffset(context.Background(), uniquePipeline(t))
	require.ErrorIs(t, err, storage.ErrNotFound)

	commits, err := ds.ListCommits(context.Background(), uniquePipeline(t), 10)
	require.NoError(t, err)
	require.Empty(t, commits)
}

func CommitAndReadTest(t *testing.T, ds storage.OffsetStore) {
	pipeline := uniquePipeline(t)
	runID, err := id.NewRunString()
	require.NoError(t, err)
	ctx := storage.ContextWithRunID(context.Background(), runID)

	before := time.Now().Add(-time.Minute)
	require.NoError(t, ds.CommitOffset(ctx, pipeline, "10"))
	require.NoError(t, ds.CommitOffset(ctx, pipeline, "20"))

	got, err := ds.ReadOffset(context.Background(), pipeline)
	require.NoError(t, err)

	want := storage.Offset{Pipeline: pipeline, BatchID: "20", RunID: runID}
	if diff := cmp.Diff(want, got, cmpOpts...); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	require.True(t, got.CommittedAt.After(before))
}

func CommitValidationTest(t *testing.T, ds storage.OffsetStore) {
	ctx := context.Background()
	require.ErrorIs(t, ds.CommitOffset(ctx, "", "1"), storage.ErrInvalidPipeline)
	require.ErrorIs(t, ds.CommitOffset(ctx, uniquePipeline(t), ""), storage.ErrInvalidBatchID)
}

func ListCommitsTest(t *testing.T, ds storage.OffsetStore) {
	ctx := context.Background()
	pipeline := uniquePipeline(t)

	for i := 1; i <= 5; i++ {
		require.NoError(t, ds.CommitOffset(ctx, pipeline, strconv.Itoa(i)))
	}

	commits, err := ds.ListCommits(ctx, pipeline, 3)
	require.NoError(t, err)

	var ids []string
	for _, c := range commits {
		require.Equal(t, pipeline, c.Pipeline)
		ids = append(ids, c.BatchID)
	}
	require.Equal(t, []string{"5", "4", "3"}, ids)

	all, err := ds.ListCommits(ctx, pipeline, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
}

func PipelinesAreIsolatedTest(t *testing.T, ds storage.OffsetStore) {
	ctx := context.Background()
	a, b := uniquePipeline(t), uniquePipeline(t)

	require.NoError(t, ds.CommitOffset(ctx, a, "a-1"))
	require.NoError(t, ds.CommitOffset(ctx, b, "b-1"))
	require.NoError(t, ds.CommitOffset(ctx, a, "a-2"))

	got, err := ds.ReadOffset(ctx, b)
	require.NoError(t, err)
	require.Equal(t, "b-1", got.BatchID)
	require.Empty(t, got.RunID)

	got, err = ds.ReadOffset(ctx, a)
	require.NoError(t, err)
	require.Equal(t, "a-2", got.BatchID)
}
