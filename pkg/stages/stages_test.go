package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/batchlane/batchlane/pkg/pipeline"
	"github.com/batchlane/batchlane/pkg/runner"
	"github.com/batchlane/batchlane/pkg/storage/memory"
)

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	require.Equal(t, []string{"collector", "counter", "devsource", "httpsource", "identity", "selector"}, reg.Kinds())
	require.Error(t, Register(reg))
}

func TestBuiltinPipeline(t *testing.T) {
	def := pipeline.Definition{
		Name: "orders",
		Stages: []pipeline.StageDefinition{
			{
				Name:    "read",
				Kind:    "devsource",
				Outputs: []string{"raw"},
				Options: map[string]any{
					"lines": []any{
						`{"id": 1, "amount": 250, "country": "PT"}`,
						`{"id": 2, "amount": 20, "country": "ES"}`,
						`{"id": 3, "amount": 90, "country": "PT"}`,
					},
					"batch_size": 10,
				},
			},
			{Name: "count-raw", Kind: "counter", Inputs: []string{"raw"}, Options: map[string]any{"group_by": "country"}},
			{
				Name:    "route",
				Kind:    "selector",
				Inputs:  []string{"raw"},
				Outputs: []string{"big", "small"},
				Options: map[string]any{
					"rules":   []any{map[string]any{"lane": "big", "when": "record.amount >= 100"}},
					"default": "small",
				},
			},
			{Name: "keep-big", Kind: "collector", Inputs: []string{"big"}, Outputs: []string{"big-out"}},
			{Name: "pass-small", Kind: "identity", Inputs: []string{"small"}, Outputs: []string{"small-out"}},
		},
	}

	store := memory.New()
	r, err := pipeline.NewRunner(NewRegistry(), def, runner.WithStore(store))
	require.NoError(t, err)

	res, err := r.RunBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, "3", res.BatchID)
	require.True(t, res.Committed)
	require.Len(t, res.Output["big-out"], 1)
	require.Len(t, res.Output["small-out"], 2)

	// the counter only peeked: raw was consumed by the selector, not left behind
	require.NotContains(t, res.Output, "raw")

	for _, rec := range res.Output["small-out"] {
		require.Equal(t, []string{"route", "pass-small"}, rec.Header().StagesPath)
	}

	n, err := r.Run(context.Background(), 0)
	require.NoError(t, err)
	require.Zero(t, n)
}
