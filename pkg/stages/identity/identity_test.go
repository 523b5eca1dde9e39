package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/batchlane/batchlane/pkg/batch"
	"github.com/batchlane/batchlane/pkg/pipe"
	"github.com/batchlane/batchlane/pkg/pipeline"
	"github.com/batchlane/batchlane/pkg/record"
)

func TestIdentity(t *testing.T) {
	p, err := pipe.NewTransform(pipe.Info{InstanceName: "id"}, []string{"in"}, []string{"out"})
	require.NoError(t, err)

	plb := batch.NewPipelineBatch("", false)
	orig := record.New("src", "1").Set("k", "v").SetPayload([]byte(`{"k":"v"}`))
	plb.Append("in", orig)

	pb := batch.New(p, plb)
	require.NoError(t, pb.ExtractFromPipelineBatch())
	require.NoError(t, Stage{}.Process(context.Background(), pb, pb))
	require.NoError(t, pb.FlushBackToPipelineBatch())

	got := plb.Peek(p.OutputLanes())
	require.Len(t, got, 1)
	require.NotSame(t, orig, got[0])
	require.Equal(t, orig.Fields(), got[0].Fields())
	require.Equal(t, orig.Payload(), got[0].Payload())
	require.Equal(t, []string{"id"}, got[0].Header().StagesPath)
	require.Equal(t, orig.Header().TrackingID, got[0].Header().TrackingID)
}

func TestIdentityNeedsSingleOutput(t *testing.T) {
	p, err := pipe.NewTransform(pipe.Info{InstanceName: "id"}, []string{"in"}, []string{"a", "b"})
	require.NoError(t, err)

	plb := batch.NewPipelineBatch("", false)
	plb.Append("in", record.New("src", "1"))

	pb := batch.New(p, plb)
	require.NoError(t, pb.ExtractFromPipelineBatch())
	require.ErrorIs(t, Stage{}.Process(context.Background(), pb, pb), batch.ErrAmbiguousLane)
}

func TestFactory(t *testing.T) {
	s, err := Factory(pipe.Info{}, nil)
	require.NoError(t, err)
	require.IsType(t, Stage{}, s)

	_, err = Factory(pipe.Info{}, pipeline.Options{"x": 1})
	require.Error(t, err)
}
