// Package identity provides a stage that forwards its input unchanged.
package identity

import (
	"context"

	"github.com/batchlane/batchlane/pkg/batch"
	"github.com/batchlane/batchlane/pkg/pipe"
	"github.com/batchlane/batchlane/pkg/pipeline"
	"github.com/batchlane/batchlane/pkg/runner"
)

const Kind = "identity"

// Stage re-emits every input record on the stage's single output lane.
type Stage struct{}

var _ runner.Stage = Stage{}

func (Stage) Process(ctx context.Context, in batch.Batch, out batch.BatchMaker) error {
	for s := range in.Records() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := out.AddRecord(s.Record()); err != nil {
			return err
		}
	}
	return nil
}

// Factory takes no options.
func Factory(_ pipe.Info, opts pipeline.Options) (any, error) {
	if err := opts.Decode(&struct{}{}); err != nil {
		return nil, err
	}
	return Stage{}, nil
}
