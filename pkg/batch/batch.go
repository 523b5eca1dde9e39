package batch

import (
	"iter"

	"github.com/batchlane/batchlane/pkg/lane"
	"github.com/batchlane/batchlane/pkg/record"
)

// Batch is the read side of a stage execution.
type Batch interface {
	// Lanes returns the input lanes of the stage.
	Lanes() lane.Set

	// Records yields a snapshot of every input record, stamped with the stage's
	// instance name. Each call starts again from the first record.
	Records() iter.Seq[*record.Snapshot]

	// RecordList is Records collected into a slice.
	RecordList() []*record.Snapshot

	// IsInputFullyConsumed reports whether there is no input left.
	IsInputFullyConsumed() bool

	// SourceOffset is the offset a source checkpoints against, the batch id.
	SourceOffset() string

	PreviousBatchID() string
	IsPreview() bool

	// SetBatchID moves the batch offset. Sources call it after reading.
	SetBatchID(id string)
}

// BatchMaker is the write side of a transform execution.
type BatchMaker interface {
	// OutputLanes returns the lanes the stage may write to.
	OutputLanes() lane.Set

	// AddRecord emits r on the named lanes. With no lane it goes to the sole
	// output lane. The same record may be emitted on several lanes.
	AddRecord(r *record.Record, lanes ...string) error
}
