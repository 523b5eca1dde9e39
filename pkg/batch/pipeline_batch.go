package batch

import (
	"maps"
	"slices"

	"github.com/batchlane/batchlane/pkg/lane"
	"github.com/batchlane/batchlane/pkg/record"
)

// PipelineBatch is the run-scoped holder of the records in flight for one
// batch, grouped by lane, plus the batch metadata. It is not safe for
// concurrent use.
type PipelineBatch struct {
	batchID         string
	previousBatchID string
	preview         bool

	lanes map[string][]*record.Record
}

// NewPipelineBatch starts a batch that resumes after previousBatchID. The batch
// id starts equal to the previous one until a source moves it forward.
func NewPipelineBatch(previousBatchID string, preview bool) *PipelineBatch {
	return &PipelineBatch{
		batchID:         previousBatchID,
		previousBatchID: previousBatchID,
		preview:         preview,
		lanes:           map[string][]*record.Record{},
	}
}

func (b *PipelineBatch) BatchID() string {
	return b.batchID
}

func (b *PipelineBatch) SetBatchID(id string) {
	b.batchID = id
}

func (b *PipelineBatch) PreviousBatchID() string {
	return b.previousBatchID
}

func (b *PipelineBatch) IsPreview() bool {
	return b.preview
}

// Drain removes and returns the records on lanes, lane by lane in ascending
// lane order. Draining lanes that hold nothing returns an empty slice.
func (b *PipelineBatch) Drain(lanes lane.Set) []*record.Record {
	out := b.Peek(lanes)
	for _, l := range lanes.Values() {
		delete(b.lanes, l)
	}
	return out
}

// DrainAll removes and returns every lane.
func (b *PipelineBatch) DrainAll() map[string][]*record.Record {
	out := b.lanes
	b.lanes = map[string][]*record.Record{}
	return out
}

// Peek returns the records on lanes, in the same order Drain would, without
// removing them.
func (b *PipelineBatch) Peek(lanes lane.Set) []*record.Record {
	out := []*record.Record{}
	for _, l := range lanes.Values() {
		out = append(out, b.lanes[l]...)
	}
	return out
}

// Append adds records to the end of lane l.
func (b *PipelineBatch) Append(l string, records ...*record.Record) {
	if len(records) == 0 {
		return
	}
	b.lanes[l] = append(b.lanes[l], records...)
}

// Lanes lists the lanes currently holding records, sorted.
func (b *PipelineBatch) Lanes() []string {
	return slices.Sorted(maps.Keys(b.lanes))
}

// Len counts the records held across all lanes.
func (b *PipelineBatch) Len() int {
	n := 0
	for _, recs := range b.lanes {
		n += len(recs)
	}
	return n
}
