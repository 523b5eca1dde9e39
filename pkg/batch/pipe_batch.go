package batch

import (
	"iter"
	"maps"
	"slices"

	"github.com/batchlane/batchlane/pkg/lane"
	"github.com/batchlane/batchlane/pkg/pipe"
	"github.com/batchlane/batchlane/pkg/record"
)

type state int

const (
	stateCreated state = iota
	stateExtracted
	stateFlushed
)

func (s state) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateExtracted:
		return "extracted"
	case stateFlushed:
		return "flushed"
	default:
		return "unknown"
	}
}

// PipeBatch binds one Pipe to the PipelineBatch for a single stage execution.
type PipeBatch struct {
	pipe     *pipe.Pipe
	pipeline *PipelineBatch
	observer bool
	state    state

	input []*record.Record

	// output is nil for observers.
	output map[string][]*record.Record
}

var (
	_ Batch      = (*PipeBatch)(nil)
	_ BatchMaker = (*PipeBatch)(nil)
)

// New binds p to plb.
func New(p *pipe.Pipe, plb *PipelineBatch) *PipeBatch {
	pb := &PipeBatch{
		pipe:     p,
		pipeline: plb,
		observer: p.IsObserver(),
	}
	if !pb.observer {
		pb.output = make(map[string][]*record.Record, p.OutputLanes().Size())
		for _, l := range p.OutputLanes().Values() {
			pb.output[l] = []*record.Record{}
		}
	}
	return pb
}

func (pb *PipeBatch) Pipe() *pipe.Pipe {
	return pb.pipe
}

// ExtractFromPipelineBatch takes the input records: transforms drain their input
// lanes, observers peek at them.
func (pb *PipeBatch) ExtractFromPipelineBatch() error {
	if pb.state != stateCreated {
		return pb.invalidState("extract")
	}

	if pb.observer {
		pb.input = pb.pipeline.Peek(pb.pipe.InputLanes())
	} else {
		pb.input = pb.pipeline.Drain(pb.pipe.InputLanes())
	}
	pb.state = stateExtracted
	return nil
}

// FlushBackToPipelineBatch appends every output lane to the PipelineBatch lane
// of the same name, in ascending lane order.
func (pb *PipeBatch) FlushBackToPipelineBatch() error {
	if pb.state != stateExtracted {
		return pb.invalidState("flush")
	}

	for _, l := range pb.pipe.OutputLanes().Values() {
		pb.pipeline.Append(l, pb.output[l]...)
	}
	pb.state = stateFlushed
	return nil
}

func (pb *PipeBatch) Lanes() lane.Set {
	return pb.pipe.InputLanes()
}

func (pb *PipeBatch) OutputLanes() lane.Set {
	return pb.pipe.OutputLanes()
}

func (pb *PipeBatch) Records() iter.Seq[*record.Snapshot] {
	stage := pb.pipe.InstanceName()
	input := pb.input
	return func(yield func(*record.Snapshot) bool) {
		for _, r := range input {
			if !yield(record.NewSnapshot(r, stage)) {
				return
			}
		}
	}
}

func (pb *PipeBatch) RecordList() []*record.Snapshot {
	out := make([]*record.Snapshot, 0, len(pb.input))
	for s := range pb.Records() {
		out = append(out, s)
	}
	return out
}

func (pb *PipeBatch) IsInputFullyConsumed() bool {
	return len(pb.input) == 0
}

// InputLen is the number of records extracted for the stage.
func (pb *PipeBatch) InputLen() int {
	return len(pb.input)
}

func (pb *PipeBatch) SourceOffset() string {
	return pb.pipeline.BatchID()
}

func (pb *PipeBatch) PreviousBatchID() string {
	return pb.pipeline.PreviousBatchID()
}

func (pb *PipeBatch) IsPreview() bool {
	return pb.pipeline.IsPreview()
}

func (pb *PipeBatch) SetBatchID(id string) {
	pb.pipeline.SetBatchID(id)
}

func (pb *PipeBatch) AddRecord(r *record.Record, lanes ...string) error {
	stage := pb.pipe.InstanceName()
	outputs := pb.pipe.OutputLanes()

	if pb.observer {
		return newProtocolError(ErrObserverEmit, IDObserverEmit, stage, "", outputs, stage)
	}
	if pb.state != stateExtracted {
		return pb.invalidState("add a record")
	}
	if r == nil {
		return ErrNilRecord
	}

	if len(lanes) == 0 {
		only, ok := outputs.Only()
		if !ok {
			return newProtocolError(ErrAmbiguousLane, IDAmbiguousLane, stage, "", outputs, stage, outputs)
		}
		pb.output[only] = append(pb.output[only], r)
		return nil
	}

	targets := lane.NewSet(lanes...)
	for _, l := range targets.Values() {
		if !outputs.Contains(l) {
			return newProtocolError(ErrUnknownLane, IDUnknownLane, stage, l, outputs, stage, l, outputs)
		}
	}
	for _, l := range targets.Values() {
		pb.output[l] = append(pb.output[l], r)
	}
	return nil
}

// Output returns a copy of the records emitted so far, by lane. It is nil for
// observers.
func (pb *PipeBatch) Output() map[string][]*record.Record {
	if pb.output == nil {
		return nil
	}
	out := maps.Clone(pb.output)
	for l, recs := range out {
		out[l] = slices.Clone(recs)
	}
	return out
}

func (pb *PipeBatch) invalidState(op string) error {
	stage := pb.pipe.InstanceName()
	return newProtocolError(ErrInvalidState, IDInvalidState, stage, "", pb.pipe.OutputLanes(), stage, op, pb.state)
}
