package batch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/batchlane/batchlane/pkg/lane"
	"github.com/batchlane/batchlane/pkg/localize"
	"github.com/batchlane/batchlane/pkg/pipe"
	"github.com/batchlane/batchlane/pkg/record"
)

func transform(t *testing.T, name string, inputs, outputs []string) *pipe.Pipe {
	t.Helper()
	p, err := pipe.NewTransform(pipe.Info{InstanceName: name}, inputs, outputs)
	require.NoError(t, err)
	return p
}

func observer(t *testing.T, name string, inputs []string) *pipe.Pipe {
	t.Helper()
	p, err := pipe.NewObserver(pipe.Info{InstanceName: name}, inputs)
	require.NoError(t, err)
	return p
}

func extracted(t *testing.T, p *pipe.Pipe, plb *PipelineBatch) *PipeBatch {
	t.Helper()
	pb := New(p, plb)
	require.NoError(t, pb.ExtractFromPipelineBatch())
	return pb
}

func newRecord(id string) *record.Record {
	return record.New("src", id).Set("id", id)
}

func fingerprints(snaps []*record.Snapshot) []uint64 {
	out := make([]uint64, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, s.Fingerprint())
	}
	return out
}

func TestObserverNeverEmits(t *testing.T) {
	plb := NewPipelineBatch("", false)
	plb.Append("x", newRecord("r1"))

	pb := extracted(t, observer(t, "tap", []string{"x"}), plb)
	require.Nil(t, pb.output)
	require.Nil(t, pb.Output())

	err := pb.AddRecord(newRecord("r2"))
	require.ErrorIs(t, err, ErrProtocolViolation)
	require.ErrorIs(t, err, ErrObserverEmit)

	err = pb.AddRecord(newRecord("r2"), "x")
	require.ErrorIs(t, err, ErrObserverEmit)

	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "tap", perr.Stage)
	require.Equal(t, "stage 'tap' is an observer and cannot emit records", perr.Error())
}

func TestAddRecordLaneRules(t *testing.T) {
	tests := []struct {
		name    string
		outputs []string
		lanes   []string
		wantErr error
	}{
		{name: "single_lane_no_argument", outputs: []string{"x"}},
		{name: "multi_lane_no_argument", outputs: []string{"x", "y"}, wantErr: ErrAmbiguousLane},
		{name: "declared_lane", outputs: []string{"x", "y"}, lanes: []string{"y"}},
		{name: "all_declared_lanes", outputs: []string{"x", "y"}, lanes: []string{"x", "y"}},
		{name: "unknown_lane", outputs: []string{"x"}, lanes: []string{"z"}, wantErr: ErrUnknownLane},
		{name: "one_unknown_among_known", outputs: []string{"x", "y"}, lanes: []string{"x", "z"}, wantErr: ErrUnknownLane},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			pb := extracted(t, transform(t, "sel", nil, test.outputs), NewPipelineBatch("", false))

			err := pb.AddRecord(newRecord("r1"), test.lanes...)
			if test.wantErr != nil {
				require.ErrorIs(t, err, ErrProtocolViolation)
				require.ErrorIs(t, err, test.wantErr)
				for _, recs := range pb.Output() {
					require.Empty(t, recs)
				}
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestUnknownLaneErrorNamesLane(t *testing.T) {
	pb := extracted(t, transform(t, "sel", nil, []string{"x", "y"}), NewPipelineBatch("", false))

	err := pb.AddRecord(newRecord("r1"), "z")

	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "z", perr.Lane)
	require.Equal(t, []string{"x", "y"}, perr.Lanes.Values())
	require.Equal(t, "stage 'sel' has no output lane 'z', declared lanes are [x, y]", err.Error())
}

func TestFanOutSharesRecord(t *testing.T) {
	pb := extracted(t, transform(t, "sel", nil, []string{"x", "y"}), NewPipelineBatch("", false))

	r := newRecord("r1")
	require.NoError(t, pb.AddRecord(r, "x", "y", "x"))

	out := pb.Output()
	require.Len(t, out["x"], 1)
	require.Len(t, out["y"], 1)
	require.Same(t, out["x"][0], out["y"][0])
}

func TestPassThroughRoundTrip(t *testing.T) {
	input := []*record.Record{newRecord("r1"), newRecord("r2"), newRecord("r3")}
	var before []uint64
	for _, r := range input {
		before = append(before, record.NewSnapshot(r, "any").Fingerprint())
	}

	plb := NewPipelineBatch("", false)
	plb.Append("in", input...)

	pb := extracted(t, transform(t, "identity", []string{"in"}, []string{"out"}), plb)
	for s := range pb.Records() {
		require.NoError(t, pb.AddRecord(s.Record()))
	}
	require.NoError(t, pb.FlushBackToPipelineBatch())

	sink := extracted(t, transform(t, "sink", []string{"out"}, []string{"done"}), plb)
	require.Equal(t, before, fingerprints(sink.RecordList()))
}

func TestRecordsAreIdempotent(t *testing.T) {
	plb := NewPipelineBatch("", false)
	plb.Append("in", newRecord("r1"), newRecord("r2"))

	pb := extracted(t, transform(t, "b", []string{"in"}, []string{"out"}), plb)

	first := pb.RecordList()
	second := pb.RecordList()
	require.Len(t, first, 2)
	require.Equal(t, fingerprints(first), fingerprints(second))
	for i := range first {
		require.Equal(t, first[i].Stage(), second[i].Stage())
		require.Equal(t, first[i].Header(), second[i].Header())
	}
}

func TestRecordsStopEarly(t *testing.T) {
	plb := NewPipelineBatch("", false)
	plb.Append("in", newRecord("r1"), newRecord("r2"), newRecord("r3"))
	pb := extracted(t, transform(t, "b", []string{"in"}, []string{"out"}), plb)

	seen := 0
	for range pb.Records() {
		seen++
		break
	}
	require.Equal(t, 1, seen)
	require.Len(t, pb.RecordList(), 3)
}

func TestSnapshotsDoNotLeakIntoInput(t *testing.T) {
	plb := NewPipelineBatch("", false)
	plb.Append("in", newRecord("r1"))
	pb := extracted(t, transform(t, "b", []string{"in"}, []string{"out"}), plb)

	for s := range pb.Records() {
		r := s.Record()
		r.Set("id", "changed")
	}

	v, _ := pb.RecordList()[0].Get("id")
	require.Equal(t, "r1", v)
}

func TestObserverDoesNotInterfere(t *testing.T) {
	plb := NewPipelineBatch("", false)
	plb.Append("x", newRecord("r1"), newRecord("r2"))

	tap := extracted(t, observer(t, "tap", []string{"x"}), plb)
	require.Len(t, tap.RecordList(), 2)
	require.NoError(t, tap.FlushBackToPipelineBatch())

	require.Equal(t, 2, plb.Len())
	require.Equal(t, []string{"x"}, plb.Lanes())

	next := extracted(t, transform(t, "b", []string{"x"}, []string{"y"}), plb)
	require.Len(t, next.RecordList(), 2)
	require.Equal(t, 0, plb.Len())
}

func TestProvenanceIsReader(t *testing.T) {
	plb := NewPipelineBatch("", false)
	src := extracted(t, transform(t, "A", nil, []string{"x"}), plb)
	require.NoError(t, src.AddRecord(newRecord("r1")))
	require.NoError(t, src.FlushBackToPipelineBatch())

	b := extracted(t, transform(t, "B", []string{"x"}, []string{"y"}), plb)
	snaps := b.RecordList()
	require.Len(t, snaps, 1)
	require.Equal(t, "B", snaps[0].Stage())
	require.Equal(t, []string{"B"}, snaps[0].Header().StagesPath)

	tap := extracted(t, observer(t, "T", []string{"x"}), NewPipelineBatch("", false))
	require.Empty(t, tap.RecordList())
}

func TestLaneRoutingScenario(t *testing.T) {
	plb := NewPipelineBatch("", false)

	a := extracted(t, transform(t, "A", nil, []string{"x", "y"}), plb)
	r1 := newRecord("r1")
	require.NoError(t, a.AddRecord(r1, "x"))
	require.NoError(t, a.FlushBackToPipelineBatch())

	b := extracted(t, transform(t, "B", []string{"x"}, []string{"bx"}), plb)
	c := extracted(t, transform(t, "C", []string{"y"}, []string{"cy"}), plb)

	bs := b.RecordList()
	require.Len(t, bs, 1)
	require.Equal(t, record.NewSnapshot(r1, "B").Fingerprint(), bs[0].Fingerprint())
	require.Equal(t, r1.Header().TrackingID, bs[0].Header().TrackingID)

	require.Empty(t, c.RecordList())
	require.True(t, c.IsInputFullyConsumed())
	require.False(t, b.IsInputFullyConsumed())
}

func TestSingleLaneScenario(t *testing.T) {
	plb := NewPipelineBatch("", false)
	a := extracted(t, transform(t, "A", nil, []string{"x"}), plb)

	require.NoError(t, a.AddRecord(newRecord("r1")))
	require.NoError(t, a.FlushBackToPipelineBatch())
	require.Equal(t, []string{"x"}, plb.Lanes())
	require.Equal(t, 1, plb.Len())
}

func TestAmbiguousLaneScenario(t *testing.T) {
	plb := NewPipelineBatch("", false)
	a := extracted(t, transform(t, "A", nil, []string{"x", "y"}), plb)

	err := a.AddRecord(newRecord("r1"))
	require.ErrorIs(t, err, ErrProtocolViolation)

	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "A", perr.Stage)
	require.Equal(t, lane.NewSet("x", "y").Values(), perr.Lanes.Values())
	require.Contains(t, err.Error(), "[x, y]")
	require.Contains(t, err.Error(), "'A'")
}

func TestFlushMergesLanes(t *testing.T) {
	plb := NewPipelineBatch("", false)

	b := extracted(t, transform(t, "B", nil, []string{"y"}), plb)
	require.NoError(t, b.AddRecord(newRecord("b1")))
	a := extracted(t, transform(t, "A", nil, []string{"x"}), plb)
	require.NoError(t, a.AddRecord(newRecord("a1")))

	require.NoError(t, b.FlushBackToPipelineBatch())
	require.NoError(t, a.FlushBackToPipelineBatch())
	require.Equal(t, []string{"x", "y"}, plb.Lanes())

	sink := extracted(t, transform(t, "S", []string{"x", "y"}, []string{"out"}), plb)
	var ids []any
	for s := range sink.Records() {
		v, _ := s.Get("id")
		ids = append(ids, v)
	}
	require.Equal(t, []any{"a1", "b1"}, ids)
}

func TestStateMachine(t *testing.T) {
	plb := NewPipelineBatch("", false)
	p := transform(t, "A", nil, []string{"x"})

	t.Run("add_before_extract", func(t *testing.T) {
		err := New(p, plb).AddRecord(newRecord("r"))
		require.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("flush_before_extract", func(t *testing.T) {
		err := New(p, plb).FlushBackToPipelineBatch()
		require.ErrorIs(t, err, ErrInvalidState)
		require.ErrorIs(t, err, ErrProtocolViolation)
	})

	t.Run("repeated_transitions", func(t *testing.T) {
		pb := extracted(t, p, plb)
		require.ErrorIs(t, pb.ExtractFromPipelineBatch(), ErrInvalidState)
		require.NoError(t, pb.FlushBackToPipelineBatch())
		require.ErrorIs(t, pb.FlushBackToPipelineBatch(), ErrInvalidState)
		require.ErrorIs(t, pb.AddRecord(newRecord("r")), ErrInvalidState)
	})

	t.Run("nil_record", func(t *testing.T) {
		pb := extracted(t, p, plb)
		require.ErrorIs(t, pb.AddRecord(nil), ErrNilRecord)
		require.False(t, errors.Is(pb.AddRecord(nil), ErrProtocolViolation))
	})
}

func TestMetadataPassThrough(t *testing.T) {
	plb := NewPipelineBatch("41", true)
	pb := extracted(t, transform(t, "src", nil, []string{"x"}), plb)

	require.Equal(t, "41", pb.SourceOffset())
	require.Equal(t, "41", pb.PreviousBatchID())
	require.True(t, pb.IsPreview())

	pb.SetBatchID("42")
	require.Equal(t, "42", plb.BatchID())
	require.Equal(t, "42", pb.SourceOffset())
	require.Equal(t, "41", plb.PreviousBatchID())
	require.True(t, pb.Lanes().IsEmpty())
	require.Equal(t, []string{"x"}, pb.OutputLanes().Values())
}

func TestLocalizedProtocolMessage(t *testing.T) {
	pb := extracted(t, transform(t, "sel", nil, []string{"x", "y"}), NewPipelineBatch("", false))
	err := pb.AddRecord(newRecord("r1"), "z")

	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)

	msg := perr.Message(nil, localize.Context{Locale: localize.MustParseLocale("es")})
	require.Equal(t, "la etapa 'sel' no tiene el carril de salida 'z', los carriles declarados son [x, y]", msg)
}
