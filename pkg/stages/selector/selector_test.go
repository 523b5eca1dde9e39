package selector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/batchlane/batchlane/pkg/batch"
	"github.com/batchlane/batchlane/pkg/pipe"
	"github.com/batchlane/batchlane/pkg/pipeline"
	"github.com/batchlane/batchlane/pkg/record"
)

func snapshot(fields map[string]any) *record.Snapshot {
	r := record.New("src", "src::1")
	for k, v := range fields {
		r.Set(k, v)
	}
	return record.NewSnapshot(r, "route")
}

func TestNew(t *testing.T) {
	tests := map[string]struct {
		cfg Config
		err error
	}{
		`no_rules`: {
			cfg: Config{Default: "rest"},
			err: ErrNoRules,
		},
		`empty_lane`: {
			cfg: Config{Rules: []Rule{{When: "true"}}},
			err: ErrEmptyLane,
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := New(test.cfg)
			require.ErrorIs(t, err, test.err)
		})
	}

	t.Run("syntax_error", func(t *testing.T) {
		_, err := New(Config{Rules: []Rule{{Lane: "a", When: "record.x >"}}})
		var cerr *CompilationError
		require.ErrorAs(t, err, &cerr)
		require.Equal(t, "a", cerr.Lane)
	})

	t.Run("not_a_bool", func(t *testing.T) {
		_, err := New(Config{Rules: []Rule{{Lane: "a", When: "'text'"}}})
		var cerr *CompilationError
		require.ErrorAs(t, err, &cerr)
		require.ErrorContains(t, err, "expected a bool")
	})

	t.Run("unknown_variable", func(t *testing.T) {
		_, err := New(Config{Rules: []Rule{{Lane: "a", When: "row.x == 1"}}})
		var cerr *CompilationError
		require.ErrorAs(t, err, &cerr)
	})
}

func TestSelect(t *testing.T) {
	cfg := Config{
		Rules: []Rule{
			{Lane: "big", When: "has(record.amount) && record.amount > 100"},
			{Lane: "pt", When: "has(record.country) && record.country == 'PT'"},
		},
		Default: "rest",
	}

	first, err := New(cfg)
	require.NoError(t, err)

	cfg.Fanout = true
	fanout, err := New(cfg)
	require.NoError(t, err)

	tests := map[string]struct {
		fields map[string]any
		first  []string
		fanout []string
	}{
		`matches_both`: {
			fields: map[string]any{"amount": 150, "country": "PT"},
			first:  []string{"big"},
			fanout: []string{"big", "pt"},
		},
		`matches_second`: {
			fields: map[string]any{"amount": 50.5, "country": "PT"},
			first:  []string{"pt"},
			fanout: []string{"pt"},
		},
		`matches_none`: {
			fields: map[string]any{"country": "ES"},
			first:  []string{"rest"},
			fanout: []string{"rest"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := first.Select(snapshot(test.fields))
			require.NoError(t, err)
			require.Equal(t, test.first, got)

			got, err = fanout.Select(snapshot(test.fields))
			require.NoError(t, err)
			require.Equal(t, test.fanout, got)
		})
	}

	require.Equal(t, []string{"big", "pt", "rest"}, first.Lanes())
}

func TestSelectHeader(t *testing.T) {
	s, err := New(Config{Rules: []Rule{{Lane: "a", When: "header.stage_creator == 'src'"}}})
	require.NoError(t, err)

	got, err := s.Select(snapshot(nil))
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, got)
}

func TestSelectMissingField(t *testing.T) {
	s, err := New(Config{Rules: []Rule{{Lane: "a", When: "record.amount > 1"}}})
	require.NoError(t, err)

	_, err = s.Select(snapshot(nil))
	var eerr *EvaluationError
	require.ErrorAs(t, err, &eerr)
	require.Equal(t, "src::1", eerr.SourceID)
}

func TestProcess(t *testing.T) {
	s, err := New(Config{
		Rules: []Rule{{Lane: "even", When: "record.n % 2 == 0"}},
	})
	require.NoError(t, err)

	p, err := pipe.NewTransform(pipe.Info{InstanceName: "route"}, []string{"in"}, []string{"even"})
	require.NoError(t, err)

	plb := batch.NewPipelineBatch("", false)
	for i := range 4 {
		plb.Append("in", record.New("src", "x").Set("n", i))
	}

	pb := batch.New(p, plb)
	require.NoError(t, pb.ExtractFromPipelineBatch())
	require.NoError(t, s.Process(context.Background(), pb, pb))
	require.NoError(t, pb.FlushBackToPipelineBatch())

	// records matching no rule are dropped when there is no default lane
	out := plb.DrainAll()
	require.Len(t, out["even"], 2)
	require.NotContains(t, out, "in")
}

func TestProcessUndeclaredLane(t *testing.T) {
	s, err := New(Config{Rules: []Rule{{Lane: "x", When: "true"}}})
	require.NoError(t, err)

	p, err := pipe.NewTransform(pipe.Info{InstanceName: "route"}, []string{"in"}, []string{"y"})
	require.NoError(t, err)

	plb := batch.NewPipelineBatch("", false)
	plb.Append("in", record.New("src", "x"))

	pb := batch.New(p, plb)
	require.NoError(t, pb.ExtractFromPipelineBatch())
	require.ErrorIs(t, s.Process(context.Background(), pb, pb), batch.ErrUnknownLane)
}

func TestFactory(t *testing.T) {
	s, err := Factory(pipe.Info{}, pipeline.Options{
		"rules": []any{
			map[string]any{"lane": "a", "when": "true"},
		},
		"default": "b",
		"fanout":  "true",
	})
	require.NoError(t, err)
	require.True(t, s.(*Selector).fanout)
	require.Equal(t, []string{"a", "b"}, s.(*Selector).Lanes())
}
