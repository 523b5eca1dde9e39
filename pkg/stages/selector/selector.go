// Package selector provides a stage that routes records onto lanes by
// evaluating CEL predicates over their fields.
package selector

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common"

	"github.com/batchlane/batchlane/pkg/batch"
	"github.com/batchlane/batchlane/pkg/pipe"
	"github.com/batchlane/batchlane/pkg/pipeline"
	"github.com/batchlane/batchlane/pkg/record"
	"github.com/batchlane/batchlane/pkg/runner"
)

const Kind = "selector"

var (
	ErrNoRules   = errors.New("selector needs at least one rule")
	ErrEmptyLane = errors.New("selector rule has no lane")
)

var celBaseEnv *cel.Env

func init() {
	env, err := cel.NewEnv(
		cel.Variable("record", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("header", cel.MapType(cel.StringType, cel.StringType)),
		cel.CrossTypeNumericComparisons(true),
		cel.EagerlyValidateDeclarations(true),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to construct CEL base env: %v", err))
	}

	celBaseEnv = env
}

// Rule sends the records for which When holds to Lane.
type Rule struct {
	Lane string `mapstructure:"lane"`
	// When is a CEL expression over `record` (the fields) and `header`
	// (source_id, tracking_id, stage_creator).
	When string `mapstructure:"when"`
}

type Config struct {
	Rules []Rule `mapstructure:"rules"`
	// Default receives records no rule matches. Without it they are dropped.
	Default string `mapstructure:"default"`
	// Fanout sends a record to every matching lane instead of the first.
	Fanout bool `mapstructure:"fanout"`
}

type CompilationError struct {
	Lane  string
	Cause error
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("failed to compile predicate for lane '%s': %v", e.Lane, e.Cause)
}

func (e *CompilationError) Unwrap() error {
	return e.Cause
}

type EvaluationError struct {
	Lane     string
	SourceID string
	Cause    error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("failed to evaluate predicate for lane '%s' on record '%s': %v", e.Lane, e.SourceID, e.Cause)
}

func (e *EvaluationError) Unwrap() error {
	return e.Cause
}

type compiledRule struct {
	lane    string
	program cel.Program
}

// Selector is safe for concurrent use once built.
type Selector struct {
	rules       []compiledRule
	defaultLane string
	fanout      bool
}

var _ runner.Stage = (*Selector)(nil)

// New compiles every rule. All predicates must yield a bool.
func New(cfg Config) (*Selector, error) {
	if len(cfg.Rules) == 0 {
		return nil, ErrNoRules
	}

	s := &Selector{defaultLane: cfg.Default, fanout: cfg.Fanout}
	for _, r := range cfg.Rules {
		if r.Lane == "" {
			return nil, ErrEmptyLane
		}
		prg, err := compile(r)
		if err != nil {
			return nil, err
		}
		s.rules = append(s.rules, compiledRule{lane: r.Lane, program: prg})
	}
	return s, nil
}

func compile(r Rule) (cel.Program, error) {
	source := common.NewStringSource(r.When, r.Lane)
	ast, issues := celBaseEnv.CompileSource(source)
	if issues != nil {
		if err := issues.Err(); err != nil {
			return nil, &CompilationError{Lane: r.Lane, Cause: err}
		}
	}

	if !reflect.DeepEqual(ast.OutputType(), cel.BoolType) {
		return nil, &CompilationError{
			Lane:  r.Lane,
			Cause: fmt.Errorf("expected a bool expression output, but got '%s'", ast.OutputType()),
		}
	}

	prg, err := celBaseEnv.Program(ast)
	if err != nil {
		return nil, &CompilationError{Lane: r.Lane, Cause: err}
	}
	return prg, nil
}

// Lanes returns the lanes this selector may emit on, in rule order, default last.
func (s *Selector) Lanes() []string {
	lanes := make([]string, 0, len(s.rules)+1)
	for _, r := range s.rules {
		lanes = append(lanes, r.lane)
	}
	if s.defaultLane != "" {
		lanes = append(lanes, s.defaultLane)
	}
	return lanes
}

// Select returns the lanes snap is routed to. An empty result means the record
// is dropped.
func (s *Selector) Select(snap *record.Snapshot) ([]string, error) {
	h := snap.Header()
	activation := map[string]any{
		"record": snap.Fields(),
		"header": map[string]string{
			"source_id":     h.SourceID,
			"tracking_id":   h.TrackingID,
			"stage_creator": h.StageCreator,
		},
	}

	var lanes []string
	for _, r := range s.rules {
		out, _, err := r.program.Eval(activation)
		if err != nil {
			return nil, &EvaluationError{Lane: r.lane, SourceID: h.SourceID, Cause: err}
		}
		if matched, ok := out.Value().(bool); ok && matched {
			lanes = append(lanes, r.lane)
			if !s.fanout {
				break
			}
		}
	}

	if len(lanes) == 0 && s.defaultLane != "" {
		lanes = append(lanes, s.defaultLane)
	}
	return lanes, nil
}

func (s *Selector) Process(ctx context.Context, in batch.Batch, out batch.BatchMaker) error {
	for snap := range in.Records() {
		if err := ctx.Err(); err != nil {
			return err
		}

		lanes, err := s.Select(snap)
		if err != nil {
			return err
		}
		if len(lanes) == 0 {
			continue
		}
		if err := out.AddRecord(snap.Record(), lanes...); err != nil {
			return err
		}
	}
	return nil
}

func Factory(_ pipe.Info, opts pipeline.Options) (any, error) {
	var cfg Config
	if err := opts.Decode(&cfg); err != nil {
		return nil, err
	}
	return New(cfg)
}
