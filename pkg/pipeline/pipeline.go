// Package pipeline turns a declarative pipeline definition into runner
// bindings. It resolves stage kinds and lane declarations; wiring rules are
// enforced by the runner.
package pipeline

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/go-viper/mapstructure/v2"

	"github.com/batchlane/batchlane/pkg/pipe"
	"github.com/batchlane/batchlane/pkg/runner"
)

var (
	ErrUnknownKind       = errors.New("unknown stage kind")
	ErrDuplicateKind     = errors.New("stage kind already registered")
	ErrInvalidStage      = errors.New("stage factory returned neither a stage nor an observer")
	ErrObserverOutputs   = errors.New("observer stages cannot declare output lanes")
	ErrEmptyPipelineName = errors.New("pipeline name must not be empty")
)

// StageDefinition declares one stage instance.
type StageDefinition struct {
	// Name is the instance name, unique within the pipeline.
	Name    string         `mapstructure:"name"`
	Kind    string         `mapstructure:"kind"`
	Version string         `mapstructure:"version"`
	Inputs  []string       `mapstructure:"inputs"`
	Outputs []string       `mapstructure:"outputs"`
	Options map[string]any `mapstructure:"options"`
}

// Definition is a named, ordered list of stages.
type Definition struct {
	Name   string            `mapstructure:"name"`
	Stages []StageDefinition `mapstructure:"stages"`
}

// Options are the free-form settings of a stage.
type Options map[string]any

// Decode copies the options into the struct pointed to by out, using
// mapstructure tags. Unknown keys are rejected.
func (o Options) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(map[string]any(o))
}

// Factory builds the implementation of a stage instance. It returns a
// runner.Stage or a runner.Observer; the pipe role follows from which.
type Factory func(info pipe.Info, opts Options) (any, error)

// Registry maps stage kinds to factories. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

func (r *Registry) Register(kind string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.factories[kind]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateKind, kind)
	}
	r.factories[kind] = f
	return nil
}

// MustRegister is Register that panics on a duplicate kind.
func (r *Registry) MustRegister(kind string, f Factory) {
	if err := r.Register(kind, f); err != nil {
		panic(err)
	}
}

// Kinds lists the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func (r *Registry) factory(kind string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[kind]
	return f, ok
}

// Build resolves every stage of def into a binding, in declaration order.
func (r *Registry) Build(def Definition) ([]runner.Binding, error) {
	if def.Name == "" {
		return nil, ErrEmptyPipelineName
	}

	bindings := make([]runner.Binding, 0, len(def.Stages))
	for _, sd := range def.Stages {
		b, err := r.buildStage(sd)
		if err != nil {
			return nil, fmt.Errorf("pipeline %q stage %q: %w", def.Name, sd.Name, err)
		}
		bindings = append(bindings, b)
	}
	return bindings, nil
}

func (r *Registry) buildStage(sd StageDefinition) (runner.Binding, error) {
	f, ok := r.factory(sd.Kind)
	if !ok {
		return runner.Binding{}, fmt.Errorf("%w: %q", ErrUnknownKind, sd.Kind)
	}

	info := pipe.Info{InstanceName: sd.Name, Name: sd.Kind, Version: sd.Version}
	impl, err := f(info, Options(sd.Options))
	if err != nil {
		return runner.Binding{}, err
	}

	switch impl := impl.(type) {
	case runner.Stage:
		p, err := pipe.NewTransform(info, slices.Clone(sd.Inputs), slices.Clone(sd.Outputs))
		if err != nil {
			return runner.Binding{}, err
		}
		return runner.Transform(p, impl), nil
	case runner.Observer:
		if len(sd.Outputs) > 0 {
			return runner.Binding{}, ErrObserverOutputs
		}
		p, err := pipe.NewObserver(info, slices.Clone(sd.Inputs))
		if err != nil {
			return runner.Binding{}, err
		}
		return runner.Observe(p, impl), nil
	default:
		return runner.Binding{}, fmt.Errorf("%w: %T", ErrInvalidStage, impl)
	}
}

// NewRunner builds def with reg and hands the bindings to runner.New.
func NewRunner(reg *Registry, def Definition, opts ...runner.Option) (*runner.Runner, error) {
	bindings, err := reg.Build(def)
	if err != nil {
		return nil, err
	}
	return runner.New(def.Name, bindings, opts...)
}
