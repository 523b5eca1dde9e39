package runner

import (
	"context"

	"github.com/batchlane/batchlane/pkg/batch"
	"github.com/batchlane/batchlane/pkg/pipe"
)

// Stage is a transform or a source. It reads its input from in and emits on out.
type Stage interface {
	Process(ctx context.Context, in batch.Batch, out batch.BatchMaker) error
}

// Observer reads its input without consuming it and emits nothing.
type Observer interface {
	Observe(ctx context.Context, in batch.Batch) error
}

type StageFunc func(ctx context.Context, in batch.Batch, out batch.BatchMaker) error

func (f StageFunc) Process(ctx context.Context, in batch.Batch, out batch.BatchMaker) error {
	return f(ctx, in, out)
}

type ObserverFunc func(ctx context.Context, in batch.Batch) error

func (f ObserverFunc) Observe(ctx context.Context, in batch.Batch) error {
	return f(ctx, in)
}

// Binding pairs a Pipe with its implementation. Exactly one of Stage and
// Observer is set, matching the pipe's role.
type Binding struct {
	Pipe     *pipe.Pipe
	Stage    Stage
	Observer Observer
}

// Transform binds a transform pipe to s.
func Transform(p *pipe.Pipe, s Stage) Binding {
	return Binding{Pipe: p, Stage: s}
}

// Observe binds an observer pipe to o.
func Observe(p *pipe.Pipe, o Observer) Binding {
	return Binding{Pipe: p, Observer: o}
}

func (b Binding) validate() error {
	if b.Pipe == nil {
		return ErrNilPipe
	}

	role := b.Pipe.Role()
	ok := false
	switch role {
	case pipe.RoleObserver:
		ok = b.Observer != nil && b.Stage == nil
	case pipe.RoleTransform:
		ok = b.Stage != nil && b.Observer == nil
	}
	if !ok {
		return newConfigError(ErrRoleMismatch, IDRoleMismatch, b.Pipe.InstanceName(), role)
	}
	return nil
}
