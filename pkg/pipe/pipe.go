// Package pipe describes where a stage sits in a pipeline: its identity, the
// lanes it reads and writes, and whether it transforms or only observes.
package pipe

import (
	"errors"
	"fmt"

	"github.com/batchlane/batchlane/pkg/lane"
)

var (
	ErrEmptyInstanceName = errors.New("pipe instance name must not be empty")
	ErrEmptyLaneName     = errors.New("lane name must not be empty")
	ErrNoOutputLanes     = errors.New("transform pipe must declare at least one output lane")
	ErrNoInputLanes      = errors.New("observer pipe must declare at least one input lane")
)

// Role tells a transform from an observer. It is fixed when the Pipe is built.
type Role int

const (
	// RoleTransform consumes its input and may emit onto its output lanes.
	RoleTransform Role = iota
	// RoleObserver reads its input without consuming it and never emits.
	RoleObserver
)

func (r Role) String() string {
	switch r {
	case RoleTransform:
		return "transform"
	case RoleObserver:
		return "observer"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Info identifies a stage instance.
type Info struct {
	// InstanceName is unique within the pipeline and stamped on every snapshot.
	InstanceName string
	// Name is the stage kind, e.g. "selector".
	Name    string
	Version string
}

// Pipe is the static lane wiring of one stage. It is immutable.
type Pipe struct {
	info    Info
	role    Role
	inputs  lane.Set
	outputs lane.Set
}

// NewTransform builds a transform Pipe. Inputs may be empty for a source.
func NewTransform(info Info, inputs, outputs []string) (*Pipe, error) {
	in, out, err := buildLanes(info, inputs, outputs)
	if err != nil {
		return nil, err
	}
	if out.IsEmpty() {
		return nil, fmt.Errorf("%w: %s", ErrNoOutputLanes, info.InstanceName)
	}

	return &Pipe{info: info, role: RoleTransform, inputs: in, outputs: out}, nil
}

// NewObserver builds an observer Pipe. Its output lane set is always empty.
func NewObserver(info Info, inputs []string) (*Pipe, error) {
	in, _, err := buildLanes(info, inputs, nil)
	if err != nil {
		return nil, err
	}
	if in.IsEmpty() {
		return nil, fmt.Errorf("%w: %s", ErrNoInputLanes, info.InstanceName)
	}

	return &Pipe{info: info, role: RoleObserver, inputs: in}, nil
}

func buildLanes(info Info, inputs, outputs []string) (lane.Set, lane.Set, error) {
	if info.InstanceName == "" {
		return lane.Set{}, lane.Set{}, ErrEmptyInstanceName
	}
	for _, l := range append(append([]string{}, inputs...), outputs...) {
		if l == "" {
			return lane.Set{}, lane.Set{}, fmt.Errorf("%w: %s", ErrEmptyLaneName, info.InstanceName)
		}
	}
	return lane.NewSet(inputs...), lane.NewSet(outputs...), nil
}

func (p *Pipe) Info() Info {
	return p.info
}

func (p *Pipe) InstanceName() string {
	return p.info.InstanceName
}

func (p *Pipe) Role() Role {
	return p.role
}

func (p *Pipe) IsObserver() bool {
	return p.role == RoleObserver
}

func (p *Pipe) InputLanes() lane.Set {
	return p.inputs
}

func (p *Pipe) OutputLanes() lane.Set {
	return p.outputs
}

func (p *Pipe) String() string {
	return fmt.Sprintf("%s(%s) %s -> %s", p.info.InstanceName, p.role, p.inputs, p.outputs)
}
