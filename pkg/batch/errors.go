package batch

import (
	"errors"

	"github.com/batchlane/batchlane/pkg/lane"
	"github.com/batchlane/batchlane/pkg/localize"
)

var (
	// ErrProtocolViolation matches every *ProtocolError.
	ErrProtocolViolation = errors.New("batch protocol violation")

	ErrObserverEmit  = errors.New("observer emitted a record")
	ErrAmbiguousLane = errors.New("ambiguous output lane")
	ErrUnknownLane   = errors.New("unknown output lane")
	ErrInvalidState  = errors.New("invalid pipe batch state")

	ErrNilRecord = errors.New("record must not be nil")
)

var (
	IDObserverEmit  = localize.NewErrorID("BATCH_0001", "stage '{}' is an observer and cannot emit records")
	IDAmbiguousLane = localize.NewErrorID("BATCH_0002", "stage '{}' has output lanes {} and the target lane must be named")
	IDUnknownLane   = localize.NewErrorID("BATCH_0003", "stage '{}' has no output lane '{}', declared lanes are {}")
	IDInvalidState  = localize.NewErrorID("BATCH_0004", "stage '{}' cannot {} in state {}")
)

// ProtocolError reports a stage breaking the batch hand-off contract.
type ProtocolError struct {
	ID    localize.ErrorID
	Stage string
	// Lane is the offending lane, if any.
	Lane string
	// Lanes is the stage's declared output lane set.
	Lanes lane.Set

	kind error
	err  *localize.Error
}

func newProtocolError(kind error, id localize.ErrorID, stage, l string, lanes lane.Set, args ...any) *ProtocolError {
	return &ProtocolError{
		ID:    id,
		Stage: stage,
		Lane:  l,
		Lanes: lanes,
		kind:  kind,
		err:   localize.New(localize.DefaultBundle, id, args...),
	}
}

func (e *ProtocolError) Error() string {
	return e.err.Error()
}

// Message renders the error with reg in the locale of lc.
func (e *ProtocolError) Message(reg *localize.Registry, lc localize.Context) string {
	return e.err.Message(reg, lc)
}

func (e *ProtocolError) Unwrap() error {
	return e.err
}

func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocolViolation || target == e.kind
}
