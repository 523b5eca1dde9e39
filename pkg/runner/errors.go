package runner

import (
	"errors"

	"github.com/batchlane/batchlane/pkg/localize"
)

var (
	ErrNoStages        = errors.New("pipeline has no stages")
	ErrNilPipe         = errors.New("binding has no pipe")
	ErrDuplicateStage  = errors.New("duplicate stage instance name")
	ErrRoleMismatch    = errors.New("stage implementation does not match its role")
	ErrSharedLane      = errors.New("lane consumed by more than one transform")
	ErrSharedOutput    = errors.New("lane produced by more than one transform")
	ErrEmptyPipeline   = errors.New("pipeline name must not be empty")
	ErrUnknownPolicy   = errors.New("unknown error policy")
	ErrRetriesExceeded = errors.New("retries exceeded")
)

var (
	IDStageFailed   = localize.NewErrorID("RUNNER_0001", "stage '{}' failed in batch '{}'")
	IDSharedLane    = localize.NewErrorID("RUNNER_0002", "lane '{}' is consumed by more than one transform stage: {}")
	IDRoleMismatch  = localize.NewErrorID("RUNNER_0003", "stage '{}' is declared as {} but its implementation is not")
	IDNoStages      = localize.NewErrorID("RUNNER_0004", "pipeline '{}' has no stages")
	IDDuplicateName = localize.NewErrorID("RUNNER_0005", "stage name '{}' is used more than once")
	IDSharedOutput  = localize.NewErrorID("RUNNER_0006", "lane '{}' is produced by more than one transform stage: {}")
)

// ConfigError rejects a pipeline wiring at construction time.
type ConfigError struct {
	kind error
	err  *localize.Error
}

func newConfigError(kind error, id localize.ErrorID, args ...any) *ConfigError {
	return &ConfigError{
		kind: kind,
		err:  localize.New(localize.DefaultBundle, id, args...),
	}
}

func (e *ConfigError) Error() string {
	return e.err.Error()
}

func (e *ConfigError) Message(reg *localize.Registry, lc localize.Context) string {
	return e.err.Message(reg, lc)
}

func (e *ConfigError) Unwrap() error {
	return e.err
}

func (e *ConfigError) Is(target error) bool {
	return target == e.kind
}

// StageError names the stage that failed and the batch it was processing.
type StageError struct {
	Stage   string
	BatchID string
	Err     error
}

func (e *StageError) localized() *localize.Error {
	return localize.Wrap(e.Err, localize.DefaultBundle, IDStageFailed, e.Stage, e.BatchID)
}

func (e *StageError) Error() string {
	return e.localized().Error()
}

// Message renders the stage failure in the locale of lc. The cause is not
// included.
func (e *StageError) Message(reg *localize.Registry, lc localize.Context) string {
	return e.localized().Message(reg, lc)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
