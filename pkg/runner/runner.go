// Package runner executes a pipeline one batch at a time: it hands the batch
// from stage to stage, checkpoints the source offset and applies the error
// policy when a stage fails.
package runner

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/batchlane/batchlane/internal/concurrency"
	"github.com/batchlane/batchlane/pkg/batch"
	"github.com/batchlane/batchlane/pkg/id"
	"github.com/batchlane/batchlane/pkg/lane"
	"github.com/batchlane/batchlane/pkg/logger"
	"github.com/batchlane/batchlane/pkg/record"
	"github.com/batchlane/batchlane/pkg/storage"
	"github.com/batchlane/batchlane/pkg/storage/memory"
	"github.com/batchlane/batchlane/pkg/telemetry"
)

var tracer = otel.Tracer("batchlane/pkg/runner")

const (
	DefaultRetryMaxElapsed      = time.Minute
	DefaultRetryInitialInterval = 500 * time.Millisecond
)

// ErrorPolicy decides what happens to a batch when one of its stages fails.
type ErrorPolicy string

const (
	// OnErrorStop returns the failure to the caller. Nothing is committed.
	OnErrorStop ErrorPolicy = "stop"
	// OnErrorSkip commits the offset the failing batch reached and moves on.
	OnErrorSkip ErrorPolicy = "skip"
	// OnErrorRetry re-runs the batch from the previous offset with exponential backoff.
	OnErrorRetry ErrorPolicy = "retry"
)

func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch p := ErrorPolicy(s); p {
	case OnErrorStop, OnErrorSkip, OnErrorRetry:
		return p, nil
	case "":
		return OnErrorStop, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

type Option func(r *Runner)

// WithStore sets where offsets are read and committed. Defaults to an
// in-memory store.
func WithStore(store storage.OffsetStore) Option {
	return func(r *Runner) {
		r.store = store
	}
}

func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithPreview runs batches without committing offsets.
func WithPreview(preview bool) Option {
	return func(r *Runner) {
		r.preview = preview
	}
}

func WithErrorPolicy(policy ErrorPolicy) Option {
	return func(r *Runner) {
		r.policy = policy
	}
}

// WithRetry bounds the OnErrorRetry backoff.
func WithRetry(initialInterval, maxElapsed time.Duration) Option {
	return func(r *Runner) {
		r.retryInitialInterval = initialInterval
		r.retryMaxElapsed = maxElapsed
	}
}

// WithRunID overrides the generated run id stored with every commit.
func WithRunID(runID string) Option {
	return func(r *Runner) {
		r.runID = runID
	}
}

// Runner executes the stages of one pipeline in declaration order.
type Runner struct {
	name     string
	runID    string
	bindings []Binding

	store  storage.OffsetStore
	logger logger.Logger

	preview              bool
	policy               ErrorPolicy
	retryInitialInterval time.Duration
	retryMaxElapsed      time.Duration
}

// New validates the wiring of bindings and returns a Runner for pipeline name.
// Stages run in the order given.
func New(name string, bindings []Binding, opts ...Option) (*Runner, error) {
	if name == "" {
		return nil, ErrEmptyPipeline
	}

	r := &Runner{
		name:                 name,
		bindings:             slices.Clone(bindings),
		logger:               logger.NewNoopLogger(),
		policy:               OnErrorStop,
		retryInitialInterval: DefaultRetryInitialInterval,
		retryMaxElapsed:      DefaultRetryMaxElapsed,
	}
	for _, opt := range opts {
		opt(r)
	}

	if _, err := ParseErrorPolicy(string(r.policy)); err != nil {
		return nil, err
	}
	if err := validateBindings(name, bindings); err != nil {
		return nil, err
	}

	if r.store == nil {
		r.store = memory.New()
	}
	if r.runID == "" {
		runID, err := id.NewRunString()
		if err != nil {
			return nil, err
		}
		r.runID = runID
	}
	r.logger = r.logger.With(zap.String("pipeline", name), zap.String("run_id", r.runID))

	return r, nil
}

func validateBindings(name string, bindings []Binding) error {
	if len(bindings) == 0 {
		return newConfigError(ErrNoStages, IDNoStages, name)
	}

	seen := make(map[string]struct{}, len(bindings))
	consumers := make(map[string][]string)
	producers := make(map[string][]string)
	for _, b := range bindings {
		if err := b.validate(); err != nil {
			return err
		}

		stage := b.Pipe.InstanceName()
		if _, ok := seen[stage]; ok {
			return newConfigError(ErrDuplicateStage, IDDuplicateName, stage)
		}
		seen[stage] = struct{}{}

		if b.Pipe.IsObserver() {
			continue
		}
		for _, l := range b.Pipe.InputLanes().Values() {
			consumers[l] = append(consumers[l], stage)
		}
		for _, l := range b.Pipe.OutputLanes().Values() {
			producers[l] = append(producers[l], stage)
		}
	}

	for _, l := range lane.NewSet(slices.Collect(maps.Keys(producers))...).Values() {
		if stages := producers[l]; len(stages) > 1 {
			return newConfigError(ErrSharedOutput, IDSharedOutput, l, lane.NewSet(stages...))
		}
	}

	for _, l := range lane.NewSet(slices.Collect(maps.Keys(consumers))...).Values() {
		if stages := consumers[l]; len(stages) > 1 {
			return newConfigError(ErrSharedLane, IDSharedLane, l, lane.NewSet(stages...))
		}
	}
	return nil
}

func (r *Runner) Name() string {
	return r.name
}

func (r *Runner) RunID() string {
	return r.runID
}

// Result describes one executed batch.
type Result struct {
	Pipeline        string
	RunID           string
	PreviousBatchID string
	BatchID         string

	Preview   bool
	Committed bool
	// Skipped is set when a stage failed under OnErrorSkip; Err holds the failure.
	Skipped bool
	Err     error
	// Attempts counts executions of the batch under OnErrorRetry.
	Attempts int

	// Output holds the records left on each lane after the last stage.
	Output map[string][]*record.Record
}

// Advanced reports whether the sources moved the offset.
func (r *Result) Advanced() bool {
	return r.BatchID != r.PreviousBatchID
}

// Len counts the records in Output.
func (r *Result) Len() int {
	n := 0
	for _, recs := range r.Output {
		n += len(recs)
	}
	return n
}

// RunBatch executes one batch from the last committed offset.
func (r *Runner) RunBatch(ctx context.Context) (*Result, error) {
	ctx = storage.ContextWithRunID(ctx, r.runID)

	switch r.policy {
	case OnErrorRetry:
		return r.runWithRetry(ctx)
	case OnErrorSkip:
		res, err := r.runOnce(ctx)
		if err != nil {
			return r.skip(ctx, res, err)
		}
		return res, nil
	default:
		return r.runOnce(ctx)
	}
}

func (r *Runner) runOnce(ctx context.Context) (*Result, error) {
	prev, err := r.previousOffset(ctx)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "RunBatch", trace.WithAttributes(
		attribute.String("pipeline", r.name),
		attribute.String("previous_batch_id", prev),
		attribute.Bool("preview", r.preview),
	))
	defer span.End()

	r.logger.DebugWithContext(ctx, "batch started", zap.String("previous_batch_id", prev))

	plb := batch.NewPipelineBatch(prev, r.preview)
	res := &Result{
		Pipeline:        r.name,
		RunID:           r.runID,
		PreviousBatchID: prev,
		Preview:         r.preview,
		Attempts:        1,
	}

	for _, b := range r.bindings {
		if err := ctx.Err(); err != nil {
			res.BatchID = plb.BatchID()
			return res, err
		}

		if err := r.runStage(ctx, b, plb); err != nil {
			res.BatchID = plb.BatchID()
			serr := &StageError{Stage: b.Pipe.InstanceName(), BatchID: plb.BatchID(), Err: err}
			telemetry.TraceError(span, serr)
			r.logger.ErrorWithContext(ctx, "stage failed", zap.String("stage", serr.Stage), zap.String("batch_id", serr.BatchID), zap.Error(err))
			return res, serr
		}
	}

	res.BatchID = plb.BatchID()
	res.Output = plb.DrainAll()
	span.SetAttributes(attribute.String("batch_id", res.BatchID), attribute.Int("records", res.Len()))

	if err := r.commit(ctx, res); err != nil {
		telemetry.TraceError(span, err)
		return res, err
	}
	return res, nil
}

func (r *Runner) runStage(ctx context.Context, b Binding, plb *batch.PipelineBatch) error {
	p := b.Pipe
	stage := p.InstanceName()
	role := p.Role().String()

	ctx, span := tracer.Start(ctx, "RunStage", trace.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("role", role),
	))
	defer span.End()

	start := time.Now()
	pb := batch.New(p, plb)
	if err := pb.ExtractFromPipelineBatch(); err != nil {
		return err
	}
	recordsInCounter.WithLabelValues(r.name, stage).Add(float64(pb.InputLen()))
	span.SetAttributes(attribute.Int("records_in", pb.InputLen()))

	var err error
	if p.IsObserver() {
		err = b.Observer.Observe(ctx, pb)
	} else {
		err = b.Stage.Process(ctx, pb, pb)
	}
	if err == nil {
		err = pb.FlushBackToPipelineBatch()
	}
	stageDurationHistogram.WithLabelValues(r.name, stage, role).Observe(float64(time.Since(start).Milliseconds()))

	if err != nil {
		var pe *batch.ProtocolError
		if errors.As(err, &pe) {
			protocolViolationCounter.WithLabelValues(r.name, stage, pe.ID.Code()).Inc()
			r.logger.WarnWithContext(ctx, "batch protocol violation",
				zap.String("stage", stage),
				zap.String("code", pe.ID.Code()),
				zap.Error(err),
			)
		}
		telemetry.TraceError(span, err)
		return err
	}

	for l, recs := range pb.Output() {
		recordsOutCounter.WithLabelValues(r.name, stage, l).Add(float64(len(recs)))
	}
	return nil
}

func (r *Runner) previousOffset(ctx context.Context) (string, error) {
	off, err := r.store.ReadOffset(ctx, r.name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("read offset of pipeline %q: %w", r.name, err)
	}
	return off.BatchID, nil
}

// commit checkpoints res unless it is a preview or the offset did not move.
func (r *Runner) commit(ctx context.Context, res *Result) error {
	if res.Preview || !res.Advanced() {
		return nil
	}

	if err := r.store.CommitOffset(ctx, r.name, res.BatchID); err != nil {
		return fmt.Errorf("commit offset %q of pipeline %q: %w", res.BatchID, r.name, err)
	}
	res.Committed = true
	batchesCommittedCounter.WithLabelValues(r.name).Inc()
	r.logger.InfoWithContext(ctx, "batch committed",
		zap.String("batch_id", res.BatchID),
		zap.Int("records", res.Len()),
	)
	return nil
}

// skip turns a stage failure into a committed, skipped batch. Failures outside
// a stage are returned unchanged.
func (r *Runner) skip(ctx context.Context, res *Result, err error) (*Result, error) {
	var serr *StageError
	if res == nil || !errors.As(err, &serr) {
		return res, err
	}

	r.logger.WarnWithContext(ctx, "skipping failed batch",
		zap.String("stage", serr.Stage),
		zap.String("batch_id", res.BatchID),
		zap.Error(serr.Err),
	)
	res.Skipped = true
	res.Err = serr
	if cerr := r.commit(ctx, res); cerr != nil {
		return res, cerr
	}
	return res, nil
}

func (r *Runner) runWithRetry(ctx context.Context) (*Result, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.retryInitialInterval
	policy.MaxElapsedTime = r.retryMaxElapsed

	var res *Result
	attempts := 0
	err := backoff.Retry(func() error {
		if attempts > 0 {
			batchRetryCounter.WithLabelValues(r.name).Inc()
			r.logger.WarnWithContext(ctx, "retrying batch", zap.Int("attempt", attempts+1))
		}
		attempts++

		var err error
		res, err = r.runOnce(ctx)
		if err == nil {
			return nil
		}
		if retryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(policy, ctx))

	if res != nil {
		res.Attempts = attempts
	}
	if err != nil && retryable(err) && ctx.Err() == nil {
		return res, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExceeded, attempts, err)
	}
	return res, err
}

// retryable reports whether re-running the batch may succeed. Protocol
// violations are wiring bugs and fail the same way every time.
func retryable(err error) bool {
	var serr *StageError
	return errors.As(err, &serr) && !errors.Is(err, batch.ErrProtocolViolation)
}

// Run executes batches until the sources stop advancing the offset, maxBatches
// offsets were advanced (zero means no limit) or ctx is done. A preview run
// executes a single batch. It returns the number of batches that advanced.
func (r *Runner) Run(ctx context.Context, maxBatches int) (int, error) {
	batches := 0
	for maxBatches <= 0 || batches < maxBatches {
		if err := ctx.Err(); err != nil {
			return batches, err
		}

		res, err := r.RunBatch(ctx)
		if err != nil {
			return batches, err
		}
		if !res.Advanced() {
			r.logger.DebugWithContext(ctx, "no new input", zap.String("batch_id", res.BatchID))
			if res.Skipped {
				return batches, res.Err
			}
			return batches, nil
		}
		batches++

		if res.Preview {
			break
		}
	}
	return batches, nil
}

// RunAll runs independent pipelines with at most limit of them at once. The
// first failure cancels the others and is returned.
func RunAll(ctx context.Context, runners []*Runner, maxBatches, limit int) error {
	return concurrency.ForEach(ctx, runners, limit, func(ctx context.Context, r *Runner) error {
		_, err := r.Run(ctx, maxBatches)
		if err != nil {
			return fmt.Errorf("pipeline %q: %w", r.name, err)
		}
		return nil
	})
}
