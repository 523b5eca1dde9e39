package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/batchlane/batchlane/pkg/storage"
)

var tracer = otel.Tracer("batchlane/pkg/storage/memory")

// StorageOption defines a function type used for configuring a [MemoryBackend] instance.
type StorageOption func(dataStore *MemoryBackend)

// WithClock overrides the time source used to stamp commits.
func WithClock(now func() time.Time) StorageOption {
	return func(ds *MemoryBackend) {
		ds.now = now
	}
}

// MemoryBackend provides an ephemeral memory-backed implementation of [storage.OffsetStore].
// These instances may be safely shared by multiple go-routines.
type MemoryBackend struct {
	now func() time.Time

	// map: pipeline => commits, oldest first
	commits map[string][]storage.Offset // GUARDED_BY(mu).
	mu      sync.RWMutex
}

// Ensures that [MemoryBackend] implements the [storage.OffsetStore] interface.
var _ storage.OffsetStore = (*MemoryBackend)(nil)

// New creates a new [MemoryBackend] given the options.
func New(opts ...StorageOption) *MemoryBackend {
	ds := &MemoryBackend{
		now:     time.Now,
		commits: map[string][]storage.Offset{},
	}

	for _, opt := range opts {
		opt(ds)
	}

	return ds
}

// ReadOffset see [storage.OffsetReader].ReadOffset.
func (s *MemoryBackend) ReadOffset(ctx context.Context, pipeline string) (storage.Offset, error) {
	_, span := tracer.Start(ctx, "memory.ReadOffset")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	commits := s.commits[pipeline]
	if len(commits) == 0 {
		return storage.Offset{}, storage.ErrNotFound
	}
	return commits[len(commits)-1], nil
}

// ListCommits see [storage.OffsetReader].ListCommits.
func (s *MemoryBackend) ListCommits(ctx context.Context, pipeline string, limit int) ([]storage.Offset, error) {
	_, span := tracer.Start(ctx, "memory.ListCommits")
	defer span.End()

	limit = storage.NormalizeLimit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	commits := s.commits[pipeline]
	res := make([]storage.Offset, 0, min(limit, len(commits)))
	for i := len(commits) - 1; i >= 0 && len(res) < limit; i-- {
		res = append(res, commits[i])
	}
	return res, nil
}

// CommitOffset see [storage.OffsetWriter].CommitOffset.
func (s *MemoryBackend) CommitOffset(ctx context.Context, pipeline, batchID string) error {
	_, span := tracer.Start(ctx, "memory.CommitOffset")
	defer span.End()

	if err := storage.ValidateCommit(pipeline, batchID); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return storage.ErrCancelled
	}

	runID, _ := storage.RunIDFromContext(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.commits[pipeline] = append(s.commits[pipeline], storage.Offset{
		Pipeline:    pipeline,
		BatchID:     batchID,
		RunID:       runID,
		CommittedAt: s.now().UTC(),
	})
	return nil
}

// Pipelines lists the pipelines with at least one commit, sorted.
func (s *MemoryBackend) Pipelines() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.commits))
	for name := range s.commits {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsReady see [storage.OffsetStore].IsReady.
func (s *MemoryBackend) IsReady(context.Context) (storage.ReadinessStatus, error) {
	return storage.ReadinessStatus{IsReady: true}, nil
}

// Close does not do anything for [MemoryBackend].
func (s *MemoryBackend) Close() {}
