// Package storage contains the offset store interface and implementations
//
//go:generate mockgen -source storage.go -destination ../../internal/mocks/mock_storage.go -package mocks OffsetStore
package storage

import (
	"context"
	"time"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 1000
)

// Offset is one committed checkpoint of a pipeline.
type Offset struct {
	Pipeline string
	// BatchID is the source offset the pipeline resumes after.
	BatchID string
	// RunID is the run that committed the offset, if known.
	RunID       string
	CommittedAt time.Time
}

type OffsetReader interface {
	// ReadOffset returns the latest offset committed for pipeline, or ErrNotFound
	// if nothing was ever committed.
	ReadOffset(ctx context.Context, pipeline string) (Offset, error)

	// ListCommits returns up to limit offsets of pipeline, newest first. A limit
	// of zero means DefaultListLimit.
	ListCommits(ctx context.Context, pipeline string, limit int) ([]Offset, error)
}

type OffsetWriter interface {
	// CommitOffset records batchID as the latest offset of pipeline. The run id
	// is taken from the context when present.
	CommitOffset(ctx context.Context, pipeline, batchID string) error
}

// OffsetStore persists pipeline offsets between batch executions.
type OffsetStore interface {
	OffsetReader
	OffsetWriter

	// IsReady reports whether the store can serve requests.
	IsReady(ctx context.Context) (ReadinessStatus, error)

	// Close closes the store and cleans up any residual resources.
	Close()
}

// ReadinessStatus represents the readiness status of the store.
type ReadinessStatus struct {
	// Message is a human-friendly status message for the current store status.
	Message string

	IsReady bool
}

// ValidateCommit checks the arguments of CommitOffset.
func ValidateCommit(pipeline, batchID string) error {
	if pipeline == "" {
		return ErrInvalidPipeline
	}
	if batchID == "" {
		return ErrInvalidBatchID
	}
	return nil
}

// NormalizeLimit clamps a ListCommits limit into [1, MaxListLimit].
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
