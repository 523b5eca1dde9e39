package storage

import (
	"errors"
)

var (
	// ErrNotFound if nothing was committed for a pipeline.
	ErrNotFound = errors.New("not found")

	// ErrCollision if an item already exists within the store.
	ErrCollision = errors.New("item already exists")

	ErrInvalidPipeline = errors.New("pipeline name must not be empty")
	ErrInvalidBatchID  = errors.New("batch id must not be empty")

	ErrCancelled = errors.New("request has been cancelled")
)
