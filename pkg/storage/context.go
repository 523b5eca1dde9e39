package storage

import (
	"context"
)

type ctxKey string

var (
	runIDContextKey = ctxKey("run-id")
)

// ContextWithRunID attaches the id of the current pipeline run, stored with
// every committed offset.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDContextKey, runID)
}

func RunIDFromContext(ctx context.Context) (string, bool) {
	runID, ok := ctx.Value(runIDContextKey).(string)
	return runID, ok
}
