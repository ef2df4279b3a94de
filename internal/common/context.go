package common

import (
	"context"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRunID    contextKey = "run_id"
	ContextKeySourceID contextKey = "source_id"
)

// WithRunID adds a run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, ContextKeyRunID, runID)
}

// RunIDFromContext extracts the run ID from context
func RunIDFromContext(ctx context.Context) string {
	if runID, ok := ctx.Value(ContextKeyRunID).(string); ok {
		return runID
	}
	return ""
}

// WithSourceID tags the context with the logical id of the document being processed.
func WithSourceID(ctx context.Context, sourceID string) context.Context {
	return context.WithValue(ctx, ContextKeySourceID, sourceID)
}

// SourceIDFromContext extracts the source ID from context
func SourceIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeySourceID).(string); ok {
		return id
	}
	return ""
}
