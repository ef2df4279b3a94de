// Package provider defines the backend-agnostic completion adapter, the
// retry policy shared by every backend, and the name-keyed registries used to
// build adapters from configuration.
package provider

import (
	"context"
	"time"

	"github.com/joseph-ayodele/tracklist-extractor/internal/llm"
)

// Adapter is a configured backend exposing models behind a uniform
// completion call.
type Adapter interface {
	Name() string
	Enabled() bool
	Local() bool
	// IsAvailable reports whether the provider is enabled and answered a
	// bounded-timeout probe.
	IsAvailable(ctx context.Context) bool
	// AvailableModels returns the cached catalog, building it on first use.
	AvailableModels(ctx context.Context) ([]llm.ModelDescriptor, error)
	// ReloadModels drops the cache and rebuilds the catalog.
	ReloadModels(ctx context.Context) ([]llm.ModelDescriptor, error)
	ModelByID(ctx context.Context, id string) (llm.ModelDescriptor, bool)
	// CreateCompletion never fails with an error; see llm.CompletionResult.
	CreateCompletion(ctx context.Context, req llm.CompletionRequest) llm.CompletionResult
}

// Descriptor is the immutable configuration of one provider.
type Descriptor struct {
	Name               string
	Enabled            bool
	APIKey             string
	BaseURL            string
	Timeout            time.Duration
	RetryAttempts      int
	AutoDiscoverModels bool
	Models             []llm.ModelDescriptor
}

// Completion is the outcome of one successful backend call.
type Completion struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Backend is the per-variant part of an adapter: a single call, a catalog
// listing and a health probe. Retry, caching and cost accounting live in Client.
type Backend interface {
	Local() bool
	Discover(ctx context.Context) ([]llm.ModelDescriptor, error)
	Probe(ctx context.Context) error
	Complete(ctx context.Context, model llm.ModelDescriptor, req llm.CompletionRequest) (Completion, error)
}
