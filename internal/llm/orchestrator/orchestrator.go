// Package orchestrator resolves which provider/model serves a request, runs
// the completion, falls back to a secondary provider on failure and records
// usage for every executed call.
package orchestrator

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/joseph-ayodele/tracklist-extractor/internal/common"
	"github.com/joseph-ayodele/tracklist-extractor/internal/llm"
	"github.com/joseph-ayodele/tracklist-extractor/internal/llm/provider"
)

const unknown = "unknown"

// UsageRecorder receives one call per executed completion.
type UsageRecorder interface {
	RecordCompletion(model, provider string, res llm.CompletionResult)
}

// Orchestrator routes completions across the registry's adapters.
type Orchestrator struct {
	registry *provider.Registry
	defaults common.DefaultsConfig
	recorder UsageRecorder
	logger   *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder sets where usage is recorded.
func WithRecorder(r UsageRecorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New builds an orchestrator over reg using the configured defaults.
func New(reg *provider.Registry, defaults common.DefaultsConfig, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: reg,
		defaults: defaults,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Registry exposes the underlying adapters.
func (o *Orchestrator) Registry() *provider.Registry { return o.registry }

// RequestOption overrides request parameters.
type RequestOption func(*llm.CompletionRequest)

func WithMaxTokens(n int) RequestOption {
	return func(r *llm.CompletionRequest) { r.MaxTokens = n }
}

func WithTemperature(t float64) RequestOption {
	return func(r *llm.CompletionRequest) { r.Temperature = &t }
}

func WithTimeout(d time.Duration) RequestOption {
	return func(r *llm.CompletionRequest) { r.Timeout = d }
}

// CreateCompletion resolves a model, runs the call and tries the fallback
// provider if the primary fails. modelID and providerName may be empty.
func (o *Orchestrator) CreateCompletion(ctx context.Context, messages []llm.Message, modelID, providerName string, opts ...RequestOption) llm.CompletionResult {
	model, adapter, ok := o.resolve(ctx, modelID, providerName)
	if !ok {
		return llm.Failed(unknown, unknown, "no suitable model or provider could be resolved")
	}

	zero := 0.0
	req := llm.CompletionRequest{
		Messages:    messages,
		ModelID:     model.ID,
		MaxTokens:   model.MaxTokens,
		Temperature: &zero,
	}
	for _, opt := range opts {
		opt(&req)
	}

	res := adapter.CreateCompletion(ctx, req)
	o.record(model.ID, adapter.Name(), res)
	if res.Success || !o.shouldFallback(adapter.Name()) {
		return res
	}

	o.logger.Warn("llm.orchestrator.fallback",
		"failed_provider", adapter.Name(),
		"fallback_provider", o.defaults.FallbackProvider,
		"error", res.ErrorMessage)
	if fb, ok := o.tryFallback(ctx, req); ok && fb.Success {
		return fb
	}
	return res
}

func (o *Orchestrator) record(model, providerName string, res llm.CompletionResult) {
	if o.recorder != nil {
		o.recorder.RecordCompletion(model, providerName, res)
	}
}

// resolve follows: explicit model id, provider name, configured defaults,
// then the best available model.
func (o *Orchestrator) resolve(ctx context.Context, modelID, providerName string) (llm.ModelDescriptor, provider.Adapter, bool) {
	if modelID != "" {
		m, a, ok := o.ModelByID(ctx, modelID)
		if !ok {
			o.logger.Error("llm.orchestrator.model_not_found", "model", modelID)
			return llm.ModelDescriptor{}, nil, false
		}
		if providerName != "" && a.Name() != providerName {
			o.logger.Warn("llm.orchestrator.provider_mismatch", "model", modelID, "provider", providerName, "owner", a.Name())
			return llm.ModelDescriptor{}, nil, false
		}
		return m, a, true
	}

	if providerName != "" {
		a, ok := o.registry.Get(providerName)
		if !ok {
			o.logger.Error("llm.orchestrator.provider_unknown", "provider", providerName)
			return llm.ModelDescriptor{}, nil, false
		}
		models, err := a.AvailableModels(ctx)
		if err != nil || len(models) == 0 {
			o.logger.Error("llm.orchestrator.provider_has_no_models", "provider", providerName, "error", err)
			return llm.ModelDescriptor{}, nil, false
		}
		return models[0], a, true
	}

	if _, ok := o.registry.Get(o.defaults.Provider); ok && o.defaults.Model != "" {
		if m, a, ok := o.ModelByID(ctx, o.defaults.Model); ok {
			return m, a, true
		}
	}

	return o.SelectBestModel(ctx, Criteria{})
}

func (o *Orchestrator) shouldFallback(failed string) bool {
	fp := o.defaults.FallbackProvider
	if fp == "" || fp == failed {
		return false
	}
	_, ok := o.registry.Get(fp)
	return ok
}

func (o *Orchestrator) tryFallback(ctx context.Context, original llm.CompletionRequest) (llm.CompletionResult, bool) {
	a, ok := o.registry.Get(o.defaults.FallbackProvider)
	if !ok {
		return llm.CompletionResult{}, false
	}

	var model llm.ModelDescriptor
	found := false
	if id := o.defaults.FallbackModel; id != "" {
		model, _, found = o.ModelByID(ctx, id)
	}
	if !found {
		models, err := a.AvailableModels(ctx)
		if err != nil || len(models) == 0 {
			o.logger.Error("llm.orchestrator.fallback_no_models", "provider", a.Name(), "error", err)
			return llm.CompletionResult{}, false
		}
		model = models[0]
	}

	req := original
	req.ModelID = model.ID
	o.logger.Info("llm.orchestrator.fallback_attempt", "provider", a.Name(), "model", model.ID)
	res := a.CreateCompletion(ctx, req)
	o.record(model.ID, a.Name(), res)
	return res, true
}

// AvailableModels lists models of available providers, or of every
// registered provider when includeUnavailable is set.
func (o *Orchestrator) AvailableModels(ctx context.Context, includeUnavailable bool) []llm.ModelDescriptor {
	var out []llm.ModelDescriptor
	for _, a := range o.registry.All() {
		if !includeUnavailable && !a.IsAvailable(ctx) {
			o.logger.Debug("llm.orchestrator.provider_unavailable", "provider", a.Name())
			continue
		}
		models, err := a.AvailableModels(ctx)
		if err != nil {
			o.logger.Error("llm.orchestrator.list_models_failed", "provider", a.Name(), "error", err)
			continue
		}
		out = append(out, models...)
	}
	return out
}

// ModelByID searches every registered provider's catalog.
func (o *Orchestrator) ModelByID(ctx context.Context, id string) (llm.ModelDescriptor, provider.Adapter, bool) {
	for _, a := range o.registry.All() {
		if m, ok := a.ModelByID(ctx, id); ok {
			return m, a, true
		}
	}
	return llm.ModelDescriptor{}, nil, false
}

// Criteria filters candidate models. Zero values disable a filter.
type Criteria struct {
	PreferLocal  bool
	MaxCostPer1K *float64
	MinMaxTokens int
}

// SelectBestModel filters models of available providers and prefers local,
// then cheaper, then larger-context models.
func (o *Orchestrator) SelectBestModel(ctx context.Context, c Criteria) (llm.ModelDescriptor, provider.Adapter, bool) {
	var candidates []llm.ModelDescriptor
	for _, m := range o.AvailableModels(ctx, false) {
		if c.MaxCostPer1K != nil && m.CostPer1K > *c.MaxCostPer1K {
			continue
		}
		if c.MinMaxTokens > 0 && m.MaxTokens < c.MinMaxTokens {
			continue
		}
		if c.PreferLocal && !m.Local() {
			continue
		}
		candidates = append(candidates, m)
	}
	if len(candidates) == 0 {
		return llm.ModelDescriptor{}, nil, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Local() != b.Local() {
			return a.Local()
		}
		if a.CostPer1K != b.CostPer1K {
			return a.CostPer1K < b.CostPer1K
		}
		return a.MaxTokens > b.MaxTokens
	})

	best := candidates[0]
	if a, ok := o.registry.Get(best.Provider); ok {
		return best, a, true
	}
	return o.ModelByID(ctx, best.ID)
}
