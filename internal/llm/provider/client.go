package provider

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/tracklist-extractor/internal/llm"
)

// defaultMaxTokens is used for models referenced by id but absent from the catalog.
const defaultMaxTokens = 4096

// Client is the shared adapter core: it owns the model catalog cache, retries
// backend calls and estimates cost. Variants only supply a Backend.
type Client struct {
	desc         Descriptor
	backend      Backend
	retry        RetryPolicy
	costTracking bool
	logger       *slog.Logger

	mu     sync.Mutex
	models []llm.ModelDescriptor
	loaded bool
}

// Option configures a Client.
type Option func(*Client)

// WithRetryPolicy replaces the retry policy derived from the descriptor.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// WithSleeper keeps the retry budget but changes how waits are performed.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.retry.Sleep = sleep }
}

// WithCostTracking toggles cost estimation on successful completions.
func WithCostTracking(enabled bool) Option {
	return func(c *Client) { c.costTracking = enabled }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithAttempts overrides the descriptor's retry attempts.
func WithAttempts(n int) Option {
	return func(c *Client) { c.retry.Attempts = n }
}

// NewClient builds the adapter core around a backend.
func NewClient(desc Descriptor, backend Backend, opts ...Option) *Client {
	retry := DefaultRetryPolicy()
	if desc.RetryAttempts > 0 {
		retry.Attempts = desc.RetryAttempts
	}
	c := &Client{
		desc:         desc,
		backend:      backend,
		retry:        retry,
		costTracking: true,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("provider", desc.Name)
	return c
}

func (c *Client) Name() string           { return c.desc.Name }
func (c *Client) Enabled() bool          { return c.desc.Enabled }
func (c *Client) Local() bool            { return c.backend.Local() }
func (c *Client) Descriptor() Descriptor { return c.desc }

// Logger returns the provider-scoped logger.
func (c *Client) Logger() *slog.Logger { return c.logger }

// IsAvailable requires the provider to be enabled, its probe to succeed and at
// least one model in its catalog.
func (c *Client) IsAvailable(ctx context.Context) bool {
	if !c.desc.Enabled {
		return false
	}
	if err := c.backend.Probe(ctx); err != nil {
		c.logger.Debug("llm.provider.probe_failed", "error", err)
		return false
	}
	models, err := c.AvailableModels(ctx)
	return err == nil && len(models) > 0
}

// AvailableModels returns the catalog, building it once. Concurrent first
// callers wait for a single build. Discovery failures are logged and the
// configured models are kept.
func (c *Client) AvailableModels(ctx context.Context) ([]llm.ModelDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		c.models = c.buildCatalog(ctx)
		c.loaded = true
	}
	out := make([]llm.ModelDescriptor, len(c.models))
	copy(out, c.models)
	return out, nil
}

// ReloadModels clears the cache and rebuilds it.
func (c *Client) ReloadModels(ctx context.Context) ([]llm.ModelDescriptor, error) {
	c.mu.Lock()
	c.loaded = false
	c.models = nil
	c.mu.Unlock()
	return c.AvailableModels(ctx)
}

func (c *Client) buildCatalog(ctx context.Context) []llm.ModelDescriptor {
	seen := make(map[string]struct{}, len(c.desc.Models))
	models := make([]llm.ModelDescriptor, 0, len(c.desc.Models))
	for _, m := range c.desc.Models {
		m.Provider = c.desc.Name
		m.Available = true
		if m.Name == "" {
			m.Name = m.ID
		}
		seen[m.ID] = struct{}{}
		models = append(models, m)
	}
	if !c.desc.AutoDiscoverModels {
		return models
	}
	discovered, err := c.backend.Discover(ctx)
	if err != nil {
		c.logger.Warn("llm.provider.discovery_failed", "error", err)
		return models
	}
	added := 0
	for _, m := range discovered {
		if m.ID == "" {
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		m.Provider = c.desc.Name
		m.Available = true
		models = append(models, m)
		added++
	}
	c.logger.Info("llm.provider.discovered", "configured", len(c.desc.Models), "added", added)
	return models
}

// ModelByID looks a model up in the catalog.
func (c *Client) ModelByID(ctx context.Context, id string) (llm.ModelDescriptor, bool) {
	models, _ := c.AvailableModels(ctx)
	for _, m := range models {
		if m.ID == id {
			return m, true
		}
	}
	return llm.ModelDescriptor{}, false
}

// CreateCompletion performs the retried call. On exhaustion it returns a
// failed result carrying the last error message.
func (c *Client) CreateCompletion(ctx context.Context, req llm.CompletionRequest) llm.CompletionResult {
	model, ok := c.ModelByID(ctx, req.ModelID)
	if !ok {
		model = llm.ModelDescriptor{ID: req.ModelID, Name: req.ModelID, Provider: c.desc.Name, MaxTokens: defaultMaxTokens}
	}

	var (
		out     Completion
		elapsed time.Duration
	)
	err := c.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		start := time.Now()
		comp, err := c.backend.Complete(ctx, model, req)
		elapsed = time.Since(start)
		if err != nil {
			return err
		}
		out = comp
		return nil
	}, func(attempt int, err error, delay time.Duration) {
		c.logger.Warn("llm.completion.retry",
			"model", req.ModelID,
			"attempt", attempt+1,
			"delay", delay.String(),
			"error", err)
	})
	if err != nil {
		c.logger.Error("llm.completion.failed", "model", req.ModelID, "error", err)
		res := llm.Failed(req.ModelID, c.desc.Name, err.Error())
		res.Elapsed = elapsed
		return res
	}

	res := llm.CompletionResult{
		Content:          out.Content,
		ModelUsed:        req.ModelID,
		ProviderUsed:     c.desc.Name,
		PromptTokens:     out.PromptTokens,
		CompletionTokens: out.CompletionTokens,
		TotalTokens:      out.TotalTokens,
		Elapsed:          elapsed,
		Success:          true,
	}
	if res.TotalTokens == 0 {
		res.TotalTokens = res.PromptTokens + res.CompletionTokens
	}
	if c.costTracking && res.TotalTokens > 0 {
		res.CostEstimate = float64(res.TotalTokens) / 1000 * model.CostPer1K
	}
	c.logger.Debug("llm.completion.ok",
		"model", req.ModelID,
		"tokens", res.TotalTokens,
		"elapsed_ms", elapsed.Milliseconds())
	return res
}
