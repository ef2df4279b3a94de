// Package providers wires the concrete backends into a provider.Factory and
// turns configuration into adapter descriptors.
package providers

import (
	"log/slog"
	"sort"

	"github.com/joseph-ayodele/tracklist-extractor/internal/common"
	"github.com/joseph-ayodele/tracklist-extractor/internal/llm"
	"github.com/joseph-ayodele/tracklist-extractor/internal/llm/lmstudio"
	"github.com/joseph-ayodele/tracklist-extractor/internal/llm/openrouter"
	"github.com/joseph-ayodele/tracklist-extractor/internal/llm/provider"
)

// DefaultFactory knows every built-in backend.
func DefaultFactory() *provider.Factory {
	f := provider.NewFactory()
	f.Register(openrouter.ProviderName, openrouter.New)
	f.Register(lmstudio.ProviderName, lmstudio.New)
	return f
}

// DescriptorsFromConfig converts the providers section, sorted by name.
func DescriptorsFromConfig(cfg *common.Config) []provider.Descriptor {
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]provider.Descriptor, 0, len(names))
	for _, name := range names {
		p := cfg.Providers[name]
		models := make([]llm.ModelDescriptor, 0, len(p.Models))
		for _, m := range p.Models {
			models = append(models, llm.ModelDescriptor{
				ID:          m.ID,
				Name:        m.Name,
				Provider:    name,
				MaxTokens:   m.MaxTokens,
				Temperature: m.Temperature,
				CostPer1K:   m.CostPer1K,
				Description: m.Description,
			})
		}
		out = append(out, provider.Descriptor{
			Name:               name,
			Enabled:            p.Enabled,
			APIKey:             common.ExpandPlaceholder(p.APIKey),
			BaseURL:            p.BaseURL,
			Timeout:            p.TimeoutDuration(),
			RetryAttempts:      p.RetryAttempts,
			AutoDiscoverModels: p.AutoDiscoverModels,
			Models:             models,
		})
	}
	return out
}

// BuildRegistry builds adapters for every enabled, known provider. Retry is
// limited to one attempt when auto_retry_on_failure is off.
func BuildRegistry(cfg *common.Config, logger *slog.Logger, opts ...provider.Option) *provider.Registry {
	base := []provider.Option{
		provider.WithLogger(logger),
		provider.WithCostTracking(cfg.Advanced.EnableCostTracking),
	}
	if !cfg.Advanced.AutoRetryOnFailure {
		base = append(base, provider.WithAttempts(1))
	}
	return provider.Build(DefaultFactory(), DescriptorsFromConfig(cfg), logger, append(base, opts...)...)
}
