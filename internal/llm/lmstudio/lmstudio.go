// Package lmstudio adapts a local LM Studio server. Local models are free, so
// every catalog entry carries a zero cost.
package lmstudio

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/joseph-ayodele/tracklist-extractor/internal/llm"
	"github.com/joseph-ayodele/tracklist-extractor/internal/llm/provider"
)

const (
	ProviderName   = "lm_studio"
	DefaultBaseURL = "http://localhost:1234/v1"

	probeTimeout   = 5 * time.Second
	defaultTimeout = 60 * time.Second
	localMaxTokens = 4096
)

type backend struct {
	chat    *llm.ChatClient
	timeout time.Duration
}

// New builds the LM Studio adapter.
func New(desc provider.Descriptor, opts ...provider.Option) (provider.Adapter, error) {
	if desc.Name == "" {
		desc.Name = ProviderName
	}
	if desc.BaseURL == "" {
		desc.BaseURL = DefaultBaseURL
	}
	if desc.Timeout <= 0 {
		desc.Timeout = defaultTimeout
	}
	models := make([]llm.ModelDescriptor, len(desc.Models))
	copy(models, desc.Models)
	for i := range models {
		models[i].CostPer1K = 0
	}
	desc.Models = models
	b := &backend{
		chat:    &llm.ChatClient{BaseURL: desc.BaseURL, APIKey: desc.APIKey, HTTP: &http.Client{}},
		timeout: desc.Timeout,
	}
	c := provider.NewClient(desc, b, opts...)
	b.chat.Logger = c.Logger()
	return c, nil
}

func (b *backend) Local() bool { return true }

// Probe expects GET /models to answer 200 within five seconds.
func (b *backend) Probe(ctx context.Context) error {
	if _, err := b.chat.ListModels(ctx, probeTimeout); err != nil {
		return fmt.Errorf("lm studio probe: %w", err)
	}
	return nil
}

// Discover lists the models currently loaded in LM Studio.
func (b *backend) Discover(ctx context.Context) ([]llm.ModelDescriptor, error) {
	list, err := b.chat.ListModels(ctx, b.timeout)
	if err != nil {
		return nil, fmt.Errorf("list lm studio models: %w", err)
	}
	out := make([]llm.ModelDescriptor, 0, len(list.Data))
	for _, m := range list.Data {
		if m.ID == "" {
			continue
		}
		out = append(out, llm.ModelDescriptor{
			ID:          m.ID,
			Name:        m.ID,
			MaxTokens:   localMaxTokens,
			Description: "Local model: " + m.ID,
		})
	}
	return out, nil
}

// Complete sends a plain chat request; LM Studio does not accept json_object.
func (b *backend) Complete(ctx context.Context, model llm.ModelDescriptor, req llm.CompletionRequest) (provider.Completion, error) {
	return provider.ChatCompletion(ctx, b.chat, model, req, b.timeout, false)
}
