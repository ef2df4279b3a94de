package openrouter

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/tracklist-extractor/internal/llm"
	"github.com/joseph-ayodele/tracklist-extractor/internal/llm/provider"
)

func (b *backend) Local() bool { return false }

// Probe is a no-op: a hosted catalog is considered reachable while it has models.
func (b *backend) Probe(ctx context.Context) error { return ctx.Err() }

// Discover lists the hosted catalog.
func (b *backend) Discover(ctx context.Context) ([]llm.ModelDescriptor, error) {
	list, err := b.chat.ListModels(ctx, b.timeout)
	if err != nil {
		return nil, fmt.Errorf("list openrouter models: %w", err)
	}
	out := make([]llm.ModelDescriptor, 0, len(list.Data))
	for _, m := range list.Data {
		if m.ID == "" {
			continue
		}
		name := m.Name
		if name == "" {
			name = m.ID
		}
		out = append(out, llm.ModelDescriptor{
			ID:          m.ID,
			Name:        name,
			MaxTokens:   discoveredMaxTokens,
			CostPer1K:   discoveredCostPer1K,
			Description: "Auto-discovered model: " + m.ID,
		})
	}
	return out, nil
}

// Complete asks for a JSON object answer.
func (b *backend) Complete(ctx context.Context, model llm.ModelDescriptor, req llm.CompletionRequest) (provider.Completion, error) {
	return provider.ChatCompletion(ctx, b.chat, model, req, b.timeout, true)
}
