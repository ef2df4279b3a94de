package provider

import (
	"context"
	"time"

	"github.com/joseph-ayodele/tracklist-extractor/internal/llm"
)

// ChatCompletion performs one call against an OpenAI-compatible chat client,
// filling request defaults from the model descriptor.
func ChatCompletion(ctx context.Context, chat *llm.ChatClient, model llm.ModelDescriptor, req llm.CompletionRequest, timeout time.Duration, jsonMode bool) (Completion, error) {
	temperature := model.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = model.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	if req.Timeout > 0 {
		timeout = req.Timeout
	}

	body := llm.ChatRequest{
		Model:       req.ModelID,
		Messages:    req.Messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	if jsonMode {
		body.ResponseFormat = &llm.ResponseFormat{Type: "json_object"}
	}

	resp, err := chat.Complete(ctx, body, timeout)
	if err != nil {
		return Completion{}, err
	}
	return Completion{
		Content:          resp.Content(),
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}
