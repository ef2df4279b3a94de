package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ResponseFormat asks OpenAI-compatible servers for a JSON object answer.
type ResponseFormat struct {
	Type string `json:"type"`
}

// ChatRequest is the chat/completions request body shared by OpenAI-compatible backends.
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the subset of chat/completions responses we read.
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// Content returns the first choice's trimmed content.
func (r ChatResponse) Content() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Choices[0].Message.Content)
}

// ErrEmptyContent is returned when the model answered with nothing.
var ErrEmptyContent = errors.New("empty response content")

// ChatClient talks to an OpenAI-compatible HTTP API.
type ChatClient struct {
	BaseURL string
	APIKey  string
	Headers map[string]string
	HTTP    *http.Client
	Logger  *slog.Logger
}

func (c *ChatClient) headers() map[string]string {
	h := make(map[string]string, len(c.Headers)+1)
	if c.APIKey != "" {
		h["Authorization"] = "Bearer " + c.APIKey
	}
	for k, v := range c.Headers {
		h[k] = v
	}
	return h
}

// Complete performs one chat completion call. timeout bounds the call when > 0.
func (c *ChatClient) Complete(ctx context.Context, req ChatRequest, timeout time.Duration) (ChatResponse, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	endpoint := strings.TrimRight(c.BaseURL, "/") + "/chat/completions"
	raw, _, err := SendJSON(ctx, c.HTTP, endpoint, req, c.headers(), c.Logger)
	if err != nil {
		return ChatResponse{}, err
	}

	var cc ChatResponse
	if err := json.Unmarshal(raw, &cc); err != nil {
		return ChatResponse{}, fmt.Errorf("decode chat response: %w (payload snippet: %s)", err, SummarizeSnippet(string(raw)))
	}
	if len(cc.Choices) == 0 {
		return cc, fmt.Errorf("no choices in response: %s", SummarizeSnippet(string(raw)))
	}
	if cc.Content() == "" {
		return cc, fmt.Errorf("%w (finish_reason %q)", ErrEmptyContent, cc.Choices[0].FinishReason)
	}
	return cc, nil
}

// ModelList is the {data:[...]} envelope returned by GET /models.
type ModelList struct {
	Data []ListedModel `json:"data"`
}

// ListedModel is one catalog entry. Pricing and context length are only
// reported by hosted catalogs.
type ListedModel struct {
	ID            string `json:"id"`
	Name          string `json:"name,omitempty"`
	Description   string `json:"description,omitempty"`
	ContextLength int    `json:"context_length,omitempty"`
	Pricing       *struct {
		Prompt     string `json:"prompt"`
		Completion string `json:"completion"`
	} `json:"pricing,omitempty"`
}

// ListModels fetches GET {base}/models. timeout bounds the call when > 0.
func (c *ChatClient) ListModels(ctx context.Context, timeout time.Duration) (ModelList, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	endpoint := strings.TrimRight(c.BaseURL, "/") + "/models"
	raw, _, err := GetJSON(ctx, c.HTTP, endpoint, c.headers(), c.Logger)
	if err != nil {
		return ModelList{}, err
	}
	var out ModelList
	if err := json.Unmarshal(raw, &out); err != nil {
		return ModelList{}, fmt.Errorf("decode model list: %w", err)
	}
	return out, nil
}
