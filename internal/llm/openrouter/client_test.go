package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/tracklist-extractor/internal/llm"
	"github.com/joseph-ayodele/tracklist-extractor/internal/llm/provider"
)

func noSleep(context.Context, time.Duration) error { return nil }

func TestCreateCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("HTTP-Referer"))
		assert.NotEmpty(t, r.Header.Get("X-Title"))

		var req llm.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "google/gemini-2.5-flash", req.Model)
		assert.Equal(t, 4096, req.MaxTokens)
		assert.Zero(t, req.Temperature)
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)
		require.Len(t, req.Messages, 2)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "gen-1",
			"choices": [{"message": {"role": "assistant", "content": "{\"tracks\": []}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 800, "completion_tokens": 200, "total_tokens": 1000}
		}`))
	}))
	defer server.Close()

	a, err := New(provider.Descriptor{
		Name:    ProviderName,
		Enabled: true,
		APIKey:  "test-key",
		BaseURL: server.URL + "/api/v1",
		Models: []llm.ModelDescriptor{
			{ID: "google/gemini-2.5-flash", Name: "Gemini", MaxTokens: 4096, CostPer1K: 0.001},
		},
	})
	require.NoError(t, err)

	res := a.CreateCompletion(context.Background(), llm.CompletionRequest{
		ModelID: "google/gemini-2.5-flash",
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "prompt"},
			{Role: llm.RoleUser, Content: "text"},
		},
	})

	require.True(t, res.Success, res.ErrorMessage)
	assert.Equal(t, `{"tracks": []}`, res.Content)
	assert.Equal(t, 800, res.PromptTokens)
	assert.Equal(t, 200, res.CompletionTokens)
	assert.Equal(t, 1000, res.TotalTokens)
	assert.InDelta(t, 0.001, res.CostEstimate, 1e-9)
	assert.Equal(t, ProviderName, res.ProviderUsed)
	assert.False(t, a.Local())
}

func TestCreateCompletionRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream unavailable"}}`))
	}))
	defer server.Close()

	a, err := New(provider.Descriptor{
		Enabled:       true,
		BaseURL:       server.URL,
		RetryAttempts: 2,
		Models:        []llm.ModelDescriptor{{ID: "m", MaxTokens: 100}},
	}, provider.WithSleeper(noSleep))
	require.NoError(t, err)

	res := a.CreateCompletion(context.Background(), llm.CompletionRequest{ModelID: "m"})

	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "502")
	assert.Equal(t, int32(2), calls.Load())
}

func TestCreateCompletionEmptyContentIsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  "},"finish_reason":"length"}]}`))
	}))
	defer server.Close()

	a, err := New(provider.Descriptor{
		Enabled:       true,
		BaseURL:       server.URL,
		RetryAttempts: 1,
		Models:        []llm.ModelDescriptor{{ID: "m"}},
	})
	require.NoError(t, err)

	res := a.CreateCompletion(context.Background(), llm.CompletionRequest{ModelID: "m"})

	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "empty response content")
}

func TestDiscoveryDefaults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[
			{"id":"configured/model","name":"Other name"},
			{"id":"vendor/new-model","name":"New Model","context_length":128000,"pricing":{"prompt":"0.000001","completion":"0.000002"}},
			{"id":"vendor/unnamed"}
		]}`))
	}))
	defer server.Close()

	a, err := New(provider.Descriptor{
		Enabled:            true,
		BaseURL:            server.URL,
		AutoDiscoverModels: true,
		Models:             []llm.ModelDescriptor{{ID: "configured/model", Name: "Configured", MaxTokens: 8192, CostPer1K: 0.01}},
	})
	require.NoError(t, err)

	models, err := a.AvailableModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 3)

	assert.Equal(t, "Configured", models[0].Name)
	assert.Equal(t, 8192, models[0].MaxTokens)

	assert.Equal(t, "vendor/new-model", models[1].ID)
	assert.Equal(t, "New Model", models[1].Name)
	assert.Equal(t, 4096, models[1].MaxTokens)
	assert.Equal(t, 0.001, models[1].CostPer1K)
	assert.Equal(t, "Auto-discovered model: vendor/new-model", models[1].Description)

	assert.Equal(t, "vendor/unnamed", models[2].Name)
	assert.True(t, a.IsAvailable(context.Background()))
}
