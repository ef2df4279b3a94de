package lmstudio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/tracklist-extractor/internal/llm"
	"github.com/joseph-ayodele/tracklist-extractor/internal/llm/provider"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":"qwen2.5-7b-instruct"},{"id":"llama-3.1-8b"}]}`))
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req llm.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Nil(t, req.ResponseFormat)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"tracks\":[]}"}}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`))
	})
	return httptest.NewServer(mux)
}

func TestDiscoveryMarksModelsFree(t *testing.T) {
	server := newServer(t)
	defer server.Close()

	a, err := New(provider.Descriptor{
		Enabled:            true,
		BaseURL:            server.URL + "/v1",
		AutoDiscoverModels: true,
		Models:             []llm.ModelDescriptor{{ID: "pinned", Name: "Pinned", CostPer1K: 0.5}},
	})
	require.NoError(t, err)

	models, err := a.AvailableModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 3)
	for _, m := range models {
		assert.Zero(t, m.CostPer1K, m.ID)
		assert.True(t, m.Local())
	}
	assert.Equal(t, "Local model: qwen2.5-7b-instruct", models[1].Description)
	assert.Equal(t, 4096, models[1].MaxTokens)
	assert.True(t, a.Local())
}

func TestCompletionHasNoCost(t *testing.T) {
	server := newServer(t)
	defer server.Close()

	a, err := New(provider.Descriptor{Enabled: true, BaseURL: server.URL + "/v1", AutoDiscoverModels: true})
	require.NoError(t, err)

	res := a.CreateCompletion(context.Background(), llm.CompletionRequest{ModelID: "llama-3.1-8b"})

	require.True(t, res.Success, res.ErrorMessage)
	assert.Equal(t, 15, res.TotalTokens)
	assert.Zero(t, res.CostEstimate)
	assert.Equal(t, ProviderName, res.ProviderUsed)
}

func TestIsAvailableProbe(t *testing.T) {
	server := newServer(t)
	a, err := New(provider.Descriptor{Enabled: true, BaseURL: server.URL + "/v1", AutoDiscoverModels: true})
	require.NoError(t, err)
	assert.True(t, a.IsAvailable(context.Background()))

	server.Close()
	down, err := New(provider.Descriptor{Enabled: true, BaseURL: server.URL + "/v1", AutoDiscoverModels: true})
	require.NoError(t, err)
	assert.False(t, down.IsAvailable(context.Background()))
}
