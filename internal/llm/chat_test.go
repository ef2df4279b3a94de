package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/tracklist-extractor/internal/common"
)

func TestChatClientComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		assert.Equal(t, "yes", r.Header.Get("X-Extra"))
		_, _ = w.Write([]byte(`{"id":"1","choices":[{"message":{"role":"assistant","content":" {} "},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`))
	}))
	defer server.Close()

	c := &ChatClient{BaseURL: server.URL + "/v1/", APIKey: "k", Headers: map[string]string{"X-Extra": "yes"}}
	resp, err := c.Complete(context.Background(), ChatRequest{Model: "m"}, time.Second)

	require.NoError(t, err)
	assert.Equal(t, "{}", resp.Content())
	assert.Equal(t, 4, resp.Usage.TotalTokens)
}

func TestChatClientErrors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		code  int
		check func(t *testing.T, err error)
	}{
		{
			name: "status",
			body: `{"error":"nope"}`,
			code: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				var se *HTTPStatusError
				require.True(t, errors.As(err, &se))
				assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
			},
		},
		{
			name:  "no choices",
			body:  `{"choices":[]}`,
			code:  http.StatusOK,
			check: func(t *testing.T, err error) { assert.Contains(t, err.Error(), "no choices") },
		},
		{
			name:  "empty content",
			body:  `{"choices":[{"message":{"content":""},"finish_reason":"length"}]}`,
			code:  http.StatusOK,
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrEmptyContent) },
		},
		{
			name:  "not json",
			body:  `<html>`,
			code:  http.StatusOK,
			check: func(t *testing.T, err error) { assert.Contains(t, err.Error(), "decode chat response") },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := &ChatClient{BaseURL: server.URL}
			ctx := common.WithSourceID(context.Background(), "a.pdf")
			_, err := c.Complete(ctx, ChatRequest{Model: "m"}, 0)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestChatClientTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	c := &ChatClient{BaseURL: server.URL}
	_, err := c.Complete(context.Background(), ChatRequest{Model: "m"}, 50*time.Millisecond)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"data":[{"id":"a","name":"A","context_length":8000,"pricing":{"prompt":"0.1","completion":"0.2"}},{"id":"b"}]}`))
	}))
	defer server.Close()

	list, err := (&ChatClient{BaseURL: server.URL}).ListModels(context.Background(), time.Second)

	require.NoError(t, err)
	require.Len(t, list.Data, 2)
	assert.Equal(t, 8000, list.Data[0].ContextLength)
	require.NotNil(t, list.Data[0].Pricing)
	assert.Equal(t, "0.2", list.Data[0].Pricing.Completion)
	assert.Nil(t, list.Data[1].Pricing)
}
