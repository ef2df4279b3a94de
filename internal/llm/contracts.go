package llm

import "time"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role/content pair of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ModelDescriptor describes one addressable model of a provider.
type ModelDescriptor struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Provider    string  `json:"provider"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	CostPer1K   float64 `json:"cost_per_1k_tokens"`
	Available   bool    `json:"available"`
	Description string  `json:"description,omitempty"`
}

// Local reports whether the model is free to run, which is how local
// models are told apart from hosted ones.
func (m ModelDescriptor) Local() bool {
	return m.CostPer1K == 0
}

// CompletionRequest is a single AI call. Zero values mean "use the model or
// provider default".
type CompletionRequest struct {
	Messages    []Message
	ModelID     string
	MaxTokens   int
	Temperature *float64
	Timeout     time.Duration
}

// CompletionResult always describes the outcome of a call; failures are
// encoded in Success and ErrorMessage rather than returned as errors.
type CompletionResult struct {
	Content          string        `json:"-"`
	ModelUsed        string        `json:"model_used"`
	ProviderUsed     string        `json:"provider_used"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"response_tokens"`
	TotalTokens      int           `json:"total_tokens"`
	CostEstimate     float64       `json:"cost_estimate"`
	Elapsed          time.Duration `json:"-"`
	Success          bool          `json:"success"`
	ErrorMessage     string        `json:"error_message,omitempty"`
}

// Failed builds a failure result.
func Failed(model, provider, message string) CompletionResult {
	return CompletionResult{
		ModelUsed:    model,
		ProviderUsed: provider,
		Success:      false,
		ErrorMessage: message,
	}
}
