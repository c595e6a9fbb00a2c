// Package llm implements the LLM Backend Chain (spec §4.3): an ordered
// list of providers with per-provider retry/backoff, schema-declared
// response parsing, and failure classification that lets a caller
// downgrade a task to noop instead of fabricating content.
//
// Grounded on internal/providers/types.go and internal/providers/anthropic.go
// in the teacher repo: the Provider interface, ChatRequest/ChatResponse/
// Message shapes, and the net/http request-building idiom are kept.
// Streaming (ChatStream) is dropped — this domain generates one post or
// comment body per task, never a token-by-token UI, so there is no
// consumer for StreamChunk; see DESIGN.md.
package llm

import "context"

// Message is one turn in a chat-style prompt.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ChatRequest is the input to a Chat call (spec §4.3 "prompt bundle").
type ChatRequest struct {
	Messages  []Message `json:"messages"`
	Model     string    `json:"model,omitempty"`
	MaxTokens int       `json:"max_tokens,omitempty"`

	// Schema, when non-nil, is a JSON Schema the response's Content must
	// validate against (spec §4.3 "optional JSON schema expected"). A
	// response that fails to parse against it is never treated as
	// success, even if the provider returned HTTP 200.
	Schema map[string]interface{} `json:"-"`
}

// ChatResponse is the result of a Chat call.
type ChatResponse struct {
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason"`
	Usage        Usage  `json:"usage"`
}

// Usage tracks token consumption for observability (ambient logging,
// spec's AMBIENT STACK expansion — not part of the routing decision).
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Provider is the interface every LLM backend implements (spec §4.3).
type Provider interface {
	// Chat sends req and returns a parsed response, or an error that the
	// chain classifies via asProviderError (HTTP statuses via
	// classifyStatus).
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Name identifies the provider for logging and the chain's ordering.
	Name() string

	// DefaultModel returns the model used when req.Model is empty.
	DefaultModel() string
}
