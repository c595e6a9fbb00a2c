package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/forgepulse/autonomy-engine/pkg/types"
)

const (
	defaultOpenAIModel = "gpt-4o-mini"
	openAIAPIBase       = "https://api.openai.com/v1"
)

// OpenAIProvider implements Provider against the Chat Completions API,
// adapted the same way AnthropicProvider is: non-streaming Chat only,
// net/http idiom from internal/providers in the teacher repo. Used as a
// fallback entry in the chain so a single vendor outage doesn't stall a
// cycle (spec §4.3).
type OpenAIProvider struct {
	name         string
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
}

type OpenAIOption func(*OpenAIProvider)

func WithOpenAIModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) { p.defaultModel = model }
}

func WithOpenAIBaseURL(baseURL string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if baseURL != "" {
			p.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithOpenAIName overrides the provider's chain/logging name. The
// Chat Completions wire format is shared by several OpenAI-compatible
// backends (OpenRouter, Groq, DeepSeek, Mistral, xAI) that differ only in
// base URL and default model — this lets the chain tell them apart
// instead of every one of them logging as "openai".
func WithOpenAIName(name string) OpenAIOption {
	return func(p *OpenAIProvider) {
		if name != "" {
			p.name = name
		}
	}
}

func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{
		name:         "openai",
		apiKey:       apiKey,
		baseURL:      openAIAPIBase,
		defaultModel: defaultOpenAIModel,
		client:       &http.Client{Timeout: 120 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *OpenAIProvider) Name() string        { return p.name }
func (p *OpenAIProvider) DefaultModel() string { return p.defaultModel }

type openAIRequestBody struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens,omitempty"`
	Messages  []openAIMessageBody `json:"messages"`
}

type openAIMessageBody struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	body := openAIRequestBody{Model: model, MaxTokens: req.MaxTokens}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, openAIMessageBody{Role: m.Role, Content: m.Content})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("openai: build request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, classifyStatus(0, fmt.Errorf("openai: request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, classifyStatus(resp.StatusCode, fmt.Errorf("openai: status %d: %s", resp.StatusCode, string(data)))
	}

	var parsed openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &ProviderError{Kind: types.ErrSchemaViolation, Err: fmt.Errorf("openai: decode response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return nil, &ProviderError{Kind: types.ErrSchemaViolation, Err: fmt.Errorf("openai: no choices in response")}
	}

	finish := "stop"
	if parsed.Choices[0].FinishReason == "length" {
		finish = "length"
	}

	return &ChatResponse{
		Content:      parsed.Choices[0].Message.Content,
		FinishReason: finish,
		Usage: Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}, nil
}
