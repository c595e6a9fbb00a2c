package llm

import (
	"context"
	"testing"
	"time"

	"github.com/forgepulse/autonomy-engine/pkg/types"
)

type fakeProvider struct {
	name      string
	responses []fakeResponse
	calls     int
}

type fakeResponse struct {
	content string
	err     *ProviderError
}

func (f *fakeProvider) Name() string        { return f.name }
func (f *fakeProvider) DefaultModel() string { return "fake-model" }

func (f *fakeProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.calls++
	r := f.responses[idx]
	if r.err != nil {
		return nil, r.err
	}
	return &ChatResponse{Content: r.content, FinishReason: "stop"}, nil
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestChainFallsOverOnAuthFailure(t *testing.T) {
	p1 := &fakeProvider{name: "p1", responses: []fakeResponse{{err: &ProviderError{Kind: types.ErrAuth}}}}
	p2 := &fakeProvider{name: "p2", responses: []fakeResponse{{content: `{"ok":true}`}}}

	chain := NewChain([]Provider{p1, p2}, fastRetry())
	out := chain.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})

	if out.Failed {
		t.Fatalf("expected success from second provider, got failure: %+v", out)
	}
	if out.ProviderName != "p2" {
		t.Fatalf("expected p2 to serve the response, got %q", out.ProviderName)
	}
}

func TestChainRepromptsOnceOnSchemaViolationThenFailsOver(t *testing.T) {
	p1 := &fakeProvider{name: "p1", responses: []fakeResponse{
		{content: "not json"},
		{content: "still not json"},
	}}
	p2 := &fakeProvider{name: "p2", responses: []fakeResponse{{content: `{"title":"x"}`}}}

	chain := NewChain([]Provider{p1, p2}, fastRetry())
	out := chain.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
		Schema:   map[string]interface{}{"required": []interface{}{"title"}},
	})

	if out.Failed {
		t.Fatalf("expected eventual success from p2, got %+v", out)
	}
	if p1.calls != 2 {
		t.Fatalf("expected exactly one reprompt (2 calls) on p1, got %d", p1.calls)
	}
	if out.ProviderName != "p2" {
		t.Fatalf("expected p2 to serve the response, got %q", out.ProviderName)
	}
}

func TestChainFailsWhenAllProvidersExhausted(t *testing.T) {
	p1 := &fakeProvider{name: "p1", responses: []fakeResponse{{err: &ProviderError{Kind: types.ErrUnavailable}}}}
	p2 := &fakeProvider{name: "p2", responses: []fakeResponse{{err: &ProviderError{Kind: types.ErrUnavailable}}}}

	chain := NewChain([]Provider{p1, p2}, fastRetry())
	out := chain.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})

	if !out.Failed {
		t.Fatal("expected chain exhaustion to report Failed")
	}
	if out.ErrorKind != types.ErrUnavailable {
		t.Fatalf("ErrorKind = %q, want %q", out.ErrorKind, types.ErrUnavailable)
	}
}

func TestChainNeverReturnsEmptyContentAsSuccess(t *testing.T) {
	p1 := &fakeProvider{name: "p1", responses: []fakeResponse{{content: ""}, {content: ""}}}

	chain := NewChain([]Provider{p1}, fastRetry())
	out := chain.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})

	if !out.Failed {
		t.Fatal("expected empty content to be classified as Failed, not silent success")
	}
}

func TestRetryDoStopsOnNonRetryableError(t *testing.T) {
	calls := 0
	_, err := RetryDo(context.Background(), fastRetry(), func() (string, error) {
		calls++
		return "", &ProviderError{Kind: types.ErrAuth}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call for a non-retryable error, got %d", calls)
	}
}

func TestRetryDoRetriesRateLimited(t *testing.T) {
	calls := 0
	_, err := RetryDo(context.Background(), RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, func() (string, error) {
		calls++
		if calls < 3 {
			return "", &ProviderError{Kind: types.ErrRateLimited}
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}
