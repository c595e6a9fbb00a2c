package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/forgepulse/autonomy-engine/internal/tracing"
	"github.com/forgepulse/autonomy-engine/pkg/types"
)

// ErrAllProvidersFailed is returned when every provider in the chain was
// exhausted without a usable response.
var ErrAllProvidersFailed = errors.New("llm: all providers failed")

// Chain is the ordered provider failover described in spec §4.3. It is
// constructed once per process with its provider list and retry policy,
// then shared read-only across worker streams.
type Chain struct {
	providers []Provider
	retry     RetryConfig
}

// NewChain builds a Chain over providers in priority order. providers[0]
// is tried first; later entries are fallbacks.
func NewChain(providers []Provider, retry RetryConfig) *Chain {
	return &Chain{providers: providers, retry: retry}
}

// Outcome is the result of a chain Chat call, tagged with which provider
// (if any) ultimately produced content and its classified failure kind
// on total exhaustion.
type Outcome struct {
	Response     *ChatResponse
	ProviderName string
	Failed       bool
	ErrorKind    types.ErrorKind
	Attempts     int
	Detail       string
}

// Chat tries each provider in order. Within a provider, RetryDo absorbs
// rate-limited/transient-network errors per cfg; an auth or
// schema-violation error (after one reprompt) advances to the next
// provider immediately; an unavailable error also advances immediately.
// Chat never returns a ChatResponse with a schema violation silently
// accepted — spec §4.3's "never silently return empty strings as
// success" contract.
func (c *Chain) Chat(ctx context.Context, req ChatRequest) Outcome {
	totalAttempts := 0
	var lastKind types.ErrorKind = types.ErrUnavailable
	var lastDetail string

	for _, p := range c.providers {
		resp, attempts, err := c.chatOneProvider(ctx, p, req)
		totalAttempts += attempts
		if err == nil {
			return Outcome{Response: resp, ProviderName: p.Name(), Attempts: totalAttempts}
		}

		pe := asProviderError(err)
		lastKind = pe.Kind
		lastDetail = err.Error()

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Outcome{Failed: true, ErrorKind: types.ErrCancelled, Attempts: totalAttempts, Detail: lastDetail}
		}
		// any other classification (auth, schema-violation, unavailable,
		// or rate-limited/transient-network exhausted at this provider)
		// falls through to the next provider in the chain.
	}

	return Outcome{Failed: true, ErrorKind: lastKind, Attempts: totalAttempts, Detail: lastDetail}
}

// chatOneProvider runs req against p, reprompting once with a schema
// reminder if the first response fails schema validation (spec §4.3:
// "skip to next provider" only after that one reprompt).
func (c *Chain) chatOneProvider(ctx context.Context, p Provider, req ChatRequest) (*ChatResponse, int, error) {
	ctx, span := tracing.StartProviderCall(ctx, p.Name())
	defer span.End()

	attempts := 0

	call := func(r ChatRequest) (*ChatResponse, error) {
		attempts++
		resp, err := RetryDo(ctx, c.retry, func() (*ChatResponse, error) {
			return p.Chat(ctx, r)
		})
		if err != nil {
			return nil, err
		}
		if req.Schema != nil {
			if verr := ValidateSchema(resp.Content, req.Schema); verr != nil {
				return nil, &ProviderError{Kind: types.ErrSchemaViolation, Err: verr}
			}
		}
		if resp.Content == "" {
			return nil, &ProviderError{Kind: types.ErrSchemaViolation, Err: fmt.Errorf("empty content from %s", p.Name())}
		}
		return resp, nil
	}

	resp, err := call(req)
	if err == nil {
		span.SetAttributes(attribute.Int("llm.attempts", attempts))
		return resp, attempts, nil
	}

	pe := asProviderError(err)
	if pe.Kind != types.ErrSchemaViolation {
		span.SetAttributes(attribute.Int("llm.attempts", attempts))
		span.RecordError(err)
		return nil, attempts, err
	}

	reprompted := req
	reprompted.Messages = append(append([]Message{}, req.Messages...), Message{
		Role:    "user",
		Content: "Your previous response did not match the required JSON schema. Respond again with ONLY valid JSON matching the schema.",
	})
	resp, err = call(reprompted)
	span.SetAttributes(attribute.Int("llm.attempts", attempts))
	if err != nil {
		span.RecordError(err)
	}
	return resp, attempts, err
}

// ValidateSchema does a structural check that content parses as JSON and
// every schema-declared required top-level key is present. It is
// deliberately shallow — full JSON-Schema validation is out of scope —
// but it is enough to catch the "silent empty success" failure mode the
// spec calls out.
func ValidateSchema(content string, schema map[string]interface{}) error {
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return fmt.Errorf("llm: response is not valid JSON: %w", err)
	}

	required, _ := schema["required"].([]interface{})
	for _, r := range required {
		key, ok := r.(string)
		if !ok {
			continue
		}
		if _, present := parsed[key]; !present {
			return fmt.Errorf("llm: response missing required field %q", key)
		}
	}
	return nil
}
