package forge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/go-github/v68/github"
)

// graphqlTransport issues raw GraphQL requests for the operations
// go-github's REST surface does not cover — GitHub Discussions have no
// REST API at all, only GraphQL (spec §4.4). Modeled directly on
// ghclient.clientImpl.graphqlMarkReady.
type graphqlTransport struct {
	client   *http.Client
	endpoint string
	token    string
}

func newGraphQLTransport(gh *github.Client, token string) *graphqlTransport {
	endpoint := "https://api.github.com/graphql"
	if base := gh.BaseURL.String(); base != "" && base != "https://api.github.com/" {
		endpoint = base + "graphql"
	}
	return &graphqlTransport{client: http.DefaultClient, endpoint: endpoint, token: token}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlError struct {
	Message string `json:"message"`
}

// do executes query with variables and decodes the `data` field into out.
// A non-empty top-level `errors` array is surfaced as an error even when
// the HTTP status is 200, matching GraphQL's error-reporting convention.
func (t *graphqlTransport) do(ctx context.Context, query string, variables map[string]any, out any) error {
	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("forge: marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("forge: build graphql request: %w", err)
	}
	req.Header.Set("content-type", "application/json")
	if t.token != "" {
		req.Header.Set("authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return wrapForgeErr(fmt.Errorf("forge: graphql request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return wrapForgeErr(&github.ErrorResponse{
			Response: resp,
			Message:  fmt.Sprintf("graphql returned HTTP %d: %s", resp.StatusCode, string(data)),
		})
	}

	var result struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphqlError  `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("forge: decode graphql response: %w", err)
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("forge: graphql error: %s", result.Errors[0].Message)
	}
	if out != nil && len(result.Data) > 0 {
		if err := json.Unmarshal(result.Data, out); err != nil {
			return fmt.Errorf("forge: decode graphql data: %w", err)
		}
	}
	return nil
}
