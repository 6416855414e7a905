// Package websearch provides the built-in "web_search" tool, backed by a
// SearxNG-compatible metasearch endpoint. The handler queries the instance's
// JSON API and returns the top results as a compact JSON array the model can
// quote from.
//
// All handlers are safe for concurrent use.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/internal/tools"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/types"
)

const (
	// defaultMaxResults caps how many hits are returned to the model.
	defaultMaxResults = 5

	// maxBodyBytes bounds the response body read from the search instance.
	maxBodyBytes = 4 << 20
)

// searchArgs is the JSON-decoded input for the "web_search" tool.
type searchArgs struct {
	// Query is the search query string.
	Query string `json:"query"`

	// MaxResults caps the number of results. Defaults to 5 when <= 0.
	MaxResults int `json:"max_results,omitempty"`
}

// searchHit is one result returned to the model.
type searchHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// searxResponse mirrors the subset of the SearxNG JSON API we consume.
type searxResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// makeSearchHandler returns a handler bound to the given search instance.
func makeSearchHandler(baseURL string, client *http.Client) func(context.Context, string) (string, error) {
	return func(ctx context.Context, args string) (string, error) {
		var a searchArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return "", fmt.Errorf("websearch: failed to parse arguments: %w", err)
		}
		if a.Query == "" {
			return "", fmt.Errorf("websearch: query must not be empty")
		}
		limit := a.MaxResults
		if limit <= 0 {
			limit = defaultMaxResults
		}

		endpoint, err := url.Parse(baseURL)
		if err != nil {
			return "", fmt.Errorf("websearch: invalid base url %q: %w", baseURL, err)
		}
		endpoint = endpoint.JoinPath("search")
		q := endpoint.Query()
		q.Set("q", a.Query)
		q.Set("format", "json")
		endpoint.RawQuery = q.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
		if err != nil {
			return "", fmt.Errorf("websearch: build request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return "", fmt.Errorf("websearch: query search instance: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("websearch: search instance returned status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return "", fmt.Errorf("websearch: read response: %w", err)
		}
		var parsed searxResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return "", fmt.Errorf("websearch: decode response: %w", err)
		}

		hits := make([]searchHit, 0, limit)
		for _, r := range parsed.Results {
			if len(hits) == limit {
				break
			}
			hits = append(hits, searchHit{Title: r.Title, URL: r.URL, Snippet: r.Content})
		}
		if len(hits) == 0 {
			return "no results found for " + strconv.Quote(a.Query), nil
		}

		res, err := json.Marshal(hits)
		if err != nil {
			return "", fmt.Errorf("websearch: encode result: %w", err)
		}
		return string(res), nil
	}
}

// NewTools constructs the web-search tool set against baseURL. A nil client
// falls back to a default with a 15s timeout.
func NewTools(baseURL string, client *http.Client) []tools.Tool {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return []tools.Tool{
		{
			Definition: types.ToolDefinition{
				Name:        "web_search",
				Description: "Search the web for current information. Returns the top results as a JSON array of {title, url, snippet}. Use focused queries; one concept per call.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query": map[string]any{
							"type":        "string",
							"description": "The search query.",
						},
						"max_results": map[string]any{
							"type":        "integer",
							"description": "Maximum number of results to return. Defaults to 5.",
						},
					},
					"required": []string{"query"},
				},
				Idempotent:    true,
				MaxDurationMs: 15000,
			},
			Handler: makeSearchHandler(baseURL, client),
		},
	}
}
