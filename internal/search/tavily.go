package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonathan/roadmap-agent/internal/types"
)

// DefaultTavilyURL is the Tavily search endpoint.
const DefaultTavilyURL = "https://api.tavily.com/search"

// DefaultTimeout bounds a single search request.
const DefaultTimeout = 30 * time.Second

// TavilySearcher calls the Tavily search API.
type TavilySearcher struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewTavilySearcher creates a Tavily client. An empty endpoint uses DefaultTavilyURL.
func NewTavilySearcher(apiKey, endpoint string, httpClient *http.Client) (*TavilySearcher, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("tavily API key is required")
	}
	if endpoint == "" {
		endpoint = DefaultTavilyURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &TavilySearcher{apiKey: apiKey, endpoint: endpoint, httpClient: httpClient}, nil
}

type tavilyRequest struct {
	Query          string   `json:"query"`
	SearchDepth    string   `json:"search_depth,omitempty"`
	Topic          string   `json:"topic,omitempty"`
	MaxResults     int      `json:"max_results,omitempty"`
	IncludeDomains []string `json:"include_domains,omitempty"`
}

type tavilyResponse struct {
	Results []struct {
		URL     string  `json:"url"`
		Title   string  `json:"title"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search implements WebSearcher.
func (t *TavilySearcher) Search(ctx context.Context, q Query) ([]types.SearchResult, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, &Error{Backend: "tavily", Query: q.Text, Message: "query is empty"}
	}

	body, err := json.Marshal(tavilyRequest{
		Query:          q.Text,
		SearchDepth:    q.Depth,
		Topic:          q.Topic,
		MaxResults:     q.MaxResults,
		IncludeDomains: q.IncludeDomains,
	})
	if err != nil {
		return nil, &Error{Backend: "tavily", Query: q.Text, Message: "failed to encode request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Backend: "tavily", Query: q.Text, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Backend: "tavily", Query: q.Text, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Backend: "tavily", Query: q.Text, Message: "failed to read response body", Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Backend: "tavily", Query: q.Text, Message: fmt.Sprintf("HTTP status %d: %s", resp.StatusCode, truncate(string(raw), 200))}
	}

	var decoded tavilyResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &Error{Backend: "tavily", Query: q.Text, Message: "failed to decode response", Cause: err}
	}

	results := make([]types.SearchResult, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		results = append(results, types.SearchResult{URL: r.URL, Title: r.Title, Content: r.Content})
	}
	if q.MaxResults > 0 && len(results) > q.MaxResults {
		results = results[:q.MaxResults]
	}
	return results, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
