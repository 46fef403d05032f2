package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultSearchURL = "https://api.tavily.com/search"

// Snippet is one search hit.
type Snippet struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Searcher returns context snippets for a topic.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Snippet, error)
}

// TavilyClient calls the Tavily search API.
type TavilyClient struct {
	apiKey     string
	baseURL    string
	maxResults int
	http       *http.Client
}

func NewTavilyClient(apiKey, baseURL string, maxResults int, timeout time.Duration) *TavilyClient {
	if baseURL == "" {
		baseURL = defaultSearchURL
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TavilyClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		maxResults: maxResults,
		http:       &http.Client{Timeout: timeout},
	}
}

type tavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type tavilyResponse struct {
	Results []Snippet `json:"results"`
}

func (c *TavilyClient) Search(ctx context.Context, query string) ([]Snippet, error) {
	body, err := json.Marshal(tavilyRequest{
		APIKey:      c.apiKey,
		Query:       query,
		MaxResults:  c.maxResults,
		SearchDepth: "basic",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API error (status %d): %s", resp.StatusCode, respBody)
	}

	var result tavilyResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("unmarshal search response: %w", err)
	}
	if len(result.Results) > c.maxResults {
		result.Results = result.Results[:c.maxResults]
	}
	return result.Results, nil
}
