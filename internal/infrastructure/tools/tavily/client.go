// Package tavily adapts the Tavily web search API into the uniform tool
// result shape. Provider failures never escape as errors; they are folded
// into the outcome so a failed search degrades the turn instead of aborting it.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/knowbase/knowledge-assistant/internal/core/domain"
)

const (
	defaultBaseURL    = "https://api.tavily.com"
	defaultMaxResults = 3
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func New(apiKey string) *Client {
	return NewWithBaseURL(apiKey, defaultBaseURL)
}

func NewWithBaseURL(apiKey, baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type searchRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results"`
	SearchDepth   string `json:"search_depth"`
	IncludeAnswer bool   `json:"include_answer"`
}

type searchResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search runs a basic-depth web search and normalizes the response.
func (c *Client) Search(ctx context.Context, query string, maxResults int) domain.WebSearchOutcome {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	if c.apiKey == "" {
		return failedOutcome(query, "tavily api key is not configured")
	}

	resp, err := c.search(ctx, searchRequest{
		APIKey:        c.apiKey,
		Query:         query,
		MaxResults:    maxResults,
		SearchDepth:   "basic",
		IncludeAnswer: true,
	})
	if err != nil {
		return failedOutcome(query, err.Error())
	}

	results := make([]domain.WebSearchResult, 0, len(resp.Results))
	for _, item := range resp.Results {
		results = append(results, domain.WebSearchResult{
			Title:   item.Title,
			URL:     item.URL,
			Content: item.Content,
			Score:   item.Score,
		})
	}

	return domain.WebSearchOutcome{
		Success: true,
		Query:   query,
		Results: results,
		Answer:  resp.Answer,
	}
}

func (c *Client) search(ctx context.Context, payload searchRequest) (*searchResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(raw)); msg != "" {
			return nil, fmt.Errorf("tavily search status: %s: %s", resp.Status, msg)
		}
		return nil, fmt.Errorf("tavily search status: %s", resp.Status)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &out, nil
}

func failedOutcome(query, reason string) domain.WebSearchOutcome {
	return domain.WebSearchOutcome{
		Success: false,
		Query:   query,
		Results: []domain.WebSearchResult{},
		Error:   reason,
	}
}
