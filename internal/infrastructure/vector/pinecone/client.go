// Package pinecone is an HTTP client for the Pinecone data plane. The index
// is hosted; it must exist and be reachable before retrieval works, which the
// bootstrap verifies via Stats.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/knowbase/knowledge-assistant/internal/core/domain"
)

type Client struct {
	baseURL    string
	apiKey     string
	indexName  string
	httpClient *http.Client
}

// New creates a client for an index host URL, e.g.
// https://knowledge-assistant-xxxx.svc.us-east-1-aws.pinecone.io.
func New(indexHost, apiKey, indexName string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(indexHost, "/"),
		apiKey:     apiKey,
		indexName:  indexName,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type vectorRecord struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata"`
}

// Upsert writes passages with their vectors and positional metadata. Page
// numbers stay 0-indexed in the index; citation building converts them.
func (c *Client) Upsert(ctx context.Context, passages []domain.Passage, vectors [][]float32) ([]string, error) {
	if len(passages) == 0 {
		return nil, nil
	}
	if len(passages) != len(vectors) {
		return nil, fmt.Errorf("passages/vectors mismatch: %d/%d", len(passages), len(vectors))
	}

	records := make([]vectorRecord, 0, len(passages))
	ids := make([]string, 0, len(passages))
	for i, p := range passages {
		id := uuid.NewString()
		ids = append(ids, id)
		records = append(records, vectorRecord{
			ID:     id,
			Values: vectors[i],
			Metadata: map[string]any{
				"doc_id":       p.DocumentID,
				"source":       p.Source,
				"page":         p.Page,
				"chunk_index":  p.ChunkIndex,
				"total_chunks": p.TotalChunks,
				"text":         p.Text,
			},
		})
	}

	var out struct {
		UpsertedCount int `json:"upsertedCount"`
	}
	if err := c.postJSON(ctx, "/vectors/upsert", map[string]any{"vectors": records}, &out, "upsert"); err != nil {
		return nil, err
	}
	return ids, nil
}

// Search returns the top-k matches in index rank order. Pinecone cosine
// scores are already similarities (higher = closer), matching the filter
// convention downstream.
func (c *Client) Search(ctx context.Context, queryVector []float32, k int) ([]domain.ScoredPassage, error) {
	reqBody := map[string]any{
		"vector":          queryVector,
		"topK":            k,
		"includeMetadata": true,
	}

	var out struct {
		Matches []struct {
			ID       string         `json:"id"`
			Score    float64        `json:"score"`
			Metadata map[string]any `json:"metadata"`
		} `json:"matches"`
	}
	if err := c.postJSON(ctx, "/query", reqBody, &out, "query"); err != nil {
		return nil, err
	}

	results := make([]domain.ScoredPassage, 0, len(out.Matches))
	for _, m := range out.Matches {
		results = append(results, domain.ScoredPassage{
			Passage: domain.Passage{
				DocumentID:  metaString(m.Metadata, "doc_id"),
				Source:      metaString(m.Metadata, "source"),
				Page:        metaInt(m.Metadata, "page"),
				ChunkIndex:  metaInt(m.Metadata, "chunk_index"),
				TotalChunks: metaInt(m.Metadata, "total_chunks"),
				Text:        metaString(m.Metadata, "text"),
			},
			Score: m.Score,
		})
	}
	return results, nil
}

// DeleteAll removes every vector from the index.
func (c *Client) DeleteAll(ctx context.Context) error {
	var out struct{}
	return c.postJSON(ctx, "/vectors/delete", map[string]any{"deleteAll": true}, &out, "delete all")
}

// Stats describes the index. Used at bootstrap to verify the index exists
// and by the health endpoint.
func (c *Client) Stats(ctx context.Context) (domain.IndexStats, error) {
	var out struct {
		TotalVectorCount int `json:"totalVectorCount"`
	}
	if err := c.postJSON(ctx, "/describe_index_stats", map[string]any{}, &out, "describe stats"); err != nil {
		return domain.IndexStats{}, err
	}
	return domain.IndexStats{
		TotalVectorCount: out.TotalVectorCount,
		IndexName:        c.indexName,
	}, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pinecone %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(raw)); msg != "" {
			return fmt.Errorf("pinecone %s status: %s: %s", operation, resp.Status, msg)
		}
		return fmt.Errorf("pinecone %s status: %s", operation, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func metaString(meta map[string]any, key string) string {
	v, ok := meta[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func metaInt(meta map[string]any, key string) int {
	switch v := meta[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	default:
		return 0
	}
}
