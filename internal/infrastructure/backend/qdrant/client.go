package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/makr-code/VCC-Veritas-sub003/internal/core/domain"
)

// Client talks to a qdrant collection over its REST API. The collection
// carries a dense vector per passage plus a named sparse vector for
// lexical search.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
}

func NewClient(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

const sparseVectorName = "lexical"

type scoredPoint struct {
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func (c *Client) searchDense(ctx context.Context, queryVector []float32, limit int, filters domain.SearchFilters) ([]scoredPoint, error) {
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}
	if f := filterClause(filters); f != nil {
		reqBody["filter"] = f
	}
	return c.searchPoints(ctx, reqBody, "dense search")
}

func (c *Client) searchSparse(ctx context.Context, query sparseVector, limit int, filters domain.SearchFilters) ([]scoredPoint, error) {
	reqBody := map[string]any{
		"vector": map[string]any{
			"name":   sparseVectorName,
			"vector": query,
		},
		"limit":        limit,
		"with_payload": true,
	}
	if f := filterClause(filters); f != nil {
		reqBody["filter"] = f
	}
	return c.searchPoints(ctx, reqBody, "sparse search")
}

func (c *Client) searchPoints(ctx context.Context, reqBody map[string]any, operation string) ([]scoredPoint, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal %s body: %w", operation, err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("qdrant %s status: %s", operation, resp.Status)
	}

	var searchResp struct {
		Result []scoredPoint `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", operation, err)
	}
	return searchResp.Result, nil
}

func filterClause(filters domain.SearchFilters) map[string]any {
	if len(filters) == 0 {
		return nil
	}
	must := make([]map[string]any, 0, len(filters))
	for key, value := range filters {
		must = append(must, map[string]any{
			"key":   key,
			"match": map[string]any{"value": value},
		})
	}
	return map[string]any{"must": must}
}

func entriesFromPoints(points []scoredPoint, sourceType string) []domain.RankedEntry {
	out := make([]domain.RankedEntry, 0, len(points))
	for i, point := range points {
		entry := domain.RankedEntry{
			DocID:      getStringPayload(point.Payload, "doc_id"),
			Score:      point.Score,
			Rank:       i + 1,
			Content:    getStringPayload(point.Payload, "text"),
			Section:    getStringPayload(point.Payload, "section"),
			SourceType: sourceType,
		}
		metadata := make(map[string]string, 4)
		for _, key := range []string{"title", "author", "published_at", "page"} {
			if v := getStringPayload(point.Payload, key); v != "" {
				metadata[key] = v
			}
		}
		if len(metadata) > 0 {
			entry.Metadata = metadata
		}
		out = append(out, entry)
	}
	return out
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
