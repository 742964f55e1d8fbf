package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/makr-code/VCC-Veritas-sub003/internal/core/domain"
	"github.com/makr-code/VCC-Veritas-sub003/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	scoreModel string
	embedModel string
	httpClient *http.Client
}

func New(baseURL, scoreModel, embedModel string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		scoreModel: scoreModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// Scorer grades candidate excerpts against a query with a local model.
// Responses are strict JSON; anything unparseable surfaces as an error
// so the caller can fall back to fused ordering.
type Scorer struct {
	client   *Client
	executor *resilience.Executor
}

func NewScorer(client *Client, executor *resilience.Executor) *Scorer {
	return &Scorer{client: client, executor: executor}
}

type scoreResponse struct {
	Scores     []float64 `json:"scores"`
	Confidence float64   `json:"confidence"`
}

func (s *Scorer) ScoreBatch(ctx context.Context, query string, excerpts []string, mode domain.ScoringMode) (domain.ExcerptScores, error) {
	if len(excerpts) == 0 {
		return domain.ExcerptScores{}, nil
	}

	prompt := buildScoringPrompt(query, excerpts, mode)

	var raw string
	call := func(ctx context.Context) error {
		var err error
		raw, err = s.client.generateJSON(ctx, prompt)
		return err
	}
	var err error
	if s.executor != nil {
		err = s.executor.Execute(ctx, "ollama_score", call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.ExcerptScores{}, wrapTemporaryIfNeeded("ollama_score", err)
	}

	var parsed scoreResponse
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &parsed); err != nil {
		return domain.ExcerptScores{}, fmt.Errorf("parse scoring json: %w", err)
	}
	if len(parsed.Scores) != len(excerpts) {
		return domain.ExcerptScores{}, fmt.Errorf("scorer returned %d scores for %d excerpts", len(parsed.Scores), len(excerpts))
	}
	return domain.ExcerptScores{Scores: parsed.Scores, Confidence: parsed.Confidence}, nil
}

type Embedder struct {
	client   *Client
	executor *resilience.Executor
}

func NewEmbedder(client *Client, executor *resilience.Executor) *Embedder {
	return &Embedder{client: client, executor: executor}
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	request := map[string]any{
		"model": e.client.embedModel,
		"input": []string{text},
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	call := func(ctx context.Context) error {
		return e.client.postJSON(ctx, "/api/embed", request, &response, "embed")
	}
	var err error
	if e.executor != nil {
		err = e.executor.Execute(ctx, "ollama_embed", call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded("ollama_embed", err)
	}
	if len(response.Embeddings) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return response.Embeddings[0], nil
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.scoreModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
