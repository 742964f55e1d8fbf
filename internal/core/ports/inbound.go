package ports

import (
	"context"

	"github.com/makr-code/VCC-Veritas-sub003/internal/core/domain"
)

// QueryExpansion is the inbound contract for synonym-based query expansion.
type QueryExpansion interface {
	Expand(query string, maxExpansions int, includeOriginal bool) []string
}

// HybridSearchService is the inbound contract for single-query hybrid
// retrieval. The returned result is degraded, never an error, when some or
// all backends fail; only caller misconfiguration surfaces as an error.
type HybridSearchService interface {
	HybridSearch(ctx context.Context, query domain.SearchQuery) (*domain.FusedResult, error)
}

// BatchSearchService runs many queries concurrently with per-query
// failure isolation and order-preserving results.
type BatchSearchService interface {
	BatchSearch(ctx context.Context, queries []domain.SearchQuery) []domain.FusedResult
}

// RerankService rescores an already-fused candidate list.
type RerankService interface {
	Rerank(ctx context.Context, query string, candidates []domain.DocumentCandidate, topK, batchSize int, mode domain.ScoringMode) ([]domain.RerankingResult, error)
}
