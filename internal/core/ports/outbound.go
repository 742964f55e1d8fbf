package ports

import (
	"context"

	"github.com/makr-code/VCC-Veritas-sub003/internal/core/domain"
)

// SearchBackend is the contract every retrieval modality implements.
// A backend returns a ranked list with 1-based contiguous ranks, or a
// non-nil error and an empty list on internal failure. Timeouts are the
// caller's responsibility via ctx.
type SearchBackend interface {
	Method() domain.RetrievalMethod
	Search(ctx context.Context, query string, topK int, filters domain.SearchFilters) ([]domain.RankedEntry, error)
}

// ContextualScorer judges a batch of candidate excerpts against a query.
// Scores map 1:1 onto excerpts and lie in [0,1]. Confidence is the
// scorer's self-reported confidence; 0 means "not supplied".
type ContextualScorer interface {
	ScoreBatch(ctx context.Context, query string, excerpts []string, mode domain.ScoringMode) (domain.ExcerptScores, error)
}

// Embedder turns query text into a dense vector for the semantic backend.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SearchJobQueue carries asynchronous batch-search jobs between the API
// and the worker.
type SearchJobQueue interface {
	PublishJob(ctx context.Context, job domain.SearchJob) error
	SubscribeJobs(ctx context.Context, handler func(context.Context, domain.SearchJob) error) error
	PublishResult(ctx context.Context, jobID string, results []domain.FusedResult) error
}
