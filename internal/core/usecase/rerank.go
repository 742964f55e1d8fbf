package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/makr-code/VCC-Veritas-sub003/internal/core/domain"
	"github.com/makr-code/VCC-Veritas-sub003/internal/core/ports"
)

// DefaultRerankBatchSize bounds one contextual-scorer call.
const DefaultRerankBatchSize = 5

// Reranker runs the optional second scoring pass over fused candidates.
// Every batch is independent: a failing batch falls back to its pre-rerank
// scores with UsedFallback set and never fails the overall request.
type Reranker struct {
	scorer       ports.ContextualScorer
	batchTimeout time.Duration
	logger       *slog.Logger
	observer     Observer
}

func NewReranker(scorer ports.ContextualScorer, batchTimeout time.Duration, logger *slog.Logger, observer Observer) *Reranker {
	if batchTimeout <= 0 {
		batchTimeout = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reranker{
		scorer:       scorer,
		batchTimeout: batchTimeout,
		logger:       logger,
		observer:     observerOrNop(observer),
	}
}

// Rerank scores candidates in concurrent batches of batchSize and orders
// the merged list by reranked score descending, ties keeping the incoming
// fused order. Output is capped at topK when topK > 0.
func (r *Reranker) Rerank(
	ctx context.Context,
	query string,
	candidates []domain.DocumentCandidate,
	topK, batchSize int,
	mode domain.ScoringMode,
) ([]domain.RerankingResult, error) {
	switch mode {
	case "":
		mode = domain.ModeCombined
	case domain.ModeRelevance, domain.ModeInformativeness, domain.ModeCombined:
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "rerank", fmt.Errorf("unknown scoring mode %q", mode))
	}
	if len(candidates) == 0 {
		return []domain.RerankingResult{}, nil
	}
	if batchSize <= 0 {
		batchSize = DefaultRerankBatchSize
	}

	results := make([]domain.RerankingResult, len(candidates))

	var wg sync.WaitGroup
	for start := 0; start < len(candidates); start += batchSize {
		end := start + batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			r.scoreBatch(ctx, query, candidates[start:end], results[start:end], mode)
		}(start, end)
	}
	wg.Wait()

	// Stable sort: input order is the fused order, so equal scores keep it.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RerankedScore > results[j].RerankedScore
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (r *Reranker) scoreBatch(
	ctx context.Context,
	query string,
	batch []domain.DocumentCandidate,
	out []domain.RerankingResult,
	mode domain.ScoringMode,
) {
	excerpts := make([]string, len(batch))
	for i, candidate := range batch {
		if candidate.Content != "" {
			excerpts[i] = candidate.Content
		} else {
			excerpts[i] = candidate.DocID
		}
	}

	scores, err := r.callScorer(ctx, query, excerpts, mode)
	if err != nil {
		r.logger.Warn("rerank_batch_fallback", "batch_size", len(batch), "error", err)
		r.observer.RerankBatch(true)
		for i, candidate := range batch {
			out[i] = fallbackResult(candidate)
		}
		return
	}

	confidence := scores.Confidence
	if confidence == 0 {
		confidence = 1.0
	}
	r.observer.RerankBatch(false)
	for i, candidate := range batch {
		out[i] = domain.RerankingResult{
			DocID:         candidate.DocID,
			OriginalScore: candidate.FusedScore,
			RerankedScore: scores.Scores[i],
			ScoreDelta:    scores.Scores[i] - candidate.FusedScore,
			Confidence:    confidence,
			Candidate:     candidate,
		}
	}
}

func (r *Reranker) callScorer(
	ctx context.Context,
	query string,
	excerpts []string,
	mode domain.ScoringMode,
) (domain.ExcerptScores, error) {
	if r.scorer == nil {
		return domain.ExcerptScores{}, fmt.Errorf("no contextual scorer configured")
	}

	callCtx, cancel := context.WithTimeout(ctx, r.batchTimeout)
	defer cancel()

	scores, err := r.scorer.ScoreBatch(callCtx, query, excerpts, mode)
	if err != nil {
		return domain.ExcerptScores{}, err
	}
	if len(scores.Scores) != len(excerpts) {
		return domain.ExcerptScores{}, fmt.Errorf("scorer returned %d scores for %d excerpts", len(scores.Scores), len(excerpts))
	}
	for _, score := range scores.Scores {
		if score < 0 || score > 1 {
			return domain.ExcerptScores{}, fmt.Errorf("scorer returned out-of-range score %f", score)
		}
	}
	return scores, nil
}

func fallbackResult(candidate domain.DocumentCandidate) domain.RerankingResult {
	return domain.RerankingResult{
		DocID:         candidate.DocID,
		OriginalScore: candidate.FusedScore,
		RerankedScore: candidate.FusedScore,
		ScoreDelta:    0,
		Confidence:    0,
		UsedFallback:  true,
		Candidate:     candidate,
	}
}
