package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/makr-code/VCC-Veritas-sub003/internal/core/domain"
	"github.com/makr-code/VCC-Veritas-sub003/internal/core/ports"
)

// DefaultBatchParallelism caps concurrently running query pipelines.
const DefaultBatchParallelism = 8

// BatchScheduler runs independent query pipelines concurrently. One
// query's failure is converted into a degraded result for that query
// alone; sibling queries are never cancelled.
type BatchScheduler struct {
	search      ports.HybridSearchService
	parallelism int
	logger      *slog.Logger
	observer    Observer
}

func NewBatchScheduler(search ports.HybridSearchService, parallelism int, logger *slog.Logger, observer Observer) *BatchScheduler {
	if parallelism <= 0 {
		parallelism = DefaultBatchParallelism
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchScheduler{
		search:      search,
		parallelism: parallelism,
		logger:      logger,
		observer:    observerOrNop(observer),
	}
}

// BatchSearch returns exactly one result per input query, in input order.
func (s *BatchScheduler) BatchSearch(ctx context.Context, queries []domain.SearchQuery) []domain.FusedResult {
	results := make([]domain.FusedResult, len(queries))
	if len(queries) == 0 {
		return results
	}
	s.observer.BatchQueries(len(queries))

	var g errgroup.Group
	g.SetLimit(s.parallelism)
	for i, query := range queries {
		i, query := i, query
		g.Go(func() error {
			results[i] = s.runOne(ctx, query)
			return nil
		})
	}
	// Pipelines never return errors here; degradation is per result.
	_ = g.Wait()

	return results
}

func (s *BatchScheduler) runOne(ctx context.Context, query domain.SearchQuery) (out domain.FusedResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("batch_query_panic", "query", query.Text, "panic", fmt.Sprint(r))
			out = degradedResult(query)
		}
	}()

	fused, err := s.search.HybridSearch(ctx, query)
	if err != nil {
		s.logger.Warn("batch_query_degraded", "query", query.Text, "error", err)
		return degradedResult(query)
	}
	return *fused
}

func degradedResult(query domain.SearchQuery) domain.FusedResult {
	return domain.FusedResult{
		Query:       query.Text,
		Candidates:  []domain.DocumentCandidate{},
		MethodsUsed: []domain.RetrievalMethod{},
		Strategy:    query.Strategy,
		Degraded:    true,
	}
}
