package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/makr-code/VCC-Veritas-sub003/internal/core/domain"
	"github.com/makr-code/VCC-Veritas-sub003/internal/core/ports"
)

// HybridSearchConfig carries the per-deployment retrieval defaults.
type HybridSearchConfig struct {
	DefaultTopK      int
	DefaultStrategy  domain.FusionStrategy
	ExpansionEnabled bool
	MaxExpansions    int
	RerankEnabled    bool
	RerankTopN       int
	RerankBatchSize  int
	RerankMode       domain.ScoringMode
}

func (c HybridSearchConfig) normalize() HybridSearchConfig {
	out := c
	if out.DefaultTopK <= 0 {
		out.DefaultTopK = 10
	}
	if out.DefaultStrategy == "" {
		out.DefaultStrategy = domain.StrategyRRF
	}
	if out.MaxExpansions < 0 {
		out.MaxExpansions = 0
	}
	if out.RerankBatchSize <= 0 {
		out.RerankBatchSize = DefaultRerankBatchSize
	}
	if out.RerankMode == "" {
		out.RerankMode = domain.ModeCombined
	}
	return out
}

// HybridSearchUseCase wires expansion, fan-out, fusion and the optional
// rerank pass into the single-query retrieval pipeline.
type HybridSearchUseCase struct {
	backends    []ports.SearchBackend
	expander    *QueryExpander
	coordinator *Coordinator
	fusion      *FusionEngine
	reranker    *Reranker
	cfg         HybridSearchConfig
	logger      *slog.Logger
}

func NewHybridSearchUseCase(
	backends []ports.SearchBackend,
	expander *QueryExpander,
	coordinator *Coordinator,
	fusion *FusionEngine,
	reranker *Reranker,
	cfg HybridSearchConfig,
	logger *slog.Logger,
) *HybridSearchUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridSearchUseCase{
		backends:    backends,
		expander:    expander,
		coordinator: coordinator,
		fusion:      fusion,
		reranker:    reranker,
		cfg:         cfg.normalize(),
		logger:      logger,
	}
}

// Expand exposes synonym-based query expansion.
func (uc *HybridSearchUseCase) Expand(query string, maxExpansions int, includeOriginal bool) []string {
	return uc.expander.Expand(query, maxExpansions, includeOriginal)
}

// Rerank exposes the contextual rescoring pass over caller-supplied
// candidates.
func (uc *HybridSearchUseCase) Rerank(
	ctx context.Context,
	query string,
	candidates []domain.DocumentCandidate,
	topK, batchSize int,
	mode domain.ScoringMode,
) ([]domain.RerankingResult, error) {
	return uc.reranker.Rerank(ctx, query, candidates, topK, batchSize, mode)
}

// HybridSearch runs the full pipeline for one query. Backend failures
// degrade the result; only caller misconfiguration returns an error.
func (uc *HybridSearchUseCase) HybridSearch(ctx context.Context, query domain.SearchQuery) (*domain.FusedResult, error) {
	if query.Text == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "hybrid search", fmt.Errorf("empty query text"))
	}
	strategy := query.Strategy
	if strategy == "" {
		strategy = uc.cfg.DefaultStrategy
	}

	topK := query.TopK
	if topK <= 0 {
		topK = uc.cfg.DefaultTopK
	}

	backends := uc.selectBackends(query.Methods)
	if len(backends) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "hybrid search", fmt.Errorf("no backend matches requested methods"))
	}

	start := time.Now()

	variants := []string{query.Text}
	if uc.cfg.ExpansionEnabled && uc.cfg.MaxExpansions > 0 {
		variants = uc.expander.Expand(query.Text, uc.cfg.MaxExpansions, true)
	}

	perVariant := make([][]domain.BackendResult, len(variants))
	var wg sync.WaitGroup
	for i, variant := range variants {
		wg.Add(1)
		go func(i int, variant string) {
			defer wg.Done()
			perVariant[i] = uc.coordinator.Search(ctx, backends, variant, topK, query.Filters)
		}(i, variant)
	}
	wg.Wait()

	merged := mergeVariantResults(perVariant)

	fused, err := uc.fusion.Fuse(query.Text, merged, query.Weights, strategy, topK)
	if err != nil {
		return nil, err
	}
	fused.ExecutionTime = time.Since(start)

	if fused.Degraded && len(fused.MethodsUsed) == 0 {
		uc.logger.Warn("all_backends_degraded", "query", query.Text)
	}

	if uc.cfg.RerankEnabled && uc.reranker != nil && len(fused.Candidates) > 0 {
		uc.applyRerank(ctx, fused, topK)
		fused.ExecutionTime = time.Since(start)
	}

	return fused, nil
}

// applyRerank reorders the fused candidates by the contextual-scorer pass.
// Rerank degrades internally; it never fails the request.
func (uc *HybridSearchUseCase) applyRerank(ctx context.Context, fused *domain.FusedResult, topK int) {
	topN := uc.cfg.RerankTopN
	if topN <= 0 || topN > len(fused.Candidates) {
		topN = len(fused.Candidates)
	}

	reranked, err := uc.reranker.Rerank(ctx, fused.Query, fused.Candidates[:topN], topN, uc.cfg.RerankBatchSize, uc.cfg.RerankMode)
	if err != nil {
		// Only invalid input reaches here; keep the fused order.
		uc.logger.Warn("rerank_skipped", "query", fused.Query, "error", err)
		return
	}

	out := make([]domain.DocumentCandidate, 0, len(fused.Candidates))
	for _, r := range reranked {
		candidate := r.Candidate
		if !r.UsedFallback {
			candidate.Relevance.Hybrid = r.RerankedScore
		}
		out = append(out, candidate)
	}
	out = append(out, fused.Candidates[topN:]...)
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	fused.Candidates = out
}

func (uc *HybridSearchUseCase) selectBackends(methods []domain.RetrievalMethod) []ports.SearchBackend {
	if len(methods) == 0 {
		return uc.backends
	}
	wanted := make(map[domain.RetrievalMethod]struct{}, len(methods))
	for _, m := range methods {
		wanted[m] = struct{}{}
	}
	selected := make([]ports.SearchBackend, 0, len(methods))
	for _, backend := range uc.backends {
		if _, ok := wanted[backend.Method()]; ok {
			selected = append(selected, backend)
		}
	}
	return selected
}
