package usecase

import (
	"fmt"
	"sort"

	"github.com/makr-code/VCC-Veritas-sub003/internal/core/domain"
)

// DefaultRRFK is the reciprocal rank fusion constant (Cormack et al. 2009).
const DefaultRRFK = 60

// FusionEngine combines deduplicated per-backend ranked lists into one
// ordered list using an interchangeable strategy.
type FusionEngine struct {
	rrfK     int
	observer Observer
}

func NewFusionEngine(rrfK int, observer Observer) *FusionEngine {
	if rrfK <= 0 {
		rrfK = DefaultRRFK
	}
	return &FusionEngine{rrfK: rrfK, observer: observerOrNop(observer)}
}

// Fuse scores the deduplicated candidates of results under the given
// strategy and returns them ordered, capped at topK. An unknown strategy
// is the one caller error this engine surfaces; everything else degrades.
func (f *FusionEngine) Fuse(
	query string,
	results []domain.BackendResult,
	weights domain.SearchWeights,
	strategy domain.FusionStrategy,
	topK int,
) (*domain.FusedResult, error) {
	switch strategy {
	case "", domain.StrategyRRF:
		strategy = domain.StrategyRRF
	case domain.StrategyWeightedAverage, domain.StrategyBorda:
	default:
		return nil, domain.WrapError(domain.ErrInvalidStrategy, "fuse", fmt.Errorf("unknown strategy %q", strategy))
	}

	if weights.IsZero() {
		methods := make([]domain.RetrievalMethod, 0, len(results))
		for _, r := range results {
			methods = append(methods, r.Method)
		}
		weights = domain.EqualWeights(methods)
	}

	candidates := Dedupe(results)
	ranks, listSizes := rankIndex(results)

	degraded := false
	methodsUsed := make([]domain.RetrievalMethod, 0, len(results))
	for _, r := range results {
		if r.Failed() {
			degraded = true
			continue
		}
		if len(r.Entries) > 0 {
			methodsUsed = append(methodsUsed, r.Method)
		}
	}

	for i := range candidates {
		key := candidates[i].Key()
		var score float64
		for method, methodRanks := range ranks {
			weight := weights.For(method)
			rank, ok := methodRanks[key]
			if !ok {
				continue
			}
			switch strategy {
			case domain.StrategyRRF:
				score += weight * (1.0 / float64(f.rrfK+rank))
			case domain.StrategyWeightedAverage:
				score += weight * candidates[i].MethodScores[method]
			case domain.StrategyBorda:
				score += weight * float64(listSizes[method]-rank)
			}
		}
		candidates[i].FusedScore = score
	}

	sortCandidates(candidates)

	totalCount := len(candidates)
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}

	fillRelevance(candidates)
	f.observer.FusionDone(strategy, len(candidates), degraded)

	return &domain.FusedResult{
		Query:       query,
		Candidates:  candidates,
		TotalCount:  totalCount,
		MethodsUsed: methodsUsed,
		Strategy:    strategy,
		Degraded:    degraded,
	}, nil
}

// rankIndex maps each method to candidate-key -> 1-based rank, plus the
// number of entries each method returned (Borda's N).
func rankIndex(results []domain.BackendResult) (map[domain.RetrievalMethod]map[string]int, map[domain.RetrievalMethod]int) {
	ranks := make(map[domain.RetrievalMethod]map[string]int, len(results))
	sizes := make(map[domain.RetrievalMethod]int, len(results))
	for _, result := range results {
		if result.Failed() || len(result.Entries) == 0 {
			continue
		}
		methodRanks := make(map[string]int, len(result.Entries))
		for _, entry := range result.Entries {
			key := entryKey(entry)
			if _, ok := methodRanks[key]; !ok {
				methodRanks[key] = entry.Rank
			}
		}
		ranks[result.Method] = methodRanks
		sizes[result.Method] = len(result.Entries)
	}
	return ranks, sizes
}

// sortCandidates orders by fused score descending with deterministic
// tie-breaks: best single-method raw score, then lexicographic key. Map
// iteration order never leaks into the result.
func sortCandidates(candidates []domain.DocumentCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].FusedScore != candidates[j].FusedScore {
			return candidates[i].FusedScore > candidates[j].FusedScore
		}
		bi, bj := bestMethodScore(candidates[i]), bestMethodScore(candidates[j])
		if bi != bj {
			return bi > bj
		}
		return candidates[i].Key() < candidates[j].Key()
	})
}

func bestMethodScore(candidate domain.DocumentCandidate) float64 {
	best := 0.0
	for _, score := range candidate.MethodScores {
		if score > best {
			best = score
		}
	}
	return best
}

// fillRelevance populates the per-facet relevance view. Hybrid is the
// fused score scaled into [0,1] against the best candidate of the result.
func fillRelevance(candidates []domain.DocumentCandidate) {
	if len(candidates) == 0 {
		return
	}
	maxScore := candidates[0].FusedScore
	for i := range candidates {
		c := &candidates[i]
		c.Relevance.Semantic = c.MethodScores[domain.MethodVector]
		c.Relevance.Graph = c.MethodScores[domain.MethodGraph]
		c.Relevance.Keyword = c.MethodScores[domain.MethodRelational]
		if sparse := c.MethodScores[domain.MethodSparse]; sparse > c.Relevance.Keyword {
			c.Relevance.Keyword = sparse
		}
		if maxScore > 0 {
			c.Relevance.Hybrid = c.FusedScore / maxScore
		}
	}
}
