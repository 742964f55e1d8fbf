package domain

import (
	"fmt"
	"strings"
	"time"
)

// RetrievalMethod names one retrieval modality behind the hybrid engine.
type RetrievalMethod string

const (
	MethodVector     RetrievalMethod = "vector"
	MethodGraph      RetrievalMethod = "graph"
	MethodRelational RetrievalMethod = "relational"
	MethodSparse     RetrievalMethod = "sparse"
)

// FusionStrategy selects how per-method ranked lists are combined.
type FusionStrategy string

const (
	StrategyRRF             FusionStrategy = "rrf"
	StrategyWeightedAverage FusionStrategy = "weighted_average"
	StrategyBorda           FusionStrategy = "borda"
)

// ParseFusionStrategy validates a caller-supplied strategy name.
// An empty value falls back to RRF; an unknown value is caller
// misconfiguration and surfaces as ErrInvalidStrategy.
func ParseFusionStrategy(raw string) (FusionStrategy, error) {
	switch FusionStrategy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", StrategyRRF:
		return StrategyRRF, nil
	case StrategyWeightedAverage:
		return StrategyWeightedAverage, nil
	case StrategyBorda:
		return StrategyBorda, nil
	default:
		return "", WrapError(ErrInvalidStrategy, "parse fusion strategy", fmt.Errorf("unknown strategy %q", raw))
	}
}

// ScoringMode selects what the contextual scorer is asked to judge.
type ScoringMode string

const (
	ModeRelevance       ScoringMode = "relevance"
	ModeInformativeness ScoringMode = "informativeness"
	ModeCombined        ScoringMode = "combined"
)

// ParseScoringMode validates a caller-supplied scoring mode.
func ParseScoringMode(raw string) (ScoringMode, error) {
	switch ScoringMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeCombined:
		return ModeCombined, nil
	case ModeRelevance:
		return ModeRelevance, nil
	case ModeInformativeness:
		return ModeInformativeness, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse scoring mode", fmt.Errorf("unknown scoring mode %q", raw))
	}
}

// SearchFilters carries opaque key-value constraints forwarded to backends.
type SearchFilters map[string]string

// SearchWeights is the explicit per-method weight configuration. A zero
// value means "caller supplied no weights" and resolves to equal weights
// across the methods actually in play.
type SearchWeights struct {
	Vector     float64 `json:"vector"`
	Graph      float64 `json:"graph"`
	Relational float64 `json:"relational"`
	Sparse     float64 `json:"sparse"`
}

func (w SearchWeights) For(method RetrievalMethod) float64 {
	switch method {
	case MethodVector:
		return w.Vector
	case MethodGraph:
		return w.Graph
	case MethodRelational:
		return w.Relational
	case MethodSparse:
		return w.Sparse
	default:
		return 0
	}
}

// IsZero reports whether no weight was supplied at all.
func (w SearchWeights) IsZero() bool {
	return w.Vector == 0 && w.Graph == 0 && w.Relational == 0 && w.Sparse == 0
}

// EqualWeights assigns 1/len(methods) to each given method.
func EqualWeights(methods []RetrievalMethod) SearchWeights {
	if len(methods) == 0 {
		return SearchWeights{}
	}
	share := 1.0 / float64(len(methods))
	var w SearchWeights
	for _, m := range methods {
		switch m {
		case MethodVector:
			w.Vector = share
		case MethodGraph:
			w.Graph = share
		case MethodRelational:
			w.Relational = share
		case MethodSparse:
			w.Sparse = share
		}
	}
	return w
}

// SearchQuery is one immutable retrieval request.
type SearchQuery struct {
	Text     string            `json:"text"`
	Filters  SearchFilters     `json:"filters,omitempty"`
	TopK     int               `json:"top_k"`
	Weights  SearchWeights     `json:"weights"`
	Strategy FusionStrategy    `json:"strategy"`
	Methods  []RetrievalMethod `json:"methods,omitempty"`
}

// RankedEntry is one row of a backend's ranked list. Rank is 1-based and
// contiguous within a BackendResult.
type RankedEntry struct {
	DocID      string            `json:"doc_id"`
	Score      float64           `json:"score"`
	Rank       int               `json:"rank"`
	Content    string            `json:"content,omitempty"`
	SourceType string            `json:"source_type,omitempty"`
	Section    string            `json:"section,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// BackendResult is the outcome of one backend call, successful or degraded.
// A failed call carries an empty Entries slice and a non-nil Err.
type BackendResult struct {
	Method        RetrievalMethod
	Entries       []RankedEntry
	ExecutionTime time.Duration
	Err           error
}

// Failed reports whether this backend contributed nothing due to an error.
func (r BackendResult) Failed() bool {
	return r.Err != nil
}

// RelevanceScore keeps per-facet scores, each in [0,1]. Hybrid is only
// populated after fusion. Zero means "absent", not "error".
type RelevanceScore struct {
	Semantic float64 `json:"semantic"`
	Keyword  float64 `json:"keyword"`
	Graph    float64 `json:"graph"`
	Hybrid   float64 `json:"hybrid"`
}

// DocumentCandidate is the deduplicated view of one document across
// backends. MethodScores holds the best raw score each method reported.
type DocumentCandidate struct {
	DocID        string                      `json:"doc_id"`
	Content      string                      `json:"content,omitempty"`
	SourceType   string                      `json:"source_type,omitempty"`
	Section      string                      `json:"section,omitempty"`
	Metadata     map[string]string           `json:"metadata,omitempty"`
	MethodScores map[RetrievalMethod]float64 `json:"method_scores"`
	FusedScore   float64                     `json:"fused_score"`
	Relevance    RelevanceScore              `json:"relevance"`
}

// Key is the normalized deduplication key. Documents that can denote
// multiple passages carry a section discriminator.
func (c DocumentCandidate) Key() string {
	if c.Section != "" {
		return c.DocID + "#" + c.Section
	}
	return c.DocID
}

// FusedResult is the terminal output of fusion for one query.
type FusedResult struct {
	Query         string              `json:"query"`
	Candidates    []DocumentCandidate `json:"candidates"`
	TotalCount    int                 `json:"total_count"`
	MethodsUsed   []RetrievalMethod   `json:"methods_used"`
	ExecutionTime time.Duration       `json:"execution_time"`
	Strategy      FusionStrategy      `json:"strategy"`
	Degraded      bool                `json:"degraded"`
}

// ExcerptScores is one contextual-scorer response for a batch of excerpts.
// Scores map 1:1 onto the submitted excerpts. Confidence 0 means the
// scorer reported none.
type ExcerptScores struct {
	Scores     []float64 `json:"scores"`
	Confidence float64   `json:"confidence"`
}

// SearchJob is an asynchronous batch-search request carried over the queue.
type SearchJob struct {
	ID      string        `json:"id"`
	Queries []SearchQuery `json:"queries"`
}

// RerankingResult is one candidate after the contextual scoring pass.
type RerankingResult struct {
	DocID         string            `json:"doc_id"`
	OriginalScore float64           `json:"original_score"`
	RerankedScore float64           `json:"reranked_score"`
	ScoreDelta    float64           `json:"score_delta"`
	Confidence    float64           `json:"confidence"`
	UsedFallback  bool              `json:"used_fallback"`
	Candidate     DocumentCandidate `json:"candidate"`
}
