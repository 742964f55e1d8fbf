package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/makr-code/VCC-Veritas-sub003/internal/core/domain"
	"github.com/makr-code/VCC-Veritas-sub003/internal/core/ports"
)

func newHybridUseCase(backends []ports.SearchBackend, cfg HybridSearchConfig, scorer ports.ContextualScorer, synonyms map[string][]string) *HybridSearchUseCase {
	return NewHybridSearchUseCase(
		backends,
		NewQueryExpander(synonyms),
		NewCoordinator(time.Second, nil, nil),
		NewFusionEngine(DefaultRRFK, nil),
		NewReranker(scorer, time.Second, nil, nil),
		cfg,
		nil,
	)
}

func TestHybridSearchRRFTopology(t *testing.T) {
	backends := []ports.SearchBackend{
		&fakeBackend{method: domain.MethodVector, entries: entriesFor("bgb-104", "bgb-106", "bgb-2", "famfg-9")},
		&fakeBackend{method: domain.MethodSparse, entries: entriesFor("bgb-106", "bgb-104", "jgg-3")},
		&fakeBackend{method: domain.MethodRelational, entries: entriesFor("bgb-2", "bgb-104")},
	}
	uc := newHybridUseCase(backends, HybridSearchConfig{}, nil, nil)

	fused, err := uc.HybridSearch(context.Background(), domain.SearchQuery{
		Text:     "BGB Minderjährige",
		TopK:     3,
		Strategy: domain.StrategyRRF,
	})
	if err != nil {
		t.Fatalf("hybrid search: %v", err)
	}

	// Hand-computed RRF (k=60, equal weights):
	//   bgb-104: 1/61 + 1/62 + 1/62
	//   bgb-106: 1/62 + 1/61
	//   bgb-2:   1/63 + 1/61
	want := []string{"bgb-104", "bgb-106", "bgb-2"}
	if len(fused.Candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(fused.Candidates))
	}
	for i, id := range want {
		if fused.Candidates[i].DocID != id {
			t.Fatalf("position %d = %s, want %s", i, fused.Candidates[i].DocID, id)
		}
	}
	if len(fused.MethodsUsed) != 3 {
		t.Fatalf("expected 3 methods used, got %v", fused.MethodsUsed)
	}
	if fused.Degraded {
		t.Fatal("no backend failed, result must not be degraded")
	}
	if fused.ExecutionTime <= 0 {
		t.Fatal("execution time not recorded")
	}
}

func TestHybridSearchAllBackendsFailedIsDegradedNotError(t *testing.T) {
	backends := []ports.SearchBackend{
		&fakeBackend{method: domain.MethodVector, err: errors.New("down")},
		&fakeBackend{method: domain.MethodGraph, err: errors.New("down")},
	}
	uc := newHybridUseCase(backends, HybridSearchConfig{}, nil, nil)

	fused, err := uc.HybridSearch(context.Background(), domain.SearchQuery{Text: "q"})
	if err != nil {
		t.Fatalf("all-backends failure must degrade, not error: %v", err)
	}
	if !fused.Degraded {
		t.Fatal("expected degraded result")
	}
	if len(fused.Candidates) != 0 {
		t.Fatalf("expected empty candidates, got %d", len(fused.Candidates))
	}
}

func TestHybridSearchInvalidStrategySurfaces(t *testing.T) {
	backends := []ports.SearchBackend{&fakeBackend{method: domain.MethodVector, entries: entriesFor("a")}}
	uc := newHybridUseCase(backends, HybridSearchConfig{}, nil, nil)

	_, err := uc.HybridSearch(context.Background(), domain.SearchQuery{Text: "q", Strategy: "cosine"})
	if !domain.IsKind(err, domain.ErrInvalidStrategy) {
		t.Fatalf("expected ErrInvalidStrategy, got %v", err)
	}
}

func TestHybridSearchEmptyQueryRejected(t *testing.T) {
	uc := newHybridUseCase([]ports.SearchBackend{&fakeBackend{method: domain.MethodVector}}, HybridSearchConfig{}, nil, nil)

	_, err := uc.HybridSearch(context.Background(), domain.SearchQuery{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestHybridSearchMethodSelection(t *testing.T) {
	vector := &fakeBackend{method: domain.MethodVector, entries: entriesFor("a")}
	graph := &fakeBackend{method: domain.MethodGraph, entries: entriesFor("b")}
	uc := newHybridUseCase([]ports.SearchBackend{vector, graph}, HybridSearchConfig{}, nil, nil)

	_, err := uc.HybridSearch(context.Background(), domain.SearchQuery{
		Text:    "q",
		Methods: []domain.RetrievalMethod{domain.MethodGraph},
	})
	if err != nil {
		t.Fatalf("hybrid search: %v", err)
	}
	graph.mu.Lock()
	graphCalls := graph.calls
	graph.mu.Unlock()
	vector.mu.Lock()
	vectorCalls := vector.calls
	vector.mu.Unlock()
	if graphCalls != 1 || vectorCalls != 0 {
		t.Fatalf("method selection ignored: graph=%d vector=%d", graphCalls, vectorCalls)
	}
}

func TestHybridSearchExpansionFansOutVariants(t *testing.T) {
	backend := &fakeBackend{method: domain.MethodSparse, entries: entriesFor("a")}
	cfg := HybridSearchConfig{ExpansionEnabled: true, MaxExpansions: 2}
	uc := newHybridUseCase([]ports.SearchBackend{backend}, cfg, nil, map[string][]string{
		"bauantrag": {"baugenehmigung"},
	})

	fused, err := uc.HybridSearch(context.Background(), domain.SearchQuery{Text: "Bauantrag Stuttgart"})
	if err != nil {
		t.Fatalf("hybrid search: %v", err)
	}
	backend.mu.Lock()
	calls := backend.calls
	backend.mu.Unlock()
	if calls != 2 {
		t.Fatalf("expected 2 variant calls, got %d", calls)
	}
	// Duplicate hits across variants collapse to one candidate.
	if len(fused.Candidates) != 1 {
		t.Fatalf("expected 1 candidate after variant merge, got %d", len(fused.Candidates))
	}
}

func TestHybridSearchRerankReorders(t *testing.T) {
	backends := []ports.SearchBackend{
		&fakeBackend{method: domain.MethodVector, entries: []domain.RankedEntry{
			{DocID: "first", Score: 0.9, Content: "first text"},
			{DocID: "second", Score: 0.8, Content: "second text"},
		}},
	}
	scorer := &fakeScorer{scores: map[string]float64{
		"first text":  0.2,
		"second text": 0.9,
	}}
	cfg := HybridSearchConfig{RerankEnabled: true}
	uc := newHybridUseCase(backends, cfg, scorer, nil)

	fused, err := uc.HybridSearch(context.Background(), domain.SearchQuery{Text: "q"})
	if err != nil {
		t.Fatalf("hybrid search: %v", err)
	}
	if fused.Candidates[0].DocID != "second" {
		t.Fatalf("rerank not applied, first candidate %s", fused.Candidates[0].DocID)
	}
	if fused.Candidates[0].Relevance.Hybrid != 0.9 {
		t.Fatalf("hybrid relevance = %f, want reranked 0.9", fused.Candidates[0].Relevance.Hybrid)
	}
}

func TestHybridSearchRerankFailureKeepsFusedOrder(t *testing.T) {
	backends := []ports.SearchBackend{
		&fakeBackend{method: domain.MethodVector, entries: entriesFor("first", "second")},
	}
	scorer := &fakeScorer{err: errors.New("scorer down")}
	cfg := HybridSearchConfig{RerankEnabled: true}
	uc := newHybridUseCase(backends, cfg, scorer, nil)

	fused, err := uc.HybridSearch(context.Background(), domain.SearchQuery{Text: "q"})
	if err != nil {
		t.Fatalf("rerank failure must not fail the request: %v", err)
	}
	if fused.Candidates[0].DocID != "first" || fused.Candidates[1].DocID != "second" {
		t.Fatalf("fused order not preserved on fallback: %v", candidateKeys(fused.Candidates))
	}
}
