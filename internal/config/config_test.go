package config

import (
	"testing"
	"time"
)

func TestLoadRetrievalDefaults(t *testing.T) {
	t.Setenv("SEARCH_TOP_K", "")
	t.Setenv("SEARCH_FUSION_STRATEGY", "")
	t.Setenv("SEARCH_FUSION_RRF_K", "")
	t.Setenv("SEARCH_BACKEND_TIMEOUT", "")
	t.Setenv("RERANK_TOP_N", "")

	cfg := Load()
	if cfg.SearchTopK != 10 {
		t.Fatalf("expected default top k 10, got %d", cfg.SearchTopK)
	}
	if cfg.SearchFusionStrategy != "rrf" {
		t.Fatalf("expected default fusion strategy rrf, got %q", cfg.SearchFusionStrategy)
	}
	if cfg.SearchFusionRRFK != 60 {
		t.Fatalf("expected default rrf k 60, got %d", cfg.SearchFusionRRFK)
	}
	if cfg.SearchBackendTimeout != 300*time.Millisecond {
		t.Fatalf("expected default backend timeout 300ms, got %v", cfg.SearchBackendTimeout)
	}
	if cfg.RerankTopN != 20 {
		t.Fatalf("expected default rerank top n 20, got %d", cfg.RerankTopN)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("SEARCH_FUSION_STRATEGY", "borda")
	t.Setenv("SEARCH_FUSION_RRF_K", "75")
	t.Setenv("SEARCH_BACKEND_TIMEOUT", "500ms")
	t.Setenv("RERANK_ENABLED", "true")
	t.Setenv("BATCH_PARALLELISM", "16")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")

	cfg := Load()
	if cfg.SearchFusionStrategy != "borda" {
		t.Fatalf("expected fusion strategy override, got %q", cfg.SearchFusionStrategy)
	}
	if cfg.SearchFusionRRFK != 75 {
		t.Fatalf("expected rrf k 75, got %d", cfg.SearchFusionRRFK)
	}
	if cfg.SearchBackendTimeout != 500*time.Millisecond {
		t.Fatalf("expected backend timeout 500ms, got %v", cfg.SearchBackendTimeout)
	}
	if !cfg.RerankEnabled {
		t.Fatalf("expected rerank enabled")
	}
	if cfg.BatchParallelism != 16 {
		t.Fatalf("expected batch parallelism 16, got %d", cfg.BatchParallelism)
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rate limit 2.5, got %v", cfg.APIRateLimitRPS)
	}
}

func TestLoadFallsBackOnMalformedValues(t *testing.T) {
	t.Setenv("SEARCH_TOP_K", "many")
	t.Setenv("SEARCH_BACKEND_TIMEOUT", "soon")
	t.Setenv("BREAKER_FAILURE_RATE", "half")

	cfg := Load()
	if cfg.SearchTopK != 10 {
		t.Fatalf("expected fallback top k 10, got %d", cfg.SearchTopK)
	}
	if cfg.SearchBackendTimeout != 300*time.Millisecond {
		t.Fatalf("expected fallback timeout, got %v", cfg.SearchBackendTimeout)
	}
	if cfg.BreakerFailureRate != 0.5 {
		t.Fatalf("expected fallback failure rate 0.5, got %v", cfg.BreakerFailureRate)
	}
}
