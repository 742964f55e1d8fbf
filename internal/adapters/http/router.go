// Package httpadapter exposes the retrieval pipeline over HTTP.
package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/makr-code/VCC-Veritas-sub003/internal/core/domain"
	"github.com/makr-code/VCC-Veritas-sub003/internal/core/ports"
)

type Router struct {
	search ports.HybridSearchService
	batch  ports.BatchSearchService
	rerank ports.RerankService
	expand ports.QueryExpansion
	queue  ports.SearchJobQueue

	metricsHandler http.Handler

	rateLimitRPS     float64
	rateLimitBurst   int
	maxConcurrent    int
	backpressureWait time.Duration
}

type Options struct {
	Queue          ports.SearchJobQueue
	MetricsHandler http.Handler

	RateLimitRPS     float64
	RateLimitBurst   int
	MaxConcurrent    int
	BackpressureWait time.Duration
}

func NewRouter(
	search ports.HybridSearchService,
	batch ports.BatchSearchService,
	rerank ports.RerankService,
	expand ports.QueryExpansion,
	options Options,
) *Router {
	return &Router{
		search:           search,
		batch:            batch,
		rerank:           rerank,
		expand:           expand,
		queue:            options.Queue,
		metricsHandler:   options.MetricsHandler,
		rateLimitRPS:     options.RateLimitRPS,
		rateLimitBurst:   options.RateLimitBurst,
		maxConcurrent:    options.MaxConcurrent,
		backpressureWait: options.BackpressureWait,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/search", rt.hybridSearch)
	mux.HandleFunc("/v1/search/batch", rt.batchSearch)
	mux.HandleFunc("/v1/expand", rt.expandQuery)
	mux.HandleFunc("/v1/rerank", rt.rerankCandidates)
	if rt.metricsHandler != nil {
		mux.Handle("/metrics", rt.metricsHandler)
	}

	var handler http.Handler = mux
	if rt.maxConcurrent > 0 {
		handler = backpressureMiddleware(handler, rt.maxConcurrent, rt.backpressureWait)
	}
	if rt.rateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	}
	handler = accessLogMiddleware(handler)
	handler = recoveryMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type searchRequest struct {
	Query    string                `json:"query"`
	TopK     int                   `json:"top_k"`
	Filters  map[string]string     `json:"filters"`
	Strategy string                `json:"strategy"`
	Methods  []string              `json:"methods"`
	Weights  *domain.SearchWeights `json:"weights"`
}

func (req searchRequest) toQuery() (domain.SearchQuery, error) {
	strategy, err := domain.ParseFusionStrategy(req.Strategy)
	if err != nil {
		return domain.SearchQuery{}, err
	}
	methods, err := parseMethods(req.Methods)
	if err != nil {
		return domain.SearchQuery{}, err
	}

	query := domain.SearchQuery{
		Text:     strings.TrimSpace(req.Query),
		Filters:  req.Filters,
		TopK:     req.TopK,
		Strategy: strategy,
		Methods:  methods,
	}
	if req.Weights != nil {
		query.Weights = *req.Weights
	}
	return query, nil
}

func (rt *Router) hybridSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	query, err := req.toQuery()
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := rt.search.HybridSearch(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type batchRequest struct {
	Queries []searchRequest `json:"queries"`
	Async   bool            `json:"async"`
}

func (rt *Router) batchSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.Queries) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "queries are required"})
		return
	}

	queries := make([]domain.SearchQuery, 0, len(req.Queries))
	for _, q := range req.Queries {
		if strings.TrimSpace(q.Query) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "every query needs text"})
			return
		}
		parsed, err := q.toQuery()
		if err != nil {
			writeError(w, err)
			return
		}
		queries = append(queries, parsed)
	}

	if req.Async {
		if rt.queue == nil {
			writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "async batch search is not configured"})
			return
		}
		job := domain.SearchJob{ID: uuid.NewString(), Queries: queries}
		if err := rt.queue.PublishJob(r.Context(), job); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
		return
	}

	results := rt.batch.BatchSearch(r.Context(), queries)
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

type expandRequest struct {
	Query           string `json:"query"`
	MaxExpansions   int    `json:"max_expansions"`
	IncludeOriginal *bool  `json:"include_original"`
}

func (rt *Router) expandQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req expandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}
	if req.MaxExpansions <= 0 {
		req.MaxExpansions = 3
	}
	includeOriginal := true
	if req.IncludeOriginal != nil {
		includeOriginal = *req.IncludeOriginal
	}

	variants := rt.expand.Expand(req.Query, req.MaxExpansions, includeOriginal)
	writeJSON(w, http.StatusOK, map[string]any{"variants": variants})
}

type rerankRequest struct {
	Query      string                     `json:"query"`
	Candidates []domain.DocumentCandidate `json:"candidates"`
	TopK       int                        `json:"top_k"`
	BatchSize  int                        `json:"batch_size"`
	Mode       string                     `json:"mode"`
}

func (rt *Router) rerankCandidates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req rerankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	mode, err := domain.ParseScoringMode(req.Mode)
	if err != nil {
		writeError(w, err)
		return
	}

	results, err := rt.rerank.Rerank(r.Context(), req.Query, req.Candidates, req.TopK, req.BatchSize, mode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func parseMethods(raw []string) ([]domain.RetrievalMethod, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]domain.RetrievalMethod, 0, len(raw))
	for _, name := range raw {
		method := domain.RetrievalMethod(strings.ToLower(strings.TrimSpace(name)))
		switch method {
		case domain.MethodVector, domain.MethodGraph, domain.MethodRelational, domain.MethodSparse:
			out = append(out, method)
		default:
			return nil, domain.WrapError(domain.ErrInvalidInput, "parse retrieval methods", errUnknownMethod(name))
		}
	}
	return out, nil
}

type errUnknownMethod string

func (e errUnknownMethod) Error() string { return "unknown retrieval method " + string(e) }

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
