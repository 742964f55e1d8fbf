package usecase

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/makr-code/VCC-Veritas-sub003/internal/core/domain"
	"github.com/makr-code/VCC-Veritas-sub003/internal/core/ports"
)

// Coordinator fans one query out to the selected backends concurrently and
// joins all results before returning. A backend that errors or times out
// contributes a degraded BackendResult with its Err field set; it never
// aborts the sibling calls or the overall request.
type Coordinator struct {
	timeoutPerBackend time.Duration
	logger            *slog.Logger
	observer          Observer
}

func NewCoordinator(timeoutPerBackend time.Duration, logger *slog.Logger, observer Observer) *Coordinator {
	if timeoutPerBackend <= 0 {
		timeoutPerBackend = 300 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		timeoutPerBackend: timeoutPerBackend,
		logger:            logger,
		observer:          observerOrNop(observer),
	}
}

// Search issues one call per backend. The returned slice has exactly one
// entry per backend, in backend order, success or degraded.
func (c *Coordinator) Search(
	ctx context.Context,
	backends []ports.SearchBackend,
	query string,
	topK int,
	filters domain.SearchFilters,
) []domain.BackendResult {
	results := make([]domain.BackendResult, len(backends))

	var wg sync.WaitGroup
	for i, backend := range backends {
		wg.Add(1)
		go func(i int, backend ports.SearchBackend) {
			defer wg.Done()
			results[i] = c.searchOne(ctx, backend, query, topK, filters)
		}(i, backend)
	}
	wg.Wait()

	return results
}

func (c *Coordinator) searchOne(
	ctx context.Context,
	backend ports.SearchBackend,
	query string,
	topK int,
	filters domain.SearchFilters,
) domain.BackendResult {
	callCtx, cancel := context.WithTimeout(ctx, c.timeoutPerBackend)
	defer cancel()

	start := time.Now()
	entries, err := backend.Search(callCtx, query, topK, filters)
	elapsed := time.Since(start)

	method := backend.Method()
	if err != nil {
		c.logger.Warn("backend_search_degraded",
			"method", string(method),
			"elapsed_ms", elapsed.Milliseconds(),
			"error", err,
		)
		c.observer.BackendSearch(method, "error", elapsed)
		return domain.BackendResult{
			Method:        method,
			ExecutionTime: elapsed,
			Err:           domain.WrapError(domain.ErrBackendUnavailable, "backend "+string(method), err),
		}
	}

	normalizeRanks(entries)
	c.observer.BackendSearch(method, "ok", elapsed)
	return domain.BackendResult{
		Method:        method,
		Entries:       entries,
		ExecutionTime: elapsed,
	}
}

// normalizeRanks enforces 1-based contiguous ranks in list order, whatever
// the backend reported.
func normalizeRanks(entries []domain.RankedEntry) {
	for i := range entries {
		entries[i].Rank = i + 1
	}
}

// mergeVariantResults collapses per-variant fan-out results into one
// BackendResult per method: best raw score wins per document, the merged
// list is re-sorted by score and re-ranked. A method is reported failed
// only when every variant failed for it.
func mergeVariantResults(perVariant [][]domain.BackendResult) []domain.BackendResult {
	if len(perVariant) == 1 {
		return perVariant[0]
	}

	type methodAcc struct {
		method   domain.RetrievalMethod
		best     map[string]domain.RankedEntry
		elapsed  time.Duration
		failures int
		calls    int
		firstErr error
	}

	order := make([]domain.RetrievalMethod, 0, 4)
	byMethod := make(map[domain.RetrievalMethod]*methodAcc, 4)

	for _, results := range perVariant {
		for _, result := range results {
			acc, ok := byMethod[result.Method]
			if !ok {
				acc = &methodAcc{method: result.Method, best: make(map[string]domain.RankedEntry)}
				byMethod[result.Method] = acc
				order = append(order, result.Method)
			}
			acc.calls++
			if result.ExecutionTime > acc.elapsed {
				acc.elapsed = result.ExecutionTime
			}
			if result.Failed() {
				acc.failures++
				if acc.firstErr == nil {
					acc.firstErr = result.Err
				}
				continue
			}
			for _, entry := range result.Entries {
				key := entryKey(entry)
				if current, ok := acc.best[key]; !ok || entry.Score > current.Score {
					acc.best[key] = entry
				}
			}
		}
	}

	merged := make([]domain.BackendResult, 0, len(order))
	for _, method := range order {
		acc := byMethod[method]
		if acc.failures == acc.calls && acc.calls > 0 {
			merged = append(merged, domain.BackendResult{
				Method:        method,
				ExecutionTime: acc.elapsed,
				Err:           acc.firstErr,
			})
			continue
		}

		entries := make([]domain.RankedEntry, 0, len(acc.best))
		for _, entry := range acc.best {
			entries = append(entries, entry)
		}
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].Score != entries[j].Score {
				return entries[i].Score > entries[j].Score
			}
			return entryKey(entries[i]) < entryKey(entries[j])
		})
		normalizeRanks(entries)
		merged = append(merged, domain.BackendResult{
			Method:        method,
			Entries:       entries,
			ExecutionTime: acc.elapsed,
		})
	}
	return merged
}

func entryKey(entry domain.RankedEntry) string {
	if entry.Section != "" {
		return entry.DocID + "#" + entry.Section
	}
	return entry.DocID
}
