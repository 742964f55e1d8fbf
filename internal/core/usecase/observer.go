package usecase

import (
	"time"

	"github.com/makr-code/VCC-Veritas-sub003/internal/core/domain"
)

// Observer receives retrieval pipeline events for instrumentation.
// Implementations must be safe for concurrent use.
type Observer interface {
	BackendSearch(method domain.RetrievalMethod, outcome string, elapsed time.Duration)
	FusionDone(strategy domain.FusionStrategy, candidates int, degraded bool)
	RerankBatch(fallback bool)
	BatchQueries(n int)
}

type nopObserver struct{}

func (nopObserver) BackendSearch(domain.RetrievalMethod, string, time.Duration) {}
func (nopObserver) FusionDone(domain.FusionStrategy, int, bool)                 {}
func (nopObserver) RerankBatch(bool)                                            {}
func (nopObserver) BatchQueries(int)                                            {}

func observerOrNop(o Observer) Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}
