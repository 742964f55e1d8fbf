package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/makr-code/VCC-Veritas-sub003/internal/core/domain"
)

// HTTPServerMetrics carries the API-side instrumentation: standard HTTP
// request counters plus the retrieval pipeline observations the
// usecases emit through usecase.Observer.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	backendSearchTotal    *prometheus.CounterVec
	backendSearchDuration *prometheus.HistogramVec
	fusionTotal           *prometheus.CounterVec
	fusionCandidates      *prometheus.HistogramVec
	rerankBatchTotal      *prometheus.CounterVec
	batchQueries          *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "veritas",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "veritas",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "veritas",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	backendSearchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "veritas",
			Subsystem: "search",
			Name:      "backend_requests_total",
			Help:      "Total backend searches by retrieval method and outcome.",
		},
		[]string{"service", "method", "outcome"},
	)
	backendSearchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "veritas",
			Subsystem: "search",
			Name:      "backend_duration_seconds",
			Help:      "Backend search duration in seconds by retrieval method.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.2, 0.3, 0.5, 1, 2},
		},
		[]string{"service", "method"},
	)
	fusionTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "veritas",
			Subsystem: "search",
			Name:      "fusion_total",
			Help:      "Total fusion passes by strategy and degradation.",
		},
		[]string{"service", "strategy", "degraded"},
	)
	fusionCandidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "veritas",
			Subsystem: "search",
			Name:      "fusion_candidates",
			Help:      "Distribution of fused candidates per query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		},
		[]string{"service", "strategy"},
	)
	rerankBatchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "veritas",
			Subsystem: "rerank",
			Name:      "batches_total",
			Help:      "Total reranking batches by outcome.",
		},
		[]string{"service", "outcome"},
	)
	batchQueries := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "veritas",
			Subsystem: "batch",
			Name:      "queries",
			Help:      "Distribution of queries per batch job.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		backendSearchTotal,
		backendSearchDuration,
		fusionTotal,
		fusionCandidates,
		rerankBatchTotal,
		batchQueries,
	)

	return &HTTPServerMetrics{
		registry:              registry,
		requestTotal:          requestTotal,
		requestDuration:       requestDuration,
		requestInFlight:       requestInFlight,
		backendSearchTotal:    backendSearchTotal,
		backendSearchDuration: backendSearchDuration,
		fusionTotal:           fusionTotal,
		fusionCandidates:      fusionCandidates,
		rerankBatchTotal:      rerankBatchTotal,
		batchQueries:          batchQueries,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// Pipeline returns a usecase.Observer view bound to a service label.
func (m *HTTPServerMetrics) Pipeline(service string) *PipelineObserver {
	return &PipelineObserver{metrics: m, service: service}
}

// PipelineObserver implements usecase.Observer on top of the shared
// registry. Prometheus vectors are concurrency-safe, so no locking here.
type PipelineObserver struct {
	metrics *HTTPServerMetrics
	service string
}

func (o *PipelineObserver) BackendSearch(method domain.RetrievalMethod, outcome string, elapsed time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	o.metrics.backendSearchTotal.WithLabelValues(o.service, string(method), outcome).Inc()
	o.metrics.backendSearchDuration.WithLabelValues(o.service, string(method)).Observe(elapsed.Seconds())
}

func (o *PipelineObserver) FusionDone(strategy domain.FusionStrategy, candidates int, degraded bool) {
	o.metrics.fusionTotal.WithLabelValues(o.service, string(strategy), strconv.FormatBool(degraded)).Inc()
	o.metrics.fusionCandidates.WithLabelValues(o.service, string(strategy)).Observe(float64(candidates))
}

func (o *PipelineObserver) RerankBatch(fallback bool) {
	outcome := "scored"
	if fallback {
		outcome = "fallback"
	}
	o.metrics.rerankBatchTotal.WithLabelValues(o.service, outcome).Inc()
}

func (o *PipelineObserver) BatchQueries(n int) {
	o.metrics.batchQueries.WithLabelValues(o.service).Observe(float64(n))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
