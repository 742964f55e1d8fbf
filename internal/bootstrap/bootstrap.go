package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/makr-code/VCC-Veritas-sub003/internal/config"
	"github.com/makr-code/VCC-Veritas-sub003/internal/core/domain"
	"github.com/makr-code/VCC-Veritas-sub003/internal/core/ports"
	"github.com/makr-code/VCC-Veritas-sub003/internal/core/usecase"
	neo4jbackend "github.com/makr-code/VCC-Veritas-sub003/internal/infrastructure/backend/neo4j"
	"github.com/makr-code/VCC-Veritas-sub003/internal/infrastructure/backend/postgres"
	"github.com/makr-code/VCC-Veritas-sub003/internal/infrastructure/backend/qdrant"
	"github.com/makr-code/VCC-Veritas-sub003/internal/infrastructure/expansion"
	"github.com/makr-code/VCC-Veritas-sub003/internal/infrastructure/queue/nats"
	"github.com/makr-code/VCC-Veritas-sub003/internal/infrastructure/resilience"
	"github.com/makr-code/VCC-Veritas-sub003/internal/infrastructure/scorer/ollama"
)

// App holds the wired retrieval engine shared by the API and the worker.
type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue    ports.SearchJobQueue
	SearchUC *usecase.HybridSearchUseCase
	BatchUC  *usecase.BatchScheduler

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, observer usecase.Observer) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    cfg.RetryMaxAttempts,
		BreakerEnabled:      cfg.BreakerEnabled,
		BreakerMinRequests:  uint32(cfg.BreakerMinRequests),
		BreakerFailureRatio: cfg.BreakerFailureRate,
		BreakerOpenTimeout:  cfg.BreakerOpenTimeout,
	}, logger)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	cleanup := func() { _ = db.Close() }

	neo4jDriver, err := neo4jbackend.Connect(cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("connect neo4j: %w", err)
	}
	prev := cleanup
	cleanup = func() {
		_ = neo4jDriver.Close(context.Background())
		prev()
	}
	if err := neo4jDriver.VerifyConnectivity(ctx); err != nil {
		logger.Warn("neo4j_unreachable_at_startup", "error", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSJobSubject, cfg.NATSResultSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("init search job queue: %w", err)
	}
	prevQueue := cleanup
	cleanup = func() {
		queue.Close()
		prevQueue()
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaScoreModel, cfg.OllamaEmbedModel)
	scorer := ollama.NewScorer(ollamaClient, executor)
	embedder := ollama.NewEmbedder(ollamaClient, executor)

	qdrantClient := qdrant.NewClient(cfg.QdrantURL, cfg.QdrantCollection)
	backends := []ports.SearchBackend{
		qdrant.NewDenseBackend(qdrantClient, embedder),
		qdrant.NewSparseBackend(qdrantClient),
		postgres.NewBackend(db),
		neo4jbackend.NewBackend(neo4jDriver, cfg.Neo4jDatabase, cfg.Neo4jIndex),
	}

	synonyms, err := loadSynonyms(cfg.SynonymTablePath, logger)
	if err != nil {
		cleanup()
		return nil, err
	}

	strategy, err := domain.ParseFusionStrategy(cfg.SearchFusionStrategy)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("configured fusion strategy: %w", err)
	}
	rerankMode, err := domain.ParseScoringMode(cfg.RerankMode)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("configured rerank mode: %w", err)
	}

	expander := usecase.NewQueryExpander(synonyms)
	coordinator := usecase.NewCoordinator(cfg.SearchBackendTimeout, logger, observer)
	fusion := usecase.NewFusionEngine(cfg.SearchFusionRRFK, observer)
	reranker := usecase.NewReranker(scorer, cfg.RerankTimeout, logger, observer)

	searchUC := usecase.NewHybridSearchUseCase(backends, expander, coordinator, fusion, reranker, usecase.HybridSearchConfig{
		DefaultTopK:      cfg.SearchTopK,
		DefaultStrategy:  strategy,
		ExpansionEnabled: cfg.ExpansionEnabled,
		MaxExpansions:    cfg.ExpansionMax,
		RerankEnabled:    cfg.RerankEnabled,
		RerankTopN:       cfg.RerankTopN,
		RerankBatchSize:  cfg.RerankBatchSize,
		RerankMode:       rerankMode,
	}, logger)
	batchUC := usecase.NewBatchScheduler(searchUC, cfg.BatchParallelism, logger, observer)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Queue:    queue,
		SearchUC: searchUC,
		BatchUC:  batchUC,
		closeFn:  cleanup,
	}, nil
}

// loadSynonyms treats a missing table file as "no expansion data", not a
// startup failure. Any other read or parse error is fatal.
func loadSynonyms(path string, logger *slog.Logger) (map[string][]string, error) {
	if path == "" {
		return nil, nil
	}
	table, err := expansion.LoadSynonymTable(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("synonym_table_missing", "path", path)
			return nil, nil
		}
		return nil, fmt.Errorf("load synonym table: %w", err)
	}
	return table, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
