package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wastewise/disposal-assistant/internal/config"
	"github.com/wastewise/disposal-assistant/internal/core/domain"
	"github.com/wastewise/disposal-assistant/internal/core/ports"
	"github.com/wastewise/disposal-assistant/internal/core/usecase"
	"github.com/wastewise/disposal-assistant/internal/infrastructure/llm/ollama"
	natsqueue "github.com/wastewise/disposal-assistant/internal/infrastructure/queue/nats"
	"github.com/wastewise/disposal-assistant/internal/infrastructure/repository/postgres"
	"github.com/wastewise/disposal-assistant/internal/infrastructure/resilience"
	"github.com/wastewise/disposal-assistant/internal/infrastructure/vector/qdrant"
	"github.com/wastewise/disposal-assistant/internal/infrastructure/websearch/searx"
	"github.com/wastewise/disposal-assistant/internal/observability/logging"
	"github.com/wastewise/disposal-assistant/internal/observability/metrics"
)

// APIApp wires the turn pipeline behind the HTTP surface.
type APIApp struct {
	Config   config.Config
	Logger   *slog.Logger
	Dialogue ports.DialogueService
	Metrics  *metrics.APIMetrics

	closeFn func()
}

func NewAPI(cfg config.Config) (*APIApp, error) {
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	apiMetrics := metrics.NewAPIMetrics("api")

	executor := resilience.NewExecutor(resilience.DefaultConfig(), logger)

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	store := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, executor)
	web := searx.New(cfg.SearxURL, executor)

	queue, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSTurnSubject, natsqueue.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init turn event queue: %w", err)
	}

	// Config validation already rejected unknown modes.
	mode, _ := usecase.ParseWebSearchMode(cfg.WebSearchMode)
	policy := usecase.RetrievalPolicy{
		Mode:          mode,
		MinConfidence: cfg.WebSearchMinConfidence,
	}

	router := usecase.NewRegionRouter(domain.ParseRegion(cfg.RegionFallback), logger)
	expander := usecase.NewQueryExpander(generator, cfg.MaxSubQueries, seconds(cfg.ExpansionTimeoutSeconds), logger)
	fanout := usecase.NewRetrievalFanOut(
		embedder,
		store,
		web,
		cfg.RetrievalTopK,
		seconds(cfg.LookupTimeoutSeconds),
		apiMetrics,
		logger,
	)
	mmr := usecase.NewMMRSelector(cfg.MMRLambda, cfg.MMRSelectSize)

	dialogue := usecase.NewDialogueOrchestrator(
		router,
		expander,
		fanout,
		mmr,
		policy,
		generator,
		queue,
		usecase.DialogueLimits{
			TurnTimeout:       seconds(cfg.TurnTimeoutSeconds),
			GenerationTimeout: seconds(cfg.GenerationTimeoutSeconds),
			FusionK:           cfg.FusionRRFK,
			FinalSize:         cfg.FinalResultSize,
		},
		apiMetrics,
		logger,
	)

	return &APIApp{
		Config:   cfg,
		Logger:   logger,
		Dialogue: dialogue,
		Metrics:  apiMetrics,

		closeFn: func() {
			queue.Close()
		},
	}, nil
}

func (a *APIApp) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// WorkerApp wires the audit consumer: queue in, postgres out.
type WorkerApp struct {
	Config  config.Config
	Logger  *slog.Logger
	Queue   *natsqueue.Queue
	Audit   ports.TurnRecorder
	Metrics *metrics.WorkerMetrics

	closeFn func()
}

func NewWorker(ctx context.Context, cfg config.Config) (*WorkerApp, error) {
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	workerMetrics := metrics.NewWorkerMetrics("worker")

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewTurnRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig(), logger)
	queue, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSTurnSubject, natsqueue.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init turn event queue: %w", err)
	}

	return &WorkerApp{
		Config:  cfg,
		Logger:  logger,
		Queue:   queue,
		Audit:   usecase.NewTurnAuditUseCase(repo),
		Metrics: workerMetrics,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *WorkerApp) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
