// Package bootstrap wires configuration into a ready-to-serve application.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/knowbase/knowledge-assistant/internal/config"
	"github.com/knowbase/knowledge-assistant/internal/core/ports"
	"github.com/knowbase/knowledge-assistant/internal/core/usecase"
	"github.com/knowbase/knowledge-assistant/internal/infrastructure/chunking"
	"github.com/knowbase/knowledge-assistant/internal/infrastructure/extractor"
	"github.com/knowbase/knowledge-assistant/internal/infrastructure/extractor/docx"
	"github.com/knowbase/knowledge-assistant/internal/infrastructure/extractor/pdfext"
	"github.com/knowbase/knowledge-assistant/internal/infrastructure/extractor/plaintext"
	"github.com/knowbase/knowledge-assistant/internal/infrastructure/extractor/xlsx"
	"github.com/knowbase/knowledge-assistant/internal/infrastructure/llm/openai"
	"github.com/knowbase/knowledge-assistant/internal/infrastructure/queue/nats"
	"github.com/knowbase/knowledge-assistant/internal/infrastructure/repository/postgres"
	"github.com/knowbase/knowledge-assistant/internal/infrastructure/resilience"
	"github.com/knowbase/knowledge-assistant/internal/infrastructure/storage/localfs"
	"github.com/knowbase/knowledge-assistant/internal/infrastructure/tools/calculator"
	"github.com/knowbase/knowledge-assistant/internal/infrastructure/tools/tavily"
	"github.com/knowbase/knowledge-assistant/internal/infrastructure/vector/pinecone"
)

type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	Repo      ports.DocumentRepository
	VectorDB  ports.VectorStore
	IngestUC  *usecase.IngestDocumentUseCase
	ProcessUC *usecase.ProcessDocumentUseCase
	ChatUC    *usecase.ChatUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	llm := openai.New(cfg.OpenAIAPIKey,
		openai.WithBaseURL(cfg.OpenAIBaseURL),
		openai.WithChatModel(cfg.OpenAIChatModel),
		openai.WithEmbeddingModel(cfg.OpenAIEmbeddingModel),
		openai.WithTemperature(cfg.GenTemperature),
		openai.WithMaxTokens(cfg.GenMaxTokens),
		openai.WithResilience(executor),
	)

	vectorDB := pinecone.New(cfg.PineconeIndexHost, cfg.PineconeAPIKey, cfg.PineconeIndexName)

	// A missing or unreachable index is a deployment fault, not a runtime
	// condition to degrade around.
	stats, err := vectorDB.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify vector index: %w", err)
	}
	logger.Info("vector_index_ready", "index", stats.IndexName, "total_vector_count", stats.TotalVectorCount)

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)

	dispatch := extractor.NewDispatcher()
	plain := plaintext.NewExtractor(storage)
	dispatch.Register(".txt", plain)
	dispatch.Register(".md", plain)
	dispatch.Register(".pdf", pdfext.NewExtractor(storage))
	dispatch.Register(".docx", docx.NewExtractor(storage))
	dispatch.Register(".xlsx", xlsx.NewExtractor(storage))

	retriever := usecase.NewRelevanceRetriever(llm, vectorDB, logger).WithMinScore(cfg.RelevanceThreshold)
	router := usecase.NewIntentRouter(llm)
	web := tavily.New(cfg.TavilyAPIKey)
	calc := calculator.New()

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(repo, dispatch, chunker, llm, vectorDB)
	chatUC := usecase.NewChatUseCase(retriever, router, web, calc, llm, usecase.ChatLimits{
		RetrievalTopK:   cfg.RetrievalTopK,
		WebMaxResults:   cfg.WebMaxResults,
		MemoryPairs:     cfg.MemoryPairs,
		RouteTimeout:    time.Duration(cfg.RouteTimeoutSeconds) * time.Second,
		SearchTimeout:   time.Duration(cfg.SearchTimeoutSeconds) * time.Second,
		GenerateTimeout: time.Duration(cfg.GenerateTimeoutSeconds) * time.Second,
	}, logger)

	return &App{
		Config: cfg,
		Queue:  queue,
		Repo:   repo,

		VectorDB:  vectorDB,
		IngestUC:  ingestUC,
		ProcessUC: processUC,
		ChatUC:    chatUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
