package ports

import (
	"context"
	"io"

	"github.com/knowbase/knowledge-assistant/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SetChunkCount(ctx context.Context, id string, count int) error
	List(ctx context.Context) ([]domain.Document, error)
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// PageExtractor extracts text pages from a stored document.
type PageExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) ([]domain.PageText, error)
}

// Chunker splits extracted pages into passages with positional metadata.
type Chunker interface {
	Split(doc *domain.Document, pages []domain.PageText) []domain.Passage
}

// Embedder builds vectors for passages and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore is the hosted vector index.
type VectorStore interface {
	Upsert(ctx context.Context, passages []domain.Passage, vectors [][]float32) ([]string, error)
	Search(ctx context.Context, queryVector []float32, k int) ([]domain.ScoredPassage, error)
	DeleteAll(ctx context.Context) error
	Stats(ctx context.Context) (domain.IndexStats, error)
}

// CompletionProvider generates text. Classify runs at temperature zero for
// deterministic routing; Complete uses the configured generation temperature.
type CompletionProvider interface {
	Classify(ctx context.Context, systemPrompt, userMessage string) (string, error)
	Complete(ctx context.Context, systemPrompt string, history []domain.ConversationTurn, userMessage string) (string, error)
}

// WebSearcher queries the search provider. Failures are normalized into the
// outcome; implementations never return them as errors.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) domain.WebSearchOutcome
}

// Calculator evaluates a pure arithmetic expression. Failures are normalized
// into the Calculation shape.
type Calculator interface {
	Evaluate(expression string) domain.Calculation
}
