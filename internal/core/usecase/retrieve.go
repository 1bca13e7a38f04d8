package usecase

import (
	"context"
	"log/slog"

	"github.com/knowbase/knowledge-assistant/internal/core/domain"
	"github.com/knowbase/knowledge-assistant/internal/core/ports"
)

// MinRelevanceThreshold is the canonical relevance cutoff: results scoring
// below it are treated as noise. Scores follow the cosine convention, higher
// = more relevant; a store returning distances must convert before this layer.
const MinRelevanceThreshold = 0.15

const defaultRetrievalK = 4

// RelevanceRetriever queries the vector store and filters results by the
// minimum-relevance threshold. Provider failures degrade to an empty result,
// never aborting the turn.
type RelevanceRetriever struct {
	embedder ports.Embedder
	store    ports.VectorStore
	minScore float64
	logger   *slog.Logger
}

func NewRelevanceRetriever(embedder ports.Embedder, store ports.VectorStore, logger *slog.Logger) *RelevanceRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &RelevanceRetriever{
		embedder: embedder,
		store:    store,
		minScore: MinRelevanceThreshold,
		logger:   logger,
	}
}

// WithMinScore overrides the relevance cutoff. Values at or below zero keep
// the canonical threshold.
func (r *RelevanceRetriever) WithMinScore(score float64) *RelevanceRetriever {
	if score > 0 {
		r.minScore = score
	}
	return r
}

// Retrieve returns the top-k passages at or above the relevance threshold, in
// the store's original rank order. The returned slice may be empty.
func (r *RelevanceRetriever) Retrieve(ctx context.Context, query string, k int) []domain.ScoredPassage {
	if k <= 0 {
		k = defaultRetrievalK
	}

	queryVector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		r.logger.Warn("retrieval_embed_failed", "error", err)
		return nil
	}

	results, err := r.store.Search(ctx, queryVector, k)
	if err != nil {
		r.logger.Warn("retrieval_search_failed", "error", err)
		return nil
	}

	filtered := results[:0]
	for _, sp := range results {
		if sp.Score >= r.minScore {
			filtered = append(filtered, sp)
		}
	}
	return filtered
}
