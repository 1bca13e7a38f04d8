package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/knowbase/knowledge-assistant/internal/core/domain"
)

type embedderFake struct {
	vector []float32
	err    error
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

type vectorStoreFake struct {
	results  []domain.ScoredPassage
	searchK  int
	err      error
	stats    domain.IndexStats
	statsErr error
}

func (f *vectorStoreFake) Upsert(_ context.Context, passages []domain.Passage, _ [][]float32) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	ids := make([]string, len(passages))
	for i := range ids {
		ids[i] = "vec-id"
	}
	return ids, nil
}

func (f *vectorStoreFake) Search(_ context.Context, _ []float32, k int) ([]domain.ScoredPassage, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.searchK = k
	return f.results, nil
}

func (f *vectorStoreFake) DeleteAll(context.Context) error {
	return f.err
}

func (f *vectorStoreFake) Stats(context.Context) (domain.IndexStats, error) {
	if f.statsErr != nil {
		return domain.IndexStats{}, f.statsErr
	}
	return f.stats, nil
}

func TestRetrieveFiltersBelowThreshold(t *testing.T) {
	store := &vectorStoreFake{results: []domain.ScoredPassage{
		scored("keep high", 0, 0.9),
		scored("drop low", 1, 0.1),
		scored("keep boundary", 2, 0.15),
		scored("drop just below", 3, 0.1499),
	}}
	r := NewRelevanceRetriever(&embedderFake{vector: []float32{0.1}}, store, nil)

	got := r.Retrieve(context.Background(), "query", 4)
	if len(got) != 2 {
		t.Fatalf("expected 2 passages, got %d", len(got))
	}
	if got[0].Text != "keep high" || got[1].Text != "keep boundary" {
		t.Fatalf("expected rank order preserved, got %q then %q", got[0].Text, got[1].Text)
	}
}

func TestRetrieveDefaultsK(t *testing.T) {
	store := &vectorStoreFake{}
	r := NewRelevanceRetriever(&embedderFake{vector: []float32{0.1}}, store, nil)

	r.Retrieve(context.Background(), "query", 0)
	if store.searchK != 4 {
		t.Fatalf("expected default k=4, got %d", store.searchK)
	}
}

func TestRetrieveEmbedFailureDegradesToEmpty(t *testing.T) {
	r := NewRelevanceRetriever(&embedderFake{err: errors.New("embed down")}, &vectorStoreFake{}, nil)
	if got := r.Retrieve(context.Background(), "query", 4); got != nil {
		t.Fatalf("expected nil on embed failure, got %v", got)
	}
}

func TestRetrieveSearchFailureDegradesToEmpty(t *testing.T) {
	store := &vectorStoreFake{err: errors.New("index down")}
	r := NewRelevanceRetriever(&embedderFake{vector: []float32{0.1}}, store, nil)
	if got := r.Retrieve(context.Background(), "query", 4); got != nil {
		t.Fatalf("expected nil on search failure, got %v", got)
	}
}

func TestRetrieveCustomMinScore(t *testing.T) {
	store := &vectorStoreFake{results: []domain.ScoredPassage{
		scored("mid", 0, 0.25),
	}}
	r := NewRelevanceRetriever(&embedderFake{vector: []float32{0.1}}, store, nil).WithMinScore(0.3)
	if got := r.Retrieve(context.Background(), "query", 4); len(got) != 0 {
		t.Fatalf("expected raised threshold to drop the result, got %d", len(got))
	}
}
