package domain

// Passage is a chunk of source document text with positional metadata.
// Produced by the chunking pipeline; immutable afterwards.
type Passage struct {
	DocumentID  string `json:"document_id"`
	Source      string `json:"source"`
	Page        int    `json:"page"` // 0-indexed until citation build
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	Text        string `json:"text"`
}

// ScoredPassage pairs a passage with its per-query relevance score in [0,1],
// higher = more relevant (cosine convention).
type ScoredPassage struct {
	Passage
	Score float64 `json:"score"`
}

// IndexStats describes the state of the hosted vector index.
type IndexStats struct {
	TotalVectorCount int    `json:"total_vector_count"`
	IndexName        string `json:"index_name,omitempty"`
}
