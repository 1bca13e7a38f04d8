package domain

// Relevance label thresholds over the [0,1] similarity score.
const (
	RelevanceHigh   = 0.7
	RelevanceMedium = 0.4
	RelevanceLow    = 0.2
)

// Citation is a numbered, deduplicated reference to a passage. Ids are dense,
// 1-indexed and stable only within a single query's response.
type Citation struct {
	ID             int     `json:"id"`
	Source         string  `json:"source"`
	Page           int     `json:"page"` // 1-indexed
	ChunkIndex     int     `json:"chunk_index"`
	RelevanceScore float64 `json:"relevance_score"`
	RelevanceLabel string  `json:"relevance_label"`
	Snippet        string  `json:"snippet"`
	FullText       string  `json:"-"`
}

// RelevanceLabelFor converts a similarity score to a human-readable label.
func RelevanceLabelFor(score float64) string {
	switch {
	case score >= RelevanceHigh:
		return "High"
	case score >= RelevanceMedium:
		return "Medium"
	case score >= RelevanceLow:
		return "Low"
	default:
		return "Minimal"
	}
}

// CitationSummary aggregates the citations built for one query.
type CitationSummary struct {
	TotalSources     int        `json:"total_sources"`
	UniqueDocuments  int        `json:"unique_documents"`
	Documents        []string   `json:"documents"`
	AverageRelevance float64    `json:"average_relevance"`
	Citations        []Citation `json:"citations"`
}
