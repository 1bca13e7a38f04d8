package usecase

import (
	"fmt"
	"math"
	"strings"

	"github.com/knowbase/knowledge-assistant/internal/core/domain"
)

const (
	// Identical 200-char prefixes collapse to one citation.
	dedupPrefixChars = 200
	// Default snippet budget for the user-facing citation preview.
	defaultSnippetLength = 150

	contextBlockSeparator = "\n\n---\n\n"
)

// CitationBuilder owns the citation list for the current query. It must be
// rebuilt from scratch every turn; stale citations never survive into the
// next answer.
type CitationBuilder struct {
	snippetLength int
	citations     []domain.Citation
}

func NewCitationBuilder() *CitationBuilder {
	return &CitationBuilder{snippetLength: defaultSnippetLength}
}

// Reset clears all citations. Called at the start of every query.
func (b *CitationBuilder) Reset() {
	b.citations = nil
}

// Build converts scored passages into deduplicated, sequentially numbered
// citations. First occurrence wins; input order is preserved. Pages arrive
// 0-indexed from the chunking pipeline and become 1-indexed here.
func (b *CitationBuilder) Build(results []domain.ScoredPassage) []domain.Citation {
	b.citations = make([]domain.Citation, 0, len(results))
	seen := make(map[string]struct{}, len(results))

	for _, sp := range results {
		fp := contentFingerprint(sp.Text)
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}

		score := roundTo3(sp.Score)
		b.citations = append(b.citations, domain.Citation{
			ID:             len(b.citations) + 1,
			Source:         sp.Source,
			Page:           sp.Page + 1,
			ChunkIndex:     sp.ChunkIndex,
			RelevanceScore: score,
			RelevanceLabel: domain.RelevanceLabelFor(score),
			Snippet:        makeSnippet(sp.Text, b.snippetLength),
			FullText:       sp.Text,
		})
	}
	return b.citations
}

// Citations returns the citations built for the current query.
func (b *CitationBuilder) Citations() []domain.Citation {
	return b.citations
}

// Context renders the LLM-ready context: one header + full passage block per
// citation, separated by a horizontal rule.
func (b *CitationBuilder) Context() string {
	if len(b.citations) == 0 {
		return ""
	}
	parts := make([]string, 0, len(b.citations))
	for _, c := range b.citations {
		parts = append(parts, fmt.Sprintf("[Source %d: %s, Page %d]\n%s", c.ID, c.Source, c.Page, c.FullText))
	}
	return strings.Join(parts, contextBlockSeparator)
}

// Instruction tells the model how to cite the available sources.
func (b *CitationBuilder) Instruction() string {
	if len(b.citations) == 0 {
		return ""
	}
	refs := make([]string, 0, len(b.citations))
	for _, c := range b.citations {
		refs = append(refs, fmt.Sprintf("  [%d] %s, Page %d", c.ID, c.Source, c.Page))
	}
	return "When using information from the sources above, cite them using the format " +
		"[Source X] where X is the source number. Available sources:\n" +
		strings.Join(refs, "\n")
}

// Summary aggregates the current citations.
func (b *CitationBuilder) Summary() domain.CitationSummary {
	if len(b.citations) == 0 {
		return domain.CitationSummary{Documents: []string{}, Citations: []domain.Citation{}}
	}

	seen := make(map[string]struct{})
	docs := make([]string, 0, len(b.citations))
	var sum float64
	for _, c := range b.citations {
		sum += c.RelevanceScore
		if _, ok := seen[c.Source]; !ok {
			seen[c.Source] = struct{}{}
			docs = append(docs, c.Source)
		}
	}

	return domain.CitationSummary{
		TotalSources:     len(b.citations),
		UniqueDocuments:  len(docs),
		Documents:        docs,
		AverageRelevance: roundTo3(sum / float64(len(b.citations))),
		Citations:        b.citations,
	}
}

func contentFingerprint(text string) string {
	runes := []rune(text)
	if len(runes) > dedupPrefixChars {
		runes = runes[:dedupPrefixChars]
	}
	return string(runes)
}

// makeSnippet collapses whitespace and truncates to maxLength, preferring a
// sentence boundary past the midpoint, then the last space, then a hard cut.
func makeSnippet(content string, maxLength int) string {
	cleaned := strings.Join(strings.Fields(content), " ")
	runes := []rune(cleaned)
	if len(runes) <= maxLength {
		return cleaned
	}

	truncated := string(runes[:maxLength])
	if idx := strings.LastIndex(truncated, "."); idx > maxLength/2 {
		return truncated[:idx+1]
	}
	if idx := strings.LastIndex(truncated, " "); idx > 0 {
		return truncated[:idx] + "..."
	}
	return truncated + "..."
}

func roundTo3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
