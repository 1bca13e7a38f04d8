package chunking

import (
	"strings"

	"github.com/knowbase/knowledge-assistant/internal/core/domain"
)

// Splitter cuts extracted pages into overlapping passages. Chunk indexes run
// across the whole document, not per page, so TotalChunks is the document
// total.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 5
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(doc *domain.Document, pages []domain.PageText) []domain.Passage {
	var passages []domain.Passage
	for _, page := range pages {
		for _, chunk := range s.splitText(page.Text) {
			passages = append(passages, domain.Passage{
				DocumentID: doc.ID,
				Source:     doc.Filename,
				Page:       page.Page,
				ChunkIndex: len(passages),
				Text:       chunk,
			})
		}
	}
	for i := range passages {
		passages[i].TotalChunks = len(passages)
	}
	return passages
}

func (s *Splitter) splitText(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := s.ChunkSize - s.Overlap
	if step <= 0 {
		step = s.ChunkSize
	}

	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}
