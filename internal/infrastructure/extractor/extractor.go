// Package extractor routes a document to the extractor for its file type.
package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knowbase/knowledge-assistant/internal/core/domain"
	"github.com/knowbase/knowledge-assistant/internal/core/ports"
)

type Dispatcher struct {
	byExtension map[string]ports.PageExtractor
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{byExtension: make(map[string]ports.PageExtractor)}
}

// Register maps a lowercase extension (with leading dot) to an extractor.
func (d *Dispatcher) Register(ext string, extractor ports.PageExtractor) {
	d.byExtension[strings.ToLower(ext)] = extractor
}

func (d *Dispatcher) Extract(ctx context.Context, doc *domain.Document) ([]domain.PageText, error) {
	ext := strings.ToLower(filepath.Ext(doc.Filename))
	extractor, ok := d.byExtension[ext]
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract",
			fmt.Errorf("no extractor registered for %q", ext))
	}
	return extractor.Extract(ctx, doc)
}
