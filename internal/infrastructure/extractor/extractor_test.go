package extractor

import (
	"context"
	"testing"

	"github.com/knowbase/knowledge-assistant/internal/core/domain"
)

type extractorFake struct {
	pages  []domain.PageText
	called bool
}

func (f *extractorFake) Extract(context.Context, *domain.Document) ([]domain.PageText, error) {
	f.called = true
	return f.pages, nil
}

func TestDispatchByExtension(t *testing.T) {
	txt := &extractorFake{pages: []domain.PageText{{Page: 0, Text: "plain"}}}
	pdf := &extractorFake{pages: []domain.PageText{{Page: 0, Text: "pdf"}}}

	d := NewDispatcher()
	d.Register(".txt", txt)
	d.Register(".pdf", pdf)

	pages, err := d.Extract(context.Background(), &domain.Document{Filename: "notes.txt"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !txt.called || pdf.called {
		t.Fatalf("expected txt extractor only, txt=%t pdf=%t", txt.called, pdf.called)
	}
	if pages[0].Text != "plain" {
		t.Fatalf("expected plain text pages, got %q", pages[0].Text)
	}
}

func TestDispatchIsCaseInsensitive(t *testing.T) {
	pdf := &extractorFake{pages: []domain.PageText{{Page: 0, Text: "pdf"}}}

	d := NewDispatcher()
	d.Register(".pdf", pdf)

	if _, err := d.Extract(context.Background(), &domain.Document{Filename: "REPORT.PDF"}); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if !pdf.called {
		t.Fatalf("expected pdf extractor to run for uppercase extension")
	}
}

func TestDispatchUnknownExtension(t *testing.T) {
	d := NewDispatcher()
	d.Register(".txt", &extractorFake{})

	_, err := d.Extract(context.Background(), &domain.Document{Filename: "slides.pptx"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
