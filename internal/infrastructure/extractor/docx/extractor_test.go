package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/knowbase/knowledge-assistant/internal/core/domain"
)

type storageFake struct {
	content []byte
}

func (f *storageFake) Save(context.Context, string, io.Reader) error { return nil }

func (f *storageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.content)), nil
}

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

const sampleDocument = `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestExtractParagraphText(t *testing.T) {
	extractor := NewExtractor(&storageFake{content: buildDocx(t, sampleDocument)})

	pages, err := extractor.Extract(context.Background(), &domain.Document{Filename: "report.docx"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected one page, got %d", len(pages))
	}
	if pages[0].Page != 0 {
		t.Fatalf("expected page 0, got %d", pages[0].Page)
	}
	want := "First paragraph.\nSecond paragraph."
	if pages[0].Text != want {
		t.Fatalf("expected %q, got %q", want, pages[0].Text)
	}
}

func TestExtractEmptyBody(t *testing.T) {
	xmlBody := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body></w:body></w:document>`
	extractor := NewExtractor(&storageFake{content: buildDocx(t, xmlBody)})

	pages, err := extractor.Extract(context.Background(), &domain.Document{Filename: "empty.docx"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(pages) != 0 {
		t.Fatalf("expected no pages, got %d", len(pages))
	}
}

func TestExtractMissingDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/styles.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	_, _ = w.Write([]byte("<styles/>"))
	_ = zw.Close()

	extractor := NewExtractor(&storageFake{content: buf.Bytes()})
	if _, err := extractor.Extract(context.Background(), &domain.Document{Filename: "odd.docx"}); err == nil {
		t.Fatalf("expected error for container without document.xml")
	}
}

func TestExtractNotAZip(t *testing.T) {
	extractor := NewExtractor(&storageFake{content: []byte("plain text, not a zip")})

	if _, err := extractor.Extract(context.Background(), &domain.Document{Filename: "broken.docx"}); err == nil {
		t.Fatalf("expected error for corrupt container")
	}
}
