package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/time/rate"

	"github.com/knowbase/knowledge-assistant/internal/core/domain"
	"github.com/knowbase/knowledge-assistant/internal/core/usecase"
	"github.com/knowbase/knowledge-assistant/internal/observability/metrics"
)

type repoFake struct {
	docs      map[string]*domain.Document
	listErr   error
	createErr error
}

func newRepoFake() *repoFake {
	return &repoFake{docs: map[string]*domain.Document{}}
}

func (f *repoFake) Create(_ context.Context, doc *domain.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.docs[doc.ID] = doc
	return nil
}

func (f *repoFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New("id "+id))
	}
	return doc, nil
}

func (f *repoFake) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	doc, ok := f.docs[id]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "update document status", errors.New("id "+id))
	}
	doc.Status = status
	doc.Error = errMessage
	return nil
}

func (f *repoFake) SetChunkCount(_ context.Context, id string, count int) error {
	doc, ok := f.docs[id]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "set chunk count", errors.New("id "+id))
	}
	doc.ChunkCount = count
	return nil
}

func (f *repoFake) List(_ context.Context) ([]domain.Document, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.Document
	for _, doc := range f.docs {
		out = append(out, *doc)
	}
	return out, nil
}

type vectorFake struct {
	stats     domain.IndexStats
	statsErr  error
	deleteErr error
	deleted   bool
}

func (f *vectorFake) Upsert(_ context.Context, passages []domain.Passage, _ [][]float32) ([]string, error) {
	return make([]string, len(passages)), nil
}

func (f *vectorFake) Search(context.Context, []float32, int) ([]domain.ScoredPassage, error) {
	return nil, nil
}

func (f *vectorFake) DeleteAll(context.Context) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = true
	return nil
}

func (f *vectorFake) Stats(context.Context) (domain.IndexStats, error) {
	if f.statsErr != nil {
		return domain.IndexStats{}, f.statsErr
	}
	return f.stats, nil
}

type storageFake struct{ saved map[string][]byte }

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.saved == nil {
		f.saved = map[string][]byte{}
	}
	f.saved[key] = raw
	return nil
}

func (f *storageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("not stored")
}

type queueFake struct{ published []string }

func (f *queueFake) PublishDocumentIngested(_ context.Context, documentID string) error {
	f.published = append(f.published, documentID)
	return nil
}

func (f *queueFake) SubscribeDocumentIngested(context.Context, func(context.Context, string) error) error {
	return nil
}

type providerFake struct {
	classifyLabel string
	answer        string
}

func (f *providerFake) Classify(context.Context, string, string) (string, error) {
	return f.classifyLabel, nil
}

func (f *providerFake) Complete(context.Context, string, []domain.ConversationTurn, string) (string, error) {
	return f.answer, nil
}

type embedFake struct{}

func (embedFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{0.1}
	}
	return out, nil
}

func (embedFake) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{0.1}, nil
}

type webFake struct{}

func (webFake) Search(_ context.Context, query string, _ int) domain.WebSearchOutcome {
	return domain.WebSearchOutcome{Success: true, Query: query}
}

type calcFake struct{}

func (calcFake) Evaluate(expression string) domain.Calculation {
	return domain.Calculation{Success: true, Expression: expression, Result: "0"}
}

type fixture struct {
	router *Router
	repo   *repoFake
	vector *vectorFake
	queue  *queueFake
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithLimiter(t, nil)
}

func newFixtureWithLimiter(t *testing.T, limiter *rate.Limiter) *fixture {
	t.Helper()
	repo := newRepoFake()
	vector := &vectorFake{stats: domain.IndexStats{TotalVectorCount: 12, IndexName: "test-index"}}
	queue := &queueFake{}
	provider := &providerFake{classifyLabel: "general", answer: "hello there"}

	ingestUC := usecase.NewIngestDocumentUseCase(repo, &storageFake{}, queue)
	retriever := usecase.NewRelevanceRetriever(embedFake{}, vector, nil)
	intent := usecase.NewIntentRouter(provider)
	chatUC := usecase.NewChatUseCase(retriever, intent, webFake{}, calcFake{}, provider, usecase.ChatLimits{}, nil)

	router := NewRouter("api", ingestUC, chatUC, repo, vector, metrics.NewHTTPServerMetrics("api"), limiter, nil)
	return &fixture{router: router, repo: repo, vector: vector, queue: queue}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestHealthzReportsIndexStats(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Fatalf("expected ok status, got %v", body["status"])
	}
	index := body["index"].(map[string]any)
	if index["name"] != "test-index" {
		t.Fatalf("expected index name, got %v", index["name"])
	}
	if index["total_vector_count"] != float64(12) {
		t.Fatalf("expected vector count 12, got %v", index["total_vector_count"])
	}
	tools := body["tools"].([]any)
	if len(tools) != 4 {
		t.Fatalf("expected 4 tools, got %d", len(tools))
	}
}

func TestHealthzDegradedWhenIndexUnreachable(t *testing.T) {
	f := newFixture(t)
	f.vector.statsErr = errors.New("index gone")

	rec := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["status"] != "degraded" {
		t.Fatalf("expected degraded, got %v", body["status"])
	}
}

func TestUploadDocumentAccepted(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "notes.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("hello")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := f.do(req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["filename"] != "notes.txt" {
		t.Fatalf("expected filename in response, got %v", body["filename"])
	}
	if body["status"] != "uploaded" {
		t.Fatalf("expected uploaded status, got %v", body["status"])
	}
	if len(f.queue.published) != 1 {
		t.Fatalf("expected one ingestion event, got %d", len(f.queue.published))
	}
}

func TestUploadWithoutFileField(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "text/plain")

	if rec := f.do(req); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListDocumentsEmptyIsAnArray(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/v1/documents", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"documents":[]`) {
		t.Fatalf("expected empty array, got %s", rec.Body.String())
	}
}

func TestDocumentsMethodNotAllowed(t *testing.T) {
	f := newFixture(t)

	if rec := f.do(httptest.NewRequest(http.MethodDelete, "/v1/documents", nil)); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestGetDocumentByID(t *testing.T) {
	f := newFixture(t)
	f.repo.docs["doc-1"] = &domain.Document{ID: "doc-1", Filename: "report.pdf", Status: domain.StatusReady}

	rec := f.do(httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["id"] != "doc-1" {
		t.Fatalf("expected doc-1, got %v", body["id"])
	}
}

func TestGetDocumentByIDNotFound(t *testing.T) {
	f := newFixture(t)

	if rec := f.do(httptest.NewRequest(http.MethodGet, "/v1/documents/missing", nil)); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetDocumentByIDMissingID(t *testing.T) {
	f := newFixture(t)

	if rec := f.do(httptest.NewRequest(http.MethodGet, "/v1/documents/", nil)); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestChatReturnsAnswer(t *testing.T) {
	f := newFixture(t)

	payload := `{"conversation_id":"s1","message":"hi"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(payload))

	rec := f.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["answer"] != "hello there" {
		t.Fatalf("expected answer, got %v", body["answer"])
	}
	if body["tool_used"] != "general" {
		t.Fatalf("expected general tool, got %v", body["tool_used"])
	}
}

func TestChatValidation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", "{"},
		{"blank message", `{"conversation_id":"s1","message":"   "}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(tc.body)))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestChatMethodNotAllowed(t *testing.T) {
	f := newFixture(t)

	if rec := f.do(httptest.NewRequest(http.MethodGet, "/v1/chat", nil)); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestClearHistory(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/v1/chat/clear-history", strings.NewReader(`{"conversation_id":"s1"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["status"] != "cleared" {
		t.Fatalf("expected cleared, got %v", body["status"])
	}
}

func TestClearIndex(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/v1/index/clear", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !f.vector.deleted {
		t.Fatalf("expected DeleteAll to be called")
	}
}

func TestRateLimitExceeded(t *testing.T) {
	f := newFixtureWithLimiter(t, rate.NewLimiter(rate.Limit(0.0001), 1))

	first := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", first.Code)
	}
	second := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}
}

func TestRequestIDHeaderEchoed(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected generated request id header")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-123")
	if got := f.do(req).Header().Get("X-Request-Id"); got != "req-123" {
		t.Fatalf("expected request id to round-trip, got %q", got)
	}
}
