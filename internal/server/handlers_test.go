package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/ronbun/internal/analysis"
	"github.com/hyperjump/ronbun/internal/catalog"
	"github.com/hyperjump/ronbun/internal/config"
	"github.com/hyperjump/ronbun/internal/embedding"
	"github.com/hyperjump/ronbun/internal/extract"
	"github.com/hyperjump/ronbun/internal/generation"
	"github.com/hyperjump/ronbun/internal/models"
	"github.com/hyperjump/ronbun/internal/retrieval"
	"github.com/hyperjump/ronbun/internal/storage"
)

type mockWatchService struct {
	dirs []string
}

func (m *mockWatchService) Directories() []string {
	return append([]string(nil), m.dirs...)
}

func (m *mockWatchService) AddDirectory(path string, _ bool) error {
	for _, d := range m.dirs {
		if d == path {
			return nil
		}
	}
	m.dirs = append(m.dirs, path)
	return nil
}

func (m *mockWatchService) RemoveDirectory(path string) error {
	for i, d := range m.dirs {
		if d == path {
			m.dirs = append(m.dirs[:i], m.dirs[i+1:]...)
			return nil
		}
	}
	return nil
}

// stubExtractor scripts extractions keyed by raw file content, so tests
// control pages, titles, and authors without real PDFs.
type stubExtractor struct {
	byContent map[string]*extract.Extraction
}

func (s *stubExtractor) Extract(path string) (*extract.Extraction, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return s.ExtractBytes(content)
}

func (s *stubExtractor) ExtractBytes(content []byte) (*extract.Extraction, error) {
	ex, ok := s.byContent[string(content)]
	if !ok {
		return nil, fmt.Errorf("no scripted extraction for %q", string(content))
	}
	return ex, nil
}

type testServer struct {
	srv       *Server
	engine    *analysis.Engine
	cfg       *config.Config
	extractor *stubExtractor
	gen       *generation.MockGenerator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{
		Server: config.ServerConfig{Host: "localhost", Port: 8080},
		Storage: config.StorageConfig{
			DatabasePath:     filepath.Join(dir, "papers.db"),
			CatalogIndexPath: filepath.Join(dir, "catalog"),
			VectorDir:        filepath.Join(dir, "vectors"),
			UploadsDir:       filepath.Join(dir, "uploads"),
		},
		Embedding: config.EmbeddingConfig{Provider: "mock"},
		Analysis: config.AnalysisConfig{
			ChunkSize:             50,
			ChunkOverlap:          10,
			RetrieveK:             4,
			CompareChunksPerPaper: 2,
		},
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cat, err := catalog.NewBleveCatalog(cfg.Storage.CatalogIndexPath)
	if err != nil {
		t.Fatalf("failed to create catalog: %v", err)
	}
	t.Cleanup(func() { cat.Close() })

	embedder := embedding.NewMockEmbedder(8)
	retriever := retrieval.NewRetriever(store, embedder, cfg.Storage.VectorDir, cfg.Analysis.RetrieveK)
	extractor := &stubExtractor{byContent: make(map[string]*extract.Extraction)}
	gen := generation.NewMockGenerator()
	engine := analysis.NewEngine(cfg, store, retriever, cat, extractor, embedder, gen, zap.NewNop())

	return &testServer{
		srv:       NewServer(engine, nil, cfg, "", zap.NewNop()),
		engine:    engine,
		cfg:       cfg,
		extractor: extractor,
		gen:       gen,
	}
}

// pdfContent builds upload bytes above the minimum size, unique per seed.
func pdfContent(seed string) []byte {
	return []byte(seed + strings.Repeat(" lorem", 200))
}

// scriptedExtraction yields one 40-word page, which the 50-word chunk
// window turns into exactly one chunk.
func scriptedExtraction(title, authors, prefix string) *extract.Extraction {
	words := make([]string, 40)
	for i := range words {
		words[i] = fmt.Sprintf("%s%02d", prefix, i)
	}
	return &extract.Extraction{
		Pages:     []models.PageText{{Page: 1, Text: strings.Join(words, " ")}},
		PageCount: 1,
		Title:     title,
		Authors:   authors,
	}
}

type uploadFile struct {
	field    string
	filename string
	content  []byte
}

func multipartBody(t *testing.T, files ...uploadFile) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.filename)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(f.content); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

// upload scripts an extraction for the seed and posts it as filename,
// failing the test unless the handler answers 201.
func (ts *testServer) upload(t *testing.T, filename, seed, title, authors string) *models.Paper {
	t.Helper()
	content := pdfContent(seed)
	ts.extractor.byContent[string(content)] = scriptedExtraction(title, authors, seed)
	body, ctype := multipartBody(t, uploadFile{"file", filename, content})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/papers", body)
	r.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	ts.srv.handleUploadPaper(w, r)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload %s: got %d, body: %s", filename, w.Code, w.Body.String())
	}
	var paper models.Paper
	if err := json.NewDecoder(w.Body).Decode(&paper); err != nil {
		t.Fatal(err)
	}
	return &paper
}

// withURLParam injects a chi route parameter for direct handler calls.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestHandleUploadPaper(t *testing.T) {
	ts := newTestServer(t)
	paper := ts.upload(t, "attention.pdf", "pdf-one", "Attention Is All You Need", "Vaswani et al.")

	if len(paper.ID) != 12 {
		t.Errorf("paper id: got %q, want 12 chars", paper.ID)
	}
	if paper.Filename != "attention.pdf" {
		t.Errorf("filename: got %q", paper.Filename)
	}
	if paper.Title != "Attention Is All You Need" {
		t.Errorf("title: got %q", paper.Title)
	}
	if paper.ChunkCount != 1 || paper.PageCount != 1 {
		t.Errorf("counts: got %d chunks / %d pages, want 1/1", paper.ChunkCount, paper.PageCount)
	}
	if paper.Quality.Overall <= 0 || paper.Quality.Overall > 100 {
		t.Errorf("overall score out of range: %v", paper.Quality.Overall)
	}
	if _, err := os.Stat(ts.engine.UploadPath(paper.ID)); err != nil {
		t.Errorf("expected stored upload copy: %v", err)
	}
}

func TestHandleUploadPaper_RejectsNonPDF(t *testing.T) {
	ts := newTestServer(t)
	body, ctype := multipartBody(t, uploadFile{"file", "notes.txt", pdfContent("txt")})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/papers", body)
	r.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	ts.srv.handleUploadPaper(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "PDF") {
		t.Errorf("expected PDF rejection message, got %s", w.Body.String())
	}
}

func TestHandleUploadPaper_RejectsTinyFile(t *testing.T) {
	ts := newTestServer(t)
	body, ctype := multipartBody(t, uploadFile{"file", "tiny.pdf", []byte("%PDF-1.4")})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/papers", body)
	r.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	ts.srv.handleUploadPaper(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "too small") {
		t.Errorf("expected size rejection message, got %s", w.Body.String())
	}
}

func TestHandleUploadPaper_MissingFileField(t *testing.T) {
	ts := newTestServer(t)
	body, ctype := multipartBody(t, uploadFile{"attachment", "paper.pdf", pdfContent("x")})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/papers", body)
	r.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	ts.srv.handleUploadPaper(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleUploadBatch(t *testing.T) {
	ts := newTestServer(t)
	good1 := pdfContent("batch-one")
	good2 := pdfContent("batch-two")
	ts.extractor.byContent[string(good1)] = scriptedExtraction("Paper One", "A", "one")
	ts.extractor.byContent[string(good2)] = scriptedExtraction("Paper Two", "B", "two")

	body, ctype := multipartBody(t,
		uploadFile{"files", "one.pdf", good1},
		uploadFile{"files", "two.pdf", good2},
		uploadFile{"files", "notes.txt", pdfContent("txt")},
	)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/papers/batch", body)
	r.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	ts.srv.handleUploadBatch(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Uploaded int             `json:"uploaded"`
		Failed   int             `json:"failed"`
		Papers   []*models.Paper `json:"papers"`
		Errors   []struct {
			Filename string `json:"filename"`
			Error    string `json:"error"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Uploaded != 2 || out.Failed != 1 {
		t.Errorf("report: got %d uploaded / %d failed, want 2/1", out.Uploaded, out.Failed)
	}
	if len(out.Papers) != 2 {
		t.Errorf("papers: got %d, want 2", len(out.Papers))
	}
	if len(out.Errors) != 1 || out.Errors[0].Filename != "notes.txt" {
		t.Errorf("errors: got %+v", out.Errors)
	}
}

func TestHandleUploadBatch_TooManyFiles(t *testing.T) {
	ts := newTestServer(t)
	var files []uploadFile
	for i := 0; i < 6; i++ {
		files = append(files, uploadFile{"files", fmt.Sprintf("p%d.pdf", i), pdfContent(fmt.Sprintf("p%d", i))})
	}
	body, ctype := multipartBody(t, files...)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/papers/batch", body)
	r.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	ts.srv.handleUploadBatch(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "maximum 5 files") {
		t.Errorf("expected batch limit message, got %s", w.Body.String())
	}
}

func TestHandleListPapers(t *testing.T) {
	ts := newTestServer(t)
	ts.upload(t, "one.pdf", "pdf-one", "Paper One", "A")
	ts.upload(t, "two.pdf", "pdf-two", "Paper Two", "B")

	r := httptest.NewRequest(http.MethodGet, "/api/v1/papers", nil)
	w := httptest.NewRecorder()
	ts.srv.handleListPapers(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Papers []*models.Paper `json:"papers"`
		Count  int             `json:"count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Count != 2 || len(out.Papers) != 2 {
		t.Errorf("count: got %d papers, want 2", out.Count)
	}

	r = httptest.NewRequest(http.MethodGet, "/api/v1/papers?limit=1", nil)
	w = httptest.NewRecorder()
	ts.srv.handleListPapers(w, r)
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Papers) != 1 {
		t.Errorf("limited list: got %d papers, want 1", len(out.Papers))
	}
}

func TestHandleListPapers_Search(t *testing.T) {
	ts := newTestServer(t)
	ts.upload(t, "attention.pdf", "pdf-one", "Attention Is All You Need", "Vaswani et al.")
	ts.upload(t, "resnet.pdf", "pdf-two", "Deep Residual Learning", "He et al.")

	r := httptest.NewRequest(http.MethodGet, "/api/v1/papers?q=attention", nil)
	w := httptest.NewRecorder()
	ts.srv.handleListPapers(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Query  string          `json:"query"`
		Papers []*models.Paper `json:"papers"`
		Count  int             `json:"count"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Query != "attention" {
		t.Errorf("query echo: got %q", out.Query)
	}
	if out.Count != 1 || out.Papers[0].Title != "Attention Is All You Need" {
		t.Errorf("search: got %d papers %+v", out.Count, out.Papers)
	}
}

func TestHandleGetPaper(t *testing.T) {
	ts := newTestServer(t)
	paper := ts.upload(t, "one.pdf", "pdf-one", "Paper One", "A")

	r := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/papers/"+paper.ID, nil), "id", paper.ID)
	w := httptest.NewRecorder()
	ts.srv.handleGetPaper(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var got models.Paper
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.ID != paper.ID {
		t.Errorf("id: got %q, want %q", got.ID, paper.ID)
	}

	r = withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/papers/ghost", nil), "id", "ghost")
	w = httptest.NewRecorder()
	ts.srv.handleGetPaper(w, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing paper: got %d, want 404", w.Code)
	}
}

func TestHandleDeletePaper(t *testing.T) {
	ts := newTestServer(t)
	paper := ts.upload(t, "one.pdf", "pdf-one", "Paper One", "A")

	r := withURLParam(httptest.NewRequest(http.MethodDelete, "/api/v1/papers/"+paper.ID, nil), "id", paper.ID)
	w := httptest.NewRecorder()
	ts.srv.handleDeletePaper(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}

	r = withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/papers/"+paper.ID, nil), "id", paper.ID)
	w = httptest.NewRecorder()
	ts.srv.handleGetPaper(w, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("paper still present after delete: got %d", w.Code)
	}

	// Deleting again is a no-op, not an error.
	r = withURLParam(httptest.NewRequest(http.MethodDelete, "/api/v1/papers/"+paper.ID, nil), "id", paper.ID)
	w = httptest.NewRecorder()
	ts.srv.handleDeletePaper(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("second delete: got %d, want 200", w.Code)
	}
}

func TestHandleAsk(t *testing.T) {
	ts := newTestServer(t)
	paper := ts.upload(t, "one.pdf", "pdf-one", "Paper One", "A")
	ts.gen.Responses = []string{"Eight heads are used [Page 1]."}

	body, _ := json.Marshal(models.AskRequest{Question: "How many heads?"})
	r := withURLParam(httptest.NewRequest(http.MethodPost, "/api/v1/papers/"+paper.ID+"/ask", bytes.NewReader(body)), "id", paper.ID)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.srv.handleAsk(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var answer models.Answer
	if err := json.NewDecoder(w.Body).Decode(&answer); err != nil {
		t.Fatal(err)
	}
	if len(answer.CitedPages) != 1 || answer.CitedPages[0] != 1 {
		t.Errorf("cited pages: got %v, want [1]", answer.CitedPages)
	}
	if answer.Confidence < 0.3 {
		t.Errorf("confidence: got %v", answer.Confidence)
	}
	if answer.Model != "mock" {
		t.Errorf("model: got %q", answer.Model)
	}
}

func TestHandleAsk_BadRequests(t *testing.T) {
	ts := newTestServer(t)
	paper := ts.upload(t, "one.pdf", "pdf-one", "Paper One", "A")

	r := withURLParam(httptest.NewRequest(http.MethodPost, "/api/v1/papers/"+paper.ID+"/ask", strings.NewReader("not json")), "id", paper.ID)
	w := httptest.NewRecorder()
	ts.srv.handleAsk(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body: got %d, want 400", w.Code)
	}

	body, _ := json.Marshal(models.AskRequest{Question: ""})
	r = withURLParam(httptest.NewRequest(http.MethodPost, "/api/v1/papers/"+paper.ID+"/ask", bytes.NewReader(body)), "id", paper.ID)
	w = httptest.NewRecorder()
	ts.srv.handleAsk(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty question: got %d, want 400", w.Code)
	}
}

func TestHandleAsk_UpstreamDown(t *testing.T) {
	ts := newTestServer(t)
	paper := ts.upload(t, "one.pdf", "pdf-one", "Paper One", "A")
	ts.gen.Err = fmt.Errorf("ollama: connection refused: %w", models.ErrUpstreamUnavailable)

	body, _ := json.Marshal(models.AskRequest{Question: "How many heads?"})
	r := withURLParam(httptest.NewRequest(http.MethodPost, "/api/v1/papers/"+paper.ID+"/ask", bytes.NewReader(body)), "id", paper.ID)
	w := httptest.NewRecorder()
	ts.srv.handleAsk(w, r)
	if w.Code != http.StatusBadGateway {
		t.Errorf("status: got %d, want 502", w.Code)
	}
}

func TestHandleSummarize(t *testing.T) {
	ts := newTestServer(t)
	paper := ts.upload(t, "one.pdf", "pdf-one", "Paper One", "A")
	ts.gen.Responses = []string{"**Main Objective**: speed [Page 1]."}

	r := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/papers/"+paper.ID+"/summary", nil), "id", paper.ID)
	w := httptest.NewRecorder()
	ts.srv.handleSummarize(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var answer models.Answer
	if err := json.NewDecoder(w.Body).Decode(&answer); err != nil {
		t.Fatal(err)
	}
	if answer.PaperID != paper.ID || answer.Text == "" {
		t.Errorf("answer: got %+v", answer)
	}

	r = withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/papers/ghost/summary", nil), "id", "ghost")
	w = httptest.NewRecorder()
	ts.srv.handleSummarize(w, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing paper: got %d, want 404", w.Code)
	}
}

func TestHandleQuality(t *testing.T) {
	ts := newTestServer(t)
	paper := ts.upload(t, "one.pdf", "pdf-one", "Paper One", "A")

	r := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/papers/"+paper.ID+"/quality", nil), "id", paper.ID)
	w := httptest.NewRecorder()
	ts.srv.handleQuality(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		PaperID string              `json:"paper_id"`
		Quality models.QualityScore `json:"quality"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.PaperID != paper.ID {
		t.Errorf("paper_id: got %q", out.PaperID)
	}
	if out.Quality.Overall <= 0 {
		t.Errorf("overall: got %v, want > 0", out.Quality.Overall)
	}
}

const comparisonReport = `## Research Objectives
Paper 1 studies attention while Paper 2 studies convolutions [Page 1].

## Methodology
Both train on large corpora [Page 2].

## Findings
Paper 1 reports better accuracy [Page 1].

## Strengths and Weaknesses
Paper 1 requires more compute [Page 2].

## Research Gaps
Neither evaluates multilingual transfer [Page 1].

## Recommendations
Combine the two approaches [Page 2].`

func TestHandleCompare(t *testing.T) {
	ts := newTestServer(t)
	p1 := ts.upload(t, "attention.pdf", "pdf-one", "Attention Is All You Need", "Vaswani et al.")
	p2 := ts.upload(t, "resnet.pdf", "pdf-two", "Deep Residual Learning", "He et al.")
	ts.gen.Responses = []string{comparisonReport}

	body, _ := json.Marshal(models.CompareRequest{PaperIDs: []string{p1.ID, p2.ID}})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/compare", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.srv.handleCompare(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var cmp models.Comparison
	if err := json.NewDecoder(w.Body).Decode(&cmp); err != nil {
		t.Fatal(err)
	}
	if len(cmp.Sections) != 6 {
		t.Errorf("sections: got %d, want 6", len(cmp.Sections))
	}
	if !strings.Contains(cmp.Sections["research_gaps"], "multilingual") {
		t.Errorf("research_gaps: got %q", cmp.Sections["research_gaps"])
	}
	if len(cmp.SimilarityMatrix) != 2 || cmp.SimilarityMatrix[0][0] != 100 {
		t.Errorf("matrix: got %v", cmp.SimilarityMatrix)
	}
	if cmp.Mode != models.ComparisonModeComprehensive {
		t.Errorf("mode: got %q", cmp.Mode)
	}
}

func TestHandleCompare_BadRequests(t *testing.T) {
	ts := newTestServer(t)
	p1 := ts.upload(t, "one.pdf", "pdf-one", "Paper One", "A")

	body, _ := json.Marshal(models.CompareRequest{PaperIDs: []string{p1.ID}})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/compare", bytes.NewReader(body))
	w := httptest.NewRecorder()
	ts.srv.handleCompare(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("single paper: got %d, want 400", w.Code)
	}

	body, _ = json.Marshal(models.CompareRequest{PaperIDs: []string{p1.ID, "ghost"}})
	r = httptest.NewRequest(http.MethodPost, "/api/v1/compare", bytes.NewReader(body))
	w = httptest.NewRecorder()
	ts.srv.handleCompare(w, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown paper: got %d, want 404", w.Code)
	}
}

func TestHandleReport(t *testing.T) {
	ts := newTestServer(t)
	p1 := ts.upload(t, "one.pdf", "pdf-one", "Paper One", "A")
	ts.upload(t, "two.pdf", "pdf-two", "Paper Two", "B")

	r := httptest.NewRequest(http.MethodGet, "/api/v1/report", nil)
	w := httptest.NewRecorder()
	ts.srv.handleReport(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("content type: got %q", ct)
	}
	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("failed to reopen workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Papers")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Errorf("rows: got %d, want header + 2 papers", len(rows))
	}

	// Restricting ids restricts the sheet.
	r = httptest.NewRequest(http.MethodGet, "/api/v1/report?ids="+p1.ID, nil)
	w = httptest.NewRecorder()
	ts.srv.handleReport(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	f2, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	defer f2.Close()
	rows, err = f2.GetRows("Papers")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Errorf("restricted rows: got %d, want header + 1 paper", len(rows))
	}

	r = httptest.NewRequest(http.MethodGet, "/api/v1/report?ids=ghost", nil)
	w = httptest.NewRecorder()
	ts.srv.handleReport(w, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown id: got %d, want 404", w.Code)
	}
}

func TestHandleReport_CompareRequiresIDs(t *testing.T) {
	ts := newTestServer(t)
	ts.upload(t, "one.pdf", "pdf-one", "Paper One", "A")
	ts.upload(t, "two.pdf", "pdf-two", "Paper Two", "B")

	r := httptest.NewRequest(http.MethodGet, "/api/v1/report?compare=true", nil)
	w := httptest.NewRecorder()
	ts.srv.handleReport(w, r)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ids") {
		t.Errorf("error should name the ids parameter, got %s", w.Body.String())
	}
}

func TestHandleReport_Empty(t *testing.T) {
	ts := newTestServer(t)
	r := httptest.NewRequest(http.MethodGet, "/api/v1/report", nil)
	w := httptest.NewRecorder()
	ts.srv.handleReport(w, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	ts := newTestServer(t)
	ts.upload(t, "one.pdf", "pdf-one", "Paper One", "A")
	ts.upload(t, "two.pdf", "pdf-two", "Paper Two", "B")

	r := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	ts.srv.handleStatus(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Papers         int64 `json:"papers"`
		Chunks         int64 `json:"chunks"`
		IndexedPapers  int   `json:"indexed_papers"`
		DiskUsageBytes int64 `json:"disk_usage_bytes"`
		Config         struct {
			EmbeddingModel  string `json:"embedding_model"`
			GenerationModel string `json:"generation_model"`
			ChunkSize       int    `json:"chunk_size"`
		} `json:"config"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Papers != 2 || out.Chunks != 2 || out.IndexedPapers != 2 {
		t.Errorf("counts: got %d papers / %d chunks / %d indexed", out.Papers, out.Chunks, out.IndexedPapers)
	}
	if out.DiskUsageBytes < 1 {
		t.Errorf("disk_usage_bytes: got %d, want >= 1", out.DiskUsageBytes)
	}
	if out.Config.EmbeddingModel != "mock" || out.Config.GenerationModel != "mock" {
		t.Errorf("config echo: got %+v", out.Config)
	}
	if out.Config.ChunkSize != 50 {
		t.Errorf("chunk_size: got %d, want 50", out.Config.ChunkSize)
	}
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t)
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	ts.srv.handleHealth(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out map[string]string
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out["status"] != "ok" || out["embedding"] != "ok" || out["generation"] != "ok" {
		t.Errorf("health: got %v", out)
	}
}

func TestHandleHealth_Degraded(t *testing.T) {
	ts := newTestServer(t)
	ts.gen.Err = errors.New("connection refused")

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	ts.srv.handleHealth(w, r)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d, want 503", w.Code)
	}
	var out map[string]string
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out["status"] != "degraded" {
		t.Errorf("status field: got %q", out["status"])
	}
	if !strings.Contains(out["generation"], "connection refused") {
		t.Errorf("generation field: got %q", out["generation"])
	}
	if out["embedding"] != "ok" {
		t.Errorf("embedding field: got %q", out["embedding"])
	}
}

func TestRouter_BindsURLParams(t *testing.T) {
	ts := newTestServer(t)
	paper := ts.upload(t, "one.pdf", "pdf-one", "Paper One", "A")

	router := ts.srv.Router()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/papers/"+paper.ID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var got models.Paper
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.ID != paper.ID {
		t.Errorf("id: got %q, want %q", got.ID, paper.ID)
	}
}

func TestHandleWatchDirectoriesList(t *testing.T) {
	ts := newTestServer(t)
	ts.srv.watch = &mockWatchService{dirs: []string{"/tmp/papers"}}

	r := httptest.NewRequest(http.MethodGet, "/api/v1/watch/directories", nil)
	w := httptest.NewRecorder()
	ts.srv.handleListWatchDirectories(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	var out struct {
		Directories []string `json:"directories"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Directories) != 1 || out.Directories[0] != "/tmp/papers" {
		t.Errorf("directories: got %v", out.Directories)
	}
}

func TestHandleWatchDirectoriesList_NotEnabled(t *testing.T) {
	ts := newTestServer(t)
	r := httptest.NewRequest(http.MethodGet, "/api/v1/watch/directories", nil)
	w := httptest.NewRecorder()
	ts.srv.handleListWatchDirectories(w, r)
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status: got %d, want 501", w.Code)
	}
}

func TestHandleAddWatchDirectory(t *testing.T) {
	ts := newTestServer(t)
	mock := &mockWatchService{}
	ts.srv.watch = mock
	dir := t.TempDir()

	body, _ := json.Marshal(map[string]string{"path": dir})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/watch/directories", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.srv.handleAddWatchDirectory(w, r)
	if w.Code != http.StatusCreated {
		t.Errorf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	if len(mock.Directories()) != 1 {
		t.Errorf("expected 1 directory, got %v", mock.Directories())
	}
}

func TestHandleAddWatchDirectory_MissingPath(t *testing.T) {
	ts := newTestServer(t)
	ts.srv.watch = &mockWatchService{}

	body, _ := json.Marshal(map[string]string{"path": t.TempDir() + "/nonexistent"})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/watch/directories", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.srv.handleAddWatchDirectory(w, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
}

func TestHandleAddWatchDirectory_PersistsConfig(t *testing.T) {
	ts := newTestServer(t)
	ts.srv.watch = &mockWatchService{}
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	ts.srv.configPath = configPath
	dir := t.TempDir()

	body, _ := json.Marshal(map[string]string{"path": dir})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/watch/directories", bytes.NewReader(body))
	w := httptest.NewRecorder()
	ts.srv.handleAddWatchDirectory(w, r)
	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}

	saved, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("failed to load persisted config: %v", err)
	}
	if len(saved.Watch.Directories) != 1 || saved.Watch.Directories[0] != dir {
		t.Errorf("persisted directories: got %v", saved.Watch.Directories)
	}
}

func TestHandleRemoveWatchDirectory(t *testing.T) {
	ts := newTestServer(t)
	dir := t.TempDir()
	mock := &mockWatchService{dirs: []string{dir}}
	ts.srv.watch = mock

	r := httptest.NewRequest(http.MethodDelete, "/api/v1/watch/directories?path="+dir, nil)
	w := httptest.NewRecorder()
	ts.srv.handleRemoveWatchDirectory(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	if len(mock.Directories()) != 0 {
		t.Errorf("expected 0 directories, got %v", mock.Directories())
	}
}
