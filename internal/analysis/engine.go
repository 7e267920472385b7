// Package analysis provides the orchestrating engine for paper ingest,
// citation-grounded question answering, quality scoring, and comparison.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/ronbun/internal/catalog"
	"github.com/hyperjump/ronbun/internal/chunk"
	"github.com/hyperjump/ronbun/internal/citation"
	"github.com/hyperjump/ronbun/internal/compare"
	"github.com/hyperjump/ronbun/internal/config"
	"github.com/hyperjump/ronbun/internal/embedding"
	"github.com/hyperjump/ronbun/internal/extract"
	"github.com/hyperjump/ronbun/internal/fileid"
	"github.com/hyperjump/ronbun/internal/generation"
	"github.com/hyperjump/ronbun/internal/models"
	"github.com/hyperjump/ronbun/internal/quality"
	"github.com/hyperjump/ronbun/internal/retrieval"
	"github.com/hyperjump/ronbun/internal/storage"
)

// Engine coordinates the full paper lifecycle. Collaborator calls (embedding,
// generation) run outside the per-paper exclusion scopes; only reads and
// mutations of the shared paper state run inside them.
type Engine struct {
	cfg       *config.Config
	store     storage.Storage
	retriever *retrieval.Retriever
	catalog   catalog.Catalog
	extractor extract.Extractor
	embedder  embedding.Embedder
	generator generation.Generator
	chunker   *chunk.Chunker
	scorer    *quality.Scorer
	logger    *zap.Logger
	locks     *paperLocks
}

// NewEngine wires an engine from its collaborators. The chunker and scorer
// are derived from cfg.
func NewEngine(
	cfg *config.Config,
	store storage.Storage,
	retriever *retrieval.Retriever,
	cat catalog.Catalog,
	extractor extract.Extractor,
	embedder embedding.Embedder,
	generator generation.Generator,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		cfg:       cfg,
		store:     store,
		retriever: retriever,
		catalog:   cat,
		extractor: extractor,
		embedder:  embedder,
		generator: generator,
		chunker:   chunk.NewChunker(cfg.Analysis.ChunkSize, cfg.Analysis.ChunkOverlap),
		scorer:    quality.NewScorer(),
		logger:    logger,
		locks:     newPaperLocks(),
	}
}

// Ingest processes an uploaded PDF end to end: extract, chunk, score, embed,
// then atomically publish the paper. The returned paper carries its quality
// score.
func (e *Engine) Ingest(ctx context.Context, filename string, content []byte) (*models.Paper, error) {
	if filename == "" {
		return nil, fmt.Errorf("ingest: filename is empty: %w", models.ErrInvalidInput)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("ingest %s: file is empty: %w", filename, models.ErrInvalidInput)
	}
	return e.ingest(ctx, newPaperID(), filename, "", content)
}

// IngestFile ingests a PDF from a watched or local path. The paper id is
// derived from the absolute path, so re-ingesting the same file updates the
// same paper instead of creating a new one.
func (e *Engine) IngestFile(ctx context.Context, path string) (*models.Paper, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("ingest file %s: %w", path, err)
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("ingest file %s: %w", absPath, err)
	}
	return e.ingest(ctx, fileid.PaperID(absPath), filepath.Base(absPath), absPath, content)
}

func (e *Engine) ingest(ctx context.Context, paperID, filename, sourcePath string, content []byte) (*models.Paper, error) {
	started := time.Now()

	extraction, err := e.extractor.ExtractBytes(content)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", filename, err)
	}
	chunks, err := e.chunker.Split(paperID, extraction.Pages)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", filename, err)
	}
	score := e.scorer.Score(chunks)

	// Embedding happens before the paper's write scope is taken: a slow
	// collaborator must not block readers of the previous version.
	prepared, err := e.retriever.BuildIndex(ctx, paperID, chunks)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", filename, err)
	}

	wordCount := 0
	for _, page := range extraction.Pages {
		wordCount += len(strings.Fields(page.Text))
	}
	paper := &models.Paper{
		ID:         paperID,
		Filename:   filename,
		Title:      extraction.Title,
		Authors:    extraction.Authors,
		PageCount:  extraction.PageCount,
		WordCount:  wordCount,
		ChunkCount: len(chunks),
		Quality:    score,
		SourcePath: sourcePath,
		Embedding:  prepared.Aggregate,
	}

	unlock := e.locks.Lock(paperID)
	defer unlock()

	existing := true
	if _, err := e.store.GetPaper(ctx, paperID); err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("ingest %s: %w", filename, err)
		}
		existing = false
	}
	if existing {
		err = e.store.UpdatePaper(ctx, paper)
	} else {
		err = e.store.CreatePaper(ctx, paper)
	}
	if err != nil {
		return nil, fmt.Errorf("ingest %s: failed to store paper: %w", filename, err)
	}
	if err := e.store.ReplaceChunks(ctx, paperID, chunks); err != nil {
		e.rollbackIngest(ctx, paperID, existing)
		return nil, fmt.Errorf("ingest %s: failed to store chunks: %w", filename, err)
	}
	if err := e.retriever.Install(prepared); err != nil {
		e.rollbackIngest(ctx, paperID, existing)
		return nil, fmt.Errorf("ingest %s: %w", filename, err)
	}
	if err := e.catalog.Index(ctx, paperID, paper.Title, paper.Authors, paper.Filename); err != nil {
		e.rollbackIngest(ctx, paperID, existing)
		return nil, fmt.Errorf("ingest %s: failed to index catalog: %w", filename, err)
	}

	e.logger.Info("paper ingested",
		zap.String("paper_id", paperID),
		zap.String("filename", filename),
		zap.Int("pages", paper.PageCount),
		zap.Int("chunks", paper.ChunkCount),
		zap.Int("overall_score", score.Overall),
		zap.Duration("elapsed", time.Since(started)))
	return paper, nil
}

// rollbackIngest undoes a half-applied ingest so a failed ingest leaves no
// partially visible paper. For a re-ingest the previous version cannot be
// restored; the paper is removed entirely rather than left inconsistent.
func (e *Engine) rollbackIngest(ctx context.Context, paperID string, existed bool) {
	if err := e.store.DeletePaper(ctx, paperID); err != nil && !errors.Is(err, models.ErrNotFound) {
		e.logger.Warn("ingest rollback: delete paper failed", zap.String("paper_id", paperID), zap.Error(err))
	}
	if err := e.retriever.Remove(paperID); err != nil {
		e.logger.Warn("ingest rollback: remove index failed", zap.String("paper_id", paperID), zap.Error(err))
	}
	if err := e.catalog.Delete(ctx, paperID); err != nil {
		e.logger.Warn("ingest rollback: catalog delete failed", zap.String("paper_id", paperID), zap.Error(err))
	}
	if existed {
		e.logger.Warn("ingest rollback removed the previous paper version", zap.String("paper_id", paperID))
	}
}

// Summarize generates a cited four-section summary of one paper.
func (e *Engine) Summarize(ctx context.Context, paperID string) (*models.Answer, error) {
	retrieved, err := e.retrieveForAnswer(ctx, paperID, summaryQuery, 0)
	if err != nil {
		return nil, fmt.Errorf("summarize paper %s: %w", paperID, err)
	}
	answer, err := e.generateAnswer(ctx, paperID, buildSummaryPrompt(retrieved), retrieved)
	if err != nil {
		return nil, fmt.Errorf("summarize paper %s: %w", paperID, err)
	}
	return answer, nil
}

// Ask answers a question about one paper from retrieved excerpts.
func (e *Engine) Ask(ctx context.Context, paperID string, req *models.AskRequest) (*models.Answer, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("ask paper %s: %w", paperID, err)
	}
	retrieved, err := e.retrieveForAnswer(ctx, paperID, req.Question, req.K)
	if err != nil {
		return nil, fmt.Errorf("ask paper %s: %w", paperID, err)
	}
	answer, err := e.generateAnswer(ctx, paperID, buildAskPrompt(req.Question, retrieved), retrieved)
	if err != nil {
		return nil, fmt.Errorf("ask paper %s: %w", paperID, err)
	}
	return answer, nil
}

// retrieveForAnswer checks the paper exists and retrieves grounding chunks
// under the paper's read scope.
func (e *Engine) retrieveForAnswer(ctx context.Context, paperID, query string, k int) ([]*models.RetrievedChunk, error) {
	if k <= 0 {
		k = e.cfg.Analysis.RetrieveK
	}
	unlock := e.locks.RLock(paperID)
	defer unlock()

	if _, err := e.store.GetPaper(ctx, paperID); err != nil {
		return nil, err
	}
	return e.retriever.Retrieve(ctx, paperID, query, k)
}

// generateAnswer runs the generation call (outside any scope: the grounding
// set is already copied out) and assembles the cited answer.
func (e *Engine) generateAnswer(ctx context.Context, paperID, prompt string, retrieved []*models.RetrievedChunk) (*models.Answer, error) {
	started := time.Now()
	text, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	citations := citation.Extract(text)
	pages := citation.Pages(citations)
	return &models.Answer{
		PaperID:    paperID,
		Text:       text,
		CitedPages: pages,
		ChunksUsed: len(retrieved),
		Confidence: citation.Confidence(pages, retrieved),
		Model:      e.generator.Model(),
		ElapsedMS:  time.Since(started).Milliseconds(),
	}, nil
}

// Compare builds a six-section comparative report plus a similarity matrix
// for 2-5 papers. A failed generation degrades to empty sections as long as
// the similarity matrix can still be computed; if both halves are impossible
// the call errors.
func (e *Engine) Compare(ctx context.Context, req *models.CompareRequest) (*models.Comparison, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	started := time.Now()

	// Read everything under the union of read scopes, then release before
	// the generation call.
	papers, retrieved, err := e.collectComparison(ctx, req.PaperIDs)
	if err != nil {
		return nil, err
	}

	embeddings := make([][]float32, len(papers))
	matrixOK := true
	for i, paper := range papers {
		embeddings[i] = paper.Embedding
		if len(paper.Embedding) == 0 {
			matrixOK = false
		}
	}
	matrix := compare.SimilarityMatrix(embeddings)

	sections := make(map[string]string, len(compare.SectionKeys))
	text, genErr := e.generator.Generate(ctx, compare.BuildPrompt(papers, retrieved))
	if genErr == nil {
		sections = compare.ParseSections(text)
	} else {
		if !matrixOK {
			return nil, fmt.Errorf("compare papers %s: %w", strings.Join(req.PaperIDs, ","), genErr)
		}
		e.logger.Warn("compare degraded to similarity matrix only",
			zap.Strings("paper_ids", req.PaperIDs), zap.Error(genErr))
		for _, key := range compare.SectionKeys {
			sections[key] = ""
		}
	}

	out := &models.Comparison{
		Papers:           make([]models.ComparisonPaper, len(papers)),
		Sections:         sections,
		SimilarityMatrix: matrix,
		Mode:             req.Mode,
		Model:            e.generator.Model(),
		ElapsedMS:        time.Since(started).Milliseconds(),
	}
	for i, paper := range papers {
		out.Papers[i] = models.ComparisonPaper{ID: paper.ID, Filename: paper.Filename, Title: paper.Title}
	}
	return out, nil
}

// collectComparison loads papers and their top excerpts under the union of
// the papers' read scopes, in request order.
func (e *Engine) collectComparison(ctx context.Context, paperIDs []string) ([]*models.Paper, map[string][]*models.RetrievedChunk, error) {
	unlock := e.locks.RLockAll(paperIDs)
	defer unlock()

	papers := make([]*models.Paper, len(paperIDs))
	for i, id := range paperIDs {
		paper, err := e.store.GetPaper(ctx, id)
		if err != nil {
			return nil, nil, fmt.Errorf("compare: %w", err)
		}
		papers[i] = paper
	}

	retrieved, err := e.retriever.RetrieveMulti(ctx, paperIDs, comparisonQuery, e.cfg.Analysis.CompareChunksPerPaper)
	if err != nil {
		return nil, nil, fmt.Errorf("compare: %w", err)
	}
	return papers, retrieved, nil
}

// Delete removes a paper, its chunks, vectors, catalog entry, and stored
// upload. Idempotent: deleting an absent paper succeeds.
func (e *Engine) Delete(ctx context.Context, paperID string) error {
	unlock := e.locks.Lock(paperID)
	defer unlock()

	if err := e.store.DeletePaper(ctx, paperID); err != nil && !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("delete paper %s: %w", paperID, err)
	}
	if err := e.retriever.Remove(paperID); err != nil {
		return fmt.Errorf("delete paper %s: %w", paperID, err)
	}
	if err := e.catalog.Delete(ctx, paperID); err != nil {
		return fmt.Errorf("delete paper %s: failed to remove catalog entry: %w", paperID, err)
	}
	if err := os.Remove(e.uploadPath(paperID)); err != nil && !os.IsNotExist(err) {
		e.logger.Warn("delete: stored upload not removed", zap.String("paper_id", paperID), zap.Error(err))
	}

	e.logger.Info("paper deleted", zap.String("paper_id", paperID))
	return nil
}

// DeleteBySourcePath removes the paper that was ingested from the given
// path. No-op when the path was never ingested.
func (e *Engine) DeleteBySourcePath(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("delete by path %s: %w", path, err)
	}
	paper, err := e.store.GetPaperBySourcePath(ctx, abs)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete by path %s: %w", abs, err)
	}
	return e.Delete(ctx, paper.ID)
}

// GetPaper returns one paper with its quality score.
func (e *Engine) GetPaper(ctx context.Context, paperID string) (*models.Paper, error) {
	unlock := e.locks.RLock(paperID)
	defer unlock()
	return e.store.GetPaper(ctx, paperID)
}

// ListPapers returns papers newest first. limit <= 0 returns all.
func (e *Engine) ListPapers(ctx context.Context, offset, limit int) ([]*models.Paper, error) {
	if limit == 0 {
		limit = -1
	}
	return e.store.ListPapers(ctx, offset, limit)
}

// SearchCatalog searches paper metadata; on zero hits the result carries
// query suggestions.
func (e *Engine) SearchCatalog(ctx context.Context, query string, limit int) (*catalog.Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("catalog search: query is empty: %w", models.ErrInvalidInput)
	}
	return e.catalog.Search(ctx, query, limit)
}

// GetChunks returns a paper's chunks in order, for debugging and export.
func (e *Engine) GetChunks(ctx context.Context, paperID string) ([]*models.Chunk, error) {
	unlock := e.locks.RLock(paperID)
	defer unlock()

	if _, err := e.store.GetPaper(ctx, paperID); err != nil {
		return nil, err
	}
	return e.store.GetChunksByPaperID(ctx, paperID)
}

// Status reports corpus counters and disk usage.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	papers, err := e.store.CountPapers(ctx)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	chunks, err := e.store.CountChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	disk, err := storage.DiskUsageBytes(
		e.cfg.Storage.DatabasePath,
		e.cfg.Storage.CatalogIndexPath,
		e.cfg.Storage.VectorDir,
		e.cfg.Storage.UploadsDir,
	)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	return &Status{
		Papers:          papers,
		Chunks:          chunks,
		IndexedPapers:   e.retriever.Count(),
		DiskBytes:       disk,
		EmbeddingModel:  embeddingLabel(e.cfg),
		GenerationModel: e.generator.Model(),
		WatchedDirs:     e.cfg.Watch.Directories,
	}, nil
}

// Health pings the embedding and generation collaborators.
func (e *Engine) Health(ctx context.Context) *Health {
	h := &Health{Embedding: "ok", Generation: "ok"}
	if err := e.embedder.Ping(ctx); err != nil {
		h.Embedding = err.Error()
	}
	if err := e.generator.Ping(ctx); err != nil {
		h.Generation = err.Error()
	}
	return h
}

// Status is the corpus-level state surfaced by the status endpoint and CLI.
type Status struct {
	Papers          int64    `json:"papers"`
	Chunks          int64    `json:"chunks"`
	IndexedPapers   int      `json:"indexed_papers"`
	DiskBytes       int64    `json:"disk_bytes"`
	EmbeddingModel  string   `json:"embedding_model"`
	GenerationModel string   `json:"generation_model"`
	WatchedDirs     []string `json:"watched_dirs,omitempty"`
}

// Health reports collaborator reachability; a field is "ok" or the error.
type Health struct {
	Embedding  string `json:"embedding"`
	Generation string `json:"generation"`
}

// Healthy reports whether every collaborator answered the ping.
func (h *Health) Healthy() bool {
	return h.Embedding == "ok" && h.Generation == "ok"
}

// uploadPath is where Ingest's callers store the original upload.
func (e *Engine) uploadPath(paperID string) string {
	return filepath.Join(e.cfg.Storage.UploadsDir, paperID+".pdf")
}

// UploadPath returns the storage location for a paper's original PDF.
func (e *Engine) UploadPath(paperID string) string {
	return e.uploadPath(paperID)
}

func newPaperID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

func embeddingLabel(cfg *config.Config) string {
	switch cfg.Embedding.Provider {
	case "onnx":
		return "onnx:" + filepath.Base(cfg.Embedding.ModelPath)
	case "mock":
		return "mock"
	default:
		return cfg.Embedding.Provider + ":" + cfg.Embedding.Model
	}
}
