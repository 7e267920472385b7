// Package retrieval maintains one vector index per paper and answers
// top-k chunk queries against them.
package retrieval

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/ronbun/internal/embedding"
	"github.com/hyperjump/ronbun/internal/models"
	"github.com/hyperjump/ronbun/internal/storage"
	"github.com/hyperjump/ronbun/internal/vector"
	"github.com/hyperjump/ronbun/pkg/utils"
)

// DefaultTopK is the number of chunks retrieved when the caller does not ask
// for a specific k.
const DefaultTopK = 8

// Retriever owns the per-paper vector indexes. Questions never cross paper
// boundaries: each paper gets its own index, built at ingest and swapped in
// atomically, so re-ingesting a paper can never serve a half-built index.
type Retriever struct {
	storage   storage.Storage
	embedder  embedding.Embedder
	vectorDir string
	topK      int
	logger    *zap.Logger // optional; when set, logs debug events

	mu      sync.RWMutex
	indexes map[string]*vector.MemoryIndex
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithLogger sets a logger for debug output (index built, index loaded, etc.).
func WithLogger(l *zap.Logger) RetrieverOption {
	return func(r *Retriever) { r.logger = l }
}

// NewRetriever creates a retriever persisting indexes under vectorDir.
// topK <= 0 falls back to DefaultTopK.
func NewRetriever(
	store storage.Storage,
	embedder embedding.Embedder,
	vectorDir string,
	topK int,
	opts ...RetrieverOption,
) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	r := &Retriever{
		storage:   store,
		embedder:  embedder,
		vectorDir: vectorDir,
		topK:      topK,
		indexes:   make(map[string]*vector.MemoryIndex),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PreparedIndex is a fully built per-paper index that readers cannot see yet.
// Build happens outside any exclusion scope; Install publishes it.
type PreparedIndex struct {
	// PaperID is the paper the index belongs to.
	PaperID string
	// Aggregate is the paper-level embedding: the mean of the chunk
	// embeddings, re-normalized to unit length.
	Aggregate []float32

	index  *vector.MemoryIndex
	chunks int
}

// BuildIndex embeds the paper's chunks and builds a fresh vector index
// without publishing it. No shared state is touched, so callers hold no lock
// around the embedding round-trip. Chunk embeddings are written back onto
// the chunks for callers that need them.
func (r *Retriever) BuildIndex(ctx context.Context, paperID string, chunks []*models.Chunk) (*PreparedIndex, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("index paper %s: no chunks: %w", paperID, models.ErrInvalidInput)
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	embeddings, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}

	idx, err := vector.NewMemoryIndex(r.embedder.Dimensions())
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		ids[i] = ch.ID
		ch.Embedding = embeddings[i]
	}
	if err := idx.Add(ctx, ids, embeddings); err != nil {
		return nil, fmt.Errorf("failed to build vector index: %w", err)
	}

	agg := utils.MeanVector(embeddings)
	utils.NormalizeL2(agg)

	return &PreparedIndex{
		PaperID:   paperID,
		Aggregate: agg,
		index:     idx,
		chunks:    len(chunks),
	}, nil
}

// Install publishes a prepared index, replacing any previous index of the
// same paper, and persists it to disk. Callers serialize Install against
// readers of the same paper.
func (r *Retriever) Install(p *PreparedIndex) error {
	if err := p.index.Save(r.indexPath(p.PaperID)); err != nil {
		return fmt.Errorf("failed to persist vector index: %w", err)
	}

	r.mu.Lock()
	r.indexes[p.PaperID] = p.index
	r.mu.Unlock()

	if r.logger != nil {
		r.logger.Debug("retrieval index installed",
			zap.String("paper_id", p.PaperID),
			zap.Int("chunks", p.chunks),
			zap.Int("dimensions", r.embedder.Dimensions()))
	}
	return nil
}

// Index is BuildIndex followed by Install, for callers that need no phase
// separation. It returns the paper-level aggregate embedding.
func (r *Retriever) Index(ctx context.Context, paperID string, chunks []*models.Chunk) ([]float32, error) {
	prepared, err := r.BuildIndex(ctx, paperID, chunks)
	if err != nil {
		return nil, err
	}
	if err := r.Install(prepared); err != nil {
		return nil, err
	}
	return prepared.Aggregate, nil
}

// Retrieve returns the top-k chunks of one paper ranked by similarity to the
// query. k <= 0 uses the retriever's default. The error wraps
// models.ErrNotFound when the paper has no index.
func (r *Retriever) Retrieve(ctx context.Context, paperID, query string, k int) ([]*models.RetrievedChunk, error) {
	idx := r.index(paperID)
	if idx == nil {
		return nil, fmt.Errorf("paper %s has no index: %w", paperID, models.ErrNotFound)
	}
	queryEmbedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return r.search(ctx, idx, queryEmbedding, k)
}

// RetrieveMulti runs the same query against several papers and returns the
// per-paper top-k sets. The query is embedded once. Any paper without an
// index fails the whole call with models.ErrNotFound.
func (r *Retriever) RetrieveMulti(ctx context.Context, paperIDs []string, query string, k int) (map[string][]*models.RetrievedChunk, error) {
	indexes := make(map[string]*vector.MemoryIndex, len(paperIDs))
	for _, id := range paperIDs {
		idx := r.index(id)
		if idx == nil {
			return nil, fmt.Errorf("paper %s has no index: %w", id, models.ErrNotFound)
		}
		indexes[id] = idx
	}

	queryEmbedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	out := make(map[string][]*models.RetrievedChunk, len(paperIDs))
	for id, idx := range indexes {
		retrieved, err := r.search(ctx, idx, queryEmbedding, k)
		if err != nil {
			return nil, err
		}
		out[id] = retrieved
	}
	return out, nil
}

func (r *Retriever) search(ctx context.Context, idx *vector.MemoryIndex, queryEmbedding []float32, k int) ([]*models.RetrievedChunk, error) {
	if k <= 0 {
		k = r.topK
	}
	results, err := idx.Search(ctx, queryEmbedding, k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	retrieved := make([]*models.RetrievedChunk, 0, len(results))
	for _, res := range results {
		chunk, err := r.storage.GetChunk(ctx, res.ID)
		if err != nil {
			if r.logger != nil {
				r.logger.Debug("retrieval skipping chunk missing from storage",
					zap.String("chunk_id", res.ID))
			}
			continue
		}
		retrieved = append(retrieved, &models.RetrievedChunk{
			Chunk: chunk,
			Score: res.Score,
			Rank:  len(retrieved) + 1,
		})
	}
	return retrieved, nil
}

// Remove drops a paper's index from memory and disk. Unknown papers are a
// no-op so delete stays idempotent across restarts.
func (r *Retriever) Remove(paperID string) error {
	r.mu.Lock()
	delete(r.indexes, paperID)
	r.mu.Unlock()

	if err := os.Remove(r.indexPath(paperID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove vector index file: %w", err)
	}
	return nil
}

// LoadAll restores the indexes of all stored papers from vectorDir. Papers
// whose vector file is missing or unreadable are skipped with a warning;
// they stay listed but are not retrievable until re-ingested. Returns the
// number of indexes loaded.
func (r *Retriever) LoadAll(ctx context.Context) (int, error) {
	papers, err := r.storage.ListPapers(ctx, 0, -1)
	if err != nil {
		return 0, fmt.Errorf("failed to list papers: %w", err)
	}

	loaded := 0
	for _, paper := range papers {
		idx, err := vector.NewMemoryIndex(r.embedder.Dimensions())
		if err != nil {
			return loaded, err
		}
		if err := idx.Load(r.indexPath(paper.ID)); err != nil {
			if r.logger != nil {
				r.logger.Warn("retrieval failed to load vector index",
					zap.String("paper_id", paper.ID), zap.Error(err))
			}
			continue
		}
		if idx.Size() == 0 {
			if r.logger != nil {
				r.logger.Warn("retrieval found no vector file for paper",
					zap.String("paper_id", paper.ID))
			}
			continue
		}
		r.mu.Lock()
		r.indexes[paper.ID] = idx
		r.mu.Unlock()
		loaded++
	}

	if r.logger != nil {
		r.logger.Debug("retrieval indexes loaded",
			zap.Int("loaded", loaded), zap.Int("papers", len(papers)))
	}
	return loaded, nil
}

// Count returns the number of papers with a live index.
func (r *Retriever) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.indexes)
}

func (r *Retriever) index(paperID string) *vector.MemoryIndex {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.indexes[paperID]
}

func (r *Retriever) indexPath(paperID string) string {
	return filepath.Join(r.vectorDir, paperID+".vec")
}
