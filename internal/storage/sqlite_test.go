package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/ronbun/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStorage_CRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	paper := &models.Paper{
		ID:        "p1",
		Filename:  "attention.pdf",
		Title:     "Attention Is All You Need",
		Authors:   "Vaswani et al.",
		PageCount: 11,
		WordCount: 4200,
		Quality:   models.QualityScore{Methodology: 80, Data: 60, Citation: 70, Clarity: 90, Overall: 75},
		Embedding: []float32{0.6, 0.8, 0.0},
	}
	if err := store.CreatePaper(ctx, paper); err != nil {
		t.Fatal(err)
	}
	if paper.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := store.GetPaper(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Attention Is All You Need" || got.Filename != "attention.pdf" {
		t.Errorf("got %+v", got)
	}
	if got.Quality.Overall != 75 || got.Quality.Clarity != 90 {
		t.Errorf("quality not round-tripped: %+v", got.Quality)
	}
	if len(got.Embedding) != 3 || got.Embedding[1] != 0.8 {
		t.Errorf("embedding not round-tripped: %v", got.Embedding)
	}

	paper.Title = "Updated"
	paper.Quality.Overall = 80
	if err := store.UpdatePaper(ctx, paper); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetPaper(ctx, "p1")
	if got.Title != "Updated" || got.Quality.Overall != 80 {
		t.Errorf("expected updated paper, got %+v", got)
	}

	list, err := store.ListPapers(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 paper, got %d", len(list))
	}

	if err := store.DeletePaper(ctx, "p1"); err != nil {
		t.Fatal(err)
	}
	_, err = store.GetPaper(ctx, "p1")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSQLiteStorage_NotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetPaper(ctx, "nope"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("GetPaper: expected ErrNotFound, got %v", err)
	}
	if err := store.UpdatePaper(ctx, &models.Paper{ID: "nope"}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("UpdatePaper: expected ErrNotFound, got %v", err)
	}
	if err := store.DeletePaper(ctx, "nope"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("DeletePaper: expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetChunk(ctx, "nope"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("GetChunk: expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetPaperBySourcePath(ctx, "/inbox/nope.pdf"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("GetPaperBySourcePath: expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStorage_SourcePath(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.CreatePaper(ctx, &models.Paper{ID: "w1", Filename: "a.pdf", SourcePath: "/inbox/a.pdf"})
	_ = store.CreatePaper(ctx, &models.Paper{ID: "u1", Filename: "b.pdf"})

	got, err := store.GetPaperBySourcePath(ctx, "/inbox/a.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "w1" {
		t.Errorf("expected w1, got %s", got.ID)
	}
}

func TestSQLiteStorage_Chunks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.CreatePaper(ctx, &models.Paper{ID: "p1", Filename: "a.pdf"})

	chunks := []*models.Chunk{
		{ID: "p1_0", PaperID: "p1", ChunkIndex: 0, Page: 1, Content: "chunk zero", WordCount: 2},
		{ID: "p1_1", PaperID: "p1", ChunkIndex: 1, Page: 2, Content: "chunk one", WordCount: 2},
		{ID: "p1_2", PaperID: "p1", ChunkIndex: 2, Page: 3, Content: "chunk two", WordCount: 2},
	}
	if err := store.ReplaceChunks(ctx, "p1", chunks); err != nil {
		t.Fatal(err)
	}

	list, err := store.GetChunksByPaperID(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(list))
	}
	for i, c := range list {
		if c.ChunkIndex != i {
			t.Errorf("chunk %d out of order: index %d", i, c.ChunkIndex)
		}
	}

	got, err := store.GetChunk(ctx, "p1_1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != "chunk one" || got.Page != 2 {
		t.Errorf("got %+v", got)
	}

	// Replacing swaps the whole set, leaving nothing stale behind.
	if err := store.ReplaceChunks(ctx, "p1", []*models.Chunk{
		{ID: "p1_0", PaperID: "p1", ChunkIndex: 0, Page: 1, Content: "fresh", WordCount: 1},
	}); err != nil {
		t.Fatal(err)
	}
	list, _ = store.GetChunksByPaperID(ctx, "p1")
	if len(list) != 1 || list[0].Content != "fresh" {
		t.Errorf("expected single fresh chunk, got %+v", list)
	}
	if _, err := store.GetChunk(ctx, "p1_2"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("stale chunk still present: %v", err)
	}
}

func TestSQLiteStorage_CascadeDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.CreatePaper(ctx, &models.Paper{ID: "p1", Filename: "a.pdf"})
	_ = store.ReplaceChunks(ctx, "p1", []*models.Chunk{
		{ID: "p1_0", PaperID: "p1", ChunkIndex: 0, Page: 1, Content: "c", WordCount: 1},
		{ID: "p1_1", PaperID: "p1", ChunkIndex: 1, Page: 1, Content: "c", WordCount: 1},
	})

	if err := store.DeletePaper(ctx, "p1"); err != nil {
		t.Fatal(err)
	}
	n, err := store.CountChunks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expected chunks cascaded, got %d", n)
	}
}

func TestSQLiteStorage_ListAll(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_ = store.CreatePaper(ctx, &models.Paper{ID: id, Filename: id + ".pdf"})
	}

	// Negative limit means no limit.
	list, err := store.ListPapers(ctx, 0, -1)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Errorf("expected 3 papers, got %d", len(list))
	}

	list, _ = store.ListPapers(ctx, 1, 1)
	if len(list) != 1 {
		t.Errorf("expected 1 paper with offset/limit, got %d", len(list))
	}
}

func TestSQLiteStorage_Counts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	n, err := store.CountPapers(ctx)
	if err != nil || n != 0 {
		t.Errorf("CountPapers: %v, %d", err, n)
	}
	_ = store.CreatePaper(ctx, &models.Paper{ID: "x", Filename: "x.pdf"})
	n, _ = store.CountPapers(ctx)
	if n != 1 {
		t.Errorf("expected 1 paper, got %d", n)
	}
	_ = store.ReplaceChunks(ctx, "x", []*models.Chunk{
		{ID: "x_0", PaperID: "x", ChunkIndex: 0, Page: 1, Content: "c", WordCount: 1},
	})
	n, _ = store.CountChunks(ctx)
	if n != 1 {
		t.Errorf("expected 1 chunk, got %d", n)
	}
}
