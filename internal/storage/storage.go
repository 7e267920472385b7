// Package storage defines the persistence interface for papers and chunks.
package storage

import (
	"context"

	"github.com/hyperjump/ronbun/internal/models"
)

// Storage defines paper and chunk persistence operations.
type Storage interface {
	// Paper operations
	CreatePaper(ctx context.Context, paper *models.Paper) error
	GetPaper(ctx context.Context, id string) (*models.Paper, error)
	GetPaperBySourcePath(ctx context.Context, path string) (*models.Paper, error)
	UpdatePaper(ctx context.Context, paper *models.Paper) error
	DeletePaper(ctx context.Context, id string) error
	ListPapers(ctx context.Context, offset, limit int) ([]*models.Paper, error)

	// Chunk operations
	GetChunk(ctx context.Context, id string) (*models.Chunk, error)
	GetChunksByPaperID(ctx context.Context, paperID string) ([]*models.Chunk, error)
	// ReplaceChunks atomically swaps a paper's chunk set: existing chunks are
	// deleted and the given ones inserted in a single transaction, so
	// re-ingesting a paper never leaves stale chunks behind.
	ReplaceChunks(ctx context.Context, paperID string, chunks []*models.Chunk) error

	// Stats
	CountPapers(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}
