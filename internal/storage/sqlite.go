// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/ronbun/internal/models"
	"github.com/hyperjump/ronbun/pkg/utils"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	// go-sqlite3 keeps foreign keys off unless asked, which would turn the
	// ON DELETE CASCADE below into a no-op.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS papers (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		title TEXT,
		authors TEXT,
		page_count INTEGER NOT NULL DEFAULT 0,
		word_count INTEGER NOT NULL DEFAULT 0,
		chunk_count INTEGER NOT NULL DEFAULT 0,
		methodology_score INTEGER NOT NULL DEFAULT 0,
		data_score INTEGER NOT NULL DEFAULT 0,
		citation_score INTEGER NOT NULL DEFAULT 0,
		clarity_score INTEGER NOT NULL DEFAULT 0,
		overall_score INTEGER NOT NULL DEFAULT 0,
		source_path TEXT,
		embedding BLOB,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_papers_created_at ON papers(created_at);
	CREATE INDEX IF NOT EXISTS idx_papers_source_path ON papers(source_path);

	CREATE TABLE IF NOT EXISTS paper_chunks (
		id TEXT PRIMARY KEY,
		paper_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		page INTEGER NOT NULL,
		content TEXT NOT NULL,
		word_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (paper_id) REFERENCES papers(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_paper_id ON paper_chunks(paper_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_paper_chunk ON paper_chunks(paper_id, chunk_index);
	`
	_, err := db.Exec(schema)
	return err
}

const paperColumns = `id, filename, title, authors, page_count, word_count, chunk_count,
	 methodology_score, data_score, citation_score, clarity_score, overall_score,
	 source_path, embedding, created_at, updated_at`

// CreatePaper inserts a paper.
func (s *SQLiteStorage) CreatePaper(ctx context.Context, paper *models.Paper) error {
	now := time.Now()
	paper.CreatedAt = now
	paper.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO papers (`+paperColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		paper.ID, paper.Filename, paper.Title, paper.Authors,
		paper.PageCount, paper.WordCount, paper.ChunkCount,
		paper.Quality.Methodology, paper.Quality.Data, paper.Quality.Citation,
		paper.Quality.Clarity, paper.Quality.Overall,
		paper.SourcePath, encodeEmbedding(paper.Embedding),
		paper.CreatedAt, paper.UpdatedAt,
	)
	return err
}

// GetPaper returns a paper by ID.
func (s *SQLiteStorage) GetPaper(ctx context.Context, id string) (*models.Paper, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+paperColumns+` FROM papers WHERE id = ?`, id)
	paper, err := scanPaper(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("paper %s: %w", id, models.ErrNotFound)
	}
	return paper, err
}

// GetPaperBySourcePath returns the paper ingested from the given watched-file
// path, used to recognize files the watcher has already processed.
func (s *SQLiteStorage) GetPaperBySourcePath(ctx context.Context, path string) (*models.Paper, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+paperColumns+` FROM papers WHERE source_path = ?`, path)
	paper, err := scanPaper(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("paper for %s: %w", path, models.ErrNotFound)
	}
	return paper, err
}

// UpdatePaper updates an existing paper.
func (s *SQLiteStorage) UpdatePaper(ctx context.Context, paper *models.Paper) error {
	paper.UpdatedAt = time.Now()

	result, err := s.db.ExecContext(ctx,
		`UPDATE papers SET filename = ?, title = ?, authors = ?,
		 page_count = ?, word_count = ?, chunk_count = ?,
		 methodology_score = ?, data_score = ?, citation_score = ?,
		 clarity_score = ?, overall_score = ?,
		 source_path = ?, embedding = ?, updated_at = ?
		 WHERE id = ?`,
		paper.Filename, paper.Title, paper.Authors,
		paper.PageCount, paper.WordCount, paper.ChunkCount,
		paper.Quality.Methodology, paper.Quality.Data, paper.Quality.Citation,
		paper.Quality.Clarity, paper.Quality.Overall,
		paper.SourcePath, encodeEmbedding(paper.Embedding), paper.UpdatedAt,
		paper.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("paper %s: %w", paper.ID, models.ErrNotFound)
	}
	return nil
}

// DeletePaper removes a paper by ID. Its chunks go with it via the
// foreign-key cascade.
func (s *SQLiteStorage) DeletePaper(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM papers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("paper %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// ListPapers returns papers ordered by creation time, newest first.
// A negative limit returns all papers from offset onward.
func (s *SQLiteStorage) ListPapers(ctx context.Context, offset, limit int) ([]*models.Paper, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+paperColumns+`
		 FROM papers ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var papers []*models.Paper
	for rows.Next() {
		paper, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		papers = append(papers, paper)
	}
	return papers, rows.Err()
}

// GetChunk returns a chunk by ID.
func (s *SQLiteStorage) GetChunk(ctx context.Context, id string) (*models.Chunk, error) {
	var chunk models.Chunk
	err := s.db.QueryRowContext(ctx,
		`SELECT id, paper_id, chunk_index, page, content, word_count, created_at
		 FROM paper_chunks WHERE id = ?`, id,
	).Scan(&chunk.ID, &chunk.PaperID, &chunk.ChunkIndex, &chunk.Page,
		&chunk.Content, &chunk.WordCount, &chunk.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chunk %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &chunk, nil
}

// GetChunksByPaperID returns all chunks for a paper ordered by chunk_index.
func (s *SQLiteStorage) GetChunksByPaperID(ctx context.Context, paperID string) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, paper_id, chunk_index, page, content, word_count, created_at
		 FROM paper_chunks WHERE paper_id = ? ORDER BY chunk_index`,
		paperID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		var chunk models.Chunk
		if err := rows.Scan(&chunk.ID, &chunk.PaperID, &chunk.ChunkIndex, &chunk.Page,
			&chunk.Content, &chunk.WordCount, &chunk.CreatedAt); err != nil {
			return nil, err
		}
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

// ReplaceChunks deletes a paper's existing chunks and inserts the given ones
// in a single transaction.
func (s *SQLiteStorage) ReplaceChunks(ctx context.Context, paperID string, chunks []*models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM paper_chunks WHERE paper_id = ?`, paperID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO paper_chunks (id, paper_id, chunk_index, page, content, word_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, chunk := range chunks {
		chunk.CreatedAt = now
		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.PaperID, chunk.ChunkIndex,
			chunk.Page, chunk.Content, chunk.WordCount, chunk.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CountPapers returns the total number of papers.
func (s *SQLiteStorage) CountPapers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM papers`).Scan(&count)
	return count, err
}

// CountChunks returns the total number of chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM paper_chunks`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func encodeEmbedding(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	return utils.EncodeFloat32s(vec)
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPaper(row scanner) (*models.Paper, error) {
	var paper models.Paper
	var blob []byte
	err := row.Scan(&paper.ID, &paper.Filename, &paper.Title, &paper.Authors,
		&paper.PageCount, &paper.WordCount, &paper.ChunkCount,
		&paper.Quality.Methodology, &paper.Quality.Data, &paper.Quality.Citation,
		&paper.Quality.Clarity, &paper.Quality.Overall,
		&paper.SourcePath, &blob, &paper.CreatedAt, &paper.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(blob) > 0 {
		paper.Embedding = utils.DecodeFloat32s(blob)
	}
	return &paper, nil
}
