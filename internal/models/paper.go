// Package models defines core data structures for papers, chunks, answers, and comparisons.
package models

import "time"

// PageText is the extracted plain text of one PDF page.
type PageText struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

// Paper represents an ingested paper with metadata and its quality score.
type Paper struct {
	ID         string       `json:"id" db:"id"`
	Filename   string       `json:"filename" db:"filename"`
	Title      string       `json:"title,omitempty" db:"title"`
	Authors    string       `json:"authors,omitempty" db:"authors"`
	PageCount  int          `json:"page_count" db:"page_count"`
	WordCount  int          `json:"word_count" db:"word_count"`
	ChunkCount int          `json:"chunk_count" db:"chunk_count"`
	Quality    QualityScore `json:"quality"`
	// SourcePath is set for papers ingested from a watched directory.
	SourcePath string `json:"source_path,omitempty" db:"source_path"`
	// Embedding is the mean-pooled, L2-normalized chunk embedding used for
	// paper-level similarity. Runtime and storage only, never serialized.
	Embedding []float32 `json:"-" db:"-"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Chunk is a contiguous word-window of a paper's text with page provenance.
// Chunks are immutable once created and live exactly as long as their paper.
type Chunk struct {
	ID         string    `json:"id" db:"id"`
	PaperID    string    `json:"paper_id" db:"paper_id"`
	ChunkIndex int       `json:"chunk_index" db:"chunk_index"`
	// Page is the source page of the chunk's first word. A window spanning a
	// page boundary records the page its first word came from.
	Page      int       `json:"page" db:"page"`
	Content   string    `json:"content" db:"content"`
	WordCount int       `json:"word_count" db:"word_count"`
	Embedding []float32 `json:"-" db:"-"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// RetrievedChunk is a chunk with its relevance score for one query.
// Ephemeral: created per retrieval call, never persisted.
type RetrievedChunk struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}
