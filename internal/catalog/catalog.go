// Package catalog provides keyword search over paper metadata.
package catalog

import "context"

// Match is a single catalog hit.
type Match struct {
	PaperID string  `json:"paper_id"`
	Score   float64 `json:"score"`
}

// Result holds catalog hits, or query suggestions when nothing matched.
type Result struct {
	Matches []*Match `json:"matches"`
	// Suggestions are "did you mean" query rewrites, populated only when
	// Matches is empty and the query contains terms close to indexed ones.
	Suggestions []string `json:"suggestions,omitempty"`
}

// Catalog defines metadata search operations over ingested papers.
type Catalog interface {
	Index(ctx context.Context, paperID, title, authors, filename string) error
	Search(ctx context.Context, query string, limit int) (*Result, error)
	Delete(ctx context.Context, paperID string) error
	// Count returns the total number of papers in the catalog.
	Count() (uint64, error)
	Close() error
}

// TermDictionary provides access to the indexed term dictionary for spell
// suggestions. This interface allows dependency injection for testing.
type TermDictionary interface {
	// GetAllTerms returns all unique terms in the index.
	GetAllTerms() ([]string, error)
	// GetTermFrequency returns the document frequency for a term.
	GetTermFrequency(term string) (int, error)
}
