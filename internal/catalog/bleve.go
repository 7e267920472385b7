// Package catalog provides Bleve implementation of Catalog.
package catalog

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
)

// paperEntry is the document shape indexed per paper. Only metadata goes in;
// full text stays in the per-paper vector indexes.
type paperEntry struct {
	Title    string `json:"title"`
	Authors  string `json:"authors"`
	Filename string `json:"filename"`
}

// BleveCatalog implements Catalog using Bleve.
type BleveCatalog struct {
	index bleve.Index
	spell *SpellChecker
}

// NewBleveCatalog creates or opens a Bleve index at path.
// An existing index is opened and reused so the catalog survives restarts
// without re-indexing. If the mapping changes in code, remove the index
// directory to force a rebuild.
func NewBleveCatalog(path string) (*BleveCatalog, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so a query like
	// "bayes" matches the exact word; the English analyzer stems
	// "Bayesian" -> "bayesi" and "bayes" -> "bay", so they would not match.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	docMapping.AddFieldMappingsAt("authors", textFieldMapping)
	docMapping.AddFieldMappingsAt("filename", textFieldMapping)
	im.AddDocumentMapping("paper", docMapping)
	im.DefaultType = "paper"
	im.DefaultMapping = docMapping

	var index bleve.Index
	if _, err := os.Stat(path); err == nil {
		index, err = bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", err)
		}
	} else {
		index, err = bleve.New(path, im)
		if err != nil {
			return nil, fmt.Errorf("failed to create Bleve index: %w", err)
		}
	}

	c := &BleveCatalog{index: index}
	c.spell = NewSpellChecker(c)
	return c, nil
}

// Index adds or replaces a paper's metadata in the catalog.
func (c *BleveCatalog) Index(ctx context.Context, paperID, title, authors, filename string) error {
	entry := &paperEntry{
		Title:   title,
		Authors: authors,
		// Underscores become spaces so "attention_is_all_you_need.pdf" is
		// searchable as "attention is all you need" (the standard analyzer
		// does not split on underscore).
		Filename: strings.ReplaceAll(filename, "_", " "),
	}
	if err := c.index.Index(paperID, entry); err != nil {
		return err
	}
	c.spell.Invalidate()
	return nil
}

// Search runs a match query over title, authors, and filename, title weighted
// highest. When nothing matches, it returns "did you mean" suggestions built
// from terms within edit distance of the indexed vocabulary.
func (c *BleveCatalog) Search(ctx context.Context, query string, limit int) (*Result, error) {
	if limit <= 0 {
		limit = 10
	}

	titleQuery := bleve.NewMatchQuery(query)
	titleQuery.SetField("title")
	titleQuery.SetBoost(2.0)
	authorsQuery := bleve.NewMatchQuery(query)
	authorsQuery.SetField("authors")
	filenameQuery := bleve.NewMatchQuery(query)
	filenameQuery.SetField("filename")

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(titleQuery, authorsQuery, filenameQuery))
	req.Size = limit
	results, err := c.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	out := &Result{Matches: make([]*Match, 0, len(results.Hits))}
	for _, hit := range results.Hits {
		out.Matches = append(out.Matches, &Match{PaperID: hit.ID, Score: hit.Score})
	}
	if len(out.Matches) == 0 {
		out.Suggestions = c.spell.SuggestQueries(query, 3)
	}
	return out, nil
}

// Delete removes a paper from the catalog.
func (c *BleveCatalog) Delete(ctx context.Context, paperID string) error {
	if err := c.index.Delete(paperID); err != nil {
		return err
	}
	c.spell.Invalidate()
	return nil
}

// Count returns the total number of papers in the catalog.
func (c *BleveCatalog) Count() (uint64, error) {
	return c.index.DocCount()
}

// Close closes the Bleve index.
func (c *BleveCatalog) Close() error {
	return c.index.Close()
}

// GetAllTerms returns all unique terms from the index dictionary, across the
// title, authors, and filename fields. This feeds the spell checker.
func (c *BleveCatalog) GetAllTerms() ([]string, error) {
	terms := make([]string, 0)
	seen := make(map[string]struct{})

	for _, field := range []string{"title", "authors", "filename"} {
		dict, err := c.index.FieldDict(field)
		if err != nil {
			continue
		}
		for {
			entry, err := dict.Next()
			if err != nil || entry == nil {
				break
			}
			if _, ok := seen[entry.Term]; !ok {
				terms = append(terms, entry.Term)
				seen[entry.Term] = struct{}{}
			}
		}
		_ = dict.Close()
	}

	return terms, nil
}

// GetTermFrequency returns the number of papers containing the given term.
func (c *BleveCatalog) GetTermFrequency(term string) (int, error) {
	q := bleve.NewMatchQuery(term)
	req := bleve.NewSearchRequest(q)
	req.Size = 0
	results, err := c.index.Search(req)
	if err != nil {
		return 0, fmt.Errorf("failed to search for term frequency: %w", err)
	}
	return int(results.Total), nil
}
