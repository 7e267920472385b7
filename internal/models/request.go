package models

import "fmt"

// AskRequest is a question against one paper.
type AskRequest struct {
	Question string `json:"question"`
	K        int    `json:"k,omitempty"`
}

// Validate ensures the question is non-empty and normalizes k.
func (r *AskRequest) Validate() error {
	if r.Question == "" {
		return fmt.Errorf("question cannot be empty: %w", ErrInvalidInput)
	}
	if r.K < 0 {
		return fmt.Errorf("k cannot be negative: %w", ErrInvalidInput)
	}
	return nil
}

// CompareRequest asks for a comparison across 2-5 papers.
type CompareRequest struct {
	PaperIDs []string `json:"paper_ids"`
	Mode     string   `json:"mode,omitempty"`
}

// Validate checks the paper count bounds, rejects duplicate ids, and
// defaults the mode to comprehensive.
func (r *CompareRequest) Validate() error {
	if n := len(r.PaperIDs); n < MinComparePapers || n > MaxComparePapers {
		return fmt.Errorf("compare requires between %d and %d papers, got %d: %w",
			MinComparePapers, MaxComparePapers, n, ErrInvalidInput)
	}
	seen := make(map[string]bool, len(r.PaperIDs))
	for _, id := range r.PaperIDs {
		if id == "" {
			return fmt.Errorf("compare: empty paper id: %w", ErrInvalidInput)
		}
		if seen[id] {
			return fmt.Errorf("compare: duplicate paper id %s: %w", id, ErrInvalidInput)
		}
		seen[id] = true
	}
	if r.Mode == "" {
		r.Mode = ComparisonModeComprehensive
	}
	if r.Mode != ComparisonModeComprehensive {
		return fmt.Errorf("unsupported comparison mode %q: %w", r.Mode, ErrInvalidInput)
	}
	return nil
}
