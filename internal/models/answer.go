package models

// Citation is a page number asserted by generated text, with the byte span
// of the "[Page N]" marker in that text. Derived by parsing, never persisted.
type Citation struct {
	Page  int `json:"page"`
	Start int `json:"start"`
	End   int `json:"end"`
}

// Answer is the response for a summarize or ask operation.
type Answer struct {
	PaperID string `json:"paper_id"`
	Text    string `json:"text"`
	// CitedPages are the distinct pages cited in Text, ascending. Citations
	// referencing pages outside the grounding set are kept (soft degradation).
	CitedPages []int `json:"cited_pages"`
	ChunksUsed int   `json:"chunks_used"`
	// Confidence is in [0.3, 1.0]: 0.3 + 0.7 x (cited grounding pages / grounding pages).
	Confidence float64 `json:"confidence"`
	Model      string  `json:"model,omitempty"`
	ElapsedMS  int64   `json:"elapsed_ms"`
}
