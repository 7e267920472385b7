package models

// ComparisonModeComprehensive is the single supported comparison mode: a
// six-section comparative report plus a pairwise similarity matrix.
const ComparisonModeComprehensive = "comprehensive"

// Comparison paper count bounds. Below two there is nothing to compare;
// above five the combined prompt exceeds what a local model handles well.
const (
	MinComparePapers = 2
	MaxComparePapers = 5
)

// ComparisonPaper identifies one participant of a comparison.
type ComparisonPaper struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Title    string `json:"title,omitempty"`
}

// Comparison is the result of comparing 2-5 papers. Ephemeral: recomputed per
// request, never persisted.
//
// Sections holds the six report sections keyed by section id
// (research_objectives, methodology, findings, strengths_weaknesses,
// research_gaps, recommendations). A section the model omitted is present
// with an empty string value.
//
// SimilarityMatrix is NxN in the order of Papers, symmetric, diagonal 100.
// It is computed from paper embeddings only, independent of the report text.
type Comparison struct {
	Papers           []ComparisonPaper `json:"papers"`
	Sections         map[string]string `json:"sections"`
	SimilarityMatrix [][]int           `json:"similarity_matrix"`
	Mode             string            `json:"mode"`
	Model            string            `json:"model,omitempty"`
	ElapsedMS        int64             `json:"elapsed_ms"`
}
