package models

// QualityScore holds the four per-paper quality sub-scores and their weighted
// overall score, each an integer in [0, 100]. Overall is a pure projection of
// the four sub-scores and is recomputable from the paper's chunks; it is set
// once at ingest and only changes on explicit re-ingest.
type QualityScore struct {
	Methodology int `json:"methodology_score" db:"methodology_score"`
	Data        int `json:"data_score" db:"data_score"`
	Citation    int `json:"citation_score" db:"citation_score"`
	Clarity     int `json:"clarity_score" db:"clarity_score"`
	Overall     int `json:"overall_score" db:"overall_score"`
}
