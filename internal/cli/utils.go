// Package cli provides CLI output utilities for Ronbun.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hyperjump/ronbun/internal/compare"
	"github.com/hyperjump/ronbun/internal/models"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteAnswer writes a summarize or ask result to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteAnswer(w io.Writer, answer *models.Answer, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	default:
		writeAnswerText(w, answer)
		return nil
	}
}

func writeAnswerText(w io.Writer, answer *models.Answer) {
	fmt.Fprintf(w, "\n%s\n\n", strings.TrimSpace(answer.Text))
	fmt.Fprintf(w, "Cited pages: %s\n", formatPages(answer.CitedPages))
	fmt.Fprintf(w, "Confidence: %.0f%% | Chunks used: %d | Model: %s | %dms\n",
		answer.Confidence*100, answer.ChunksUsed, answer.Model, answer.ElapsedMS)
}

// WritePapers writes a paper listing to w in the given format.
func WritePapers(w io.Writer, papers []*models.Paper, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(papers)
	default:
		writePapersText(w, papers)
		return nil
	}
}

func writePapersText(w io.Writer, papers []*models.Paper) {
	fmt.Fprintf(w, "\n%d papers\n\n", len(papers))
	for _, p := range papers {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "ID: %s | Pages: %d | Chunks: %d | Words: %d\n",
			p.ID, p.PageCount, p.ChunkCount, p.WordCount)
		if p.Title != "" {
			fmt.Fprintf(w, "Title: %s\n", Truncate(p.Title, 100))
		}
		if p.Authors != "" {
			fmt.Fprintf(w, "Authors: %s\n", TruncateWords(p.Authors, 12))
		}
		fmt.Fprintf(w, "File: %s | Ingested: %s\n", p.Filename, p.CreatedAt.Format("2006-01-02 15:04"))
		fmt.Fprintf(w, "Quality: %d (methodology %d, data %d, citation %d, clarity %d)\n",
			p.Quality.Overall, p.Quality.Methodology, p.Quality.Data,
			p.Quality.Citation, p.Quality.Clarity)
		fmt.Fprintln(w)
	}
}

// WriteComparison writes a comparison report to w in the given format.
func WriteComparison(w io.Writer, cmp *models.Comparison, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cmp)
	default:
		writeComparisonText(w, cmp)
		return nil
	}
}

func writeComparisonText(w io.Writer, cmp *models.Comparison) {
	fmt.Fprintf(w, "\nCompared %d papers in %dms (model %s)\n\n", len(cmp.Papers), cmp.ElapsedMS, cmp.Model)
	for i, p := range cmp.Papers {
		label := p.Title
		if label == "" {
			label = p.Filename
		}
		fmt.Fprintf(w, "Paper %d: %s [%s]\n", i+1, label, p.ID)
	}

	if len(cmp.SimilarityMatrix) > 0 {
		fmt.Fprintf(w, "\nSimilarity matrix (%%):\n")
		for i, row := range cmp.SimilarityMatrix {
			cells := make([]string, len(row))
			for j, v := range row {
				cells[j] = fmt.Sprintf("%4s", strconv.Itoa(v))
			}
			fmt.Fprintf(w, "  Paper %d  %s\n", i+1, strings.Join(cells, " "))
		}
	}

	for _, key := range compare.SectionKeys {
		text := strings.TrimSpace(cmp.Sections[key])
		if text == "" {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n%s\n", compare.SectionTitle(key), text)
	}
}

// PrintAnswer prints an answer to stdout in text format.
func PrintAnswer(answer *models.Answer) {
	_ = WriteAnswer(os.Stdout, answer, OutputText)
}

func formatPages(pages []int) string {
	if len(pages) == 0 {
		return "none"
	}
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ", ")
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
