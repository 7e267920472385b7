package compare

import (
	"fmt"
	"math"
	"strings"

	"github.com/hyperjump/ronbun/internal/models"
	"github.com/hyperjump/ronbun/internal/vector"
)

// BuildPrompt assembles the comparison prompt: per-paper excerpt blocks with
// page markers, then the six required section headings.
func BuildPrompt(papers []*models.Paper, retrieved map[string][]*models.RetrievedChunk) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are comparing %d academic papers based on excerpts from each.\n\n", len(papers))

	for i, paper := range papers {
		label := paper.Title
		if label == "" {
			label = paper.Filename
		}
		fmt.Fprintf(&b, "Paper %d: %s\n", i+1, label)
		for _, rc := range retrieved[paper.ID] {
			fmt.Fprintf(&b, "[Page %d]: %s\n", rc.Chunk.Page, rc.Chunk.Content)
		}
		b.WriteString("\n")
	}

	b.WriteString("Write a comparative analysis with exactly these six sections, in this order, each heading on its own line:\n")
	for _, s := range sectionTitles {
		fmt.Fprintf(&b, "## %s\n", s.title)
	}
	b.WriteString("\nRefer to the papers by their numbers. Support claims with [Page N] markers copied from the excerpts. Base every statement on the excerpts alone.\n")

	return b.String()
}

// SimilarityMatrix computes the pairwise similarity of paper embeddings as
// percentages. The matrix is symmetric with 100 on the diagonal. Pairs where
// either embedding is missing or the dimensions differ score 0.
func SimilarityMatrix(embeddings [][]float32) [][]int {
	n := len(embeddings)
	matrix := make([][]int, n)
	for i := range matrix {
		matrix[i] = make([]int, n)
		matrix[i][i] = 100
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			score := 0
			if len(embeddings[i]) > 0 && len(embeddings[i]) == len(embeddings[j]) {
				score = int(math.Round(100 * vector.CosineSimilarity(embeddings[i], embeddings[j])))
				// Anticorrelated embeddings land below zero; the scale is 0-100.
				if score < 0 {
					score = 0
				}
				if score > 100 {
					score = 100
				}
			}
			matrix[i][j] = score
			matrix[j][i] = score
		}
	}
	return matrix
}
