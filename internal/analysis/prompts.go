package analysis

import (
	"fmt"
	"strings"

	"github.com/hyperjump/ronbun/internal/models"
)

// summaryQuery is the canonical retrieval query for summaries: it spans the
// four summary sections so the grounding set covers all of them.
const summaryQuery = "main objective methodology key findings results conclusion"

// comparisonQuery spans the six comparison angles; used to pick each paper's
// excerpts for a comparison prompt.
const comparisonQuery = "research objectives methodology findings strengths weaknesses limitations research gaps recommendations"

// buildContext renders retrieved chunks as excerpt lines. The "[Page N]:"
// prefix is the citation vocabulary the model is told to echo.
func buildContext(retrieved []*models.RetrievedChunk) string {
	lines := make([]string, len(retrieved))
	for i, rc := range retrieved {
		lines[i] = fmt.Sprintf("[Page %d]: %s", rc.Chunk.Page, rc.Chunk.Content)
	}
	return strings.Join(lines, "\n\n")
}

func buildAskPrompt(question string, retrieved []*models.RetrievedChunk) string {
	return fmt.Sprintf(`You are a research assistant. Answer the question based on the provided excerpts.

Question: %s

Excerpts:
%s

Instructions:
1. Answer clearly and directly.
2. Use ONLY information from the excerpts.
3. Cite pages using [Page X] format after every claim.
4. If the answer is not in the excerpts, state so clearly.

Answer:`, question, buildContext(retrieved))
}

func buildSummaryPrompt(retrieved []*models.RetrievedChunk) string {
	return fmt.Sprintf(`Create a comprehensive summary of the paper with these sections:

Excerpts:
%s

**Main Objective**
[Cite pages]

**Methodology**
[Cite pages]

**Key Findings**
[Cite pages]

**Conclusion**
[Cite pages]

Important: cite [Page X] after each claim, using only pages from the excerpts.

Summary:`, buildContext(retrieved))
}
