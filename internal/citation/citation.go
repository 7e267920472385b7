// Package citation parses page references out of generated text and
// scores how well an answer is grounded in its retrieval context.
package citation

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/hyperjump/ronbun/internal/models"
)

var pagePattern = regexp.MustCompile(`\[Page (\d+)\]`)

// Extract scans text for literal "[Page N]" markers. It is a pure
// parse: page numbers are recorded verbatim whether or not they exist
// in the source paper.
func Extract(text string) []models.Citation {
	matches := pagePattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}
	citations := make([]models.Citation, 0, len(matches))
	for _, m := range matches {
		page, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			continue
		}
		citations = append(citations, models.Citation{
			Page:  page,
			Start: m[0],
			End:   m[1],
		})
	}
	return citations
}

// Pages returns the distinct cited page numbers in ascending order.
func Pages(citations []models.Citation) []int {
	seen := make(map[int]bool, len(citations))
	var pages []int
	for _, c := range citations {
		if !seen[c.Page] {
			seen[c.Page] = true
			pages = append(pages, c.Page)
		}
	}
	sort.Ints(pages)
	return pages
}

// Confidence measures how much of the grounding context the cited
// pages cover. The result stays in [0.3, 1.0]: an answer citing none
// of the grounding pages scores exactly 0.3, one citing all of them
// scores 1.0, and over-citing never pushes past the ceiling.
func Confidence(citedPages []int, grounding []*models.RetrievedChunk) float64 {
	groundPages := make(map[int]bool, len(grounding))
	for _, rc := range grounding {
		groundPages[rc.Chunk.Page] = true
	}

	overlap := 0
	for _, p := range citedPages {
		if groundPages[p] {
			overlap++
		}
	}

	denom := len(groundPages)
	if denom < 1 {
		denom = 1
	}

	conf := 0.3 + 0.7*float64(overlap)/float64(denom)
	if conf < 0.3 {
		conf = 0.3
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}
