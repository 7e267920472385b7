// Package extract pulls per-page text and best-effort metadata out of
// academic paper files.
package extract

import (
	"strings"

	"github.com/hyperjump/ronbun/internal/models"
	"github.com/hyperjump/ronbun/pkg/utils"
)

// Extraction is the per-page text of one paper plus whatever metadata
// could be guessed from its opening page.
type Extraction struct {
	Pages     []models.PageText
	PageCount int
	Title     string
	Authors   string
}

// Extractor turns a paper file into per-page text.
type Extractor interface {
	Extract(path string) (*Extraction, error)
	ExtractBytes(content []byte) (*Extraction, error)
}

// guessMetadata reads a title and author line off the first page. PDF
// text extraction rarely preserves layout, so this stays best-effort:
// first non-blank line as title, second as authors when it looks like
// a name list.
func guessMetadata(pages []models.PageText) (title, authors string) {
	if len(pages) == 0 {
		return "", ""
	}
	var picked []string
	for _, ln := range strings.Split(pages[0].Text, "\n") {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			continue
		}
		picked = append(picked, ln)
		if len(picked) == 2 {
			break
		}
	}
	if len(picked) > 0 {
		title = utils.Truncate(picked[0], 150)
	}
	if len(picked) > 1 && looksLikeAuthors(picked[1]) {
		authors = utils.Truncate(picked[1], 200)
	}
	return title, authors
}

func looksLikeAuthors(line string) bool {
	if strings.ContainsAny(line, "0123456789") {
		return false
	}
	words := strings.Fields(line)
	if len(words) == 0 || len(words) > 12 {
		return false
	}
	lower := strings.ToLower(line)
	return strings.Contains(line, ",") ||
		strings.Contains(lower, " and ") ||
		strings.Contains(lower, "et al")
}
