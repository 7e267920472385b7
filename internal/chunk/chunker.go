package chunk

import (
	"fmt"
	"strings"

	"github.com/hyperjump/ronbun/internal/models"
)

// Chunker splits per-page paper text into overlapping word windows.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker with the given window size and overlap,
// both in words. Non-positive values fall back to the defaults.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 500
	}
	if overlap < 0 {
		overlap = 100
	}
	return &Chunker{
		size:    size,
		overlap: overlap,
	}
}

// Split concatenates the pages' text in order and slides a window of
// the configured size over the word sequence, advancing by size minus
// overlap. Each chunk records the source page of its first word. The
// final window may be shorter than the configured size.
func (c *Chunker) Split(paperID string, pages []models.PageText) ([]*models.Chunk, error) {
	var words []string
	var wordPage []int
	for _, pg := range pages {
		for _, w := range strings.Fields(pg.Text) {
			words = append(words, w)
			wordPage = append(wordPage, pg.Page)
		}
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("chunk paper %s: no extractable text: %w", paperID, models.ErrInvalidInput)
	}

	step := c.size - c.overlap
	if step <= 0 {
		step = 1
	}

	var chunks []*models.Chunk
	chunkIndex := 0
	for i := 0; i < len(words); i += step {
		end := i + c.size
		if end > len(words) {
			end = len(words)
		}

		chunks = append(chunks, &models.Chunk{
			ID:         fmt.Sprintf("%s_%d", paperID, chunkIndex),
			PaperID:    paperID,
			ChunkIndex: chunkIndex,
			Page:       wordPage[i],
			Content:    strings.Join(words[i:end], " "),
			WordCount:  end - i,
		})
		chunkIndex++

		if end >= len(words) {
			break
		}
	}

	return chunks, nil
}
