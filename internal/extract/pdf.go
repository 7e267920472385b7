package extract

import (
	"bytes"
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"

	"github.com/hyperjump/ronbun/internal/models"
)

// PDFExtractor reads PDF files page by page.
type PDFExtractor struct{}

// NewPDFExtractor returns a new PDFExtractor.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract reads the file at path and extracts its pages.
func (e *PDFExtractor) Extract(path string) (*Extraction, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content)
}

// ExtractBytes extracts per-page text from PDF content. Files that do
// not parse as PDF fail with an invalid-input error; pages without a
// content stream are skipped while keeping the source page numbers of
// the rest.
func (e *PDFExtractor) ExtractBytes(content []byte) (*Extraction, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %v: %w", err, models.ErrInvalidInput)
	}

	numPages := r.NumPage()
	pages := make([]models.PageText, 0, numPages)
	for i := 0; i < numPages; i++ {
		page := r.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %v: %w", i+1, err, models.ErrInvalidInput)
		}
		pages = append(pages, models.PageText{Page: i + 1, Text: text})
	}

	ex := &Extraction{
		Pages:     pages,
		PageCount: numPages,
	}
	ex.Title, ex.Authors = guessMetadata(pages)
	return ex, nil
}
