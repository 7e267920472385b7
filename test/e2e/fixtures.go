// Upload and workbook helpers shared by the E2E tests.
package e2e

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/ronbun/internal/extract"
	"github.com/hyperjump/ronbun/internal/models"
)

// UploadContent returns upload bytes unique to the seed and large enough to
// pass the server's minimum-size check. The extractor is stubbed in these
// tests, so the bytes only need to be a stable lookup key.
func UploadContent(seed string) []byte {
	return []byte("%" + seed + strings.Repeat(" padding", 150))
}

// Extraction converts a corpus paper into the extraction the stub extractor
// should return for its upload content.
func Extraction(p *CorpusPaper) *extract.Extraction {
	pages := make([]models.PageText, len(p.Pages))
	copy(pages, p.Pages)
	return &extract.Extraction{
		Pages:     pages,
		PageCount: len(pages),
		Title:     p.Title,
		Authors:   p.Authors,
	}
}

// MultipartFile is one file part of a multipart upload body.
type MultipartFile struct {
	Field    string
	Filename string
	Content  []byte
}

// MultipartBody assembles a multipart/form-data body and its content type.
func MultipartBody(files ...MultipartFile) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := fw.Write(f.Content); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

// WorkbookCell reads one cell from an XLSX workbook given as raw bytes.
func WorkbookCell(data []byte, sheet, cell string) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return f.GetCellValue(sheet, cell)
}

// WorkbookColumn reads a whole column (by 0-based index) from a sheet.
func WorkbookColumn(data []byte, sheet string, col int) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, row := range rows {
		if col < len(row) {
			out = append(out, row[col])
		} else {
			out = append(out, "")
		}
	}
	return out, nil
}
