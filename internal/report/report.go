// Package report renders XLSX reports of paper quality scores and
// comparison results.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/ronbun/internal/compare"
	"github.com/hyperjump/ronbun/internal/models"
)

const (
	papersSheet     = "Papers"
	comparisonSheet = "Comparison"
)

var paperHeaders = []string{
	"ID", "Filename", "Title", "Authors", "Pages", "Chunks", "Words",
	"Methodology", "Data", "Citation", "Clarity", "Overall", "Ingested",
}

// Write renders a workbook with a Papers sheet and, when comparison is
// non-nil, a Comparison sheet, and writes it to w.
func Write(w io.Writer, papers []*models.Paper, comparison *models.Comparison) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writePapers(f, papers); err != nil {
		return err
	}
	if comparison != nil {
		if err := writeComparison(f, comparison); err != nil {
			return err
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writePapers(f *excelize.File, papers []*models.Paper) error {
	if err := f.SetSheetName("Sheet1", papersSheet); err != nil {
		return fmt.Errorf("failed to name papers sheet: %w", err)
	}
	for col, h := range paperHeaders {
		if err := setCell(f, papersSheet, col+1, 1, h); err != nil {
			return err
		}
	}
	for i, p := range papers {
		values := []interface{}{
			p.ID, p.Filename, p.Title, p.Authors,
			p.PageCount, p.ChunkCount, p.WordCount,
			p.Quality.Methodology, p.Quality.Data, p.Quality.Citation,
			p.Quality.Clarity, p.Quality.Overall,
			p.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			if err := setCell(f, papersSheet, col+1, i+2, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeComparison lays out the similarity matrix as a labeled grid with the
// six report sections below it.
func writeComparison(f *excelize.File, c *models.Comparison) error {
	if _, err := f.NewSheet(comparisonSheet); err != nil {
		return fmt.Errorf("failed to create comparison sheet: %w", err)
	}

	for i, p := range c.Papers {
		label := p.Filename
		if p.Title != "" {
			label = p.Title
		}
		if err := setCell(f, comparisonSheet, i+2, 1, label); err != nil {
			return err
		}
		if err := setCell(f, comparisonSheet, 1, i+2, label); err != nil {
			return err
		}
	}
	for i, row := range c.SimilarityMatrix {
		for j, v := range row {
			if err := setCell(f, comparisonSheet, j+2, i+2, v); err != nil {
				return err
			}
		}
	}

	row := len(c.Papers) + 3
	for _, key := range compare.SectionKeys {
		if err := setCell(f, comparisonSheet, 1, row, compare.SectionTitle(key)); err != nil {
			return err
		}
		if err := setCell(f, comparisonSheet, 2, row, c.Sections[key]); err != nil {
			return err
		}
		row++
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("failed to resolve cell (%d,%d): %w", col, row, err)
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("failed to set %s!%s: %w", sheet, cell, err)
	}
	return nil
}
