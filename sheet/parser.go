/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */

// Package sheet extracts exam dates and allele readings from lab exam spreadsheets.
package sheet

import (
	"fmt"
	"strings"
	"time"

	"github.com/melvkunst/tcc/hla"
)

// ExamDateLayout is the textual exam date format written by the lab.
const ExamDateLayout = "02/01/2006"

// examDateLayouts also accepts day and month without zero padding.
var examDateLayouts = []string{ExamDateLayout, "2/1/2006"}

// Cell is a single spreadsheet value. Time is set when the workbook stored a
// date value rather than text.
type Cell struct {
	Text string
	Time *time.Time
}

// TextCell returns a text cell.
func TextCell(text string) Cell {
	return Cell{Text: text}
}

// DateCell returns a cell holding a date value.
func DateCell(t time.Time) Cell {
	return Cell{Text: t.Format(time.RFC3339), Time: &t}
}

// Grid is a rectangular view over a sheet. Rows may be ragged; cells past the
// end of a row read as blank.
type Grid [][]Cell

// At returns the cell at row, col or a blank cell when out of range.
func (g Grid) At(row, col int) Cell {
	if row < 0 || row >= len(g) || col < 0 || col >= len(g[row]) {
		return Cell{}
	}

	return g[row][col]
}

// Reading is one raw allele specificity and its raw reactivity value.
type Reading struct {
	Row      int
	Allele   string
	RawValue string
}

// Exam is the content extracted from one exam sheet.
type Exam struct {
	Date     time.Time
	Readings []Reading
}

// Parse locates the exam date and extracts allele readings according to layout.
func Parse(grid Grid, layout Layout) (*Exam, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}

	body := grid
	if layout.HeaderRows >= len(grid) {
		body = nil
	} else if layout.HeaderRows > 0 {
		body = grid[layout.HeaderRows:]
	}

	row, col, ok := findAnchor(body, layout.AnchorMarker)
	if !ok {
		return nil, fmt.Errorf("%w: no cell contains %q", ErrAnchorNotFound, layout.AnchorMarker)
	}

	date, err := parseExamDate(body.At(row, col+layout.DateColumnOffset))
	if err != nil {
		return nil, err
	}

	exam := &Exam{Date: date}

	for r := layout.DataStartRow; r < len(body); r++ {
		alleleCell := body.At(r, layout.AlleleColumn).Text
		if hla.IsNoCall(alleleCell) {
			continue
		}

		rawValue := strings.TrimSpace(body.At(r, layout.ValueColumn).Text)

		for _, specificity := range hla.SplitSpecificities(alleleCell) {
			exam.Readings = append(exam.Readings, Reading{
				Row:      r + layout.HeaderRows,
				Allele:   specificity,
				RawValue: rawValue,
			})
		}
	}

	return exam, nil
}

func findAnchor(grid Grid, marker string) (int, int, bool) {
	needle := strings.ToUpper(marker)

	for r, row := range grid {
		for c, cell := range row {
			if strings.Contains(strings.ToUpper(cell.Text), needle) {
				return r, c, true
			}
		}
	}

	return 0, 0, false
}

func parseExamDate(cell Cell) (time.Time, error) {
	if cell.Time != nil {
		t := *cell.Time
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}

	text := strings.TrimSpace(cell.Text)
	if text == "" {
		return time.Time{}, fmt.Errorf("%w: empty date cell", ErrInvalidExamDate)
	}

	for _, layout := range examDateLayouts {
		if date, err := time.Parse(layout, text); err == nil {
			return date, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidExamDate, text)
}
