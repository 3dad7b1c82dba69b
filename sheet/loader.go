/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package sheet

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// Supported spreadsheet extensions.
const (
	ExtXLS  = ".xls"
	ExtXLSX = ".xlsx"
)

// IsSupported reports whether filename has an accepted spreadsheet extension.
func IsSupported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ExtXLS, ExtXLSX:
		return true
	default:
		return false
	}
}

// Load reads the first sheet of an .xls or .xlsx workbook into a Grid.
func Load(filename string, r io.Reader) (Grid, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ExtXLSX:
		return loadXLSX(r)
	case ExtXLS:
		return loadXLS(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileFormat, filepath.Base(filename))
	}
}

func loadXLSX(r io.Reader) (Grid, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableWorkbook, err)
	}

	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("Failed to close workbook", "error", err)
		}
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyWorkbook
	}

	name := sheets[0]

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableWorkbook, err)
	}

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	dateStyles := make(map[int]bool)
	grid := make(Grid, len(rows))

	for r, row := range rows {
		grid[r] = make([]Cell, len(row))

		for c, value := range row {
			grid[r][c] = TextCell(value)

			serial, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil {
				continue
			}

			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				continue
			}

			styleID, err := f.GetCellStyle(name, axis)
			if err != nil || styleID == 0 {
				continue
			}

			isDate, seen := dateStyles[styleID]
			if !seen {
				isDate = isDateStyle(f, styleID)
				dateStyles[styleID] = isDate
			}

			if !isDate {
				continue
			}

			if t, err := excelize.ExcelDateToTime(serial, date1904); err == nil {
				grid[r][c] = DateCell(t)
			}
		}
	}

	return grid, nil
}

func isDateStyle(f *excelize.File, styleID int) bool {
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil {
		return false
	}

	switch {
	case style.NumFmt >= 14 && style.NumFmt <= 22:
		return true
	case style.NumFmt >= 45 && style.NumFmt <= 47:
		return true
	}

	if style.CustomNumFmt == nil {
		return false
	}

	format := strings.ToLower(*style.CustomNumFmt)

	return strings.Contains(format, "yy") || (strings.Contains(format, "d") && strings.Contains(format, "m"))
}

func loadXLS(r io.Reader) (grid Grid, err error) {
	// The BIFF reader panics on some truncated files.
	defer func() {
		if rec := recover(); rec != nil {
			grid = nil
			err = fmt.Errorf("%w: %v", ErrUnreadableWorkbook, rec)
		}
	}()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableWorkbook, err)
	}

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableWorkbook, err)
	}

	if wb.NumSheets() == 0 {
		return nil, ErrEmptyWorkbook
	}

	ws := wb.GetSheet(0)
	if ws == nil {
		return nil, ErrEmptyWorkbook
	}

	grid = make(Grid, int(ws.MaxRow)+1)

	for i := 0; i <= int(ws.MaxRow); i++ {
		row := ws.Row(i)
		if row == nil {
			continue
		}

		cells := make([]Cell, row.LastCol())
		for c := row.FirstCol(); c < row.LastCol(); c++ {
			text := row.Col(c)
			if t, err := time.Parse(time.RFC3339, strings.TrimSpace(text)); err == nil {
				cells[c] = DateCell(t)
				continue
			}

			cells[c] = TextCell(text)
		}

		grid[i] = cells
	}

	return grid, nil
}
