// SPDX-FileCopyrightText: 2025 Humaid Alqasimi
// SPDX-License-Identifier: Apache-2.0

package sheet

import (
	"errors"
	"testing"
	"time"
)

func testLayout() Layout {
	return Layout{
		AnchorMarker:     "TEST DATE",
		DateColumnOffset: 2,
		AlleleColumn:     4,
		ValueColumn:      1,
		DataStartRow:     3,
		HeaderRows:       1,
	}
}

// newGrid builds a grid with rows x cols blank cells.
func newGrid(rows, cols int) Grid {
	grid := make(Grid, rows)
	for r := range grid {
		grid[r] = make([]Cell, cols)
	}

	return grid
}

func TestParseExtractsDateAndReadings(t *testing.T) {
	t.Parallel()

	grid := newGrid(8, 6)
	grid[0][0] = TextCell("Single Antigen Export")
	grid[1][0] = TextCell("Test date:")
	grid[1][2] = TextCell("15/03/2024")
	grid[4][4] = TextCell("A*01:01")
	grid[4][1] = TextCell("500,5")
	grid[5][4] = TextCell("-")
	grid[5][1] = TextCell("42")
	grid[6][4] = TextCell("A*02:01, B*07:02")
	grid[6][1] = TextCell("1500")
	grid[7][4] = TextCell("   ")

	exam, err := Parse(grid, testLayout())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	want := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
	if !exam.Date.Equal(want) {
		t.Fatalf("expected date %v, got %v", want, exam.Date)
	}

	if len(exam.Readings) != 3 {
		t.Fatalf("expected 3 readings, got %d: %+v", len(exam.Readings), exam.Readings)
	}

	first := exam.Readings[0]
	if first.Allele != "A*01:01" || first.RawValue != "500,5" || first.Row != 4 {
		t.Fatalf("unexpected first reading: %+v", first)
	}

	for _, reading := range exam.Readings[1:] {
		if reading.RawValue != "1500" {
			t.Fatalf("expected split specificities to share the row value, got %+v", reading)
		}
	}

	if exam.Readings[1].Allele != "A*02:01" || exam.Readings[2].Allele != "B*07:02" {
		t.Fatalf("unexpected split readings: %+v", exam.Readings[1:])
	}
}

func TestParseSkipsRowsBeforeDataStart(t *testing.T) {
	t.Parallel()

	grid := newGrid(6, 6)
	grid[1][0] = TextCell("TEST DATE")
	grid[1][2] = TextCell("01/01/2024")
	grid[2][4] = TextCell("A*01:01")
	grid[2][1] = TextCell("10")

	exam, err := Parse(grid, testLayout())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(exam.Readings) != 0 {
		t.Fatalf("expected rows before the data start to be ignored, got %+v", exam.Readings)
	}
}

func TestParseAcceptsDateCell(t *testing.T) {
	t.Parallel()

	grid := newGrid(3, 5)
	grid[2][1] = TextCell("== test date ==")
	grid[2][3] = DateCell(time.Date(2023, time.December, 2, 14, 30, 0, 0, time.UTC))

	exam, err := Parse(grid, testLayout())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	want := time.Date(2023, time.December, 2, 0, 0, 0, 0, time.UTC)
	if !exam.Date.Equal(want) {
		t.Fatalf("expected date %v, got %v", want, exam.Date)
	}
}

func TestParseAcceptsUnpaddedDateText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want time.Time
	}{
		{text: "5/3/2024", want: time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)},
		{text: "05/3/2024", want: time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)},
		{text: "15/03/2024", want: time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			t.Parallel()

			grid := newGrid(3, 5)
			grid[1][0] = TextCell("TEST DATE")
			grid[1][2] = TextCell(tc.text)

			exam, err := Parse(grid, testLayout())
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}

			if !exam.Date.Equal(tc.want) {
				t.Fatalf("expected date %v, got %v", tc.want, exam.Date)
			}
		})
	}
}

func TestParseAnchorNotFound(t *testing.T) {
	t.Parallel()

	grid := newGrid(5, 5)
	grid[2][0] = TextCell("SAMPLE DATE")

	if _, err := Parse(grid, testLayout()); !errors.Is(err, ErrAnchorNotFound) {
		t.Fatalf("expected ErrAnchorNotFound, got %v", err)
	}

	if _, err := Parse(nil, testLayout()); !errors.Is(err, ErrAnchorNotFound) {
		t.Fatalf("expected ErrAnchorNotFound for empty grid, got %v", err)
	}
}

func TestParseAnchorInHeaderRowIsIgnored(t *testing.T) {
	t.Parallel()

	grid := newGrid(3, 5)
	grid[0][0] = TextCell("TEST DATE")
	grid[0][2] = TextCell("01/01/2024")

	if _, err := Parse(grid, testLayout()); !errors.Is(err, ErrAnchorNotFound) {
		t.Fatalf("expected ErrAnchorNotFound, got %v", err)
	}
}

func TestParseInvalidExamDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cell Cell
	}{
		{name: "blank", cell: Cell{}},
		{name: "iso text", cell: TextCell("2024-03-15")},
		{name: "number", cell: TextCell("45366")},
		{name: "impossible day", cell: TextCell("32/01/2024")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			grid := newGrid(3, 5)
			grid[1][0] = TextCell("TEST DATE")
			grid[1][2] = tc.cell

			if _, err := Parse(grid, testLayout()); !errors.Is(err, ErrInvalidExamDate) {
				t.Fatalf("expected ErrInvalidExamDate, got %v", err)
			}
		})
	}
}

func TestParseRaggedRows(t *testing.T) {
	t.Parallel()

	grid := Grid{
		{TextCell("header")},
		{TextCell("TEST DATE"), {}, TextCell("05/06/2024")},
		{},
		{},
		{TextCell("x"), TextCell("12")},
		{TextCell("x"), TextCell("13"), {}, {}, TextCell("C*04:01")},
	}

	exam, err := Parse(grid, testLayout())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(exam.Readings) != 1 || exam.Readings[0].Allele != "C*04:01" || exam.Readings[0].RawValue != "13" {
		t.Fatalf("unexpected readings: %+v", exam.Readings)
	}
}

func TestLayoutValidate(t *testing.T) {
	t.Parallel()

	if err := DefaultLayout().Validate(); err != nil {
		t.Fatalf("default layout invalid: %v", err)
	}

	bad := DefaultLayout()
	bad.AlleleColumn = -1

	if err := bad.Validate(); !errors.Is(err, ErrInvalidLayout) {
		t.Fatalf("expected ErrInvalidLayout, got %v", err)
	}

	bad = DefaultLayout()
	bad.AnchorMarker = " "

	if _, err := Parse(newGrid(1, 1), bad); !errors.Is(err, ErrInvalidLayout) {
		t.Fatalf("expected ErrInvalidLayout from Parse, got %v", err)
	}
}
