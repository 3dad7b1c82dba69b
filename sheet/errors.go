/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package sheet

import "errors"

var (
	// ErrAnchorNotFound is returned when no cell carries the layout anchor marker.
	ErrAnchorNotFound = errors.New("exam date anchor not found")
	// ErrInvalidExamDate is returned when the cell next to the anchor is not a date.
	ErrInvalidExamDate = errors.New("exam date missing or in an invalid format")
	// ErrUnsupportedFileFormat is returned for uploads that are not .xls or .xlsx.
	ErrUnsupportedFileFormat = errors.New("unsupported file format, use .xls or .xlsx")
	// ErrUnreadableWorkbook is returned when a spreadsheet cannot be decoded.
	ErrUnreadableWorkbook = errors.New("failed to read spreadsheet")
	// ErrEmptyWorkbook is returned when a workbook has no sheets.
	ErrEmptyWorkbook = errors.New("spreadsheet has no sheets")
	// ErrInvalidLayout is returned for layouts with negative offsets or no marker.
	ErrInvalidLayout = errors.New("invalid sheet layout")
)
