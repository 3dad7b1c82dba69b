/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package sheet

import (
	"fmt"
	"strings"
)

// Layout describes where an instrument export keeps the exam date and the
// allele/reactivity columns. Row offsets are counted from the first row
// after HeaderRows.
type Layout struct {
	AnchorMarker     string
	DateColumnOffset int
	AlleleColumn     int
	ValueColumn      int
	DataStartRow     int
	HeaderRows       int
}

// DefaultLayout returns the single antigen bead export layout: "TEST DATE"
// with the date four columns to its right, specificities in column AJ and raw
// MFI values in column D from the tenth body row.
func DefaultLayout() Layout {
	return Layout{
		AnchorMarker:     "TEST DATE",
		DateColumnOffset: 4,
		AlleleColumn:     35,
		ValueColumn:      3,
		DataStartRow:     9,
		HeaderRows:       1,
	}
}

// Validate checks the layout for usable values.
func (l Layout) Validate() error {
	if strings.TrimSpace(l.AnchorMarker) == "" {
		return fmt.Errorf("%w: anchor marker is empty", ErrInvalidLayout)
	}

	if l.DateColumnOffset < 0 || l.AlleleColumn < 0 || l.ValueColumn < 0 || l.DataStartRow < 0 || l.HeaderRows < 0 {
		return fmt.Errorf("%w: offsets must not be negative", ErrInvalidLayout)
	}

	return nil
}
