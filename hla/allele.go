/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */

// Package hla parses HLA allele specificities and lab reactivity values.
package hla

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// NoCallMarker is the placeholder the lab export writes when no specificity was called.
const NoCallMarker = "-"

// Catalog column limits. Names keep room for a ".N" suffix.
const (
	MaxLocusLength = 8
	MaxNameLength  = 100
	SuffixReserve  = 8
	MaxField       = math.MaxInt32
)

// Allele is a two-field HLA allele specificity such as A*01:01.
type Allele struct {
	Locus  string
	Field1 int
	Field2 int
}

// Key identifies the allele group (locus, first field) used for crossmatch filtering.
type Key struct {
	Locus  string
	Field1 int
}

// String returns the canonical LOCUS*ff:ff form.
func (a Allele) String() string {
	return fmt.Sprintf("%s*%02d:%02d", a.Locus, a.Field1, a.Field2)
}

// Key returns the allele group of a.
func (a Allele) Key() Key {
	return Key{Locus: a.Locus, Field1: a.Field1}
}

// Parse parses a specificity of the form LOCUS*field1:field2.
func Parse(raw string) (Allele, error) {
	text := strings.TrimSpace(raw)
	if utf8.RuneCountInString(text) > MaxNameLength-SuffixReserve {
		return Allele{}, fmt.Errorf("%w: %q is longer than %d characters", ErrMalformedAllele, raw, MaxNameLength-SuffixReserve)
	}

	locus, fields, ok := strings.Cut(text, "*")
	if !ok {
		return Allele{}, fmt.Errorf("%w: %q has no '*'", ErrMalformedAllele, raw)
	}

	locus = strings.ToUpper(strings.TrimSpace(locus))
	if locus == "" {
		return Allele{}, fmt.Errorf("%w: %q has no locus", ErrMalformedAllele, raw)
	}

	if utf8.RuneCountInString(locus) > MaxLocusLength {
		return Allele{}, fmt.Errorf("%w: %q locus is longer than %d characters", ErrMalformedAllele, raw, MaxLocusLength)
	}

	parts := strings.Split(fields, ":")
	if len(parts) != 2 {
		return Allele{}, fmt.Errorf("%w: %q must have two fields", ErrMalformedAllele, raw)
	}

	field1, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Allele{}, fmt.Errorf("%w: %q field 1 is not an integer", ErrMalformedAllele, raw)
	}

	field2, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Allele{}, fmt.Errorf("%w: %q field 2 is not an integer", ErrMalformedAllele, raw)
	}

	if field1 < 0 || field2 < 0 {
		return Allele{}, fmt.Errorf("%w: %q has a negative field", ErrMalformedAllele, raw)
	}

	if field1 > MaxField || field2 > MaxField {
		return Allele{}, fmt.Errorf("%w: %q has a field above %d", ErrMalformedAllele, raw, MaxField)
	}

	return Allele{Locus: locus, Field1: field1, Field2: field2}, nil
}

// ParseReactivity converts a raw reactivity value using either comma or
// period as the decimal separator.
func ParseReactivity(raw string) (float64, error) {
	text := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if text == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidReactivity)
	}

	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidReactivity, raw)
	}

	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: %q is not finite", ErrInvalidReactivity, raw)
	}

	return value, nil
}

// SplitSpecificities splits a cell that may hold several comma separated
// specificities. Blank entries and the no-call marker are dropped.
func SplitSpecificities(cell string) []string {
	var out []string

	for _, part := range strings.Split(cell, ",") {
		part = strings.TrimSpace(part)
		if part == "" || part == NoCallMarker {
			continue
		}

		out = append(out, part)
	}

	return out
}

// IsNoCall reports whether a cell carries no specificity at all.
func IsNoCall(cell string) bool {
	trimmed := strings.TrimSpace(cell)
	return trimmed == "" || trimmed == NoCallMarker
}
