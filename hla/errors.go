/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package hla

import "errors"

var (
	// ErrMalformedAllele is returned when text is not a LOCUS*field1:field2 specificity.
	ErrMalformedAllele = errors.New("malformed allele specificity")
	// ErrInvalidReactivity is returned when a raw reactivity value is not a number.
	ErrInvalidReactivity = errors.New("invalid reactivity value")
)
