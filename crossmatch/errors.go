/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package crossmatch

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoCandidates is returned when no patient shares the donor blood type.
	ErrNoCandidates = errors.New("no patient found with a compatible blood type")
	// ErrIncompleteDonorData is returned when a required donor field is missing.
	ErrIncompleteDonorData = errors.New("incomplete or invalid donor data")
	// ErrIncompletePatientData is wrapped by IncompletePatientDataError.
	ErrIncompletePatientData = errors.New("incomplete patient data")
)

// IncompletePatientDataError names the recipient whose outcome could not be saved.
type IncompletePatientDataError struct {
	RecipientID string
	Missing     []string
}

func (e *IncompletePatientDataError) Error() string {
	return fmt.Sprintf("incomplete data for patient %s: missing %s", e.RecipientID, strings.Join(e.Missing, ", "))
}

func (e *IncompletePatientDataError) Unwrap() error {
	return ErrIncompletePatientData
}
