/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package db

import "errors"

var (
	ErrDatabaseURLEnvVarNotSet          = errors.New("DATABASE_URL environment variable is not set")
	ErrDatabaseNameNotSpecified         = errors.New("database name not specified in DATABASE_URL")
	ErrDatabaseConnectionNotInitialized = errors.New("database connection not initialized")

	// ErrPatientNotFound is returned when a patient id does not exist.
	ErrPatientNotFound = errors.New("patient not found")
	// ErrExamNotFound is returned when an exam does not exist for a patient.
	ErrExamNotFound = errors.New("exam not found for this patient")
	// ErrAlleleNotFound is returned when no catalog entry has the given name.
	ErrAlleleNotFound = errors.New("allele not found")
	// ErrAlleleExists is returned when a catalog name is already taken.
	ErrAlleleExists = errors.New("allele name already exists")
	// ErrCrossmatchNotFound is returned when a crossmatch run id does not exist.
	ErrCrossmatchNotFound = errors.New("crossmatch not found")
)
