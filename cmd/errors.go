/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package cmd

import "errors"

var (
	errDatabaseURLRequired   = errors.New("database-url is required (set via --database-url or DATABASE_URL env var)")
	errMigrationNameRequired = errors.New("migration name is required")
	errUnknownStore          = errors.New("store must be one of: postgres, memory")
	errPatientRequired       = errors.New("patient id is required (--patient)")
	errFileRequired          = errors.New("at least one exam spreadsheet is required")
)
