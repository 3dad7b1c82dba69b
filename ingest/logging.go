/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package ingest

import (
	"github.com/charmbracelet/log"

	"github.com/melvkunst/tcc/logging"
)

func defaultLogger() *log.Logger {
	return logging.Logger(logging.SourceIngest)
}
