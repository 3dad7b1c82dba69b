/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package sheet

import "github.com/melvkunst/tcc/logging"

var logger = logging.Logger(logging.SourceIngest)
