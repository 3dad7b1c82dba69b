/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package routes

import (
	"github.com/flamego/flamego"

	"github.com/melvkunst/tcc/metrics"
)

// Metrics exposes the Prometheus registry.
func Metrics(c flamego.Context, m *metrics.Metrics) {
	m.Handler().ServeHTTP(c.ResponseWriter(), c.Request().Request)
}
