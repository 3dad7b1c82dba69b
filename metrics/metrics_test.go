// SPDX-FileCopyrightText: 2025 Humaid Alqasimi
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	t.Parallel()

	m := New()

	m.ExamIngested(true, 3, time.Millisecond)
	m.ExamIngested(false, 2, time.Millisecond)
	m.ReadingSkipped(ReasonMalformedAllele)
	m.ReadingSkipped(ReasonMalformedAllele)
	m.IngestFailed(ReasonAnchorNotFound)
	m.CrossmatchComputed(4)
	m.CrossmatchSaved()

	if got := testutil.ToFloat64(m.measurementsCreated); got != 5 {
		t.Fatalf("expected 5 measurements, got %v", got)
	}

	if got := testutil.ToFloat64(m.examsIngested.WithLabelValues("created")); got != 1 {
		t.Fatalf("expected 1 created exam, got %v", got)
	}

	if got := testutil.ToFloat64(m.readingsSkipped.WithLabelValues(ReasonMalformedAllele)); got != 2 {
		t.Fatalf("expected 2 skipped readings, got %v", got)
	}

	if got := testutil.ToFloat64(m.ingestFailures.WithLabelValues(ReasonAnchorNotFound)); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}

	if got := testutil.ToFloat64(m.crossmatchesSaved); got != 1 {
		t.Fatalf("expected 1 saved run, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics

	m.ExamIngested(true, 1, time.Second)
	m.ReadingSkipped(ReasonInvalidValue)
	m.IngestFailed(ReasonStore)
	m.CrossmatchComputed(1)
	m.CrossmatchSaved()
	m.RequestServed(http.MethodGet, http.StatusOK, time.Second)

	if m.Registry() != nil {
		t.Fatalf("expected nil registry")
	}
}

func TestHandler(t *testing.T) {
	t.Parallel()

	m := New()
	m.RequestServed(http.MethodPost, http.StatusCreated, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	if !strings.Contains(rec.Body.String(), `vxm_http_requests_total{method="POST",status="201"} 1`) {
		t.Fatalf("expected request counter in output, got:\n%s", rec.Body.String())
	}
}
