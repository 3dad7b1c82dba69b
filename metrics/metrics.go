/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */

// Package metrics exposes Prometheus counters for ingestion, matching and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vxm"

// Skip and failure reasons used as label values.
const (
	ReasonMalformedAllele = "malformed_allele"
	ReasonInvalidValue    = "invalid_value"
	ReasonUnsupported     = "unsupported_format"
	ReasonUnreadable      = "unreadable_workbook"
	ReasonAnchorNotFound  = "anchor_not_found"
	ReasonInvalidDate     = "invalid_exam_date"
	ReasonPatientNotFound = "patient_not_found"
	ReasonStore           = "store"
)

// Metrics holds the collectors of one process. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	examsIngested       *prometheus.CounterVec
	measurementsCreated prometheus.Counter
	readingsSkipped     *prometheus.CounterVec
	ingestFailures      *prometheus.CounterVec
	ingestDuration      prometheus.Histogram

	matches           prometheus.Counter
	matchCandidates   prometheus.Histogram
	crossmatchesSaved prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers every collector on a fresh registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		examsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exams_ingested_total",
			Help:      "Exam sheets ingested, by whether the exam row was created or reused.",
		}, []string{"exam"}),
		measurementsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "measurements_created_total",
			Help:      "Allele measurements stored by ingestion.",
		}),
		readingsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_skipped_total",
			Help:      "Sheet readings skipped during ingestion.",
		}, []string{"reason"}),
		ingestFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_failures_total",
			Help:      "Ingestions aborted by a fatal condition.",
		}, []string{"reason"}),
		ingestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Time spent ingesting one sheet.",
			Buckets:   prometheus.DefBuckets,
		}),
		matches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crossmatch_runs_total",
			Help:      "Virtual crossmatch computations.",
		}),
		matchCandidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "crossmatch_candidates",
			Help:      "Blood-type candidates per crossmatch computation.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		crossmatchesSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crossmatch_results_saved_total",
			Help:      "Crossmatch runs persisted.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method and status.",
		}, []string{"method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.examsIngested,
		m.measurementsCreated,
		m.readingsSkipped,
		m.ingestFailures,
		m.ingestDuration,
		m.matches,
		m.matchCandidates,
		m.crossmatchesSaved,
		m.httpRequests,
		m.httpDuration,
	)

	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}

	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}

	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ExamIngested(created bool, measurements int, elapsed time.Duration) {
	if m == nil {
		return
	}

	label := "reused"
	if created {
		label = "created"
	}

	m.examsIngested.WithLabelValues(label).Inc()
	m.measurementsCreated.Add(float64(measurements))
	m.ingestDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ReadingSkipped(reason string) {
	if m == nil {
		return
	}

	m.readingsSkipped.WithLabelValues(reason).Inc()
}

func (m *Metrics) IngestFailed(reason string) {
	if m == nil {
		return
	}

	m.ingestFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) CrossmatchComputed(candidates int) {
	if m == nil {
		return
	}

	m.matches.Inc()
	m.matchCandidates.Observe(float64(candidates))
}

func (m *Metrics) CrossmatchSaved() {
	if m == nil {
		return
	}

	m.crossmatchesSaved.Inc()
}

func (m *Metrics) RequestServed(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}
