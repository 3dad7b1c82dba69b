/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */

// Package crossmatch computes virtual crossmatches between a donor and the
// stored exams of candidate recipients, and records saved runs.
package crossmatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/melvkunst/tcc/db"
	"github.com/melvkunst/tcc/logging"
	"github.com/melvkunst/tcc/metrics"
)

// CompatibilityThreshold is the reactivity value from which a matched
// allele is incompatible.
const CompatibilityThreshold = 1000.0

// Compatible reports whether a reactivity value is below the threshold.
func Compatible(value float64) bool {
	return value < CompatibilityThreshold
}

// AlleleMatch is a requested allele found in a recipient's latest exam.
type AlleleMatch struct {
	Nome            string  `json:"nome"`
	Valor           float64 `json:"valor"`
	Compatibilidade bool    `json:"compatibilidade"`
}

// Report is the crossmatch outcome of one recipient.
type Report struct {
	Nome                  string        `json:"nome"`
	AlelosCorrespondentes []AlleleMatch `json:"alelos_correspondentes"`
}

// Result maps recipient ids to their reports. Every candidate appears, also
// when nothing matched.
type Result map[string]Report

// Engine runs virtual crossmatches against a Store.
type Engine struct {
	store   db.Store
	logger  *log.Logger
	metrics *metrics.Metrics
}

// NewEngine returns an Engine reading from store. A nil logger selects the
// crossmatch logger; nil metrics record nothing.
func NewEngine(store db.Store, logger *log.Logger, m *metrics.Metrics) *Engine {
	if logger == nil {
		logger = logging.Logger(logging.SourceCrossmatch)
	}

	return &Engine{store: store, logger: logger, metrics: m}
}

// Match selects the patients whose blood type equals the donor's, takes each
// one's latest exam and reports the measurements in the requested allele
// groups. It returns ErrNoCandidates when no patient has the blood type.
func (e *Engine) Match(ctx context.Context, req Request) (Result, error) {
	// Registration upper-cases blood types, so "o+" finds "O+" recipients.
	bloodType := strings.ToUpper(strings.TrimSpace(req.DonorBloodType))

	patients, err := e.store.ListPatientsByBloodType(ctx, bloodType)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}

	if len(patients) == 0 {
		e.logger.Warn("No candidates for donor blood type", "blood_type", bloodType)
		return nil, ErrNoCandidates
	}

	result := make(Result, len(patients))
	ids := make([]uuid.UUID, 0, len(patients))

	for _, p := range patients {
		result[p.ID.String()] = Report{Nome: p.Name, AlelosCorrespondentes: []AlleleMatch{}}
		ids = append(ids, p.ID)
	}

	e.metrics.CrossmatchComputed(len(patients))

	groups := req.Groups(e.logger)
	if len(groups) == 0 {
		e.logger.Info("Crossmatch without allele groups", "blood_type", bloodType, "candidates", len(patients))
		return result, nil
	}

	latest, err := e.store.LatestExams(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest exams: %w", err)
	}

	examIDs := make([]uuid.UUID, 0, len(latest))
	for _, exam := range latest {
		examIDs = append(examIDs, exam.ID)
	}

	measurements, err := e.store.ListMeasurementsForExams(ctx, examIDs, groups)
	if err != nil {
		return nil, fmt.Errorf("failed to list measurements: %w", err)
	}

	matched := 0

	for _, m := range measurements {
		key := m.PatientID.String()

		report, ok := result[key]
		if !ok {
			continue
		}

		report.AlelosCorrespondentes = append(report.AlelosCorrespondentes, AlleleMatch{
			Nome:            m.AlleleName,
			Valor:           m.Value,
			Compatibilidade: Compatible(m.Value),
		})
		result[key] = report
		matched++
	}

	e.logger.Info("Computed crossmatch",
		"blood_type", bloodType,
		"groups", len(groups),
		"candidates", len(patients),
		"with_exam", len(latest),
		"matches", matched,
	)

	return result, nil
}
