/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package crossmatch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/melvkunst/tcc/db"
	"github.com/melvkunst/tcc/logging"
	"github.com/melvkunst/tcc/metrics"
)

// BirthDateLayout is the wire format of donor_birth_date.
const BirthDateLayout = time.DateOnly

// Outcome is a recipient report submitted for saving. Pointers tell a
// missing field from an empty one.
type Outcome struct {
	Nome                  *string        `json:"nome"`
	AlelosCorrespondentes *[]AlleleMatch `json:"alelos_correspondentes"`
}

// SaveRequest is the donor snapshot and recipient outcomes of a run.
type SaveRequest struct {
	DonorID        *string            `json:"donor_id"`
	DonorName      *string            `json:"donor_name"`
	DonorSex       *string            `json:"donor_sex"`
	DonorBirthDate *string            `json:"donor_birth_date"`
	DonorBloodType *string            `json:"donor_blood_type"`
	Results        map[string]Outcome `json:"results"`
}

type validOutcome struct {
	recipientID string
	name        string
	alleles     []AlleleMatch
}

// validate checks every field before anything is written.
func (r SaveRequest) validate() (db.CreateCrossmatchInput, []validOutcome, error) {
	var input db.CreateCrossmatchInput

	var missing []string

	required := func(field string, value *string) string {
		if value == nil || strings.TrimSpace(*value) == "" {
			missing = append(missing, field)
			return ""
		}

		return strings.TrimSpace(*value)
	}

	input.DonorName = required("donor_name", r.DonorName)
	input.DonorSex = required("donor_sex", r.DonorSex)
	birthDate := required("donor_birth_date", r.DonorBirthDate)
	input.DonorBloodType = required("donor_blood_type", r.DonorBloodType)

	if r.Results == nil {
		missing = append(missing, "results")
	}

	if len(missing) > 0 {
		return input, nil, fmt.Errorf("%w: missing %s", ErrIncompleteDonorData, strings.Join(missing, ", "))
	}

	parsed, err := time.Parse(BirthDateLayout, birthDate)
	if err != nil {
		return input, nil, fmt.Errorf("%w: donor_birth_date must be YYYY-MM-DD", ErrIncompleteDonorData)
	}

	input.DonorBirthDate = parsed

	if r.DonorID != nil && strings.TrimSpace(*r.DonorID) != "" {
		id := strings.TrimSpace(*r.DonorID)
		input.DonorID = &id
	}

	ids := make([]string, 0, len(r.Results))
	for id := range r.Results {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	outcomes := make([]validOutcome, 0, len(ids))

	for _, id := range ids {
		outcome := r.Results[id]

		var missing []string

		if outcome.Nome == nil || strings.TrimSpace(*outcome.Nome) == "" {
			missing = append(missing, "nome")
		}

		if outcome.AlelosCorrespondentes == nil {
			missing = append(missing, "alelos_correspondentes")
		} else {
			for i, a := range *outcome.AlelosCorrespondentes {
				if strings.TrimSpace(a.Nome) == "" {
					missing = append(missing, fmt.Sprintf("alelos_correspondentes[%d].nome", i))
				}
			}
		}

		if len(missing) > 0 {
			return input, nil, &IncompletePatientDataError{RecipientID: id, Missing: missing}
		}

		outcomes = append(outcomes, validOutcome{
			recipientID: id,
			name:        strings.TrimSpace(*outcome.Nome),
			alleles:     *outcome.AlelosCorrespondentes,
		})
	}

	return input, outcomes, nil
}

// Recorder saves and reads crossmatch runs.
type Recorder struct {
	store   db.Store
	logger  *log.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewRecorder returns a Recorder writing through store.
func NewRecorder(store db.Store, logger *log.Logger, m *metrics.Metrics) *Recorder {
	if logger == nil {
		logger = logging.Logger(logging.SourceCrossmatch)
	}

	return &Recorder{store: store, logger: logger, metrics: m, now: time.Now}
}

// Save validates req and stores the run with one outcome per recipient and
// one allele outcome per match, all in one transaction. Totals count the
// compatible and incompatible matches as submitted.
func (r *Recorder) Save(ctx context.Context, req SaveRequest) (*db.CrossmatchRun, error) {
	input, outcomes, err := req.validate()
	if err != nil {
		r.logger.Warn("Rejected crossmatch result", "error", err)
		return nil, err
	}

	input.DatePerformed = r.now().UTC()

	var saved *db.CrossmatchRun

	err = r.store.InTx(ctx, func(tx db.Tx) error {
		run, err := tx.CreateCrossmatch(ctx, input)
		if err != nil {
			return err
		}

		run.PatientResults = make([]db.CrossmatchPatientResult, 0, len(outcomes))

		for _, outcome := range outcomes {
			patientResult, err := savePatientOutcome(ctx, tx, run.ID, outcome)
			if err != nil {
				return err
			}

			run.PatientResults = append(run.PatientResults, *patientResult)
		}

		saved = run

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save crossmatch: %w", err)
	}

	r.metrics.CrossmatchSaved()
	r.logger.Info("Saved crossmatch", "crossmatch_id", saved.ID, "donor", saved.DonorName, "patients", len(saved.PatientResults))

	return saved, nil
}

func savePatientOutcome(ctx context.Context, tx db.Tx, runID uuid.UUID, outcome validOutcome) (*db.CrossmatchPatientResult, error) {
	compatible := 0
	for _, a := range outcome.alleles {
		if a.Compatibilidade {
			compatible++
		}
	}

	patientResult, err := tx.CreateCrossmatchPatientResult(ctx, db.CrossmatchPatientResult{
		CrossmatchID:             runID,
		PatientID:                outcome.recipientID,
		PatientName:              outcome.name,
		TotalCompatibleAlleles:   compatible,
		TotalIncompatibleAlleles: len(outcome.alleles) - compatible,
	})
	if err != nil {
		return nil, err
	}

	patientResult.AlleleResults = make([]db.CrossmatchAlleleResult, 0, len(outcome.alleles))

	for _, a := range outcome.alleles {
		alleleResult, err := tx.CreateCrossmatchAlleleResult(ctx, db.CrossmatchAlleleResult{
			PatientResultID: patientResult.ID,
			AlleleName:      strings.TrimSpace(a.Nome),
			AlleleValue:     a.Valor,
			Compatibility:   a.Compatibilidade,
		})
		if err != nil {
			return nil, err
		}

		patientResult.AlleleResults = append(patientResult.AlleleResults, *alleleResult)
	}

	return patientResult, nil
}

// List returns saved runs newest first, without their outcomes.
func (r *Recorder) List(ctx context.Context) ([]db.CrossmatchRun, error) {
	runs, err := r.store.ListCrossmatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list crossmatches: %w", err)
	}

	return runs, nil
}

// Get returns a run with its outcome tree, or db.ErrCrossmatchNotFound.
func (r *Recorder) Get(ctx context.Context, id uuid.UUID) (*db.CrossmatchRun, error) {
	return r.store.GetCrossmatch(ctx, id)
}
