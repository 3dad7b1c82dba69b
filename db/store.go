/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package db

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/melvkunst/tcc/hla"
)

// Store is the persistence boundary of the ingestion and crossmatch services.
// It is implemented by PostgresStore and MemoryStore.
type Store interface {
	CreatePatient(ctx context.Context, input CreatePatientInput) (*Patient, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
	ListPatients(ctx context.Context) ([]Patient, error)
	ListPatientsByBloodType(ctx context.Context, bloodType string) ([]Patient, error)
	DeletePatient(ctx context.Context, id uuid.UUID) error

	ListExamsByPatient(ctx context.Context, patientID uuid.UUID) ([]Exam, error)
	GetExam(ctx context.Context, patientID, examID uuid.UUID) (*Exam, error)
	// LatestExams returns the most recent exam of every listed patient that
	// has one. Ties on the exam date go to the later created_at, then the
	// greater id.
	LatestExams(ctx context.Context, patientIDs []uuid.UUID) (map[uuid.UUID]Exam, error)

	ListMeasurementsByExam(ctx context.Context, examID uuid.UUID) ([]Measurement, error)
	// ListMeasurementsForExams returns the measurements of the given exams
	// whose allele (locus, field1) is one of groups, ordered by allele name.
	ListMeasurementsForExams(ctx context.Context, examIDs []uuid.UUID, groups []hla.Key) ([]Measurement, error)

	ListCrossmatches(ctx context.Context) ([]CrossmatchRun, error)
	GetCrossmatch(ctx context.Context, id uuid.UUID) (*CrossmatchRun, error)

	// InTx runs fn in a single transaction. Returning an error from fn rolls
	// back every write made through the Tx.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx holds the write operations that must run atomically.
type Tx interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetOrCreateExam(ctx context.Context, patientID uuid.UUID, examDate time.Time) (*Exam, bool, error)

	GetAlleleByName(ctx context.Context, name string) (*Allele, error)
	CreateAllele(ctx context.Context, allele Allele) (*Allele, error)

	MeasurementExists(ctx context.Context, examID, alleleID uuid.UUID) (bool, error)
	CreateMeasurement(ctx context.Context, examID, alleleID uuid.UUID, value float64) (*Measurement, error)

	CreateCrossmatch(ctx context.Context, input CreateCrossmatchInput) (*CrossmatchRun, error)
	CreateCrossmatchPatientResult(ctx context.Context, result CrossmatchPatientResult) (*CrossmatchPatientResult, error)
	CreateCrossmatchAlleleResult(ctx context.Context, result CrossmatchAlleleResult) (*CrossmatchAlleleResult, error)
}

// dateOnly truncates t to midnight UTC of its calendar day.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
