// SPDX-FileCopyrightText: 2025 Humaid Alqasimi
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/melvkunst/tcc/hla"
)

func testContext() context.Context {
	return context.Background()
}

func stringPtr(value string) *string {
	return &value
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// newPostgresTestStore returns a PostgresStore on the test schema, or skips
// when no database is configured.
func newPostgresTestStore(t *testing.T) Store {
	t.Helper()

	if pool == nil {
		t.Skip("DATABASE_URL not set")
	}

	resetDatabase(t)

	return NewPostgresStore(pool)
}

func newMemoryTestStore(t *testing.T) Store {
	t.Helper()

	return NewMemoryStore()
}

func mustCreatePatient(t *testing.T, store Store, name, bloodType string) *Patient {
	t.Helper()

	p, err := store.CreatePatient(testContext(), CreatePatientInput{
		Name:        name,
		DateOfBirth: date(1990, time.January, 15),
		BloodType:   bloodType,
	})
	if err != nil {
		t.Fatalf("failed to create patient: %v", err)
	}

	return p
}

// mustRecordExam stores one exam of patientID with the given allele values.
func mustRecordExam(t *testing.T, store Store, patientID uuid.UUID, examDate time.Time, values map[string]float64) *Exam {
	t.Helper()

	var exam *Exam

	err := store.InTx(testContext(), func(tx Tx) error {
		e, _, err := tx.GetOrCreateExam(testContext(), patientID, examDate)
		if err != nil {
			return err
		}

		exam = e

		for name, value := range values {
			allele, err := tx.GetAlleleByName(testContext(), name)
			if err != nil {
				allele, err = tx.CreateAllele(testContext(), parseTestAllele(t, name))
				if err != nil {
					return err
				}
			}

			if _, err := tx.CreateMeasurement(testContext(), e.ID, allele.ID, value); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		t.Fatalf("failed to record exam: %v", err)
	}

	return exam
}

func parseTestAllele(t *testing.T, name string) Allele {
	t.Helper()

	parsed, err := hla.Parse(name)
	if err != nil {
		t.Fatalf("bad test allele %q: %v", name, err)
	}

	return Allele{Name: name, Locus: parsed.Locus, Field1: parsed.Field1, Field2: parsed.Field2}
}
