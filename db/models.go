/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package db

import (
	"time"

	"github.com/google/uuid"
)

// Patient is a candidate transplant recipient.
type Patient struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"nome"`
	DateOfBirth time.Time `db:"date_of_birth" json:"data_nascimento"`
	BloodType   string    `db:"blood_type" json:"tipo_sanguineo"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// CreatePatientInput represents input for creating a patient
type CreatePatientInput struct {
	Name        string
	DateOfBirth time.Time
	BloodType   string
}

// Exam is one dated laboratory exam of a patient. A patient has at most one
// exam per date.
type Exam struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"paciente"`
	ExamDate  time.Time `db:"exam_date" json:"data_exame"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Allele is an allele catalog entry. Name is unique; the same specificity
// may appear under suffixed names (A*01:01.1) when one exam reports it twice.
type Allele struct {
	ID     uuid.UUID `db:"id" json:"id"`
	Name   string    `db:"name" json:"nome"`
	Locus  string    `db:"locus" json:"tipo"`
	Field1 int       `db:"field1" json:"numero1"`
	Field2 int       `db:"field2" json:"numero2"`
}

// Measurement is a reactivity value of one allele in one exam, joined with
// its catalog entry.
type Measurement struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ExamID     uuid.UUID `db:"exam_id" json:"exame"`
	PatientID  uuid.UUID `db:"patient_id" json:"paciente"`
	AlleleID   uuid.UUID `db:"allele_id" json:"alelo"`
	AlleleName string    `db:"allele_name" json:"alelo_nome"`
	Locus      string    `db:"locus" json:"tipo"`
	Field1     int       `db:"field1" json:"numero1"`
	Field2     int       `db:"field2" json:"numero2"`
	Value      float64   `db:"value" json:"valor"`
}

// CrossmatchRun is an immutable snapshot of a saved virtual crossmatch.
type CrossmatchRun struct {
	ID             uuid.UUID                 `db:"id" json:"id"`
	DonorID        *string                   `db:"donor_id" json:"donor_id"`
	DonorName      string                    `db:"donor_name" json:"donor_name"`
	DonorSex       string                    `db:"donor_sex" json:"donor_sex"`
	DonorBirthDate time.Time                 `db:"donor_birth_date" json:"donor_birth_date"`
	DonorBloodType string                    `db:"donor_blood_type" json:"donor_blood_type"`
	DatePerformed  time.Time                 `db:"date_performed" json:"date_performed"`
	PatientResults []CrossmatchPatientResult `json:"patient_results,omitempty"`
}

// CreateCrossmatchInput represents input for creating a crossmatch run
type CreateCrossmatchInput struct {
	DonorID        *string
	DonorName      string
	DonorSex       string
	DonorBirthDate time.Time
	DonorBloodType string
	DatePerformed  time.Time
}

// CrossmatchPatientResult is the outcome of one recipient within a run.
type CrossmatchPatientResult struct {
	ID                       uuid.UUID                `db:"id" json:"id"`
	CrossmatchID             uuid.UUID                `db:"crossmatch_id" json:"crossmatch"`
	PatientID                string                   `db:"patient_id" json:"patient_id"`
	PatientName              string                   `db:"patient_name" json:"patient_name"`
	TotalCompatibleAlleles   int                      `db:"total_compatible_alleles" json:"total_compatible_alleles"`
	TotalIncompatibleAlleles int                      `db:"total_incompatible_alleles" json:"total_incompatible_alleles"`
	AlleleResults            []CrossmatchAlleleResult `json:"allele_results"`
}

// CrossmatchAlleleResult is one matched allele of a recipient within a run.
type CrossmatchAlleleResult struct {
	ID              uuid.UUID `db:"id" json:"id"`
	PatientResultID uuid.UUID `db:"patient_result_id" json:"patient_result"`
	AlleleName      string    `db:"allele_name" json:"allele_name"`
	AlleleValue     float64   `db:"allele_value" json:"allele_value"`
	Compatibility   bool      `db:"compatibility" json:"compatibility"`
}
