/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package routes

import (
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/flamego/flamego"

	"github.com/melvkunst/tcc/db"
)

type patientPayload struct {
	Name        string `json:"nome"`
	DateOfBirth string `json:"data_nascimento"`
	BloodType   string `json:"tipo_sanguineo"`
}

func (p patientPayload) input() (db.CreatePatientInput, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return db.CreatePatientInput{}, errMissingName
	}

	dob, err := time.Parse(time.DateOnly, strings.TrimSpace(p.DateOfBirth))
	if err != nil {
		return db.CreatePatientInput{}, errInvalidBirthDate
	}

	bloodType := strings.ToUpper(strings.TrimSpace(p.BloodType))
	if bloodType == "" || utf8.RuneCountInString(bloodType) > 3 {
		return db.CreatePatientInput{}, errInvalidBloodType
	}

	return db.CreatePatientInput{Name: name, DateOfBirth: dob, BloodType: bloodType}, nil
}

// ListPatients returns every registered patient.
func ListPatients(c flamego.Context, store db.Store) {
	patients, err := store.ListPatients(c.Request().Context())
	if err != nil {
		writeFailure(c, err)
		return
	}

	if patients == nil {
		patients = []db.Patient{}
	}

	writeJSON(c, http.StatusOK, patients)
}

// CreatePatient registers a patient from a JSON body.
func CreatePatient(c flamego.Context, store db.Store) {
	var payload patientPayload
	if err := decodeJSON(c, &payload); err != nil {
		writeFailure(c, err)
		return
	}

	input, err := payload.input()
	if err != nil {
		writeFailure(c, err)
		return
	}

	patient, err := store.CreatePatient(c.Request().Context(), input)
	if err != nil {
		writeFailure(c, err)
		return
	}

	logger.Info("Patient created", "patient", patient.ID)
	writeJSON(c, http.StatusCreated, patient)
}

// GetPatient returns one patient.
func GetPatient(c flamego.Context, store db.Store) {
	id, err := paramUUID(c, "id")
	if err != nil {
		writeFailure(c, err)
		return
	}

	patient, err := store.GetPatient(c.Request().Context(), id)
	if err != nil {
		writeFailure(c, err)
		return
	}

	writeJSON(c, http.StatusOK, patient)
}

// DeletePatient removes a patient with its exams and measurements.
func DeletePatient(c flamego.Context, store db.Store) {
	id, err := paramUUID(c, "id")
	if err != nil {
		writeFailure(c, err)
		return
	}

	if err := store.DeletePatient(c.Request().Context(), id); err != nil {
		writeFailure(c, err)
		return
	}

	logger.Info("Patient deleted", "patient", id)
	c.ResponseWriter().WriteHeader(http.StatusNoContent)
}

// ListPatientExams returns the exams of a patient, newest first.
func ListPatientExams(c flamego.Context, store db.Store) {
	id, err := paramUUID(c, "id")
	if err != nil {
		writeFailure(c, err)
		return
	}

	ctx := c.Request().Context()
	if _, err := store.GetPatient(ctx, id); err != nil {
		writeFailure(c, err)
		return
	}

	exams, err := store.ListExamsByPatient(ctx, id)
	if err != nil {
		writeFailure(c, err)
		return
	}

	if exams == nil {
		exams = []db.Exam{}
	}

	writeJSON(c, http.StatusOK, exams)
}

// ListExamAlleles returns the measurements of one exam of a patient.
func ListExamAlleles(c flamego.Context, store db.Store) {
	patientID, err := paramUUID(c, "id")
	if err != nil {
		writeFailure(c, err)
		return
	}

	examID, err := paramUUID(c, "exam")
	if err != nil {
		writeFailure(c, err)
		return
	}

	ctx := c.Request().Context()
	if _, err := store.GetExam(ctx, patientID, examID); err != nil {
		writeFailure(c, err)
		return
	}

	measurements, err := store.ListMeasurementsByExam(ctx, examID)
	if err != nil {
		writeFailure(c, err)
		return
	}

	if measurements == nil {
		measurements = []db.Measurement{}
	}

	writeJSON(c, http.StatusOK, measurements)
}
