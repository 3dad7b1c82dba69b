/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/flamego/flamego"
	"github.com/google/uuid"

	"github.com/melvkunst/tcc/archive"
	"github.com/melvkunst/tcc/crossmatch"
	"github.com/melvkunst/tcc/db"
	"github.com/melvkunst/tcc/sheet"
)

func writeJSON(c flamego.Context, status int, v interface{}) {
	c.ResponseWriter().Header().Set("Content-Type", "application/json; charset=utf-8")
	c.ResponseWriter().WriteHeader(status)

	if err := json.NewEncoder(c.ResponseWriter()).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(c flamego.Context, status int, message string) {
	writeJSON(c, status, map[string]string{"error": message})
}

// writeFailure maps err onto a status code and writes it as an error payload.
func writeFailure(c flamego.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", "path", c.Request().URL.Path, "error", err)
		writeError(c, status, "internal server error")

		return
	}

	writeError(c, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errInvalidID),
		errors.Is(err, errInvalidBody),
		errors.Is(err, errMissingFile),
		errors.Is(err, errMissingName),
		errors.Is(err, errInvalidBirthDate),
		errors.Is(err, errInvalidBloodType),
		errors.Is(err, errInvalidArchiveKey),
		errors.Is(err, sheet.ErrUnsupportedFileFormat),
		errors.Is(err, sheet.ErrUnreadableWorkbook),
		errors.Is(err, sheet.ErrEmptyWorkbook),
		errors.Is(err, sheet.ErrAnchorNotFound),
		errors.Is(err, sheet.ErrInvalidExamDate),
		errors.Is(err, crossmatch.ErrIncompleteDonorData),
		errors.Is(err, crossmatch.ErrIncompletePatientData),
		errors.Is(err, archive.ErrInvalidKey):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrPatientNotFound),
		errors.Is(err, db.ErrExamNotFound),
		errors.Is(err, db.ErrCrossmatchNotFound),
		errors.Is(err, crossmatch.ErrNoCandidates),
		errors.Is(err, archive.ErrNotFound),
		errors.Is(err, errArchiveUnavailable):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(c flamego.Context, v interface{}) error {
	if err := json.NewDecoder(c.Request().Body().ReadCloser()).Decode(v); err != nil {
		return errors.Join(errInvalidBody, err)
	}

	return nil
}

func paramUUID(c flamego.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, errInvalidID
	}

	return id, nil
}
