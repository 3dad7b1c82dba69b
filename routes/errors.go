/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package routes

import "errors"

var (
	errInvalidID          = errors.New("invalid id")
	errInvalidBody        = errors.New("invalid request body")
	errMissingFile        = errors.New("no file was uploaded")
	errMissingName        = errors.New("nome is required")
	errInvalidBirthDate   = errors.New("data_nascimento must be YYYY-MM-DD")
	errInvalidBloodType   = errors.New("tipo_sanguineo is required and has at most 3 characters")
	errInvalidArchiveKey  = errors.New("key does not belong to this patient")
	errArchiveUnavailable = errors.New("upload archive is disabled")
)
