/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package routes

import (
	"net/http"

	"github.com/flamego/flamego"

	"github.com/melvkunst/tcc/crossmatch"
	"github.com/melvkunst/tcc/db"
)

// VirtualCrossmatch matches the donor request against the latest exam of
// every recipient with the donor's blood type.
func VirtualCrossmatch(c flamego.Context, engine *crossmatch.Engine) {
	var req crossmatch.Request
	if err := decodeJSON(c, &req); err != nil {
		writeFailure(c, err)
		return
	}

	result, err := engine.Match(c.Request().Context(), req)
	if err != nil {
		writeFailure(c, err)
		return
	}

	writeJSON(c, http.StatusOK, result)
}

// SaveCrossmatch stores a crossmatch run and returns it with its outcomes.
func SaveCrossmatch(c flamego.Context, recorder *crossmatch.Recorder) {
	var req crossmatch.SaveRequest
	if err := decodeJSON(c, &req); err != nil {
		writeFailure(c, err)
		return
	}

	run, err := recorder.Save(c.Request().Context(), req)
	if err != nil {
		writeFailure(c, err)
		return
	}

	writeJSON(c, http.StatusCreated, run)
}

// CrossmatchHistory lists saved runs newest first.
func CrossmatchHistory(c flamego.Context, recorder *crossmatch.Recorder) {
	runs, err := recorder.List(c.Request().Context())
	if err != nil {
		writeFailure(c, err)
		return
	}

	if runs == nil {
		runs = []db.CrossmatchRun{}
	}

	writeJSON(c, http.StatusOK, runs)
}

// CrossmatchDetails returns one saved run with its outcome tree.
func CrossmatchDetails(c flamego.Context, recorder *crossmatch.Recorder) {
	id, err := paramUUID(c, "id")
	if err != nil {
		writeFailure(c, err)
		return
	}

	run, err := recorder.Get(c.Request().Context(), id)
	if err != nil {
		writeFailure(c, err)
		return
	}

	writeJSON(c, http.StatusOK, run)
}
