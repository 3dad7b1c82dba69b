/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package routes

import (
	"errors"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/flamego/flamego"

	"github.com/melvkunst/tcc/archive"
	"github.com/melvkunst/tcc/db"
	"github.com/melvkunst/tcc/ingest"
)

const maxUploadSize = 10 << 20

type uploadResponse struct {
	Message string `json:"message"`
	*ingest.Result
}

// Uploads holds the archive of raw exam sheets. Store is nil when archiving
// is disabled.
type Uploads struct {
	Store archive.Store
}

// UploadExam ingests the spreadsheet sent in the "file" form field.
func UploadExam(c flamego.Context, pipeline *ingest.Pipeline) {
	patientID, err := paramUUID(c, "id")
	if err != nil {
		writeFailure(c, err)
		return
	}

	if err := c.Request().ParseMultipartForm(maxUploadSize); err != nil {
		writeFailure(c, errMissingFile)
		return
	}

	file, header, err := c.Request().FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			writeFailure(c, errMissingFile)
			return
		}

		writeFailure(c, errors.Join(errInvalidBody, err))

		return
	}
	defer file.Close()

	result, err := pipeline.Ingest(c.Request().Context(), patientID, header.Filename, file)
	if err != nil {
		writeFailure(c, err)
		return
	}

	writeJSON(c, http.StatusCreated, uploadResponse{
		Message: "exam and alleles processed",
		Result:  result,
	})
}

// ListUploads returns the archived sheets of a patient.
func ListUploads(c flamego.Context, store db.Store, uploads *Uploads) {
	patientID, err := paramUUID(c, "id")
	if err != nil {
		writeFailure(c, err)
		return
	}

	ctx := c.Request().Context()
	if _, err := store.GetPatient(ctx, patientID); err != nil {
		writeFailure(c, err)
		return
	}

	if uploads.Store == nil {
		writeFailure(c, errArchiveUnavailable)
		return
	}

	items, err := uploads.Store.List(ctx, archive.PatientPrefix(patientID))
	if err != nil {
		writeFailure(c, err)
		return
	}

	if items == nil {
		items = []archive.Info{}
	}

	writeJSON(c, http.StatusOK, items)
}

// DownloadUpload streams one archived sheet selected by the "key" query
// parameter.
func DownloadUpload(c flamego.Context, uploads *Uploads) {
	patientID, err := paramUUID(c, "id")
	if err != nil {
		writeFailure(c, err)
		return
	}

	if uploads.Store == nil {
		writeFailure(c, errArchiveUnavailable)
		return
	}

	key := c.Query("key")
	if !strings.HasPrefix(key, archive.PatientPrefix(patientID)) || strings.Contains(key, "..") {
		writeFailure(c, errInvalidArchiveKey)
		return
	}

	info, body, err := uploads.Store.Get(c.Request().Context(), key)
	if err != nil {
		writeFailure(c, err)
		return
	}
	defer body.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w := c.ResponseWriter()
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(info.Key)+`"`)

	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}

	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, body); err != nil {
		logger.Error("Failed to stream upload", "key", key, "error", err)
	}
}
