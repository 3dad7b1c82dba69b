// SPDX-FileCopyrightText: 2025 Humaid Alqasimi
// SPDX-License-Identifier: Apache-2.0

package routes

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flamego/flamego"

	"github.com/melvkunst/tcc/archive"
	"github.com/melvkunst/tcc/crossmatch"
	"github.com/melvkunst/tcc/db"
	"github.com/melvkunst/tcc/sheet"
)

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{sheet.ErrUnsupportedFileFormat, http.StatusBadRequest},
		{fmt.Errorf("failed to parse: %w", sheet.ErrAnchorNotFound), http.StatusBadRequest},
		{sheet.ErrInvalidExamDate, http.StatusBadRequest},
		{sheet.ErrUnreadableWorkbook, http.StatusBadRequest},
		{crossmatch.ErrIncompleteDonorData, http.StatusBadRequest},
		{&crossmatch.IncompletePatientDataError{RecipientID: "p-1"}, http.StatusBadRequest},
		{errors.Join(errInvalidBody, errors.New("eof")), http.StatusBadRequest},
		{db.ErrPatientNotFound, http.StatusNotFound},
		{db.ErrExamNotFound, http.StatusNotFound},
		{db.ErrCrossmatchNotFound, http.StatusNotFound},
		{crossmatch.ErrNoCandidates, http.StatusNotFound},
		{archive.ErrNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestInternalErrorsAreMasked(t *testing.T) {
	t.Parallel()

	f := flamego.New()
	f.Get("/", func(c flamego.Context) {
		writeFailure(c, errors.New("connection refused on 10.0.0.5"))
	})

	rec := httptest.NewRecorder()
	f.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	if body := rec.Body.String(); body != "{\"error\":\"internal server error\"}\n" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		forwarded  string
		remoteAddr string
		want       string
	}{
		{name: "forwarded chain", forwarded: "203.0.113.7, 10.0.0.1", remoteAddr: "10.0.0.1:5000", want: "203.0.113.7"},
		{name: "single forwarded", forwarded: " 198.51.100.2 ", remoteAddr: "10.0.0.1:5000", want: "198.51.100.2"},
		{name: "remote address", remoteAddr: "192.0.2.10:4444", want: "192.0.2.10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got string

			f := flamego.New()
			f.Get("/", func(c flamego.Context) {
				got = clientIP(c)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr

			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}

			f.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestChartValuesKeepsRepeatedNames(t *testing.T) {
	t.Parallel()

	values := chartValues([]db.CrossmatchAlleleResult{
		{AlleleName: "A*01:01", AlleleValue: 1500},
		{AlleleName: "B*08:01", AlleleValue: 900},
		{AlleleName: "A*01:01", AlleleValue: 3200},
		{AlleleName: "A*01:01", AlleleValue: 4100},
	})

	want := map[string]float64{
		"A*01:01":     1500,
		"A*01:01 (2)": 3200,
		"A*01:01 (3)": 4100,
		"B*08:01":     900,
	}

	if len(values) != len(want) {
		t.Fatalf("expected %d categories, got %v", len(want), values)
	}

	for label, v := range want {
		if got, ok := values[label]; !ok || got != v {
			t.Fatalf("expected %s=%v, got %v (present %v)", label, v, got, ok)
		}
	}
}

func TestRenderRunChartKeepsRepeatedNames(t *testing.T) {
	t.Parallel()

	run := &db.CrossmatchRun{
		DonorName:      "Donor",
		DonorBloodType: "O+",
		PatientResults: []db.CrossmatchPatientResult{{
			PatientName: "Ana",
			AlleleResults: []db.CrossmatchAlleleResult{
				{AlleleName: "A*01:01", AlleleValue: 1500},
				{AlleleName: "A*01:01", AlleleValue: 3200},
			},
		}},
	}

	html, err := renderRunChart(run)
	if err != nil {
		t.Fatalf("renderRunChart failed: %v", err)
	}

	for _, needle := range []string{"A*01:01 (2)", "1500", "3200"} {
		if !bytes.Contains(html, []byte(needle)) {
			t.Fatalf("expected chart to contain %q", needle)
		}
	}
}
