/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */

// Package ingest turns uploaded exam sheets into stored allele measurements.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/melvkunst/tcc/archive"
	"github.com/melvkunst/tcc/db"
	"github.com/melvkunst/tcc/hla"
	"github.com/melvkunst/tcc/metrics"
	"github.com/melvkunst/tcc/sheet"
)

// Options configures a Pipeline. Zero values select the default layout, no
// archiving, the ingest logger and no metrics.
type Options struct {
	Layout  *sheet.Layout
	Archive archive.Store
	Logger  *log.Logger
	Metrics *metrics.Metrics
}

// Pipeline ingests exam sheets for one patient at a time.
type Pipeline struct {
	store   db.Store
	layout  sheet.Layout
	archive archive.Store
	catalog *Catalog
	logger  *log.Logger
	metrics *metrics.Metrics
}

// SkippedReading is a sheet reading that could not be stored.
type SkippedReading struct {
	Row      int    `json:"linha"`
	Allele   string `json:"alelo"`
	RawValue string `json:"valor"`
	Reason   string `json:"motivo"`
}

// Result summarises one ingestion.
type Result struct {
	Exam         db.Exam          `json:"exame"`
	ExamCreated  bool             `json:"exame_criado"`
	Measurements []db.Measurement `json:"alelos"`
	Skipped      []SkippedReading `json:"ignorados"`
	ArchiveKey   string           `json:"arquivo,omitempty"`
}

// New returns a Pipeline writing through store.
func New(store db.Store, opts Options) (*Pipeline, error) {
	layout := sheet.DefaultLayout()
	if opts.Layout != nil {
		layout = *opts.Layout
	}

	if err := layout.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = defaultLogger()
	}

	return &Pipeline{
		store:   store,
		layout:  layout,
		archive: opts.Archive,
		catalog: NewCatalog(logger),
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// Ingest reads one exam sheet and stores its measurements for patientID as
// a single transaction. Malformed readings are skipped and reported in the
// result. Unsupported files, a missing anchor, an invalid exam date or an
// unknown patient abort the ingestion without writing anything.
func (p *Pipeline) Ingest(ctx context.Context, patientID uuid.UUID, filename string, r io.Reader) (*Result, error) {
	start := time.Now()

	if !sheet.IsSupported(filename) {
		p.metrics.IngestFailed(metrics.ReasonUnsupported)
		return nil, fmt.Errorf("%w: %q", sheet.ErrUnsupportedFileFormat, filepath.Base(filename))
	}

	data, err := io.ReadAll(r)
	if err != nil {
		p.metrics.IngestFailed(metrics.ReasonUnreadable)
		return nil, fmt.Errorf("%w: %w", sheet.ErrUnreadableWorkbook, err)
	}

	grid, err := sheet.Load(filename, bytes.NewReader(data))
	if err != nil {
		p.metrics.IngestFailed(failureReason(err))
		return nil, err
	}

	parsed, err := sheet.Parse(grid, p.layout)
	if err != nil {
		p.metrics.IngestFailed(failureReason(err))
		return nil, err
	}

	var result *Result

	err = p.store.InTx(ctx, func(tx db.Tx) error {
		stored, err := p.storeReadings(ctx, tx, patientID, parsed)
		result = stored

		return err
	})
	if err != nil {
		p.metrics.IngestFailed(failureReason(err))
		return nil, err
	}

	result.ArchiveKey = p.archiveUpload(ctx, patientID, result.Exam, filename, data)

	p.metrics.ExamIngested(result.ExamCreated, len(result.Measurements), time.Since(start))
	p.logger.Info("Ingested exam sheet",
		"patient_id", patientID,
		"exam_id", result.Exam.ID,
		"exam_date", result.Exam.ExamDate.Format(time.DateOnly),
		"exam_created", result.ExamCreated,
		"measurements", len(result.Measurements),
		"skipped", len(result.Skipped),
	)

	return result, nil
}

func (p *Pipeline) storeReadings(ctx context.Context, tx db.Tx, patientID uuid.UUID, parsed *sheet.Exam) (*Result, error) {
	if _, err := tx.GetPatient(ctx, patientID); err != nil {
		return nil, err
	}

	exam, created, err := tx.GetOrCreateExam(ctx, patientID, parsed.Date)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Exam:         *exam,
		ExamCreated:  created,
		Measurements: []db.Measurement{},
		Skipped:      []SkippedReading{},
	}

	for _, reading := range parsed.Readings {
		name := strings.TrimSpace(reading.Allele)

		allele, err := hla.Parse(name)
		if err != nil {
			p.skip(result, reading, metrics.ReasonMalformedAllele, err)
			continue
		}

		value, err := hla.ParseReactivity(reading.RawValue)
		if err != nil {
			p.skip(result, reading, metrics.ReasonInvalidValue, err)
			continue
		}

		entry, err := p.catalog.Ensure(ctx, tx, exam.ID, allele, name)
		if err != nil {
			return nil, err
		}

		measurement, err := tx.CreateMeasurement(ctx, exam.ID, entry.ID, value)
		if err != nil {
			return nil, err
		}

		result.Measurements = append(result.Measurements, *measurement)
	}

	return result, nil
}

func (p *Pipeline) skip(result *Result, reading sheet.Reading, reason string, err error) {
	p.logger.Warn("Skipping sheet reading", "row", reading.Row, "allele", reading.Allele, "value", reading.RawValue, "error", err)
	p.metrics.ReadingSkipped(reason)

	result.Skipped = append(result.Skipped, SkippedReading{
		Row:      reading.Row,
		Allele:   reading.Allele,
		RawValue: reading.RawValue,
		Reason:   err.Error(),
	})
}

// archiveUpload keeps the raw upload after commit. Failures are logged only.
func (p *Pipeline) archiveUpload(ctx context.Context, patientID uuid.UUID, exam db.Exam, filename string, data []byte) string {
	if p.archive == nil {
		return ""
	}

	key := archive.ExamKey(patientID, exam.ExamDate, filename)

	_, err := p.archive.Put(ctx, key, bytes.NewReader(data), archive.PutOptions{
		ContentType: contentType(filename),
		Metadata: map[string]string{
			"patient_id": patientID.String(),
			"exam_id":    exam.ID.String(),
		},
	})
	if err != nil {
		p.logger.Warn("Failed to archive exam sheet", "key", key, "error", err)
		return ""
	}

	return key
}

func contentType(filename string) string {
	if strings.EqualFold(filepath.Ext(filename), sheet.ExtXLS) {
		return "application/vnd.ms-excel"
	}

	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, sheet.ErrUnsupportedFileFormat):
		return metrics.ReasonUnsupported
	case errors.Is(err, sheet.ErrUnreadableWorkbook), errors.Is(err, sheet.ErrEmptyWorkbook):
		return metrics.ReasonUnreadable
	case errors.Is(err, sheet.ErrAnchorNotFound):
		return metrics.ReasonAnchorNotFound
	case errors.Is(err, sheet.ErrInvalidExamDate):
		return metrics.ReasonInvalidDate
	case errors.Is(err, db.ErrPatientNotFound):
		return metrics.ReasonPatientNotFound
	default:
		return metrics.ReasonStore
	}
}
