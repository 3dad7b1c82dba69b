// SPDX-FileCopyrightText: 2025 Humaid Alqasimi
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/melvkunst/tcc/archive"
	"github.com/melvkunst/tcc/db"
	"github.com/melvkunst/tcc/hla"
	"github.com/melvkunst/tcc/logging"
	"github.com/melvkunst/tcc/metrics"
	"github.com/melvkunst/tcc/sheet"
)

type reading struct {
	allele string
	value  interface{}
}

// buildExamSheet writes an xlsx in the default instrument layout.
func buildExamSheet(t *testing.T, examDate string, readings ...reading) []byte {
	t.Helper()

	f := excelize.NewFile()

	defer func() {
		if err := f.Close(); err != nil {
			t.Errorf("failed to close workbook: %v", err)
		}
	}()

	name := f.GetSheetName(0)
	set := func(axis string, value interface{}) {
		if err := f.SetCellValue(name, axis, value); err != nil {
			t.Fatalf("failed to set %s: %v", axis, err)
		}
	}

	set("A1", "LABScreen Single Antigen")
	set("B3", "TEST DATE")
	set("F3", examDate)

	for i, r := range readings {
		row := 11 + i
		set("AJ"+strconv.Itoa(row), r.allele)
		set("D"+strconv.Itoa(row), r.value)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("failed to write workbook: %v", err)
	}

	return buf.Bytes()
}

type fixture struct {
	store    *db.MemoryStore
	archive  *archive.MemoryStore
	pipeline *Pipeline
	patient  *db.Patient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := db.NewMemoryStore()
	arch := archive.NewMemoryStore()

	pipeline, err := New(store, Options{
		Archive: arch,
		Logger:  logging.Discard(),
		Metrics: metrics.New(),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	patient, err := store.CreatePatient(context.Background(), db.CreatePatientInput{
		Name:        "Ana",
		DateOfBirth: time.Date(1990, time.January, 15, 0, 0, 0, 0, time.UTC),
		BloodType:   "O+",
	})
	if err != nil {
		t.Fatalf("failed to create patient: %v", err)
	}

	return &fixture{store: store, archive: arch, pipeline: pipeline, patient: patient}
}

func (f *fixture) ingest(t *testing.T, filename string, data []byte) (*Result, error) {
	t.Helper()

	return f.pipeline.Ingest(context.Background(), f.patient.ID, filename, bytes.NewReader(data))
}

func measurementValues(t *testing.T, store db.Store, examID uuid.UUID) map[string]float64 {
	t.Helper()

	ms, err := store.ListMeasurementsByExam(context.Background(), examID)
	if err != nil {
		t.Fatalf("ListMeasurementsByExam failed: %v", err)
	}

	values := make(map[string]float64, len(ms))
	for _, m := range ms {
		values[m.AlleleName] = m.Value
	}

	return values
}

func TestIngestStoresReadings(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	data := buildExamSheet(t, "20/02/2024",
		reading{"A*01:01", "500,5"},
		reading{"A*02:01, B*07:02", 1500.0},
		reading{"-", "12"},
		reading{"DRB1*04:01", "80"},
	)

	result, err := f.ingest(t, "exame.xlsx", data)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if !result.ExamCreated {
		t.Fatalf("expected a new exam")
	}

	if !result.Exam.ExamDate.Equal(time.Date(2024, time.February, 20, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected exam date %v", result.Exam.ExamDate)
	}

	want := map[string]float64{"A*01:01": 500.5, "A*02:01": 1500, "B*07:02": 1500, "DRB1*04:01": 80}

	got := measurementValues(t, f.store, result.Exam.ID)
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	for name, value := range want {
		if got[name] != value {
			t.Fatalf("expected %s=%v, got %v", name, value, got[name])
		}
	}

	if len(result.Skipped) != 0 {
		t.Fatalf("expected no skipped readings, got %+v", result.Skipped)
	}
}

func TestIngestSkipsMalformedReadings(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	data := buildExamSheet(t, "20/02/2024",
		reading{"A01:01", "100"},
		reading{"A*01", "100"},
		reading{"A*xx:01", "100"},
		reading{"A*02:01", "n/a"},
		reading{"B*08:01", "250"},
	)

	result, err := f.ingest(t, "exame.xlsx", data)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if len(result.Measurements) != 1 || result.Measurements[0].AlleleName != "B*08:01" {
		t.Fatalf("expected only B*08:01 stored, got %+v", result.Measurements)
	}

	if len(result.Skipped) != 4 {
		t.Fatalf("expected 4 skipped readings, got %+v", result.Skipped)
	}

	if result.Skipped[3].Allele != "A*02:01" || result.Skipped[3].RawValue != "n/a" {
		t.Fatalf("unexpected skipped reading: %+v", result.Skipped[3])
	}
}

func TestIngestDuplicateAlleleMintsSuffixedEntry(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	data := buildExamSheet(t, "20/02/2024",
		reading{"A*01:01", "500"},
		reading{"A*01:01", "700"},
		reading{"A*01:01", "900"},
	)

	result, err := f.ingest(t, "exame.xlsx", data)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	got := measurementValues(t, f.store, result.Exam.ID)
	want := map[string]float64{"A*01:01": 500, "A*01:01.1": 700, "A*01:01.2": 900}

	for name, value := range want {
		if got[name] != value {
			t.Fatalf("expected %s=%v, got %v", name, value, got)
		}
	}

	for _, m := range result.Measurements {
		if m.Locus != "A" || m.Field1 != 1 || m.Field2 != 1 {
			t.Fatalf("expected suffixed entries to keep the specificity, got %+v", m)
		}
	}
}

func TestIngestSameDateReusesExam(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	first, err := f.ingest(t, "exame.xlsx", buildExamSheet(t, "20/02/2024", reading{"A*01:01", "500"}))
	if err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}

	second, err := f.ingest(t, "exame.xlsx", buildExamSheet(t, "20/02/2024", reading{"A*01:01", "600"}))
	if err != nil {
		t.Fatalf("second Ingest failed: %v", err)
	}

	if second.ExamCreated || second.Exam.ID != first.Exam.ID {
		t.Fatalf("expected exam to be reused, got %+v", second.Exam)
	}

	exams, err := f.store.ListExamsByPatient(context.Background(), f.patient.ID)
	if err != nil {
		t.Fatalf("ListExamsByPatient failed: %v", err)
	}

	if len(exams) != 1 {
		t.Fatalf("expected one exam, got %d", len(exams))
	}

	got := measurementValues(t, f.store, first.Exam.ID)
	if got["A*01:01"] != 500 || got["A*01:01.1"] != 600 {
		t.Fatalf("expected both readings kept, got %v", got)
	}
}

func TestIngestSuffixSkipsNamesTakenByOtherExams(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	if _, err := f.ingest(t, "a.xlsx", buildExamSheet(t, "01/01/2024",
		reading{"A*01:01", "1"}, reading{"A*01:01", "2"})); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	result, err := f.ingest(t, "b.xlsx", buildExamSheet(t, "02/01/2024",
		reading{"A*01:01", "3"}, reading{"A*01:01", "4"}))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	got := measurementValues(t, f.store, result.Exam.ID)
	if got["A*01:01"] != 3 || got["A*01:01.2"] != 4 {
		t.Fatalf("expected A*01:01 and A*01:01.2, got %v", got)
	}
}

func TestIngestFatalErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	tests := []struct {
		name     string
		filename string
		data     []byte
		patient  uuid.UUID
		want     error
	}{
		{"unsupported extension", "exame.csv", []byte("a,b"), f.patient.ID, sheet.ErrUnsupportedFileFormat},
		{"unreadable workbook", "exame.xlsx", []byte("not a zip"), f.patient.ID, sheet.ErrUnreadableWorkbook},
		{"invalid date", "exame.xlsx", buildExamSheet(t, "2024-02-20"), f.patient.ID, sheet.ErrInvalidExamDate},
		{"unknown patient", "exame.xlsx", buildExamSheet(t, "20/02/2024", reading{"A*01:01", "1"}), uuid.New(), db.ErrPatientNotFound},
	}

	for _, tt := range tests {
		_, err := f.pipeline.Ingest(context.Background(), tt.patient, tt.filename, bytes.NewReader(tt.data))
		if !errors.Is(err, tt.want) {
			t.Fatalf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}

	exams, err := f.store.ListExamsByPatient(context.Background(), f.patient.ID)
	if err != nil {
		t.Fatalf("ListExamsByPatient failed: %v", err)
	}

	if len(exams) != 0 {
		t.Fatalf("expected no exams after fatal errors, got %d", len(exams))
	}

	if listed, _ := f.archive.List(context.Background(), ""); len(listed) != 0 {
		t.Fatalf("expected nothing archived, got %+v", listed)
	}
}

func TestIngestMissingAnchor(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	ef := excelize.NewFile()
	defer ef.Close()

	if err := ef.SetCellValue(ef.GetSheetName(0), "A5", "no marker here"); err != nil {
		t.Fatalf("SetCellValue failed: %v", err)
	}

	buf, err := ef.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer failed: %v", err)
	}

	if _, err := f.ingest(t, "exame.xlsx", buf.Bytes()); !errors.Is(err, sheet.ErrAnchorNotFound) {
		t.Fatalf("expected ErrAnchorNotFound, got %v", err)
	}
}

// failingStore fails the nth CreateMeasurement of every transaction.
type failingStore struct {
	db.Store
	failAt int
}

type failingTx struct {
	db.Tx
	failAt int
	calls  int
}

var errInjected = errors.New("injected failure")

func (s *failingStore) InTx(ctx context.Context, fn func(tx db.Tx) error) error {
	return s.Store.InTx(ctx, func(tx db.Tx) error {
		return fn(&failingTx{Tx: tx, failAt: s.failAt})
	})
}

func (t *failingTx) CreateMeasurement(ctx context.Context, examID, alleleID uuid.UUID, value float64) (*db.Measurement, error) {
	t.calls++
	if t.calls == t.failAt {
		return nil, errInjected
	}

	return t.Tx.CreateMeasurement(ctx, examID, alleleID, value)
}

func TestIngestRollsBackOnStoreFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	pipeline, err := New(&failingStore{Store: f.store, failAt: 2}, Options{Logger: logging.Discard(), Archive: f.archive})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	data := buildExamSheet(t, "20/02/2024", reading{"A*01:01", "1"}, reading{"A*02:01", "2"})

	if _, err := pipeline.Ingest(context.Background(), f.patient.ID, "exame.xlsx", bytes.NewReader(data)); !errors.Is(err, errInjected) {
		t.Fatalf("expected injected failure, got %v", err)
	}

	exams, err := f.store.ListExamsByPatient(context.Background(), f.patient.ID)
	if err != nil {
		t.Fatalf("ListExamsByPatient failed: %v", err)
	}

	if len(exams) != 0 {
		t.Fatalf("expected new exam rolled back, got %d", len(exams))
	}
}

// staleStore hides the listed catalog names from the first lookup of each
// transaction, as when a concurrent ingestion commits them in between.
type staleStore struct {
	db.Store
	hidden []string
}

type staleTx struct {
	db.Tx
	hidden map[string]bool
}

func (s *staleStore) InTx(ctx context.Context, fn func(tx db.Tx) error) error {
	hidden := make(map[string]bool, len(s.hidden))
	for _, name := range s.hidden {
		hidden[name] = true
	}

	return s.Store.InTx(ctx, func(tx db.Tx) error {
		return fn(&staleTx{Tx: tx, hidden: hidden})
	})
}

func (t *staleTx) GetAlleleByName(ctx context.Context, name string) (*db.Allele, error) {
	if t.hidden[name] {
		delete(t.hidden, name)
		return nil, db.ErrAlleleNotFound
	}

	return t.Tx.GetAlleleByName(ctx, name)
}

func TestIngestReusesEntriesCommittedConcurrently(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	first := buildExamSheet(t, "20/02/2024", reading{"A*01:01", "1"}, reading{"A*01:01", "2"})
	if _, err := f.ingest(t, "exame.xlsx", first); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	bruno, err := f.store.CreatePatient(context.Background(), db.CreatePatientInput{
		Name:        "Bruno",
		DateOfBirth: time.Date(1980, time.March, 3, 0, 0, 0, 0, time.UTC),
		BloodType:   "O+",
	})
	if err != nil {
		t.Fatalf("failed to create patient: %v", err)
	}

	store := &staleStore{Store: f.store, hidden: []string{"A*01:01", "A*01:01.1"}}

	pipeline, err := New(store, Options{Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	second := buildExamSheet(t, "21/02/2024", reading{"A*01:01", "3"}, reading{"A*01:01", "4"})

	result, err := pipeline.Ingest(context.Background(), bruno.ID, "exame.xlsx", bytes.NewReader(second))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	values := measurementValues(t, f.store, result.Exam.ID)
	if len(values) != 2 || values["A*01:01"] != 3 || values["A*01:01.2"] != 4 {
		t.Fatalf("expected A*01:01=3 and A*01:01.2=4, got %v", values)
	}

	existing, err := f.store.ListMeasurementsByExam(context.Background(), result.Exam.ID)
	if err != nil {
		t.Fatalf("ListMeasurementsByExam failed: %v", err)
	}

	err = f.store.InTx(context.Background(), func(tx db.Tx) error {
		entry, err := tx.GetAlleleByName(context.Background(), "A*01:01")
		if err != nil {
			return err
		}

		if existing[0].AlleleID != entry.ID {
			t.Errorf("expected the committed A*01:01 entry to be reused")
		}

		return nil
	})
	if err != nil {
		t.Fatalf("InTx failed: %v", err)
	}
}

func TestIngestSkipsAllelesOutsideCatalogLimits(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	data := buildExamSheet(t, "20/02/2024",
		reading{"HLA-DRB1-LONG*01:01", "10"},
		reading{"A*3000000000:01", "20"},
		reading{"A*01:" + strings.Repeat("0", 100) + "1", "30"},
		reading{"B*08:01", "250"},
	)

	result, err := f.ingest(t, "exame.xlsx", data)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if len(result.Measurements) != 1 || result.Measurements[0].AlleleName != "B*08:01" {
		t.Fatalf("expected only B*08:01 stored, got %+v", result.Measurements)
	}

	if len(result.Skipped) != 3 {
		t.Fatalf("expected 3 skipped readings, got %+v", result.Skipped)
	}

	for _, skipped := range result.Skipped {
		if !strings.HasPrefix(skipped.Reason, hla.ErrMalformedAllele.Error()) {
			t.Fatalf("expected malformed allele reason, got %+v", skipped)
		}
	}
}

func TestIngestArchivesUpload(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	data := buildExamSheet(t, "20/02/2024", reading{"A*01:01", "1"})

	result, err := f.ingest(t, "uploads/exame.xlsx", data)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	prefix := archive.PatientPrefix(f.patient.ID) + "2024-02-20/"
	if !strings.HasPrefix(result.ArchiveKey, prefix) || !strings.HasSuffix(result.ArchiveKey, "-exame.xlsx") {
		t.Fatalf("unexpected archive key %q", result.ArchiveKey)
	}

	info, body, err := f.archive.Get(context.Background(), result.ArchiveKey)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer body.Close()

	stored, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}

	if !bytes.Equal(stored, data) {
		t.Fatalf("archived bytes differ from upload")
	}

	if info.Metadata["exam_id"] != result.Exam.ID.String() {
		t.Fatalf("expected exam id metadata, got %+v", info.Metadata)
	}
}

func TestNewRejectsInvalidLayout(t *testing.T) {
	t.Parallel()

	layout := sheet.DefaultLayout()
	layout.AnchorMarker = " "

	if _, err := New(db.NewMemoryStore(), Options{Layout: &layout}); !errors.Is(err, sheet.ErrInvalidLayout) {
		t.Fatalf("expected ErrInvalidLayout, got %v", err)
	}
}
