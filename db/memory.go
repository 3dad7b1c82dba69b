/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package db

import (
	"bytes"
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/melvkunst/tcc/hla"
)

// MemoryStore is an in-process Store used by tests and the embedded server
// mode. State is lost on exit.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memoryState
	now   func() time.Time
}

type memoryState struct {
	patients     map[uuid.UUID]Patient
	exams        map[uuid.UUID]Exam
	alleles      map[uuid.UUID]Allele
	alleleByName map[string]uuid.UUID
	measurements map[uuid.UUID]Measurement
	runs         map[uuid.UUID]CrossmatchRun
	// runOrder and the slices inside each run keep insertion order.
	runOrder []uuid.UUID
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState(), now: time.Now}
}

func newMemoryState() *memoryState {
	return &memoryState{
		patients:     make(map[uuid.UUID]Patient),
		exams:        make(map[uuid.UUID]Exam),
		alleles:      make(map[uuid.UUID]Allele),
		alleleByName: make(map[string]uuid.UUID),
		measurements: make(map[uuid.UUID]Measurement),
		runs:         make(map[uuid.UUID]CrossmatchRun),
	}
}

func (s *memoryState) clone() *memoryState {
	c := newMemoryState()

	for k, v := range s.patients {
		c.patients[k] = v
	}

	for k, v := range s.exams {
		c.exams[k] = v
	}

	for k, v := range s.alleles {
		c.alleles[k] = v
	}

	for k, v := range s.alleleByName {
		c.alleleByName[k] = v
	}

	for k, v := range s.measurements {
		c.measurements[k] = v
	}

	for k, v := range s.runs {
		c.runs[k] = cloneRun(v)
	}

	c.runOrder = slices.Clone(s.runOrder)

	return c
}

func cloneRun(run CrossmatchRun) CrossmatchRun {
	out := run
	if run.DonorID != nil {
		id := *run.DonorID
		out.DonorID = &id
	}

	out.PatientResults = make([]CrossmatchPatientResult, len(run.PatientResults))

	for i, pr := range run.PatientResults {
		pr.AlleleResults = slices.Clone(pr.AlleleResults)
		if pr.AlleleResults == nil {
			pr.AlleleResults = []CrossmatchAlleleResult{}
		}

		out.PatientResults[i] = pr
	}

	return out
}

// ========== Patient Operations ==========

func (m *MemoryStore) CreatePatient(_ context.Context, input CreatePatientInput) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := Patient{
		ID:          uuid.New(),
		Name:        input.Name,
		DateOfBirth: dateOnly(input.DateOfBirth),
		BloodType:   input.BloodType,
		CreatedAt:   m.now(),
	}
	m.state.patients[p.ID] = p

	return &p, nil
}

func (m *MemoryStore) GetPatient(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.state.getPatient(id)
}

func (s *memoryState) getPatient(id uuid.UUID) (*Patient, error) {
	p, ok := s.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}

	return &p, nil
}

func (m *MemoryStore) ListPatients(_ context.Context) ([]Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.state.filterPatients(func(Patient) bool { return true }), nil
}

func (m *MemoryStore) ListPatientsByBloodType(_ context.Context, bloodType string) ([]Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.state.filterPatients(func(p Patient) bool { return p.BloodType == bloodType }), nil
}

func (s *memoryState) filterPatients(keep func(Patient) bool) []Patient {
	var out []Patient

	for _, p := range s.patients {
		if keep(p) {
			out = append(out, p)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}

		return out[i].ID.String() < out[j].ID.String()
	})

	return out
}

func (m *MemoryStore) DeletePatient(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.state.patients[id]; !ok {
		return ErrPatientNotFound
	}

	delete(m.state.patients, id)

	for examID, e := range m.state.exams {
		if e.PatientID != id {
			continue
		}

		delete(m.state.exams, examID)

		for mid, meas := range m.state.measurements {
			if meas.ExamID == examID {
				delete(m.state.measurements, mid)
			}
		}
	}

	key := id.String()

	for runID, run := range m.state.runs {
		kept := run.PatientResults[:0]

		for _, pr := range run.PatientResults {
			if pr.PatientID != key {
				kept = append(kept, pr)
			}
		}

		run.PatientResults = kept
		m.state.runs[runID] = run
	}

	return nil
}

// ========== Exam Operations ==========

// examNewer reports whether a sorts before b in newest-first order.
func examNewer(a, b Exam) bool {
	if !a.ExamDate.Equal(b.ExamDate) {
		return a.ExamDate.After(b.ExamDate)
	}

	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}

	return bytes.Compare(a.ID[:], b.ID[:]) > 0
}

func (m *MemoryStore) ListExamsByPatient(_ context.Context, patientID uuid.UUID) ([]Exam, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var exams []Exam

	for _, e := range m.state.exams {
		if e.PatientID == patientID {
			exams = append(exams, e)
		}
	}

	sort.Slice(exams, func(i, j int) bool { return examNewer(exams[i], exams[j]) })

	return exams, nil
}

func (m *MemoryStore) GetExam(_ context.Context, patientID, examID uuid.UUID) (*Exam, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.state.exams[examID]
	if !ok || e.PatientID != patientID {
		return nil, ErrExamNotFound
	}

	return &e, nil
}

func (m *MemoryStore) LatestExams(_ context.Context, patientIDs []uuid.UUID) (map[uuid.UUID]Exam, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[uuid.UUID]struct{}, len(patientIDs))
	for _, id := range patientIDs {
		wanted[id] = struct{}{}
	}

	latest := make(map[uuid.UUID]Exam)

	for _, e := range m.state.exams {
		if _, ok := wanted[e.PatientID]; !ok {
			continue
		}

		if cur, ok := latest[e.PatientID]; !ok || examNewer(e, cur) {
			latest[e.PatientID] = e
		}
	}

	return latest, nil
}

// ========== Measurement Operations ==========

func sortMeasurements(ms []Measurement) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].AlleleName != ms[j].AlleleName {
			return ms[i].AlleleName < ms[j].AlleleName
		}

		return ms[i].ID.String() < ms[j].ID.String()
	})
}

func (m *MemoryStore) ListMeasurementsByExam(_ context.Context, examID uuid.UUID) ([]Measurement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Measurement

	for _, meas := range m.state.measurements {
		if meas.ExamID == examID {
			out = append(out, meas)
		}
	}

	sortMeasurements(out)

	return out, nil
}

func (m *MemoryStore) ListMeasurementsForExams(_ context.Context, examIDs []uuid.UUID, groups []hla.Key) ([]Measurement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	exams := make(map[uuid.UUID]struct{}, len(examIDs))
	for _, id := range examIDs {
		exams[id] = struct{}{}
	}

	keys := make(map[hla.Key]struct{}, len(groups))
	for _, g := range groups {
		keys[g] = struct{}{}
	}

	var out []Measurement

	for _, meas := range m.state.measurements {
		if _, ok := exams[meas.ExamID]; !ok {
			continue
		}

		if _, ok := keys[hla.Key{Locus: meas.Locus, Field1: meas.Field1}]; ok {
			out = append(out, meas)
		}
	}

	sortMeasurements(out)

	return out, nil
}

// ========== Crossmatch Operations ==========

func (m *MemoryStore) ListCrossmatches(_ context.Context) ([]CrossmatchRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	runs := make([]CrossmatchRun, 0, len(m.state.runOrder))

	for _, id := range m.state.runOrder {
		run := m.state.runs[id]
		run.PatientResults = nil
		runs = append(runs, run)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].DatePerformed.After(runs[j].DatePerformed)
	})

	return runs, nil
}

func (m *MemoryStore) GetCrossmatch(_ context.Context, id uuid.UUID) (*CrossmatchRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.state.runs[id]
	if !ok {
		return nil, ErrCrossmatchNotFound
	}

	out := cloneRun(run)

	return &out, nil
}

// InTx applies fn to a copy of the state and publishes it only when fn
// succeeds. fn must not call MemoryStore methods.
func (m *MemoryStore) InTx(_ context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{state: m.state.clone(), now: m.now}
	if err := fn(tx); err != nil {
		return err
	}

	m.state = tx.state

	return nil
}

type memoryTx struct {
	state *memoryState
	now   func() time.Time
}

func (t *memoryTx) GetPatient(_ context.Context, id uuid.UUID) (*Patient, error) {
	return t.state.getPatient(id)
}

func (t *memoryTx) GetOrCreateExam(_ context.Context, patientID uuid.UUID, examDate time.Time) (*Exam, bool, error) {
	if _, ok := t.state.patients[patientID]; !ok {
		return nil, false, ErrPatientNotFound
	}

	date := dateOnly(examDate)

	for _, e := range t.state.exams {
		if e.PatientID == patientID && e.ExamDate.Equal(date) {
			return &e, false, nil
		}
	}

	e := Exam{ID: uuid.New(), PatientID: patientID, ExamDate: date, CreatedAt: t.now()}
	t.state.exams[e.ID] = e

	return &e, true, nil
}

func (t *memoryTx) GetAlleleByName(_ context.Context, name string) (*Allele, error) {
	id, ok := t.state.alleleByName[name]
	if !ok {
		return nil, ErrAlleleNotFound
	}

	a := t.state.alleles[id]

	return &a, nil
}

func (t *memoryTx) CreateAllele(_ context.Context, allele Allele) (*Allele, error) {
	if _, ok := t.state.alleleByName[allele.Name]; ok {
		return nil, ErrAlleleExists
	}

	allele.ID = uuid.New()
	t.state.alleles[allele.ID] = allele
	t.state.alleleByName[allele.Name] = allele.ID

	return &allele, nil
}

func (t *memoryTx) MeasurementExists(_ context.Context, examID, alleleID uuid.UUID) (bool, error) {
	for _, meas := range t.state.measurements {
		if meas.ExamID == examID && meas.AlleleID == alleleID {
			return true, nil
		}
	}

	return false, nil
}

func (t *memoryTx) CreateMeasurement(_ context.Context, examID, alleleID uuid.UUID, value float64) (*Measurement, error) {
	e, ok := t.state.exams[examID]
	if !ok {
		return nil, ErrExamNotFound
	}

	a, ok := t.state.alleles[alleleID]
	if !ok {
		return nil, ErrAlleleNotFound
	}

	meas := Measurement{
		ID:         uuid.New(),
		ExamID:     examID,
		PatientID:  e.PatientID,
		AlleleID:   alleleID,
		AlleleName: a.Name,
		Locus:      a.Locus,
		Field1:     a.Field1,
		Field2:     a.Field2,
		Value:      value,
	}
	t.state.measurements[meas.ID] = meas

	return &meas, nil
}

func (t *memoryTx) CreateCrossmatch(_ context.Context, input CreateCrossmatchInput) (*CrossmatchRun, error) {
	performed := input.DatePerformed
	if performed.IsZero() {
		performed = t.now().UTC()
	}

	run := CrossmatchRun{
		ID:             uuid.New(),
		DonorID:        input.DonorID,
		DonorName:      input.DonorName,
		DonorSex:       input.DonorSex,
		DonorBirthDate: dateOnly(input.DonorBirthDate),
		DonorBloodType: input.DonorBloodType,
		DatePerformed:  performed,
		PatientResults: []CrossmatchPatientResult{},
	}

	t.state.runs[run.ID] = cloneRun(run)
	t.state.runOrder = append(t.state.runOrder, run.ID)

	return &run, nil
}

func (t *memoryTx) CreateCrossmatchPatientResult(_ context.Context, result CrossmatchPatientResult) (*CrossmatchPatientResult, error) {
	run, ok := t.state.runs[result.CrossmatchID]
	if !ok {
		return nil, ErrCrossmatchNotFound
	}

	result.ID = uuid.New()
	result.AlleleResults = []CrossmatchAlleleResult{}
	run.PatientResults = append(run.PatientResults, result)
	t.state.runs[run.ID] = run

	return &result, nil
}

func (t *memoryTx) CreateCrossmatchAlleleResult(_ context.Context, result CrossmatchAlleleResult) (*CrossmatchAlleleResult, error) {
	for runID, run := range t.state.runs {
		for i, pr := range run.PatientResults {
			if pr.ID != result.PatientResultID {
				continue
			}

			result.ID = uuid.New()
			run.PatientResults[i].AlleleResults = append(pr.AlleleResults, result)
			t.state.runs[runID] = run

			return &result, nil
		}
	}

	return nil, ErrCrossmatchNotFound
}
