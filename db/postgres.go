/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/melvkunst/tcc/hla"
)

const uniqueViolation = "23505"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore returns a Store backed by p. Use GetPool after Init for
// the shared pool.
func NewPostgresStore(p *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: p}
}

func (s *PostgresStore) q() (querier, error) {
	if s == nil || s.pool == nil {
		return nil, ErrDatabaseConnectionNotInitialized
	}

	return s.pool, nil
}

// ========== Patient Operations ==========

const patientColumns = `id, name, date_of_birth, blood_type, created_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	if err := row.Scan(&p.ID, &p.Name, &p.DateOfBirth, &p.BloodType, &p.CreatedAt); err != nil {
		return nil, err
	}

	return &p, nil
}

func collectPatients(rows pgx.Rows) ([]Patient, error) {
	defer rows.Close()

	var patients []Patient

	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan patient: %w", err)
		}

		patients = append(patients, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating patients: %w", err)
	}

	return patients, nil
}

// CreatePatient inserts a new patient.
func (s *PostgresStore) CreatePatient(ctx context.Context, input CreatePatientInput) (*Patient, error) {
	q, err := s.q()
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO patients (name, date_of_birth, blood_type)
		VALUES ($1, $2, $3)
		RETURNING ` + patientColumns

	p, err := scanPatient(q.QueryRow(ctx, query, input.Name, dateOnly(input.DateOfBirth), input.BloodType))
	if err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}

	return p, nil
}

// GetPatient returns a patient by id.
func (s *PostgresStore) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	q, err := s.q()
	if err != nil {
		return nil, err
	}

	return getPatient(ctx, q, id)
}

func getPatient(ctx context.Context, q querier, id uuid.UUID) (*Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`

	p, err := scanPatient(q.QueryRow(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}

		return nil, fmt.Errorf("failed to get patient: %w", err)
	}

	return p, nil
}

// ListPatients returns all patients ordered by name.
func (s *PostgresStore) ListPatients(ctx context.Context) ([]Patient, error) {
	q, err := s.q()
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `SELECT `+patientColumns+` FROM patients ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}

	return collectPatients(rows)
}

// ListPatientsByBloodType returns the patients whose blood type equals bloodType exactly.
func (s *PostgresStore) ListPatientsByBloodType(ctx context.Context, bloodType string) ([]Patient, error) {
	q, err := s.q()
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `SELECT `+patientColumns+` FROM patients WHERE blood_type = $1 ORDER BY name ASC, id ASC`, bloodType)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients by blood type: %w", err)
	}

	return collectPatients(rows)
}

// DeletePatient deletes a patient (cascades to exams and measurements) and
// the patient's outcomes in saved crossmatch runs.
func (s *PostgresStore) DeletePatient(ctx context.Context, id uuid.UUID) error {
	if s == nil || s.pool == nil {
		return ErrDatabaseConnectionNotInitialized
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM crossmatch_patient_results WHERE patient_id = $1`, id.String()); err != nil {
		return fmt.Errorf("failed to delete crossmatch results of patient: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit patient deletion: %w", err)
	}

	return nil
}

// ========== Exam Operations ==========

const examColumns = `id, patient_id, exam_date, created_at`

func scanExam(row pgx.Row) (*Exam, error) {
	var e Exam
	if err := row.Scan(&e.ID, &e.PatientID, &e.ExamDate, &e.CreatedAt); err != nil {
		return nil, err
	}

	return &e, nil
}

// ListExamsByPatient returns a patient's exams, newest first.
func (s *PostgresStore) ListExamsByPatient(ctx context.Context, patientID uuid.UUID) ([]Exam, error) {
	q, err := s.q()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + examColumns + `
		FROM exams
		WHERE patient_id = $1
		ORDER BY exam_date DESC, created_at DESC, id DESC
	`

	rows, err := q.Query(ctx, query, patientID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}
	defer rows.Close()

	var exams []Exam

	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exam: %w", err)
		}

		exams = append(exams, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exams: %w", err)
	}

	return exams, nil
}

// GetExam returns an exam that belongs to patientID.
func (s *PostgresStore) GetExam(ctx context.Context, patientID, examID uuid.UUID) (*Exam, error) {
	q, err := s.q()
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + examColumns + ` FROM exams WHERE id = $1 AND patient_id = $2`

	e, err := scanExam(q.QueryRow(ctx, query, examID.String(), patientID.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}

		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	return e, nil
}

// LatestExams returns the most recent exam per patient.
func (s *PostgresStore) LatestExams(ctx context.Context, patientIDs []uuid.UUID) (map[uuid.UUID]Exam, error) {
	q, err := s.q()
	if err != nil {
		return nil, err
	}

	latest := make(map[uuid.UUID]Exam)
	if len(patientIDs) == 0 {
		return latest, nil
	}

	query := `
		SELECT DISTINCT ON (patient_id) ` + examColumns + `
		FROM exams
		WHERE patient_id = ANY($1::uuid[])
		ORDER BY patient_id, exam_date DESC, created_at DESC, id DESC
	`

	rows, err := q.Query(ctx, query, uuidStrings(patientIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to get latest exams: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exam: %w", err)
		}

		latest[e.PatientID] = *e
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating latest exams: %w", err)
	}

	return latest, nil
}

// ========== Measurement Operations ==========

const measurementSelect = `
	SELECT ea.id, ea.exam_id, e.patient_id, ea.allele_id, a.name, a.locus, a.field1, a.field2, ea.value
	FROM exam_alleles ea
	JOIN alleles a ON a.id = ea.allele_id
	JOIN exams e ON e.id = ea.exam_id
`

func collectMeasurements(rows pgx.Rows) ([]Measurement, error) {
	defer rows.Close()

	var measurements []Measurement

	for rows.Next() {
		var m Measurement

		err := rows.Scan(
			&m.ID, &m.ExamID, &m.PatientID, &m.AlleleID,
			&m.AlleleName, &m.Locus, &m.Field1, &m.Field2, &m.Value,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan measurement: %w", err)
		}

		measurements = append(measurements, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating measurements: %w", err)
	}

	return measurements, nil
}

// ListMeasurementsByExam returns all measurements of an exam ordered by allele name.
func (s *PostgresStore) ListMeasurementsByExam(ctx context.Context, examID uuid.UUID) ([]Measurement, error) {
	q, err := s.q()
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, measurementSelect+` WHERE ea.exam_id = $1 ORDER BY a.name ASC, ea.id ASC`, examID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list measurements: %w", err)
	}

	return collectMeasurements(rows)
}

// ListMeasurementsForExams returns the measurements of examIDs within the requested allele groups.
func (s *PostgresStore) ListMeasurementsForExams(ctx context.Context, examIDs []uuid.UUID, groups []hla.Key) ([]Measurement, error) {
	q, err := s.q()
	if err != nil {
		return nil, err
	}

	if len(examIDs) == 0 || len(groups) == 0 {
		return nil, nil
	}

	loci := make([]string, len(groups))
	fields := make([]int32, len(groups))

	for i, g := range groups {
		loci[i] = g.Locus
		fields[i] = int32(g.Field1)
	}

	query := measurementSelect + `
		WHERE ea.exam_id = ANY($1::uuid[])
		  AND (a.locus, a.field1) IN (SELECT * FROM unnest($2::text[], $3::int4[]))
		ORDER BY a.name ASC, ea.id ASC
	`

	rows, err := q.Query(ctx, query, uuidStrings(examIDs), loci, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to list measurements for exams: %w", err)
	}

	return collectMeasurements(rows)
}

// ========== Crossmatch Operations ==========

const crossmatchColumns = `id, donor_id, donor_name, donor_sex, donor_birth_date, donor_blood_type, date_performed`

func scanCrossmatch(row pgx.Row) (*CrossmatchRun, error) {
	var run CrossmatchRun

	err := row.Scan(
		&run.ID, &run.DonorID, &run.DonorName, &run.DonorSex,
		&run.DonorBirthDate, &run.DonorBloodType, &run.DatePerformed,
	)
	if err != nil {
		return nil, err
	}

	return &run, nil
}

// ListCrossmatches returns saved runs without their outcome tree, newest first.
func (s *PostgresStore) ListCrossmatches(ctx context.Context) ([]CrossmatchRun, error) {
	q, err := s.q()
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `SELECT `+crossmatchColumns+` FROM crossmatches ORDER BY date_performed DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list crossmatches: %w", err)
	}
	defer rows.Close()

	var runs []CrossmatchRun

	for rows.Next() {
		run, err := scanCrossmatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan crossmatch: %w", err)
		}

		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating crossmatches: %w", err)
	}

	return runs, nil
}

// GetCrossmatch returns a run with its full outcome tree.
func (s *PostgresStore) GetCrossmatch(ctx context.Context, id uuid.UUID) (*CrossmatchRun, error) {
	q, err := s.q()
	if err != nil {
		return nil, err
	}

	run, err := scanCrossmatch(q.QueryRow(ctx, `SELECT `+crossmatchColumns+` FROM crossmatches WHERE id = $1`, id.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCrossmatchNotFound
		}

		return nil, fmt.Errorf("failed to get crossmatch: %w", err)
	}

	patientQuery := `
		SELECT id, crossmatch_id, patient_id, patient_name, total_compatible_alleles, total_incompatible_alleles
		FROM crossmatch_patient_results
		WHERE crossmatch_id = $1
		ORDER BY position ASC, id ASC
	`

	rows, err := q.Query(ctx, patientQuery, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list crossmatch patient results: %w", err)
	}

	index := make(map[uuid.UUID]int)
	run.PatientResults = []CrossmatchPatientResult{}

	for rows.Next() {
		var pr CrossmatchPatientResult

		err := rows.Scan(&pr.ID, &pr.CrossmatchID, &pr.PatientID, &pr.PatientName,
			&pr.TotalCompatibleAlleles, &pr.TotalIncompatibleAlleles)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan crossmatch patient result: %w", err)
		}

		pr.AlleleResults = []CrossmatchAlleleResult{}
		index[pr.ID] = len(run.PatientResults)
		run.PatientResults = append(run.PatientResults, pr)
	}

	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating crossmatch patient results: %w", err)
	}

	alleleQuery := `
		SELECT ar.id, ar.patient_result_id, ar.allele_name, ar.allele_value, ar.compatibility
		FROM crossmatch_allele_results ar
		JOIN crossmatch_patient_results pr ON pr.id = ar.patient_result_id
		WHERE pr.crossmatch_id = $1
		ORDER BY ar.position ASC, ar.id ASC
	`

	rows, err = q.Query(ctx, alleleQuery, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list crossmatch allele results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ar CrossmatchAlleleResult
		if err := rows.Scan(&ar.ID, &ar.PatientResultID, &ar.AlleleName, &ar.AlleleValue, &ar.Compatibility); err != nil {
			return nil, fmt.Errorf("failed to scan crossmatch allele result: %w", err)
		}

		if i, ok := index[ar.PatientResultID]; ok {
			run.PatientResults[i].AlleleResults = append(run.PatientResults[i].AlleleResults, ar)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating crossmatch allele results: %w", err)
	}

	return run, nil
}

// InTx runs fn inside a database transaction.
func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	if s == nil || s.pool == nil {
		return ErrDatabaseConnectionNotInitialized
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// pgTx implements Tx on a pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return getPatient(ctx, t.tx, id)
}

func (t *pgTx) GetOrCreateExam(ctx context.Context, patientID uuid.UUID, examDate time.Time) (*Exam, bool, error) {
	date := dateOnly(examDate)

	insert := `
		INSERT INTO exams (patient_id, exam_date)
		VALUES ($1, $2)
		ON CONFLICT (patient_id, exam_date) DO NOTHING
		RETURNING ` + examColumns

	e, err := scanExam(t.tx.QueryRow(ctx, insert, patientID.String(), date))
	if err == nil {
		return e, true, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to create exam: %w", err)
	}

	existing := `SELECT ` + examColumns + ` FROM exams WHERE patient_id = $1 AND exam_date = $2`

	e, err = scanExam(t.tx.QueryRow(ctx, existing, patientID.String(), date))
	if err != nil {
		return nil, false, fmt.Errorf("failed to get exam: %w", err)
	}

	return e, false, nil
}

func (t *pgTx) GetAlleleByName(ctx context.Context, name string) (*Allele, error) {
	var a Allele

	err := t.tx.QueryRow(ctx, `SELECT id, name, locus, field1, field2 FROM alleles WHERE name = $1`, name).
		Scan(&a.ID, &a.Name, &a.Locus, &a.Field1, &a.Field2)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlleleNotFound
		}

		return nil, fmt.Errorf("failed to get allele: %w", err)
	}

	return &a, nil
}

func (t *pgTx) CreateAllele(ctx context.Context, allele Allele) (*Allele, error) {
	// DO NOTHING keeps the transaction usable when a concurrent ingestion
	// committed the same name first.
	query := `
		INSERT INTO alleles (name, locus, field1, field2)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO NOTHING
		RETURNING id
	`

	if err := t.tx.QueryRow(ctx, query, allele.Name, allele.Locus, allele.Field1, allele.Field2).Scan(&allele.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlleleExists
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrAlleleExists
		}

		return nil, fmt.Errorf("failed to create allele: %w", err)
	}

	return &allele, nil
}

func (t *pgTx) MeasurementExists(ctx context.Context, examID, alleleID uuid.UUID) (bool, error) {
	var exists bool

	query := `SELECT EXISTS(SELECT 1 FROM exam_alleles WHERE exam_id = $1 AND allele_id = $2)`
	if err := t.tx.QueryRow(ctx, query, examID.String(), alleleID.String()).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check measurement: %w", err)
	}

	return exists, nil
}

func (t *pgTx) CreateMeasurement(ctx context.Context, examID, alleleID uuid.UUID, value float64) (*Measurement, error) {
	query := `
		WITH inserted AS (
			INSERT INTO exam_alleles (exam_id, allele_id, value)
			VALUES ($1, $2, $3)
			RETURNING id, exam_id, allele_id, value
		)
		SELECT i.id, i.exam_id, e.patient_id, i.allele_id, a.name, a.locus, a.field1, a.field2, i.value
		FROM inserted i
		JOIN alleles a ON a.id = i.allele_id
		JOIN exams e ON e.id = i.exam_id
	`

	var m Measurement

	err := t.tx.QueryRow(ctx, query, examID.String(), alleleID.String(), value).Scan(
		&m.ID, &m.ExamID, &m.PatientID, &m.AlleleID,
		&m.AlleleName, &m.Locus, &m.Field1, &m.Field2, &m.Value,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create measurement: %w", err)
	}

	return &m, nil
}

func (t *pgTx) CreateCrossmatch(ctx context.Context, input CreateCrossmatchInput) (*CrossmatchRun, error) {
	performed := input.DatePerformed
	if performed.IsZero() {
		performed = time.Now().UTC()
	}

	query := `
		INSERT INTO crossmatches (donor_id, donor_name, donor_sex, donor_birth_date, donor_blood_type, date_performed)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + crossmatchColumns

	run, err := scanCrossmatch(t.tx.QueryRow(ctx, query,
		input.DonorID, input.DonorName, input.DonorSex,
		dateOnly(input.DonorBirthDate), input.DonorBloodType, performed,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create crossmatch: %w", err)
	}

	run.PatientResults = []CrossmatchPatientResult{}

	return run, nil
}

func (t *pgTx) CreateCrossmatchPatientResult(ctx context.Context, result CrossmatchPatientResult) (*CrossmatchPatientResult, error) {
	query := `
		INSERT INTO crossmatch_patient_results
			(crossmatch_id, patient_id, patient_name, total_compatible_alleles, total_incompatible_alleles, position)
		VALUES ($1, $2, $3, $4, $5,
			(SELECT COUNT(*) FROM crossmatch_patient_results WHERE crossmatch_id = $1))
		RETURNING id
	`

	err := t.tx.QueryRow(ctx, query,
		result.CrossmatchID.String(), result.PatientID, result.PatientName,
		result.TotalCompatibleAlleles, result.TotalIncompatibleAlleles,
	).Scan(&result.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create crossmatch patient result: %w", err)
	}

	result.AlleleResults = []CrossmatchAlleleResult{}

	return &result, nil
}

func (t *pgTx) CreateCrossmatchAlleleResult(ctx context.Context, result CrossmatchAlleleResult) (*CrossmatchAlleleResult, error) {
	query := `
		INSERT INTO crossmatch_allele_results
			(patient_result_id, allele_name, allele_value, compatibility, position)
		VALUES ($1, $2, $3, $4,
			(SELECT COUNT(*) FROM crossmatch_allele_results WHERE patient_result_id = $1))
		RETURNING id
	`

	err := t.tx.QueryRow(ctx, query,
		result.PatientResultID.String(), result.AlleleName, result.AlleleValue, result.Compatibility,
	).Scan(&result.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create crossmatch allele result: %w", err)
	}

	return &result, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}

	return out
}
