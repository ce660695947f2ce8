package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/labdesk/internal/model"
)

// PatientTestRepo reads and writes patient_tests, the per-patient test
// assignments that carry workflow status.
type PatientTestRepo struct{ DB *sql.DB }

func NewPatientTestRepo(db *sql.DB) *PatientTestRepo { return &PatientTestRepo{DB: db} }

// CreateTx bulk-inserts one pending row per test.
func (r *PatientTestRepo) CreateTx(ctx context.Context, tx *sql.Tx, patientID uint64, testIDs []uint64) error {
	if len(testIDs) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString("INSERT INTO patient_tests (patient_id, test_id, status) VALUES ")
	args := make([]any, 0, len(testIDs)*3)
	for i, id := range testIDs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?)")
		args = append(args, patientID, id, string(model.StatusPending))
	}
	_, err := tx.ExecContext(ctx, sb.String(), args...)
	return translate(err)
}

const patientTestSelect = `SELECT pt.id, pt.patient_id, pt.test_id, t.name, pt.status, pt.test_entry_date, pt.test_result_date,
  pt.report_impression, pt.created_at
FROM patient_tests pt
JOIN tests t ON t.id = pt.test_id`

func scanPatientTest(row rowScanner) (model.PatientTest, error) {
	var (
		pt         model.PatientTest
		status     string
		entry      sql.NullTime
		result     sql.NullTime
		impression sql.NullString
	)
	err := row.Scan(&pt.ID, &pt.PatientID, &pt.TestID, &pt.TestName, &status, &entry, &result, &impression, &pt.CreatedAt)
	if err != nil {
		return model.PatientTest{}, translate(err)
	}
	pt.Status = model.TestStatus(status)
	pt.TestEntryDate = timePtr(entry)
	pt.TestResultDate = timePtr(result)
	pt.ReportImpression = stringPtr(impression)
	return pt, nil
}

// ListByPatient returns the tests of one patient in insertion order.
func (r *PatientTestRepo) ListByPatient(ctx context.Context, patientID uint64) ([]model.PatientTest, error) {
	rows, err := r.DB.QueryContext(ctx, patientTestSelect+" WHERE pt.patient_id = ? ORDER BY pt.id", patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.PatientTest{}
	for rows.Next() {
		pt, err := scanPatientTest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pt)
	}
	return out, rows.Err()
}

// LockTx loads and row-locks the given patient tests in id order, so
// concurrent submissions acquire locks consistently.
func (r *PatientTestRepo) LockTx(ctx context.Context, tx *sql.Tx, ids []uint64) ([]model.PatientTest, error) {
	if len(ids) == 0 {
		return []model.PatientTest{}, nil
	}
	rows, err := tx.QueryContext(ctx,
		patientTestSelect+" WHERE pt.id IN ("+placeholders(len(ids))+") ORDER BY pt.id FOR UPDATE",
		idArgs(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.PatientTest{}
	for rows.Next() {
		pt, err := scanPatientTest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pt)
	}
	return out, rows.Err()
}

// SumPricesTx returns the current catalogue price total of a patient's
// tests and how many tests there are.
func (r *PatientTestRepo) SumPricesTx(ctx context.Context, tx *sql.Tx, patientID uint64) (model.Money, int, error) {
	var (
		total model.Money
		n     int
	)
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(t.price), 0), COUNT(*)
FROM patient_tests pt
JOIN tests t ON t.id = pt.test_id
WHERE pt.patient_id = ?`, patientID).Scan(&total, &n)
	return total, n, err
}

// MarkBilledTx stamps every test of the patient billed, whatever its
// current status.
func (r *PatientTestRepo) MarkBilledTx(ctx context.Context, tx *sql.Tx, patientID uint64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE patient_tests SET status = ? WHERE patient_id = ?", string(model.StatusBilled), patientID)
	return err
}

// MarkCompletedTx completes the given tests. The entry date is kept when
// already set.
func (r *PatientTestRepo) MarkCompletedTx(ctx context.Context, tx *sql.Tx, ids []uint64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	args := append([]any{string(model.StatusCompleted), at, at}, idArgs(ids)...)
	_, err := tx.ExecContext(ctx,
		`UPDATE patient_tests SET status = ?, test_result_date = ?, test_entry_date = COALESCE(test_entry_date, ?)
WHERE id IN (`+placeholders(len(ids))+")", args...)
	return err
}

// SetImpressionTx writes the report impression of one patient test.
func (r *PatientTestRepo) SetImpressionTx(ctx context.Context, tx *sql.Tx, id uint64, text string) error {
	_, err := tx.ExecContext(ctx, "UPDATE patient_tests SET report_impression = ? WHERE id = ?", text, id)
	return err
}
