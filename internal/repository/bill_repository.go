package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/labdesk/internal/database"
	"github.com/iliyamo/labdesk/internal/model"
)

// Unique keys on bills, as reported in DuplicateError.Key.
const (
	KeyBillInvoice = "uk_bills_invoice"
	KeyBillPatient = "uk_bills_patient"
)

// BillRepo reads and writes bills and the daily invoice counter.
type BillRepo struct{ DB *sql.DB }

func NewBillRepo(db *sql.DB) *BillRepo { return &BillRepo{DB: db} }

const billSelect = `SELECT id, invoice_number, patient_id, total_amount, discount, final_amount, is_paid, paid_at, created_at
FROM bills`

func scanBill(row rowScanner) (model.Bill, error) {
	var (
		b      model.Bill
		paidAt sql.NullTime
	)
	err := row.Scan(&b.ID, &b.InvoiceNumber, &b.PatientID, &b.TotalAmount, &b.Discount, &b.FinalAmount,
		&b.IsPaid, &paidAt, &b.CreatedAt)
	if err != nil {
		return model.Bill{}, translate(err)
	}
	b.PaidAt = timePtr(paidAt)
	return b, nil
}

// GetByID fetches one bill.
func (r *BillRepo) GetByID(ctx context.Context, q database.DBTX, id uint64) (model.Bill, error) {
	return scanBill(q.QueryRowContext(ctx, billSelect+" WHERE id = ?", id))
}

// GetByPatientID fetches the bill of a patient.
func (r *BillRepo) GetByPatientID(ctx context.Context, q database.DBTX, patientID uint64) (model.Bill, error) {
	return scanBill(q.QueryRowContext(ctx, billSelect+" WHERE patient_id = ?", patientID))
}

// LockByPatientTx looks up the patient's bill with FOR UPDATE. Bills for the
// same patient are serialized by the patient row lock taken before this call.
// A miss takes a gap lock on uk_bills_patient that two transactions for
// different patients can both hold, so their inserts may deadlock; callers
// retry on IsRetryable.
func (r *BillRepo) LockByPatientTx(ctx context.Context, tx *sql.Tx, patientID uint64) (model.Bill, error) {
	return scanBill(tx.QueryRowContext(ctx, billSelect+" WHERE patient_id = ? FOR UPDATE", patientID))
}

// NextInvoiceSeqTx allocates the next invoice sequence for day
// ("2006-01-02"). The counter is seeded from bills created within
// [from, to) the first time a day is seen. The upserted row stays locked
// until tx ends.
func (r *BillRepo) NextInvoiceSeqTx(ctx context.Context, tx *sql.Tx, day string, from, to time.Time) (int, error) {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO invoice_counters (day, last_seq)
SELECT ?, COUNT(*) + 1 FROM bills WHERE created_at >= ? AND created_at < ?
ON DUPLICATE KEY UPDATE last_seq = last_seq + 1`, day, from, to)
	if err != nil {
		return 0, err
	}
	var seq int
	if err := tx.QueryRowContext(ctx, "SELECT last_seq FROM invoice_counters WHERE day = ?", day).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// CreateTx inserts a bill and reads it back.
func (r *BillRepo) CreateTx(ctx context.Context, tx *sql.Tx, b model.Bill) (model.Bill, error) {
	var paidAt sql.NullTime
	if b.PaidAt != nil {
		paidAt = sql.NullTime{Time: *b.PaidAt, Valid: true}
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO bills (invoice_number, patient_id, total_amount, discount, final_amount, is_paid, paid_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.InvoiceNumber, b.PatientID, b.TotalAmount, b.Discount, b.FinalAmount, b.IsPaid, paidAt, b.CreatedAt)
	if err != nil {
		return model.Bill{}, translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Bill{}, err
	}
	return r.GetByID(ctx, tx, uint64(id))
}

// SetPaid flips the payment flag. paid_at follows the flag.
func (r *BillRepo) SetPaid(ctx context.Context, q database.DBTX, id uint64, paid bool, at time.Time) error {
	var paidAt sql.NullTime
	if paid {
		paidAt = sql.NullTime{Time: at, Valid: true}
	}
	res, err := q.ExecContext(ctx, "UPDATE bills SET is_paid = ?, paid_at = ? WHERE id = ?", paid, paidAt, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// MySQL reports 0 affected rows when nothing changed, so only a
		// missing row is an error.
		if _, err := r.GetByID(ctx, q, id); err != nil {
			return err
		}
	}
	return nil
}

// PaidByPatientsTx maps each patient id to whether it has a paid bill.
// Patients without a bill are absent. Rows are share-locked so payment
// cannot be reverted while results are written.
func (r *BillRepo) PaidByPatientsTx(ctx context.Context, tx *sql.Tx, patientIDs []uint64) (map[uint64]bool, error) {
	out := make(map[uint64]bool, len(patientIDs))
	if len(patientIDs) == 0 {
		return out, nil
	}
	rows, err := tx.QueryContext(ctx,
		"SELECT patient_id, is_paid FROM bills WHERE patient_id IN ("+placeholders(len(patientIDs))+") FOR SHARE",
		idArgs(patientIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			pid  uint64
			paid bool
		)
		if err := rows.Scan(&pid, &paid); err != nil {
			return nil, err
		}
		out[pid] = paid
	}
	return out, rows.Err()
}

const billWithPatientSelect = `SELECT b.id, b.invoice_number, b.patient_id, b.total_amount, b.discount, b.final_amount, b.is_paid,
  b.paid_at, b.created_at, COALESCE(p.patient_id, ''), p.full_name, p.phone_number
FROM bills b
JOIN patients p ON p.id = b.patient_id`

func scanBillWithPatient(row rowScanner) (model.BillWithPatient, error) {
	var (
		b      model.BillWithPatient
		paidAt sql.NullTime
	)
	err := row.Scan(&b.ID, &b.InvoiceNumber, &b.PatientID, &b.TotalAmount, &b.Discount, &b.FinalAmount,
		&b.IsPaid, &paidAt, &b.CreatedAt, &b.PatientCode, &b.PatientName, &b.PhoneNumber)
	if err != nil {
		return model.BillWithPatient{}, translate(err)
	}
	b.PaidAt = timePtr(paidAt)
	return b, nil
}

// GetWithPatient fetches a bill joined to its patient.
func (r *BillRepo) GetWithPatient(ctx context.Context, id uint64) (model.BillWithPatient, error) {
	return scanBillWithPatient(r.DB.QueryRowContext(ctx, billWithPatientSelect+" WHERE b.id = ?", id))
}

// SearchLimit caps bill search results.
const SearchLimit = 20

// Search matches invoice number, patient code or patient name, newest
// first.
func (r *BillRepo) Search(ctx context.Context, term string) ([]model.BillWithPatient, error) {
	like := "%" + escapeLike(strings.TrimSpace(term)) + "%"
	rows, err := r.DB.QueryContext(ctx,
		billWithPatientSelect+` WHERE b.invoice_number LIKE ? OR p.patient_id LIKE ? OR p.full_name LIKE ?
ORDER BY b.created_at DESC, b.id DESC LIMIT ?`, like, like, like, SearchLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.BillWithPatient{}
	for rows.Next() {
		b, err := scanBillWithPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
