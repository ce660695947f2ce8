package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/labdesk/internal/database"
	"github.com/iliyamo/labdesk/internal/model"
)

// PatientRepo reads and writes patients.
type PatientRepo struct{ DB *sql.DB }

func NewPatientRepo(db *sql.DB) *PatientRepo { return &PatientRepo{DB: db} }

const patientSelect = `SELECT id, COALESCE(patient_id, ''), full_name, age, COALESCE(gender, ''), phone_number, address_line_1,
  state, pincode, COALESCE(medical_history, ''), COALESCE(allergies, ''), COALESCE(insurance_policy_number, ''),
  referred_by, patient_consent, created_at
FROM patients`

func scanPatient(row rowScanner) (model.Patient, error) {
	var (
		p          model.Patient
		age        sql.NullInt64
		referredBy sql.NullInt64
	)
	err := row.Scan(&p.ID, &p.PatientID, &p.FullName, &age, &p.Gender, &p.PhoneNumber, &p.AddressLine1,
		&p.State, &p.Pincode, &p.MedicalHistory, &p.Allergies, &p.InsurancePolicyNumber,
		&referredBy, &p.PatientConsent, &p.CreatedAt)
	if err != nil {
		return model.Patient{}, translate(err)
	}
	p.Age = intPtr(age)
	p.ReferredBy = uintPtr(referredBy)
	return p, nil
}

// Create inserts a patient and stamps its PATNO code from the new id.
func (r *PatientRepo) Create(ctx context.Context, tx *sql.Tx, p model.Patient) (uint64, string, error) {
	var age, referredBy sql.NullInt64
	if p.Age != nil {
		age = sql.NullInt64{Int64: int64(*p.Age), Valid: true}
	}
	if p.ReferredBy != nil {
		referredBy = sql.NullInt64{Int64: int64(*p.ReferredBy), Valid: true}
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO patients (full_name, age, gender, phone_number, address_line_1, state, pincode,
  medical_history, allergies, insurance_policy_number, referred_by, patient_consent)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.FullName, age, nullString(p.Gender), p.PhoneNumber, p.AddressLine1, p.State, p.Pincode,
		nullString(p.MedicalHistory), nullString(p.Allergies), nullString(p.InsurancePolicyNumber),
		referredBy, p.PatientConsent)
	if err != nil {
		return 0, "", translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, "", err
	}
	code := model.FormatPatientID(uint64(id))
	if _, err := tx.ExecContext(ctx, "UPDATE patients SET patient_id = ? WHERE id = ?", code, id); err != nil {
		return 0, "", translate(err)
	}
	return uint64(id), code, nil
}

// GetByID fetches one patient.
func (r *PatientRepo) GetByID(ctx context.Context, q database.DBTX, id uint64) (model.Patient, error) {
	return scanPatient(q.QueryRowContext(ctx, patientSelect+" WHERE id = ?", id))
}

// ExistsForUpdate locks the patient row for the rest of tx.
func (r *PatientRepo) ExistsForUpdate(ctx context.Context, tx *sql.Tx, id uint64) error {
	var got uint64
	err := tx.QueryRowContext(ctx, "SELECT id FROM patients WHERE id = ? FOR UPDATE", id).Scan(&got)
	return translate(err)
}

// ListFilter narrows the dashboard list. Search matches patient code, name
// or phone.
type ListFilter struct {
	Search string
	Limit  int
	Offset int
}

const patientSummarySelect = `SELECT p.id, COALESCE(p.patient_id, ''), p.full_name, p.age, COALESCE(p.gender, ''), p.phone_number, p.created_at,
  (SELECT COUNT(*) FROM patient_tests pt WHERE pt.patient_id = p.id),
  b.id, b.invoice_number, b.total_amount, b.discount, b.final_amount, b.is_paid, b.created_at
FROM patients p
LEFT JOIN bills b ON b.patient_id = p.id`

// ListSummaries returns patients newest first with their bill and test
// count.
func (r *PatientRepo) ListSummaries(ctx context.Context, f ListFilter) ([]model.PatientSummary, error) {
	query := patientSummarySelect
	args := []any{}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + escapeLike(s) + "%"
		query += " WHERE p.patient_id LIKE ? OR p.full_name LIKE ? OR p.phone_number LIKE ?"
		args = append(args, like, like, like)
	}
	query += " ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.PatientSummary{}
	for rows.Next() {
		var (
			s         model.PatientSummary
			age       sql.NullInt64
			billID    sql.NullInt64
			invoice   sql.NullString
			total     model.Money
			discount  model.Money
			final     model.Money
			paid      sql.NullBool
			billCreat sql.NullTime
		)
		if err := rows.Scan(&s.ID, &s.PatientID, &s.FullName, &age, &s.Gender, &s.PhoneNumber, &s.CreatedAt,
			&s.TestCount, &billID, &invoice, &total, &discount, &final, &paid, &billCreat); err != nil {
			return nil, err
		}
		s.Age = intPtr(age)
		if billID.Valid {
			s.Bill = &model.BillSummary{
				ID:            uint64(billID.Int64),
				InvoiceNumber: invoice.String,
				TotalAmount:   total,
				Discount:      discount,
				FinalAmount:   final,
				IsPaid:        paid.Bool,
				CreatedAt:     billCreat.Time,
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}
