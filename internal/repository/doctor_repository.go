package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/labdesk/internal/database"
	"github.com/iliyamo/labdesk/internal/model"
)

// DoctorRepo reads and writes referring doctors.
type DoctorRepo struct{ DB *sql.DB }

func NewDoctorRepo(db *sql.DB) *DoctorRepo { return &DoctorRepo{DB: db} }

const doctorSelect = `SELECT id, COALESCE(doctor_id, ''), name, COALESCE(specialization, ''), COALESCE(contact_number, ''), created_at
FROM doctors`

func scanDoctor(row rowScanner) (model.Doctor, error) {
	var d model.Doctor
	err := row.Scan(&d.ID, &d.DoctorID, &d.Name, &d.Specialization, &d.ContactNumber, &d.CreatedAt)
	return d, translate(err)
}

// List returns all doctors by name.
func (r *DoctorRepo) List(ctx context.Context) ([]model.Doctor, error) {
	rows, err := r.DB.QueryContext(ctx, doctorSelect+" ORDER BY name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Doctor{}
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetByID fetches one doctor.
func (r *DoctorRepo) GetByID(ctx context.Context, q database.DBTX, id uint64) (model.Doctor, error) {
	return scanDoctor(q.QueryRowContext(ctx, doctorSelect+" WHERE id = ?", id))
}

// Create inserts a doctor and stamps its DOCNO code from the new id.
// It must run in a transaction so the code is never observed empty.
func (r *DoctorRepo) Create(ctx context.Context, tx *sql.Tx, d model.Doctor) (model.Doctor, error) {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO doctors (name, specialization, contact_number) VALUES (?, ?, ?)",
		d.Name, nullString(d.Specialization), nullString(d.ContactNumber))
	if err != nil {
		return model.Doctor{}, translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Doctor{}, err
	}
	code := model.FormatDoctorID(uint64(id))
	if _, err := tx.ExecContext(ctx, "UPDATE doctors SET doctor_id = ? WHERE id = ?", code, id); err != nil {
		return model.Doctor{}, translate(err)
	}
	return r.GetByID(ctx, tx, uint64(id))
}
