package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/labdesk/internal/database"
	"github.com/iliyamo/labdesk/internal/model"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// LabRepo reads and writes lab_info.
type LabRepo struct{ DB *sql.DB }

func NewLabRepo(db *sql.DB) *LabRepo { return &LabRepo{DB: db} }

const labSelect = `SELECT id, lab_name, COALESCE(lab_logo, ''), COALESCE(gstin_number, ''), registration_number,
  COALESCE(police_station_name, ''), COALESCE(address, ''), COALESCE(phone_number, ''), created_at, updated_at
FROM lab_info`

func scanLab(row rowScanner) (model.LabInfo, error) {
	var l model.LabInfo
	err := row.Scan(&l.ID, &l.LabName, &l.LabLogo, &l.GSTINNumber, &l.RegistrationNumber,
		&l.PoliceStationName, &l.Address, &l.PhoneNumber, &l.CreatedAt, &l.UpdatedAt)
	return l, translate(err)
}

// Main returns the canonical lab, the first row by id.
func (r *LabRepo) Main(ctx context.Context) (model.LabInfo, error) {
	return scanLab(r.DB.QueryRowContext(ctx, labSelect+" ORDER BY id LIMIT 1"))
}

// GetByID fetches one lab.
func (r *LabRepo) GetByID(ctx context.Context, id uint64) (model.LabInfo, error) {
	return scanLab(r.DB.QueryRowContext(ctx, labSelect+" WHERE id = ?", id))
}

// Count returns how many labs exist. Setup uses it to refuse a second
// bootstrap.
func (r *LabRepo) Count(ctx context.Context, q database.DBTX) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM lab_info").Scan(&n)
	return n, err
}

// Create inserts a lab and returns its id.
func (r *LabRepo) Create(ctx context.Context, q database.DBTX, l model.LabInfo) (uint64, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO lab_info (lab_name, lab_logo, gstin_number, registration_number, police_station_name, address, phone_number)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.LabName, nullString(l.LabLogo), nullString(l.GSTINNumber), l.RegistrationNumber,
		nullString(l.PoliceStationName), nullString(l.Address), nullString(l.PhoneNumber))
	if err != nil {
		return 0, translate(err)
	}
	id, err := res.LastInsertId()
	return uint64(id), err
}

// Update overwrites the editable columns of a lab.
func (r *LabRepo) Update(ctx context.Context, l model.LabInfo) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE lab_info SET lab_name = ?, lab_logo = ?, gstin_number = ?, registration_number = ?,
  police_station_name = ?, address = ?, phone_number = ? WHERE id = ?`,
		l.LabName, nullString(l.LabLogo), nullString(l.GSTINNumber), l.RegistrationNumber,
		nullString(l.PoliceStationName), nullString(l.Address), nullString(l.PhoneNumber), l.ID)
	return translate(err)
}
