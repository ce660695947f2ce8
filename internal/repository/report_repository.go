package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/labdesk/internal/model"
)

// ReportRepo runs the denormalized report query.
type ReportRepo struct{ DB *sql.DB }

func NewReportRepo(db *sql.DB) *ReportRepo { return &ReportRepo{DB: db} }

const reportRowsQuery = `SELECT pt.id, t.name, t.price, pt.report_impression, tp.id, tp.parameter_name, tp.unit, tp.normal_range,
  tr.value, tr.remarks
FROM patient_tests pt
JOIN tests t ON t.id = pt.test_id
JOIN test_parameters tp ON tp.test_id = pt.test_id
LEFT JOIN test_results tr ON tr.patient_test_id = pt.id AND tr.parameter_id = tp.id
WHERE pt.patient_id = ?
ORDER BY pt.id, tp.sort_order, tp.id`

// Rows returns one row per (patient test, parameter) with the result when
// entered. A patient with no tests yields an empty, non-nil slice.
func (r *ReportRepo) Rows(ctx context.Context, patientID uint64) ([]model.ReportRow, error) {
	rows, err := r.DB.QueryContext(ctx, reportRowsQuery, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ReportRow{}
	for rows.Next() {
		var (
			row                                      model.ReportRow
			impression, unit, normal, value, remarks sql.NullString
		)
		if err := rows.Scan(&row.PatientTestID, &row.TestName, &row.TestPrice, &impression,
			&row.ParameterID, &row.ParameterName, &unit, &normal, &value, &remarks); err != nil {
			return nil, err
		}
		row.ReportImpression = stringPtr(impression)
		row.Unit = stringPtr(unit)
		row.NormalRange = stringPtr(normal)
		row.ResultValue = stringPtr(value)
		row.ResultRemarks = stringPtr(remarks)
		out = append(out, row)
	}
	return out, rows.Err()
}
