package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// Table is a full dump of one table as display strings.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// snapshotQueries whitelists what exports may read. Secrets (password
// hashes, refresh tokens) are never part of a dump.
var snapshotQueries = map[string]string{
	"patients": `SELECT id, patient_id, full_name, age, gender, phone_number, address_line_1, state, pincode,
  medical_history, allergies, insurance_policy_number, referred_by, patient_consent, created_at FROM patients ORDER BY id`,
	"tests":           "SELECT id, name, description, price, created_at FROM tests ORDER BY id",
	"test_parameters": "SELECT id, test_id, parameter_name, unit, normal_range, sort_order, created_at FROM test_parameters ORDER BY test_id, sort_order, id",
	"bills":           "SELECT id, invoice_number, patient_id, total_amount, discount, final_amount, is_paid, paid_at, created_at FROM bills ORDER BY id",
	"doctors":         "SELECT id, doctor_id, name, specialization, contact_number, created_at FROM doctors ORDER BY id",
	"patient_tests": `SELECT id, patient_id, test_id, status, test_entry_date, test_result_date, report_impression, created_at
FROM patient_tests ORDER BY id`,
	"test_results": "SELECT id, patient_test_id, parameter_id, value, remarks, created_at, updated_at FROM test_results ORDER BY id",
}

// SnapshotRepo reads whole tables for spreadsheet export.
type SnapshotRepo struct{ DB *sql.DB }

func NewSnapshotRepo(db *sql.DB) *SnapshotRepo { return &SnapshotRepo{DB: db} }

// Dump reads every row of a whitelisted table.
func (r *SnapshotRepo) Dump(ctx context.Context, table string) (Table, error) {
	query, ok := snapshotQueries[table]
	if !ok {
		return Table{}, fmt.Errorf("snapshot: table %q is not exportable", table)
	}
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return Table{}, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Table{}, err
	}
	out := Table{Name: table, Columns: cols, Rows: [][]string{}}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return Table{}, err
		}
		line := make([]string, len(cols))
		for i, v := range vals {
			line[i] = formatCell(v)
		}
		out.Rows = append(out.Rows, line)
	}
	return out, rows.Err()
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
