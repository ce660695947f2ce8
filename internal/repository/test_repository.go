package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/labdesk/internal/database"
	"github.com/iliyamo/labdesk/internal/model"
)

// TestRepo reads and writes the test catalogue and its parameters.
type TestRepo struct{ DB *sql.DB }

func NewTestRepo(db *sql.DB) *TestRepo { return &TestRepo{DB: db} }

const testSelect = `SELECT t.id, t.name, COALESCE(t.description, ''), t.price, COUNT(tp.id), t.created_at
FROM tests t
LEFT JOIN test_parameters tp ON tp.test_id = t.id`

func scanTest(row rowScanner) (model.Test, error) {
	var t model.Test
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Price, &t.ParameterCount, &t.CreatedAt)
	return t, translate(err)
}

// List returns the catalogue by name with parameter counts.
func (r *TestRepo) List(ctx context.Context) ([]model.Test, error) {
	rows, err := r.DB.QueryContext(ctx, testSelect+" GROUP BY t.id ORDER BY t.name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Test{}
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetByID fetches one test.
func (r *TestRepo) GetByID(ctx context.Context, id uint64) (model.Test, error) {
	return scanTest(r.DB.QueryRowContext(ctx, testSelect+" WHERE t.id = ? GROUP BY t.id", id))
}

// Create inserts a test and returns its id. Names are unique
// (uk_tests_name).
func (r *TestRepo) Create(ctx context.Context, t model.Test) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO tests (name, description, price) VALUES (?, ?, ?)",
		t.Name, nullString(t.Description), t.Price)
	if err != nil {
		return 0, translate(err)
	}
	id, err := res.LastInsertId()
	return uint64(id), err
}

const paramSelect = `SELECT id, test_id, parameter_name, COALESCE(unit, ''), COALESCE(normal_range, ''), sort_order, created_at
FROM test_parameters`

func scanParams(rows *sql.Rows) ([]model.TestParameter, error) {
	defer rows.Close()
	out := []model.TestParameter{}
	for rows.Next() {
		var p model.TestParameter
		if err := rows.Scan(&p.ID, &p.TestID, &p.ParameterName, &p.Unit, &p.NormalRange, &p.SortOrder, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Parameters lists the parameters of a test in display order.
func (r *TestRepo) Parameters(ctx context.Context, testID uint64) ([]model.TestParameter, error) {
	rows, err := r.DB.QueryContext(ctx, paramSelect+" WHERE test_id = ? ORDER BY sort_order, id", testID)
	if err != nil {
		return nil, err
	}
	return scanParams(rows)
}

// ParametersForTests returns parameters grouped by test id.
func (r *TestRepo) ParametersForTests(ctx context.Context, testIDs []uint64) (map[uint64][]model.TestParameter, error) {
	out := make(map[uint64][]model.TestParameter, len(testIDs))
	if len(testIDs) == 0 {
		return out, nil
	}
	rows, err := r.DB.QueryContext(ctx,
		paramSelect+" WHERE test_id IN ("+placeholders(len(testIDs))+") ORDER BY test_id, sort_order, id",
		idArgs(testIDs)...)
	if err != nil {
		return nil, err
	}
	params, err := scanParams(rows)
	if err != nil {
		return nil, err
	}
	for _, p := range params {
		out[p.TestID] = append(out[p.TestID], p)
	}
	return out, nil
}

// CreateParameter appends a parameter after the current last one.
func (r *TestRepo) CreateParameter(ctx context.Context, p model.TestParameter) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO test_parameters (test_id, parameter_name, unit, normal_range, sort_order)
SELECT ?, ?, ?, ?, COALESCE(MAX(sort_order), 0) + 1 FROM test_parameters WHERE test_id = ?`,
		p.TestID, p.ParameterName, nullString(p.Unit), nullString(p.NormalRange), p.TestID)
	if err != nil {
		return 0, translate(err)
	}
	id, err := res.LastInsertId()
	return uint64(id), err
}

// ExistingIDs returns the subset of ids that name a test.
func (r *TestRepo) ExistingIDs(ctx context.Context, q database.DBTX, ids []uint64) ([]uint64, error) {
	if len(ids) == 0 {
		return []uint64{}, nil
	}
	rows, err := q.QueryContext(ctx,
		"SELECT id FROM tests WHERE id IN ("+placeholders(len(ids))+")", idArgs(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []uint64{}
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ParameterOwners maps parameter id to the test it belongs to. Unknown ids
// are absent from the map.
func (r *TestRepo) ParameterOwners(ctx context.Context, q database.DBTX, paramIDs []uint64) (map[uint64]uint64, error) {
	out := make(map[uint64]uint64, len(paramIDs))
	if len(paramIDs) == 0 {
		return out, nil
	}
	rows, err := q.QueryContext(ctx,
		"SELECT id, test_id FROM test_parameters WHERE id IN ("+placeholders(len(paramIDs))+")",
		idArgs(paramIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id, testID uint64
		if err := rows.Scan(&id, &testID); err != nil {
			return nil, err
		}
		out[id] = testID
	}
	return out, rows.Err()
}

// ParameterByID fetches one parameter.
func (r *TestRepo) ParameterByID(ctx context.Context, id uint64) (model.TestParameter, error) {
	var p model.TestParameter
	err := r.DB.QueryRowContext(ctx, paramSelect+" WHERE id = ?", id).
		Scan(&p.ID, &p.TestID, &p.ParameterName, &p.Unit, &p.NormalRange, &p.SortOrder, &p.CreatedAt)
	return p, translate(err)
}
