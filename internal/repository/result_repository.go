package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// ResultInput is one value to store for (PatientTestID, ParameterID).
type ResultInput struct {
	PatientTestID uint64
	ParameterID   uint64
	Value         string
	Remarks       *string
}

// ResultRepo writes test_results.
type ResultRepo struct{ DB *sql.DB }

func NewResultRepo(db *sql.DB) *ResultRepo { return &ResultRepo{DB: db} }

// UpsertTx inserts results, replacing value and remarks of rows that
// already exist for the same patient test and parameter.
func (r *ResultRepo) UpsertTx(ctx context.Context, tx *sql.Tx, results []ResultInput, at time.Time) error {
	if len(results) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString("INSERT INTO test_results (patient_test_id, parameter_id, value, remarks, created_at, updated_at) VALUES ")
	args := make([]any, 0, len(results)*6)
	for i, res := range results {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?)")
		args = append(args, res.PatientTestID, res.ParameterID, res.Value, nullStringPtr(res.Remarks), at, at)
	}
	sb.WriteString(" ON DUPLICATE KEY UPDATE value = VALUES(value), remarks = VALUES(remarks), updated_at = VALUES(updated_at)")
	_, err := tx.ExecContext(ctx, sb.String(), args...)
	return translate(err)
}
