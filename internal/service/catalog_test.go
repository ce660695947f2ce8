package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/labdesk/internal/apperr"
	"github.com/iliyamo/labdesk/internal/model"
)

func newCatalog(t *testing.T) (*Catalog, sqlmock.Sqlmock) {
	t.Helper()
	store, mock := newMockStore(t)
	return NewCatalog(store, zerolog.Nop()), mock
}

func TestCreateDoctor(t *testing.T) {
	c, mock := newCatalog(t)
	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO doctors (name, specialization, contact_number)")).
		WithArgs("Dr. Mehta", "Cardiology", nil).WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectExec(q("UPDATE doctors SET doctor_id = ? WHERE id = ?")).WithArgs("DOCNO-0000003", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q("FROM doctors WHERE id = ?")).WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "doctor_id", "name", "specialization", "contact_number", "created_at"}).
			AddRow(3, "DOCNO-0000003", "Dr. Mehta", "Cardiology", "", fixedNow))
	mock.ExpectCommit()

	d, err := c.CreateDoctor(context.Background(), DoctorInput{Name: " Dr. Mehta ", Specialization: "Cardiology"})
	require.NoError(t, err)
	assert.Equal(t, "DOCNO-0000003", d.DoctorID)

	_, err = c.CreateDoctor(context.Background(), DoctorInput{Name: "  "})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = c.CreateDoctor(context.Background(), DoctorInput{Name: "Dr. Rao", ContactNumber: strings.Repeat("9", 33)})
	assert.EqualError(t, err, "validation failed: contactNumber must be at most 32 characters")
}

func TestCreateTest(t *testing.T) {
	t.Run("validation", func(t *testing.T) {
		c, _ := newCatalog(t)
		_, err := c.CreateTest(context.Background(), TestInput{Name: "CBC"})
		assert.EqualError(t, err, "validation failed: price must be greater than zero")
	})

	t.Run("duplicate name", func(t *testing.T) {
		c, mock := newCatalog(t)
		mock.ExpectExec(q("INSERT INTO tests (name, description, price)")).
			WithArgs("CBC", nil, "500.00").
			WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'CBC' for key 'tests.uk_tests_name'"})
		_, err := c.CreateTest(context.Background(), TestInput{Name: "CBC", Price: model.MustMoney("500")})
		assert.True(t, apperr.Is(err, apperr.KindConflict))
	})
}

func TestCreateParameterUnknownTest(t *testing.T) {
	c, mock := newCatalog(t)
	mock.ExpectQuery(q("WHERE t.id = ? GROUP BY t.id")).WithArgs(42).WillReturnError(sql.ErrNoRows)

	_, err := c.CreateParameter(context.Background(), 42, ParameterInput{ParameterName: "Hemoglobin"})
	assert.EqualError(t, err, "test 42 not found")
}
