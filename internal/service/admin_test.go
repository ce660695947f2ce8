package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/labdesk/internal/apperr"
	"github.com/iliyamo/labdesk/internal/model"
)

func newAdmin(t *testing.T) (*Admin, sqlmock.Sqlmock) {
	t.Helper()
	store, mock := newMockStore(t)
	a := NewAdmin(store, bcrypt.MinCost, zerolog.Nop())
	a.now = func() time.Time { return fixedNow }
	return a, mock
}

func expectEnsureRoles(mock sqlmock.Sqlmock) {
	for _, name := range roleNames {
		mock.ExpectExec(q("INSERT IGNORE INTO user_roles (role_name, description) VALUES (?, ?)")).
			WithArgs(name, roleDescriptions[name]).WillReturnResult(sqlmock.NewResult(0, 0))
	}
}

func setupInput() SetupInput {
	return SetupInput{
		Lab:    LabInput{LabName: "NextGenLab", RegistrationNumber: "REG-001"},
		Master: CreateUserInput{UserID: "master", Password: "master123", FullName: "Lab Owner"},
	}
}

func TestSetupValidation(t *testing.T) {
	a, _ := newAdmin(t)
	in := setupInput()
	in.Lab.LabName = ""
	in.Master.Password = "123"

	_, err := a.Setup(context.Background(), in)
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.KindValidation, ae.Kind)
	assert.Contains(t, ae.Details, "lab")
	assert.Contains(t, ae.Details, "master")
}

func TestSetupRefusesSecondLab(t *testing.T) {
	a, mock := newAdmin(t)
	expectEnsureRoles(mock)
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT COUNT(*) FROM lab_info")).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectRollback()

	_, err := a.Setup(context.Background(), setupInput())
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.EqualError(t, err, "lab is already set up")
}

func TestSetup(t *testing.T) {
	a, mock := newAdmin(t)
	expectEnsureRoles(mock)
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT COUNT(*) FROM lab_info")).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec(q("INSERT INTO lab_info")).
		WithArgs("NextGenLab", nil, nil, "REG-001", nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(q("FROM user_roles WHERE role_name = ?")).WithArgs(model.RoleMaster).
		WillReturnRows(sqlmock.NewRows([]string{"id", "role_name", "description", "created_at"}).
			AddRow(1, model.RoleMaster, "", fixedNow))
	mock.ExpectExec(q("INSERT INTO users")).
		WithArgs("master", sqlmock.AnyArg(), "Lab Owner", nil, nil, 1, 1, `["all"]`, true).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(q("FROM lab_info WHERE id = ?")).WithArgs(1).WillReturnRows(labRows())
	mock.ExpectQuery(q("WHERE u.id = ? LIMIT 1")).WithArgs(1).
		WillReturnRows(userRows(1, "x", model.RoleMaster, `["all"]`, true))

	res, err := a.Setup(context.Background(), setupInput())
	require.NoError(t, err)
	assert.Equal(t, "NextGenLab", res.Lab.LabName)
	assert.Equal(t, model.RoleMaster, res.User.Role)
}

func TestCreateUserDefaultsAndDuplicates(t *testing.T) {
	in := CreateUserInput{UserID: "tech1", Password: "tech123", FullName: "Meera", Role: model.RoleLabTechnician}
	roleRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "role_name", "description", "created_at"}).
			AddRow(3, model.RoleLabTechnician, "", fixedNow)
	}

	t.Run("defaults", func(t *testing.T) {
		a, mock := newAdmin(t)
		mock.ExpectQuery(q("WHERE role_name = ?")).WithArgs(model.RoleLabTechnician).WillReturnRows(roleRows())
		mock.ExpectExec(q("INSERT INTO users")).
			WithArgs("tech1", sqlmock.AnyArg(), "Meera", nil, nil, 3, 1, `["test_entry","test_results"]`, true).
			WillReturnResult(sqlmock.NewResult(8, 1))
		mock.ExpectQuery(q("WHERE u.id = ?")).WithArgs(8).
			WillReturnRows(userRows(8, "x", model.RoleLabTechnician, `["test_entry","test_results"]`, true))

		u, err := a.CreateUser(context.Background(), 1, in)
		require.NoError(t, err)
		assert.Equal(t, uint64(8), u.ID)
	})

	t.Run("duplicate", func(t *testing.T) {
		a, mock := newAdmin(t)
		mock.ExpectQuery(q("WHERE role_name = ?")).WillReturnRows(roleRows())
		mock.ExpectExec(q("INSERT INTO users")).
			WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'tech1' for key 'users.uk_users_user_id'"})

		_, err := a.CreateUser(context.Background(), 1, in)
		assert.True(t, apperr.Is(err, apperr.KindConflict))
	})

	t.Run("unknown permission", func(t *testing.T) {
		a, _ := newAdmin(t)
		bad := in
		bad.Permissions = []string{"billing", "root"}
		_, err := a.CreateUser(context.Background(), 1, bad)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})
}

func TestUpdateUserRoleChangeAndDeactivation(t *testing.T) {
	a, mock := newAdmin(t)
	role, active := model.RoleLabTechnician, false

	mock.ExpectQuery(q("WHERE u.id = ? LIMIT 1")).WithArgs(5).
		WillReturnRows(userRows(5, "x", model.RoleCashier, `["billing","payments"]`, true))
	mock.ExpectQuery(q("WHERE role_name = ?")).WithArgs(model.RoleLabTechnician).
		WillReturnRows(sqlmock.NewRows([]string{"id", "role_name", "description", "created_at"}).
			AddRow(3, model.RoleLabTechnician, "", fixedNow))
	mock.ExpectExec(q("UPDATE users SET full_name = ?")).
		WithArgs("Ravi Kumar", nil, nil, 3, `["test_entry","test_results"]`, false, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("UPDATE refresh_tokens SET revoked_at = ? WHERE user_id = ?")).WithArgs(fixedNow, 5).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(q("WHERE u.id = ? LIMIT 1")).WithArgs(5).
		WillReturnRows(userRows(5, "x", model.RoleLabTechnician, `["test_entry","test_results"]`, false))

	u, err := a.UpdateUser(context.Background(), 5, UpdateUserInput{Role: &role, IsActive: &active})
	require.NoError(t, err)
	assert.False(t, u.IsActive)
}

func TestDeleteUser(t *testing.T) {
	t.Run("self", func(t *testing.T) {
		a, _ := newAdmin(t)
		err := a.DeleteUser(context.Background(), 4, 4)
		assert.True(t, apperr.Is(err, apperr.KindForbidden))
	})

	t.Run("missing", func(t *testing.T) {
		a, mock := newAdmin(t)
		mock.ExpectExec(q("DELETE FROM users WHERE id = ?")).WithArgs(9).WillReturnResult(sqlmock.NewResult(0, 0))
		assert.EqualError(t, a.DeleteUser(context.Background(), 4, 9), "user 9 not found")
	})
}

func TestMainLabMissing(t *testing.T) {
	a, mock := newAdmin(t)
	mock.ExpectQuery(q("FROM lab_info ORDER BY id LIMIT 1")).WillReturnError(sql.ErrNoRows)

	_, err := a.MainLab(context.Background())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
