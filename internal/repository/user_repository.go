package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/iliyamo/labdesk/internal/database"
	"github.com/iliyamo/labdesk/internal/model"
)

// UserRepo reads and writes users and user_roles.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userSelect = `SELECT u.id, u.user_id, u.password_hash, u.full_name, COALESCE(u.email, ''), COALESCE(u.phone_number, ''),
  u.role_id, r.role_name, u.lab_info_id, COALESCE(u.permissions, '[]'), u.is_active, u.last_login, u.created_at, u.updated_at
FROM users u
JOIN user_roles r ON r.id = u.role_id`

func scanUser(row rowScanner) (model.User, error) {
	var (
		u         model.User
		perms     string
		lastLogin sql.NullTime
	)
	err := row.Scan(&u.ID, &u.UserID, &u.PasswordHash, &u.FullName, &u.Email, &u.PhoneNumber,
		&u.RoleID, &u.Role, &u.LabInfoID, &perms, &u.IsActive, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, translate(err)
	}
	u.LastLogin = timePtr(lastLogin)
	u.Permissions = decodePermissions(perms)
	return u, nil
}

// decodePermissions tolerates malformed rows by treating them as empty,
// which falls back to the role defaults.
func decodePermissions(raw string) []string {
	var perms []string
	if err := json.Unmarshal([]byte(raw), &perms); err != nil || perms == nil {
		return []string{}
	}
	return perms
}

func encodePermissions(perms []string) string {
	if perms == nil {
		perms = []string{}
	}
	b, _ := json.Marshal(perms)
	return string(b)
}

// GetByLoginID fetches a user by login id (users.user_id).
func (r *UserRepo) GetByLoginID(ctx context.Context, loginID string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, userSelect+" WHERE u.user_id = ? LIMIT 1", loginID))
}

// GetByID fetches a user by primary key.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, userSelect+" WHERE u.id = ? LIMIT 1", id))
}

// ListByLab returns the staff of one lab ordered by login id.
func (r *UserRepo) ListByLab(ctx context.Context, labID uint64) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, userSelect+" WHERE u.lab_info_id = ? ORDER BY u.user_id", labID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Create inserts a user whose PasswordHash is already set.
func (r *UserRepo) Create(ctx context.Context, q database.DBTX, u model.User) (uint64, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO users (user_id, password_hash, full_name, email, phone_number, role_id, lab_info_id, permissions, is_active)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.UserID, u.PasswordHash, u.FullName, nullString(u.Email), nullString(u.PhoneNumber),
		u.RoleID, u.LabInfoID, encodePermissions(u.Permissions), u.IsActive)
	if err != nil {
		return 0, translate(err)
	}
	id, err := res.LastInsertId()
	return uint64(id), err
}

// Update writes the profile columns. The password is changed separately.
func (r *UserRepo) Update(ctx context.Context, u model.User) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE users SET full_name = ?, email = ?, phone_number = ?, role_id = ?, permissions = ?, is_active = ?
WHERE id = ?`,
		u.FullName, nullString(u.Email), nullString(u.PhoneNumber), u.RoleID,
		encodePermissions(u.Permissions), u.IsActive, u.ID)
	return translate(err)
}

// UpdatePassword stores a new bcrypt hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, hash string) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", hash, id)
	return err
}

// TouchLastLogin records a successful login.
func (r *UserRepo) TouchLastLogin(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET last_login = ? WHERE id = ?", at, id)
	return err
}

// Delete hard-deletes a user; refresh tokens cascade.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Roles lists the role vocabulary.
func (r *UserRepo) Roles(ctx context.Context) ([]model.UserRole, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, role_name, COALESCE(description, ''), created_at FROM user_roles ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.UserRole{}
	for rows.Next() {
		var role model.UserRole
		if err := rows.Scan(&role.ID, &role.RoleName, &role.Description, &role.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

// RoleByID fetches one role.
func (r *UserRepo) RoleByID(ctx context.Context, id uint64) (model.UserRole, error) {
	var role model.UserRole
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, role_name, COALESCE(description, ''), created_at FROM user_roles WHERE id = ?", id).
		Scan(&role.ID, &role.RoleName, &role.Description, &role.CreatedAt)
	return role, translate(err)
}

// RoleByName fetches one role by its name.
func (r *UserRepo) RoleByName(ctx context.Context, q database.DBTX, name string) (model.UserRole, error) {
	var role model.UserRole
	err := q.QueryRowContext(ctx,
		"SELECT id, role_name, COALESCE(description, ''), created_at FROM user_roles WHERE role_name = ?", name).
		Scan(&role.ID, &role.RoleName, &role.Description, &role.CreatedAt)
	return role, translate(err)
}

// EnsureRole inserts a role unless it already exists.
func (r *UserRepo) EnsureRole(ctx context.Context, name, description string) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT IGNORE INTO user_roles (role_name, description) VALUES (?, ?)", name, nullString(description))
	return err
}
