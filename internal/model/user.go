package model

import "time"

// Role names as stored in user_roles.role_name.
const (
	RoleMaster        = "master"
	RoleCashier       = "cashier"
	RoleLabTechnician = "lab_technician"
)

// Permission tags stored in users.permissions.
const (
	PermAll         = "all"
	PermBilling     = "billing"
	PermPayments    = "payments"
	PermTestEntry   = "test_entry"
	PermTestResults = "test_results"
)

// DefaultPermissions is what a new user of the given role receives when the
// caller does not pass an explicit list.
func DefaultPermissions(role string) []string {
	switch role {
	case RoleMaster:
		return []string{PermAll}
	case RoleCashier:
		return []string{PermBilling, PermPayments}
	case RoleLabTechnician:
		return []string{PermTestEntry, PermTestResults}
	default:
		return []string{}
	}
}

// UserRole is a row of user_roles.
type UserRole struct {
	ID          uint64    `json:"id"`
	RoleName    string    `json:"roleName"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// User is a staff login. PasswordHash never leaves the server.
type User struct {
	ID           uint64     `json:"id"`
	UserID       string     `json:"userId"`
	PasswordHash string     `json:"-"`
	FullName     string     `json:"fullName"`
	Email        string     `json:"email,omitempty"`
	PhoneNumber  string     `json:"phoneNumber,omitempty"`
	RoleID       uint64     `json:"roleId"`
	Role         string     `json:"role"`
	LabInfoID    uint64     `json:"labInfoId"`
	Permissions  []string   `json:"permissions"`
	IsActive     bool       `json:"isActive"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// HasPermission reports whether the user may perform actions tagged perm.
// Masters and holders of "all" may do anything. A user with no stored
// permissions falls back to the defaults of their role.
func (u User) HasPermission(perm string) bool {
	if u.Role == RoleMaster {
		return true
	}
	perms := u.Permissions
	if len(perms) == 0 {
		perms = DefaultPermissions(u.Role)
	}
	for _, p := range perms {
		if p == PermAll || p == perm {
			return true
		}
	}
	return false
}

// RefreshToken is a row of refresh_tokens. Only the SHA-256 of the raw
// token is stored.
type RefreshToken struct {
	ID        uint64
	UserID    uint64
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}
