package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/labdesk/internal/apperr"
	"github.com/iliyamo/labdesk/internal/database"
	"github.com/iliyamo/labdesk/internal/model"
	"github.com/iliyamo/labdesk/internal/repository"
	"github.com/iliyamo/labdesk/internal/utils"
)

var loginIDRE = regexp.MustCompile(`^[A-Za-z0-9._-]{3,64}$`)

var (
	roleNames = []string{model.RoleMaster, model.RoleCashier, model.RoleLabTechnician}
	permTags  = []string{model.PermAll, model.PermBilling, model.PermPayments, model.PermTestEntry, model.PermTestResults}
)

var roleDescriptions = map[string]string{
	model.RoleMaster:        "Full administrative access",
	model.RoleCashier:       "Registration, billing and payments",
	model.RoleLabTechnician: "Test entry and results",
}

// Admin manages the lab record and staff accounts.
type Admin struct {
	store      *repository.Store
	bcryptCost int
	log        zerolog.Logger
	now        func() time.Time
}

func NewAdmin(store *repository.Store, bcryptCost int, log zerolog.Logger) *Admin {
	return &Admin{store: store, bcryptCost: bcryptCost, log: log, now: time.Now}
}

// LabInput is the editable lab record.
type LabInput struct {
	LabName            string `json:"labName"`
	LabLogo            string `json:"labLogo"`
	GSTINNumber        string `json:"gstinNumber"`
	RegistrationNumber string `json:"registrationNumber"`
	PoliceStationName  string `json:"policeStationName"`
	Address            string `json:"address"`
	PhoneNumber        string `json:"phoneNumber"`
}

func (in LabInput) model() model.LabInfo {
	return model.LabInfo{
		LabName:            strings.TrimSpace(in.LabName),
		LabLogo:            strings.TrimSpace(in.LabLogo),
		GSTINNumber:        strings.TrimSpace(in.GSTINNumber),
		RegistrationNumber: strings.TrimSpace(in.RegistrationNumber),
		PoliceStationName:  strings.TrimSpace(in.PoliceStationName),
		Address:            strings.TrimSpace(in.Address),
		PhoneNumber:        strings.TrimSpace(in.PhoneNumber),
	}
}

func (in LabInput) Validate() error {
	f := apperr.Fields{}
	f.Check(strings.TrimSpace(in.LabName) != "", "labName", "is required")
	f.Check(strings.TrimSpace(in.RegistrationNumber) != "", "registrationNumber", "is required")
	f.MaxLen(in.LabName, 255, "labName")
	f.MaxLen(in.LabLogo, apperr.TextLen, "labLogo")
	f.MaxLen(in.GSTINNumber, 32, "gstinNumber")
	f.MaxLen(in.RegistrationNumber, 64, "registrationNumber")
	f.MaxLen(in.PoliceStationName, 255, "policeStationName")
	f.MaxLen(in.Address, apperr.TextLen, "address")
	f.MaxLen(in.PhoneNumber, 32, "phoneNumber")
	return f.Err()
}

// CreateUserInput creates a staff account. Permissions default to the
// role's set; IsActive defaults to true.
type CreateUserInput struct {
	UserID      string   `json:"userId"`
	Password    string   `json:"password"`
	FullName    string   `json:"fullName"`
	Email       string   `json:"email"`
	PhoneNumber string   `json:"phoneNumber"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	IsActive    *bool    `json:"isActive"`
}

func (in CreateUserInput) Validate() error {
	f := apperr.Fields{}
	f.Check(loginIDRE.MatchString(in.UserID), "userId", "must be 3-64 letters, digits, dot, dash or underscore")
	f.Check(len(in.Password) >= utils.MinPasswordLength, "password", "must be at least 6 characters")
	f.Check(strings.TrimSpace(in.FullName) != "", "fullName", "is required")
	f.MaxLen(in.FullName, 255, "fullName")
	f.MaxLen(in.Email, 255, "email")
	f.MaxLen(in.PhoneNumber, 32, "phoneNumber")
	f.Check(slices.Contains(roleNames, in.Role), "role", "must be one of master, cashier, lab_technician")
	checkPermissions(f, in.Permissions)
	return f.Err()
}

func checkPermissions(f apperr.Fields, perms []string) {
	for _, p := range perms {
		if !slices.Contains(permTags, p) {
			f.Add("permissions", "contains unknown permission "+p)
		}
	}
}

// SetupInput bootstraps an empty installation.
type SetupInput struct {
	Lab    LabInput        `json:"lab"`
	Master CreateUserInput `json:"master"`
}

// SetupResult is the created lab and master account.
type SetupResult struct {
	Lab  model.LabInfo `json:"lab"`
	User model.User    `json:"user"`
}

// EnsureRoles inserts the fixed role vocabulary. It is idempotent.
func (a *Admin) EnsureRoles(ctx context.Context) error {
	for _, name := range roleNames {
		if err := a.store.Users.EnsureRole(ctx, name, roleDescriptions[name]); err != nil {
			return internal(err)
		}
	}
	return nil
}

// Setup creates the lab record and its first master user. It only
// succeeds on an installation without a lab.
func (a *Admin) Setup(ctx context.Context, in SetupInput) (SetupResult, error) {
	in.Master.Role = model.RoleMaster
	f := apperr.Fields{}
	if err := in.Lab.Validate(); err != nil {
		f.Add("lab", err.(*apperr.Error).Message)
	}
	if err := in.Master.Validate(); err != nil {
		f.Add("master", err.(*apperr.Error).Message)
	}
	if err := f.Err(); err != nil {
		return SetupResult{}, err
	}
	if err := a.EnsureRoles(ctx); err != nil {
		return SetupResult{}, err
	}
	hash, err := utils.HashPassword(in.Master.Password, a.bcryptCost)
	if err != nil {
		return SetupResult{}, internal(err)
	}

	var labID, userID uint64
	err = database.WithTx(ctx, a.store.DB, func(tx *sql.Tx) error {
		n, err := a.store.Labs.Count(ctx, tx)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict("lab is already set up")
		}
		if labID, err = a.store.Labs.Create(ctx, tx, in.Lab.model()); err != nil {
			return err
		}
		role, err := a.store.Users.RoleByName(ctx, tx, model.RoleMaster)
		if err != nil {
			return err
		}
		userID, err = a.store.Users.Create(ctx, tx, model.User{
			UserID:       in.Master.UserID,
			PasswordHash: hash,
			FullName:     strings.TrimSpace(in.Master.FullName),
			Email:        strings.TrimSpace(in.Master.Email),
			PhoneNumber:  strings.TrimSpace(in.Master.PhoneNumber),
			RoleID:       role.ID,
			LabInfoID:    labID,
			Permissions:  []string{model.PermAll},
			IsActive:     true,
		})
		return err
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return SetupResult{}, apperr.Conflict("user id " + in.Master.UserID + " already exists")
	}
	if err != nil {
		return SetupResult{}, internal(err)
	}

	a.log.Info().Uint64("lab_id", labID).Str("master", in.Master.UserID).Msg("lab set up")
	lab, err := a.store.Labs.GetByID(ctx, labID)
	if err != nil {
		return SetupResult{}, internal(err)
	}
	u, err := a.store.Users.GetByID(ctx, userID)
	if err != nil {
		return SetupResult{}, internal(err)
	}
	return SetupResult{Lab: lab, User: u}, nil
}

// MainLab returns the lab printed on bills and reports.
func (a *Admin) MainLab(ctx context.Context) (model.LabInfo, error) {
	lab, err := a.store.Labs.Main(ctx)
	if err != nil {
		return model.LabInfo{}, mapNotFound(err, "lab", "main")
	}
	return lab, nil
}

func (a *Admin) GetLab(ctx context.Context, id uint64) (model.LabInfo, error) {
	lab, err := a.store.Labs.GetByID(ctx, id)
	if err != nil {
		return model.LabInfo{}, mapNotFound(err, "lab", id)
	}
	return lab, nil
}

func (a *Admin) CreateLab(ctx context.Context, in LabInput) (model.LabInfo, error) {
	if err := in.Validate(); err != nil {
		return model.LabInfo{}, err
	}
	id, err := a.store.Labs.Create(ctx, a.store.DB, in.model())
	if err != nil {
		return model.LabInfo{}, internal(err)
	}
	return a.GetLab(ctx, id)
}

func (a *Admin) UpdateLab(ctx context.Context, id uint64, in LabInput) (model.LabInfo, error) {
	if err := in.Validate(); err != nil {
		return model.LabInfo{}, err
	}
	if _, err := a.GetLab(ctx, id); err != nil {
		return model.LabInfo{}, err
	}
	l := in.model()
	l.ID = id
	if err := a.store.Labs.Update(ctx, l); err != nil {
		return model.LabInfo{}, internal(err)
	}
	return a.GetLab(ctx, id)
}

// CreateUser adds a staff account to the creator's lab.
func (a *Admin) CreateUser(ctx context.Context, labID uint64, in CreateUserInput) (model.User, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	if err := in.Validate(); err != nil {
		return model.User{}, err
	}
	role, err := a.store.Users.RoleByName(ctx, a.store.DB, in.Role)
	if err != nil {
		return model.User{}, mapNotFound(err, "role", in.Role)
	}
	hash, err := utils.HashPassword(in.Password, a.bcryptCost)
	if err != nil {
		return model.User{}, internal(err)
	}
	perms := in.Permissions
	if len(perms) == 0 {
		perms = model.DefaultPermissions(in.Role)
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	id, err := a.store.Users.Create(ctx, a.store.DB, model.User{
		UserID:       in.UserID,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(in.FullName),
		Email:        strings.TrimSpace(in.Email),
		PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
		RoleID:       role.ID,
		LabInfoID:    labID,
		Permissions:  perms,
		IsActive:     active,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return model.User{}, apperr.Conflict("user id " + in.UserID + " already exists")
	}
	if err != nil {
		return model.User{}, internal(err)
	}
	a.log.Info().Uint64("uid", id).Str("user_id", in.UserID).Str("role", in.Role).Msg("user created")
	return a.GetUser(ctx, id)
}

func (a *Admin) GetUser(ctx context.Context, id uint64) (model.User, error) {
	u, err := a.store.Users.GetByID(ctx, id)
	if err != nil {
		return model.User{}, mapNotFound(err, "user", id)
	}
	return u, nil
}

func (a *Admin) ListUsers(ctx context.Context, labID uint64) ([]model.User, error) {
	out, err := a.store.Users.ListByLab(ctx, labID)
	if err != nil {
		return nil, internal(err)
	}
	return out, nil
}

// UpdateUserInput is a partial update; nil fields are left unchanged.
type UpdateUserInput struct {
	FullName    *string   `json:"fullName"`
	Email       *string   `json:"email"`
	PhoneNumber *string   `json:"phoneNumber"`
	Role        *string   `json:"role"`
	Permissions *[]string `json:"permissions"`
	IsActive    *bool     `json:"isActive"`
	Password    *string   `json:"password"`
}

func (in UpdateUserInput) Validate() error {
	f := apperr.Fields{}
	if in.FullName != nil {
		f.Check(strings.TrimSpace(*in.FullName) != "", "fullName", "must not be blank")
		f.MaxLen(*in.FullName, 255, "fullName")
	}
	if in.Email != nil {
		f.MaxLen(*in.Email, 255, "email")
	}
	if in.PhoneNumber != nil {
		f.MaxLen(*in.PhoneNumber, 32, "phoneNumber")
	}
	if in.Role != nil {
		f.Check(slices.Contains(roleNames, *in.Role), "role", "must be one of master, cashier, lab_technician")
	}
	if in.Permissions != nil {
		checkPermissions(f, *in.Permissions)
	}
	if in.Password != nil {
		f.Check(len(*in.Password) >= utils.MinPasswordLength, "password", "must be at least 6 characters")
	}
	return f.Err()
}

// UpdateUser applies a partial update. A password reset or deactivation
// revokes the user's refresh tokens. A role change without explicit
// permissions resets them to the new role's defaults.
func (a *Admin) UpdateUser(ctx context.Context, id uint64, in UpdateUserInput) (model.User, error) {
	if err := in.Validate(); err != nil {
		return model.User{}, err
	}
	u, err := a.GetUser(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	if in.FullName != nil {
		u.FullName = strings.TrimSpace(*in.FullName)
	}
	if in.Email != nil {
		u.Email = strings.TrimSpace(*in.Email)
	}
	if in.PhoneNumber != nil {
		u.PhoneNumber = strings.TrimSpace(*in.PhoneNumber)
	}
	if in.Role != nil && *in.Role != u.Role {
		role, err := a.store.Users.RoleByName(ctx, a.store.DB, *in.Role)
		if err != nil {
			return model.User{}, mapNotFound(err, "role", *in.Role)
		}
		u.RoleID, u.Role = role.ID, role.RoleName
		if in.Permissions == nil {
			u.Permissions = model.DefaultPermissions(role.RoleName)
		}
	}
	if in.Permissions != nil {
		u.Permissions = *in.Permissions
	}
	deactivated := false
	if in.IsActive != nil {
		deactivated = u.IsActive && !*in.IsActive
		u.IsActive = *in.IsActive
	}
	if err := a.store.Users.Update(ctx, u); err != nil {
		return model.User{}, internal(err)
	}

	now := a.now().UTC()
	if in.Password != nil {
		hash, err := utils.HashPassword(*in.Password, a.bcryptCost)
		if err != nil {
			return model.User{}, internal(err)
		}
		if err := a.store.Users.UpdatePassword(ctx, id, hash); err != nil {
			return model.User{}, internal(err)
		}
	}
	if in.Password != nil || deactivated {
		if err := a.store.Tokens.RevokeAllForUser(ctx, id, now); err != nil {
			return model.User{}, internal(err)
		}
	}
	a.log.Info().Uint64("uid", id).Msg("user updated")
	return a.GetUser(ctx, id)
}

// DeleteUser hard-deletes a user. Users cannot delete themselves.
func (a *Admin) DeleteUser(ctx context.Context, actorID, id uint64) error {
	if actorID == id {
		return apperr.Forbidden("you cannot delete your own account")
	}
	if err := a.store.Users.Delete(ctx, id); err != nil {
		return mapNotFound(err, "user", id)
	}
	a.log.Info().Uint64("uid", id).Uint64("by", actorID).Msg("user deleted")
	return nil
}

func (a *Admin) Roles(ctx context.Context) ([]model.UserRole, error) {
	out, err := a.store.Users.Roles(ctx)
	if err != nil {
		return nil, internal(err)
	}
	return out, nil
}
