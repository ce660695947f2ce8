package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/labdesk/internal/apperr"
	"github.com/iliyamo/labdesk/internal/model"
	"github.com/iliyamo/labdesk/internal/repository"
	"github.com/iliyamo/labdesk/internal/utils"
)

// Auth issues and rotates sessions. Access tokens only identify the user;
// Identify reloads role, permissions and active flag on every request.
type Auth struct {
	store      *repository.Store
	secret     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	log        zerolog.Logger
	now        func() time.Time
}

func NewAuth(store *repository.Store, secret string, accessTTL, refreshTTL time.Duration, log zerolog.Logger) *Auth {
	return &Auth{store: store, secret: secret, accessTTL: accessTTL, refreshTTL: refreshTTL, log: log, now: time.Now}
}

// LoginInput is the login form.
type LoginInput struct {
	UserID   string `json:"userId"`
	Password string `json:"password"`
}

// Session is returned by login and refresh.
type Session struct {
	User             model.User     `json:"user"`
	Lab              *model.LabInfo `json:"lab"`
	AccessToken      string         `json:"accessToken"`
	AccessExpiresAt  time.Time      `json:"accessExpiresAt"`
	RefreshToken     string         `json:"refreshToken"`
	RefreshExpiresAt time.Time      `json:"refreshExpiresAt"`
}

var errBadCredentials = apperr.Auth("invalid user id or password")

// Login checks the password and opens a session.
func (a *Auth) Login(ctx context.Context, in LoginInput) (Session, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	f := apperr.Fields{}
	f.Check(in.UserID != "", "userId", "is required")
	f.Check(in.Password != "", "password", "is required")
	if err := f.Err(); err != nil {
		return Session{}, err
	}

	u, err := a.store.Users.GetByLoginID(ctx, in.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, errBadCredentials
	}
	if err != nil {
		return Session{}, internal(err)
	}
	if !utils.VerifyPassword(u.PasswordHash, in.Password) {
		a.log.Info().Str("user_id", in.UserID).Msg("login rejected")
		return Session{}, errBadCredentials
	}
	if !u.IsActive {
		return Session{}, apperr.Auth("account is inactive")
	}

	now := a.now().UTC()
	if err := a.store.Users.TouchLastLogin(ctx, u.ID, now); err != nil {
		return Session{}, internal(err)
	}
	u.LastLogin = &now
	a.log.Info().Uint64("uid", u.ID).Str("role", u.Role).Msg("login")
	return a.issue(ctx, u)
}

// Refresh rotates a refresh token: the old one is revoked and a new pair
// issued.
func (a *Auth) Refresh(ctx context.Context, raw string) (Session, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Session{}, apperr.Validation("refreshToken is required")
	}
	now := a.now().UTC()
	hash := utils.HashRefreshRaw(raw)
	uid, err := a.store.Tokens.ValidateRefresh(ctx, hash, now)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, apperr.Auth("invalid or expired refresh token")
	}
	if err != nil {
		return Session{}, internal(err)
	}
	if err := a.store.Tokens.RevokeByHash(ctx, hash, now); err != nil {
		return Session{}, internal(err)
	}
	u, err := a.Identify(ctx, uid)
	if err != nil {
		return Session{}, err
	}
	return a.issue(ctx, u)
}

// Logout revokes a refresh token. Unknown tokens are ignored.
func (a *Auth) Logout(ctx context.Context, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return apperr.Validation("refreshToken is required")
	}
	if err := a.store.Tokens.RevokeByHash(ctx, utils.HashRefreshRaw(raw), a.now().UTC()); err != nil {
		return internal(err)
	}
	return nil
}

// ParseToken verifies an access token and returns its user id.
func (a *Auth) ParseToken(token string) (uint64, error) {
	uid, err := utils.ParseAccessToken(a.secret, token)
	if err != nil {
		return 0, apperr.Auth("invalid or expired token")
	}
	return uid, nil
}

// Identify loads the current state of a user. Deleted and inactive users
// are rejected even while their tokens are still valid.
func (a *Auth) Identify(ctx context.Context, userID uint64) (model.User, error) {
	u, err := a.store.Users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, apperr.Auth("user no longer exists")
	}
	if err != nil {
		return model.User{}, internal(err)
	}
	if !u.IsActive {
		return model.User{}, apperr.Auth("account is inactive")
	}
	return u, nil
}

// Me returns the user with their lab.
func (a *Auth) Me(ctx context.Context, u model.User) (Session, error) {
	lab, err := a.lab(ctx, u.LabInfoID)
	if err != nil {
		return Session{}, err
	}
	return Session{User: u, Lab: lab}, nil
}

func (a *Auth) lab(ctx context.Context, id uint64) (*model.LabInfo, error) {
	lab, err := a.store.Labs.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, internal(err)
	}
	return &lab, nil
}

func (a *Auth) issue(ctx context.Context, u model.User) (Session, error) {
	now := a.now()
	access, err := utils.NewAccessToken(a.secret, u.ID, a.accessTTL, now)
	if err != nil {
		return Session{}, internal(err)
	}
	refresh, err := utils.NewRefreshToken(a.refreshTTL, now)
	if err != nil {
		return Session{}, internal(err)
	}
	if err := a.store.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return Session{}, internal(err)
	}
	lab, err := a.lab(ctx, u.LabInfoID)
	if err != nil {
		return Session{}, err
	}
	if len(u.Permissions) == 0 {
		u.Permissions = model.DefaultPermissions(u.Role)
	}
	return Session{
		User:             u,
		Lab:              lab,
		AccessToken:      access.Token,
		AccessExpiresAt:  access.Exp,
		RefreshToken:     refresh.Raw,
		RefreshExpiresAt: refresh.Exp,
	}, nil
}
