package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/labdesk/internal/apperr"
	"github.com/iliyamo/labdesk/internal/model"
)

// Context keys.
const (
	keyUserID = "user_id"
	keyUser   = "user"
)

// TokenParser verifies an access token and returns its subject.
type TokenParser interface {
	ParseToken(token string) (uint64, error)
}

// Identifier loads the current state of a user.
type Identifier interface {
	Identify(ctx context.Context, userID uint64) (model.User, error)
}

// JWTAuth requires a valid Bearer access token and stores its user id
// under "user_id". Claims carry identity only.
func JWTAuth(p TokenParser) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				return apperr.Auth("missing bearer token")
			}
			uid, err := p.ParseToken(strings.TrimSpace(raw))
			if err != nil {
				return err
			}
			c.Set(keyUserID, uid)
			return next(c)
		}
	}
}

// LoadIdentity reloads the authenticated user from the database on every
// request, so role, permission and deactivation changes apply at once.
// It must run after JWTAuth.
func LoadIdentity(id Identifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid := userIDOf(c)
			if uid == 0 {
				return apperr.Auth("missing bearer token")
			}
			u, err := id.Identify(c.Request().Context(), uid)
			if err != nil {
				return err
			}
			c.Set(keyUser, u)
			return next(c)
		}
	}
}

// CurrentUser returns the user loaded by LoadIdentity.
func CurrentUser(c echo.Context) (model.User, bool) {
	u, ok := c.Get(keyUser).(model.User)
	return u, ok
}

// SetUser stores u as the authenticated user. Tests use it to skip the
// token round trip.
func SetUser(c echo.Context, u model.User) {
	c.Set(keyUserID, u.ID)
	c.Set(keyUser, u)
}

func userIDOf(c echo.Context) uint64 {
	uid, _ := c.Get(keyUserID).(uint64)
	return uid
}

// RequireRole admits users whose role is one of roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, ok := CurrentUser(c)
			if !ok {
				return apperr.Auth("authentication required")
			}
			if !allowed[u.Role] {
				return apperr.Forbidden("your role does not allow this action")
			}
			return next(c)
		}
	}
}

// RequirePermission admits users holding perm, directly, through "all",
// or through their role defaults.
func RequirePermission(perm string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, ok := CurrentUser(c)
			if !ok {
				return apperr.Auth("authentication required")
			}
			if !u.HasPermission(perm) {
				return apperr.Forbidden("missing permission " + perm)
			}
			return next(c)
		}
	}
}
