package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/labdesk/internal/model"
	"github.com/iliyamo/labdesk/internal/service"
)

// AuthService is the session API used by AuthHandler.
type AuthService interface {
	Login(ctx context.Context, in service.LoginInput) (service.Session, error)
	Refresh(ctx context.Context, raw string) (service.Session, error)
	Logout(ctx context.Context, raw string) error
	Me(ctx context.Context, u model.User) (service.Session, error)
}

type AuthHandler struct {
	Auth AuthService
}

func NewAuthHandler(a AuthService) *AuthHandler { return &AuthHandler{Auth: a} }

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req service.LoginInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	s, err := h.Auth.Login(ctx, req)
	if err != nil {
		return err
	}
	return okJSON(c, s)
}

// Refresh rotates the refresh token and returns a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	s, err := h.Auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return err
	}
	return okJSON(c, s)
}

func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Auth.Logout(ctx, req.RefreshToken); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) Me(c echo.Context) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	s, err := h.Auth.Me(ctx, u)
	if err != nil {
		return err
	}
	return okJSON(c, echo.Map{"user": s.User, "lab": s.Lab})
}
