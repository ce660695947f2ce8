package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/labdesk/internal/apperr"
	"github.com/iliyamo/labdesk/internal/model"
	"github.com/iliyamo/labdesk/internal/service"
)

// AdminService covers installation setup, the lab record and staff users.
type AdminService interface {
	Setup(ctx context.Context, in service.SetupInput) (service.SetupResult, error)
	MainLab(ctx context.Context) (model.LabInfo, error)
	GetLab(ctx context.Context, id uint64) (model.LabInfo, error)
	CreateLab(ctx context.Context, in service.LabInput) (model.LabInfo, error)
	UpdateLab(ctx context.Context, id uint64, in service.LabInput) (model.LabInfo, error)
	CreateUser(ctx context.Context, labID uint64, in service.CreateUserInput) (model.User, error)
	GetUser(ctx context.Context, id uint64) (model.User, error)
	ListUsers(ctx context.Context, labID uint64) ([]model.User, error)
	UpdateUser(ctx context.Context, id uint64, in service.UpdateUserInput) (model.User, error)
	DeleteUser(ctx context.Context, actorID, id uint64) error
	Roles(ctx context.Context) ([]model.UserRole, error)
}

type AdminHandler struct {
	Admin AdminService
}

func NewAdminHandler(a AdminService) *AdminHandler { return &AdminHandler{Admin: a} }

// Setup creates the first lab and its master account. It is public and
// only succeeds on an empty installation.
func (h *AdminHandler) Setup(c echo.Context) error {
	var req service.SetupInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	res, err := h.Admin.Setup(ctx, req)
	if err != nil {
		return err
	}
	return created(c, res)
}

// SetupStatus tells the login screen whether setup has been run.
func (h *AdminHandler) SetupStatus(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	lab, err := h.Admin.MainLab(ctx)
	if apperr.Is(err, apperr.KindNotFound) {
		return okJSON(c, echo.Map{"configured": false})
	}
	if err != nil {
		return err
	}
	return okJSON(c, echo.Map{"configured": true, "labName": lab.LabName})
}

// Lab returns the lab the caller belongs to.
func (h *AdminHandler) Lab(c echo.Context) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	lab, err := h.Admin.GetLab(ctx, u.LabInfoID)
	if err != nil {
		return err
	}
	return okJSON(c, lab)
}

func (h *AdminHandler) MainLab(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	lab, err := h.Admin.MainLab(ctx)
	if err != nil {
		return err
	}
	return okJSON(c, lab)
}

func (h *AdminHandler) GetLab(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	lab, err := h.Admin.GetLab(ctx, id)
	if err != nil {
		return err
	}
	return okJSON(c, lab)
}

func (h *AdminHandler) CreateLab(c echo.Context) error {
	var req service.LabInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	lab, err := h.Admin.CreateLab(ctx, req)
	if err != nil {
		return err
	}
	return created(c, lab)
}

func (h *AdminHandler) UpdateLab(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req service.LabInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	lab, err := h.Admin.UpdateLab(ctx, id, req)
	if err != nil {
		return err
	}
	return okJSON(c, lab)
}

func (h *AdminHandler) ListUsers(c echo.Context) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	users, err := h.Admin.ListUsers(ctx, u.LabInfoID)
	if err != nil {
		return err
	}
	return okJSON(c, users)
}

func (h *AdminHandler) CreateUser(c echo.Context) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	var req service.CreateUserInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Admin.CreateUser(ctx, u.LabInfoID, req)
	if err != nil {
		return err
	}
	return created(c, out)
}

func (h *AdminHandler) GetUser(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Admin.GetUser(ctx, id)
	if err != nil {
		return err
	}
	return okJSON(c, out)
}

func (h *AdminHandler) UpdateUser(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req service.UpdateUserInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Admin.UpdateUser(ctx, id, req)
	if err != nil {
		return err
	}
	return okJSON(c, out)
}

func (h *AdminHandler) DeleteUser(c echo.Context) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Admin.DeleteUser(ctx, u.ID, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) Roles(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	roles, err := h.Admin.Roles(ctx)
	if err != nil {
		return err
	}
	return okJSON(c, roles)
}
