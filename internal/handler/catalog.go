package handler

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/labdesk/internal/model"
	"github.com/iliyamo/labdesk/internal/service"
)

// CatalogService owns doctors, tests and test parameters.
type CatalogService interface {
	ListDoctors(ctx context.Context) ([]model.Doctor, error)
	CreateDoctor(ctx context.Context, in service.DoctorInput) (model.Doctor, error)
	ListTests(ctx context.Context) ([]model.Test, error)
	CreateTest(ctx context.Context, in service.TestInput) (model.Test, error)
	TestParameters(ctx context.Context, testID uint64) ([]model.TestParameter, error)
	CreateParameter(ctx context.Context, testID uint64, in service.ParameterInput) (model.TestParameter, error)
}

type CatalogHandler struct {
	Catalog CatalogService
}

func NewCatalogHandler(s CatalogService) *CatalogHandler { return &CatalogHandler{Catalog: s} }

func (h *CatalogHandler) ListDoctors(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Catalog.ListDoctors(ctx)
	if err != nil {
		return err
	}
	return okJSON(c, out)
}

func (h *CatalogHandler) CreateDoctor(c echo.Context) error {
	var req service.DoctorInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Catalog.CreateDoctor(ctx, req)
	if err != nil {
		return err
	}
	return created(c, out)
}

func (h *CatalogHandler) ListTests(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Catalog.ListTests(ctx)
	if err != nil {
		return err
	}
	return okJSON(c, out)
}

func (h *CatalogHandler) CreateTest(c echo.Context) error {
	var req service.TestInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Catalog.CreateTest(ctx, req)
	if err != nil {
		return err
	}
	return created(c, out)
}

func (h *CatalogHandler) Parameters(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Catalog.TestParameters(ctx, id)
	if err != nil {
		return err
	}
	return okJSON(c, out)
}

func (h *CatalogHandler) CreateParameter(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req service.ParameterInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Catalog.CreateParameter(ctx, id, req)
	if err != nil {
		return err
	}
	return created(c, out)
}
