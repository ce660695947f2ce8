package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/labdesk/internal/export"
)

// ExportService writes and manages spreadsheet exports.
type ExportService interface {
	Patients(ctx context.Context) (export.Result, error)
	Tests(ctx context.Context) (export.Result, error)
	CompleteLab(ctx context.Context) (export.Result, error)
	List() ([]export.FileInfo, error)
	Download(name string) (export.Download, error)
	Delete(name string) error
	Cleanup(days int) ([]string, error)
}

type ExportHandler struct {
	Exports ExportService
}

func NewExportHandler(s ExportService) *ExportHandler { return &ExportHandler{Exports: s} }

func (h *ExportHandler) run(c echo.Context, fn func(context.Context) (export.Result, error)) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), exportTimeout)
	defer cancel()
	out, err := fn(ctx)
	if err != nil {
		return err
	}
	return created(c, out)
}

func (h *ExportHandler) Patients(c echo.Context) error { return h.run(c, h.Exports.Patients) }

func (h *ExportHandler) Tests(c echo.Context) error { return h.run(c, h.Exports.Tests) }

func (h *ExportHandler) CompleteLab(c echo.Context) error { return h.run(c, h.Exports.CompleteLab) }

func (h *ExportHandler) List(c echo.Context) error {
	out, err := h.Exports.List()
	if err != nil {
		return err
	}
	return okJSON(c, out)
}

// Download returns the file base64 encoded in JSON.
func (h *ExportHandler) Download(c echo.Context) error {
	out, err := h.Exports.Download(c.Param("name"))
	if err != nil {
		return err
	}
	return okJSON(c, out)
}

func (h *ExportHandler) Delete(c echo.Context) error {
	if err := h.Exports.Delete(c.Param("name")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Cleanup removes exports older than ?days (default seven).
func (h *ExportHandler) Cleanup(c echo.Context) error {
	days, err := queryInt(c, "days", 0)
	if err != nil {
		return err
	}
	removed, err := h.Exports.Cleanup(days)
	if err != nil {
		return err
	}
	return okJSON(c, echo.Map{"removed": removed, "count": len(removed)})
}
