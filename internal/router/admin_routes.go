package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/labdesk/internal/middleware"
	"github.com/iliyamo/labdesk/internal/model"
)

// registerAdmin is the master-only surface: lab record, staff and exports.
func registerAdmin(v1 *echo.Group, d Deps) {
	m := middleware.RequireRole(model.RoleMaster)

	// ---- Lab ----
	v1.GET("/labs/main", d.Admin.MainLab, m)
	v1.GET("/labs/:id", d.Admin.GetLab, m)
	v1.POST("/labs", d.Admin.CreateLab, m)
	v1.PUT("/labs/:id", d.Admin.UpdateLab, m)

	// ---- Users ----
	v1.GET("/roles", d.Admin.Roles, m)
	v1.GET("/users", d.Admin.ListUsers, m)
	v1.POST("/users", d.Admin.CreateUser, m)
	v1.GET("/users/:id", d.Admin.GetUser, m)
	v1.PATCH("/users/:id", d.Admin.UpdateUser, m)
	v1.DELETE("/users/:id", d.Admin.DeleteUser, m)

	// ---- Exports ----
	v1.POST("/exports/patients", d.Exports.Patients, m)
	v1.POST("/exports/tests", d.Exports.Tests, m)
	v1.POST("/exports/complete", d.Exports.CompleteLab, m)
	v1.GET("/exports", d.Exports.List, m)
	v1.GET("/exports/:name", d.Exports.Download, m)
	v1.DELETE("/exports/:name", d.Exports.Delete, m)
	v1.POST("/exports/cleanup", d.Exports.Cleanup, m)
}
