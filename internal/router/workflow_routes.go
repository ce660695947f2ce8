package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/labdesk/internal/middleware"
	"github.com/iliyamo/labdesk/internal/model"
)

// registerWorkflow guards each step of the patient pipeline with the
// permission that step needs.
func registerWorkflow(v1 *echo.Group, d Deps) {
	billing := middleware.RequirePermission(model.PermBilling)

	// ---- Registration ----
	v1.POST("/patients", d.Workflow.RegisterPatient, billing)
	v1.GET("/patients", d.Workflow.ListPatients)
	v1.GET("/patients/:id/tests", d.Workflow.PatientTests, middleware.RequirePermission(model.PermTestEntry))

	// ---- Bills ----
	v1.POST("/bills", d.Workflow.CreateBill, billing)
	v1.GET("/bills/search", d.Workflow.SearchBills, billing)
	v1.GET("/bills/:id", d.Workflow.GetBill, billing)
	v1.PATCH("/bills/:id/payment", d.Workflow.UpdatePayment, middleware.RequirePermission(model.PermPayments))

	// ---- Results ----
	v1.POST("/results", d.Workflow.SubmitResults, middleware.RequirePermission(model.PermTestResults))

	// ---- Reports ----
	v1.GET("/patients/:id/report", d.Workflow.Report)
	v1.GET("/patients/:id/bill-view", d.Workflow.BillView)
	v1.GET("/patients/:id/report-view", d.Workflow.ReportView)
}
