package handler

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/labdesk/internal/apperr"
	"github.com/iliyamo/labdesk/internal/model"
	"github.com/iliyamo/labdesk/internal/service"
)

// WorkflowService is the patient pipeline: registration, billing, payment,
// result entry and reporting.
type WorkflowService interface {
	RegisterPatient(ctx context.Context, in service.RegisterPatientInput, actorID uint64) (service.RegisteredPatient, error)
	ListPatients(ctx context.Context, search string, limit, offset int) ([]model.PatientSummary, error)
	PatientTests(ctx context.Context, patientID uint64) ([]model.PatientTest, error)
	CreateBill(ctx context.Context, in service.CreateBillInput, actorID uint64) (model.Bill, error)
	UpdateBillPayment(ctx context.Context, billID uint64, isPaid bool, actorID uint64) (model.Bill, error)
	GetBill(ctx context.Context, billID uint64) (model.BillWithPatient, error)
	SearchBills(ctx context.Context, term string) ([]model.BillWithPatient, error)
	SubmitTestResults(ctx context.Context, in service.SubmitResultsInput, actorID uint64) (service.SubmitSummary, error)
	GetPatientReport(ctx context.Context, patientID uint64) (model.PatientReport, error)
	BillView(ctx context.Context, patientID uint64) (model.BillView, error)
	ReportView(ctx context.Context, patientID uint64) (model.ReportView, error)
}

type WorkflowHandler struct {
	Workflow WorkflowService
}

func NewWorkflowHandler(s WorkflowService) *WorkflowHandler { return &WorkflowHandler{Workflow: s} }

func (h *WorkflowHandler) RegisterPatient(c echo.Context) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	var req service.RegisterPatientInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Workflow.RegisterPatient(ctx, req, u.ID)
	if err != nil {
		return err
	}
	return created(c, out)
}

// ListPatients serves the dashboard. Query: search, limit, offset.
func (h *WorkflowHandler) ListPatients(c echo.Context) error {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return err
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Workflow.ListPatients(ctx, strings.TrimSpace(c.QueryParam("search")), limit, offset)
	if err != nil {
		return err
	}
	return okJSON(c, out)
}

func (h *WorkflowHandler) PatientTests(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Workflow.PatientTests(ctx, id)
	if err != nil {
		return err
	}
	return okJSON(c, out)
}

func (h *WorkflowHandler) CreateBill(c echo.Context) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	var req service.CreateBillInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Workflow.CreateBill(ctx, req, u.ID)
	if err != nil {
		return err
	}
	return created(c, out)
}

type paymentReq struct {
	IsPaid *bool `json:"isPaid"`
}

func (h *WorkflowHandler) UpdatePayment(c echo.Context) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req paymentReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.IsPaid == nil {
		return apperr.Validation("isPaid is required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Workflow.UpdateBillPayment(ctx, id, *req.IsPaid, u.ID)
	if err != nil {
		return err
	}
	return okJSON(c, out)
}

func (h *WorkflowHandler) GetBill(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Workflow.GetBill(ctx, id)
	if err != nil {
		return err
	}
	return okJSON(c, out)
}

// SearchBills requires a non-blank q.
func (h *WorkflowHandler) SearchBills(c echo.Context) error {
	term := strings.TrimSpace(c.QueryParam("q"))
	if term == "" {
		return apperr.Validation("q is required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Workflow.SearchBills(ctx, term)
	if err != nil {
		return err
	}
	return okJSON(c, out)
}

func (h *WorkflowHandler) SubmitResults(c echo.Context) error {
	u, err := actor(c)
	if err != nil {
		return err
	}
	var req service.SubmitResultsInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Workflow.SubmitTestResults(ctx, req, u.ID)
	if err != nil {
		return err
	}
	return okJSON(c, out)
}

func (h *WorkflowHandler) Report(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Workflow.GetPatientReport(ctx, id)
	if err != nil {
		return err
	}
	return okJSON(c, out)
}

func (h *WorkflowHandler) BillView(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Workflow.BillView(ctx, id)
	if err != nil {
		return err
	}
	return okJSON(c, out)
}

func (h *WorkflowHandler) ReportView(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Workflow.ReportView(ctx, id)
	if err != nil {
		return err
	}
	return okJSON(c, out)
}
