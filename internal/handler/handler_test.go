package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/labdesk/internal/apperr"
	"github.com/iliyamo/labdesk/internal/export"
	"github.com/iliyamo/labdesk/internal/middleware"
	"github.com/iliyamo/labdesk/internal/model"
	"github.com/iliyamo/labdesk/internal/service"
)

var cashier = model.User{ID: 7, UserID: "cashier1", Role: model.RoleCashier, LabInfoID: 1, IsActive: true}

// newEcho returns an echo instance that renders errors like the server and
// optionally authenticates every request as u.
func newEcho(u *model.User) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(zerolog.Nop())
	if u != nil {
		e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				middleware.SetUser(c, *u)
				return next(c)
			}
		})
	}
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

type fakeWorkflow struct {
	WorkflowService

	registered service.RegisterPatientInput
	bill       service.CreateBillInput
	paid       *bool
	actor      uint64
	search     string
	limit      int
	offset     int
	submitted  service.SubmitResultsInput
	err        error
}

func (f *fakeWorkflow) RegisterPatient(_ context.Context, in service.RegisterPatientInput, actorID uint64) (service.RegisteredPatient, error) {
	f.registered, f.actor = in, actorID
	return service.RegisteredPatient{Patient: model.Patient{ID: 1, FullName: in.FullName}}, f.err
}

func (f *fakeWorkflow) ListPatients(_ context.Context, search string, limit, offset int) ([]model.PatientSummary, error) {
	f.search, f.limit, f.offset = search, limit, offset
	return []model.PatientSummary{}, f.err
}

func (f *fakeWorkflow) CreateBill(_ context.Context, in service.CreateBillInput, actorID uint64) (model.Bill, error) {
	f.bill, f.actor = in, actorID
	return model.Bill{ID: 3, InvoiceNumber: "INV-20250314-0001", PatientID: in.PatientID}, f.err
}

func (f *fakeWorkflow) UpdateBillPayment(_ context.Context, billID uint64, isPaid bool, actorID uint64) (model.Bill, error) {
	f.paid, f.actor = &isPaid, actorID
	return model.Bill{ID: billID, IsPaid: isPaid}, f.err
}

func (f *fakeWorkflow) SearchBills(_ context.Context, term string) ([]model.BillWithPatient, error) {
	f.search = term
	return []model.BillWithPatient{}, f.err
}

func (f *fakeWorkflow) SubmitTestResults(_ context.Context, in service.SubmitResultsInput, actorID uint64) (service.SubmitSummary, error) {
	f.submitted, f.actor = in, actorID
	return service.SubmitSummary{PatientTestIDs: in.PatientTestIDs, ResultCount: len(in.Results)}, f.err
}

func (f *fakeWorkflow) GetPatientReport(_ context.Context, id uint64) (model.PatientReport, error) {
	if f.err != nil {
		return model.PatientReport{}, f.err
	}
	return model.PatientReport{Patient: model.Patient{ID: id}, Tests: []model.ReportRow{}}, nil
}

func TestRegisterPatient(t *testing.T) {
	f := &fakeWorkflow{}
	e := newEcho(&cashier)
	e.POST("/patients", NewWorkflowHandler(f).RegisterPatient)

	rec := do(e, http.MethodPost, "/patients", `{"fullName":"Asha Rao","age":34,"gender":"female","patientConsent":true,"testIds":[1,2]}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Asha Rao", f.registered.FullName)
	assert.Equal(t, []uint64{1, 2}, f.registered.TestIDs)
	assert.Equal(t, uint64(7), f.actor)
}

func TestRegisterPatientBadBody(t *testing.T) {
	e := newEcho(&cashier)
	e.POST("/patients", NewWorkflowHandler(&fakeWorkflow{}).RegisterPatient)

	rec := do(e, http.MethodPost, "/patients", `{"fullName":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", errorCode(t, rec))
}

func TestHandlersRequireUser(t *testing.T) {
	e := newEcho(nil)
	e.POST("/bills", NewWorkflowHandler(&fakeWorkflow{}).CreateBill)

	rec := do(e, http.MethodPost, "/bills", `{"patientId":1}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "auth_error", errorCode(t, rec))
}

func TestListPatientsQuery(t *testing.T) {
	f := &fakeWorkflow{}
	e := newEcho(&cashier)
	e.GET("/patients", NewWorkflowHandler(f).ListPatients)

	rec := do(e, http.MethodGet, "/patients?search=+rao+&limit=20&offset=40", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rao", f.search)
	assert.Equal(t, 20, f.limit)
	assert.Equal(t, 40, f.offset)

	rec = do(e, http.MethodGet, "/patients?limit=ten", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateBillParsesMoney(t *testing.T) {
	f := &fakeWorkflow{}
	e := newEcho(&cashier)
	e.POST("/bills", NewWorkflowHandler(f).CreateBill)

	rec := do(e, http.MethodPost, "/bills", `{"patientId":5,"discount":"100.00","isPaid":true}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, uint64(5), f.bill.PatientID)
	assert.Equal(t, model.Money(10000), f.bill.Discount)
	assert.True(t, f.bill.IsPaid)
	assert.Contains(t, rec.Body.String(), `"invoiceNumber":"INV-20250314-0001"`)
}

func TestUpdatePayment(t *testing.T) {
	f := &fakeWorkflow{}
	e := newEcho(&cashier)
	e.PATCH("/bills/:id/payment", NewWorkflowHandler(f).UpdatePayment)

	rec := do(e, http.MethodPatch, "/bills/3/payment", `{"isPaid":false}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.paid)
	assert.False(t, *f.paid)

	rec = do(e, http.MethodPatch, "/bills/3/payment", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPatch, "/bills/0/payment", `{"isPaid":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchBillsRequiresTerm(t *testing.T) {
	f := &fakeWorkflow{}
	e := newEcho(&cashier)
	e.GET("/bills/search", NewWorkflowHandler(f).SearchBills)

	rec := do(e, http.MethodGet, "/bills/search?q=+", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodGet, "/bills/search?q=INV-2025", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "INV-2025", f.search)
}

func TestSubmitResultsPaymentRequired(t *testing.T) {
	f := &fakeWorkflow{err: apperr.PaymentRequired("bill for patient 4 is not paid")}
	e := newEcho(&cashier)
	e.POST("/results", NewWorkflowHandler(f).SubmitResults)

	rec := do(e, http.MethodPost, "/results", `{"results":[{"patientTestId":1,"parameterId":2,"value":"13.5"}],"patientTestIds":[1]}`)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "payment_required", errorCode(t, rec))
	assert.Equal(t, []uint64{1}, f.submitted.PatientTestIDs)
	require.Len(t, f.submitted.Results, 1)
	assert.Equal(t, "13.5", f.submitted.Results[0].Value)
}

func TestReportNotFound(t *testing.T) {
	f := &fakeWorkflow{err: apperr.NotFound("patient", 99)}
	e := newEcho(&cashier)
	e.GET("/reports/:id", NewWorkflowHandler(f).Report)

	rec := do(e, http.MethodGet, "/reports/99", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, rec))
}

type fakeAuth struct {
	AuthService
	raw string
}

func (f *fakeAuth) Login(_ context.Context, in service.LoginInput) (service.Session, error) {
	if in.Password != "master123" {
		return service.Session{}, apperr.Auth("invalid user id or password")
	}
	return service.Session{User: model.User{UserID: in.UserID}, AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (f *fakeAuth) Logout(_ context.Context, raw string) error {
	f.raw = raw
	return nil
}

func TestLoginAndLogout(t *testing.T) {
	f := &fakeAuth{}
	h := NewAuthHandler(f)
	e := newEcho(nil)
	e.POST("/login", h.Login)
	e.POST("/logout", h.Logout)

	rec := do(e, http.MethodPost, "/login", `{"userId":"master","password":"master123"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"accessToken":"access"`)

	rec = do(e, http.MethodPost, "/login", `{"userId":"master","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(e, http.MethodPost, "/logout", `{"refreshToken":"abc"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "abc", f.raw)
}

type fakeAdmin struct {
	AdminService
	labErr  error
	labID   uint64
	deleted [2]uint64
	created service.CreateUserInput
}

func (f *fakeAdmin) MainLab(context.Context) (model.LabInfo, error) {
	return model.LabInfo{ID: 1, LabName: "NextGenLab"}, f.labErr
}

func (f *fakeAdmin) CreateUser(_ context.Context, labID uint64, in service.CreateUserInput) (model.User, error) {
	f.labID, f.created = labID, in
	return model.User{ID: 9, UserID: in.UserID}, nil
}

func (f *fakeAdmin) DeleteUser(_ context.Context, actorID, id uint64) error {
	f.deleted = [2]uint64{actorID, id}
	return nil
}

func TestSetupStatus(t *testing.T) {
	f := &fakeAdmin{}
	e := newEcho(nil)
	e.GET("/setup", NewAdminHandler(f).SetupStatus)

	rec := do(e, http.MethodGet, "/setup", "")
	assert.JSONEq(t, `{"configured":true,"labName":"NextGenLab"}`, rec.Body.String())

	f.labErr = apperr.NotFound("lab", "main")
	rec = do(e, http.MethodGet, "/setup", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"configured":false}`, rec.Body.String())
}

func TestUsersUseCallerLab(t *testing.T) {
	f := &fakeAdmin{}
	master := model.User{ID: 1, Role: model.RoleMaster, LabInfoID: 4}
	h := NewAdminHandler(f)
	e := newEcho(&master)
	e.POST("/users", h.CreateUser)
	e.DELETE("/users/:id", h.DeleteUser)

	rec := do(e, http.MethodPost, "/users", `{"userId":"tech1","password":"secret1","fullName":"Tech One","role":"lab_technician"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, uint64(4), f.labID)
	assert.Equal(t, "tech1", f.created.UserID)

	rec = do(e, http.MethodDelete, "/users/9", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, [2]uint64{1, 9}, f.deleted)
}

type fakeCatalog struct {
	CatalogService
	testID uint64
	param  service.ParameterInput
}

func (f *fakeCatalog) CreateParameter(_ context.Context, testID uint64, in service.ParameterInput) (model.TestParameter, error) {
	f.testID, f.param = testID, in
	return model.TestParameter{ID: 11, TestID: testID, ParameterName: in.ParameterName}, nil
}

func TestCreateParameter(t *testing.T) {
	f := &fakeCatalog{}
	e := newEcho(&cashier)
	e.POST("/tests/:id/parameters", NewCatalogHandler(f).CreateParameter)

	rec := do(e, http.MethodPost, "/tests/2/parameters", `{"parameterName":"Hemoglobin","unit":"g/dL","normalRange":"13-17"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, uint64(2), f.testID)
	assert.Equal(t, "g/dL", f.param.Unit)

	rec = do(e, http.MethodPost, "/tests/abc/parameters", `{"parameterName":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeExports struct {
	ExportService
	days int
}

func (f *fakeExports) Patients(context.Context) (export.Result, error) {
	return export.Result{Filename: "patients_2025-03-14_093005.xlsx", Counts: map[string]int{"Patients": 2}}, nil
}

func (f *fakeExports) Download(name string) (export.Download, error) {
	if name != "patients.xlsx" {
		return export.Download{}, apperr.NotFound("export", name)
	}
	return export.Download{Filename: name, MimeType: export.MimeType, Data: "UEs="}, nil
}

func (f *fakeExports) Cleanup(days int) ([]string, error) {
	f.days = days
	if days < 0 {
		return nil, apperr.Validation("days must not be negative")
	}
	return []string{"old.xlsx"}, nil
}

func TestExports(t *testing.T) {
	f := &fakeExports{}
	h := NewExportHandler(f)
	e := newEcho(&cashier)
	e.POST("/exports/patients", h.Patients)
	e.GET("/exports/:name", h.Download)
	e.DELETE("/exports", h.Cleanup)

	rec := do(e, http.MethodPost, "/exports/patients", "")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "patients_2025-03-14_093005.xlsx")

	rec = do(e, http.MethodGet, "/exports/patients.xlsx", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":"UEs="`)

	rec = do(e, http.MethodGet, "/exports/missing.xlsx", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(e, http.MethodDelete, "/exports?days=3", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, f.days)
	assert.JSONEq(t, `{"removed":["old.xlsx"],"count":1}`, rec.Body.String())

	rec = do(e, http.MethodDelete, "/exports?days=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	e := newEcho(nil)
	e.GET("/healthz", NewHealthHandler(fakePinger{}).Health)
	e.GET("/readyz", NewHealthHandler(fakePinger{err: errors.New("down")}).Ready)

	rec := do(e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = do(e, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
