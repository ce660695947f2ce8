package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/labdesk/internal/apperr"
	"github.com/iliyamo/labdesk/internal/handler"
	"github.com/iliyamo/labdesk/internal/model"
	"github.com/iliyamo/labdesk/internal/service"
)

type tokens map[string]uint64

func (t tokens) ParseToken(s string) (uint64, error) {
	if id, ok := t[s]; ok {
		return id, nil
	}
	return 0, apperr.Auth("invalid or expired token")
}

type identities map[uint64]model.User

func (i identities) Identify(_ context.Context, id uint64) (model.User, error) {
	if u, ok := i[id]; ok {
		return u, nil
	}
	return model.User{}, apperr.Auth("user not found or inactive")
}

type pinger struct{}

func (pinger) PingContext(context.Context) error { return nil }

type workflow struct{ handler.WorkflowService }

func (workflow) CreateBill(_ context.Context, in service.CreateBillInput, _ uint64) (model.Bill, error) {
	return model.Bill{ID: 1, PatientID: in.PatientID}, nil
}

func (workflow) GetPatientReport(_ context.Context, id uint64) (model.PatientReport, error) {
	return model.PatientReport{Patient: model.Patient{ID: id}, Tests: []model.ReportRow{}}, nil
}

type admin struct{ handler.AdminService }

func (admin) ListUsers(context.Context, uint64) ([]model.User, error) { return []model.User{}, nil }

func newServer() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(zerolog.Nop())
	Register(e, Deps{
		Health:   handler.NewHealthHandler(pinger{}),
		Auth:     handler.NewAuthHandler(nil),
		Admin:    handler.NewAdminHandler(admin{}),
		Catalog:  handler.NewCatalogHandler(nil),
		Workflow: handler.NewWorkflowHandler(workflow{}),
		Exports:  handler.NewExportHandler(nil),
		Tokens:   tokens{"master-token": 1, "cashier-token": 2, "tech-token": 3},
		Identity: identities{
			1: {ID: 1, Role: model.RoleMaster, IsActive: true},
			2: {ID: 2, Role: model.RoleCashier, IsActive: true},
			3: {ID: 3, Role: model.RoleLabTechnician, IsActive: true},
		},
		Log: zerolog.Nop(),
	})
	return e
}

func call(e *echo.Echo, method, target, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestPublicRoutes(t *testing.T) {
	e := newServer()

	rec := call(e, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = call(e, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGuards(t *testing.T) {
	e := newServer()
	cases := []struct {
		name, method, target, token, body string
		want                              int
	}{
		{"no token", http.MethodGet, "/v1/patients/1/report", "", "", http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/v1/patients/1/report", "nope", "", http.StatusUnauthorized},
		{"report for any role", http.MethodGet, "/v1/patients/1/report", "tech-token", "", http.StatusOK},
		{"cashier bills", http.MethodPost, "/v1/bills", "cashier-token", `{"patientId":1}`, http.StatusCreated},
		{"technician cannot bill", http.MethodPost, "/v1/bills", "tech-token", `{"patientId":1}`, http.StatusForbidden},
		{"cashier cannot list users", http.MethodGet, "/v1/users", "cashier-token", "", http.StatusForbidden},
		{"master lists users", http.MethodGet, "/v1/users", "master-token", "", http.StatusOK},
		{"technician cannot add tests", http.MethodPost, "/v1/tests", "tech-token", `{"name":"CBC"}`, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := call(e, tc.method, tc.target, tc.token, tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}
