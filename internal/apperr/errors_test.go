package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("create bill: %w", Conflict("bill already exists for this patient"))

	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindConflict))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.False(t, Is(nil, KindInternal))
}

func TestInternalKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal(cause, "create bill failed")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "create bill failed: connection reset", err.Error())
	assert.Equal(t, http.StatusInternalServerError, err.Status())
}

func TestFields(t *testing.T) {
	f := Fields{}
	assert.NoError(t, f.Err())

	f.Check(false, "pincode", "must be 6 digits")
	f.Add("fullName", "is required")
	f.Add("fullName", "second problem is ignored")
	f.Check(true, "age", "never recorded")

	err := f.Err()
	require.Error(t, err)
	var ae *Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, KindValidation, ae.Kind)
	assert.Equal(t, "validation failed: fullName is required; pincode must be 6 digits", ae.Message)
	assert.Equal(t, map[string]string{"fullName": "is required", "pincode": "must be 6 digits"}, ae.Details)
}

func TestFieldsMaxLen(t *testing.T) {
	f := Fields{}
	f.MaxLen("Hämoglobin", 10, "parameterName")
	f.MaxLen("12345678901", 10, "phoneNumber")
	assert.Equal(t, Fields{"phoneNumber": "must be at most 10 characters"}, f)
}

func TestHTTPErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"validation", Validation("discount exceeds total"), http.StatusBadRequest, "validation_error", "discount exceeds total"},
		{"not found", NotFound("patient", 7), http.StatusNotFound, "not_found", "patient 7 not found"},
		{"payment", PaymentRequired("bill is not paid"), http.StatusPaymentRequired, "payment_required", "bill is not paid"},
		{"internal hides cause", Internal(errors.New("dsn leaked"), "boom"), http.StatusInternalServerError, "internal_error", "internal server error"},
		{"plain error", errors.New("raw"), http.StatusInternalServerError, "internal_error", "internal server error"},
		{"echo error", echo.NewHTTPError(http.StatusNotFound, "Not Found"), http.StatusNotFound, "not_found", "Not Found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/v1/anything", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			HTTPErrorHandler(zerolog.New(io.Discard))(tt.err, c)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body struct {
				Error errorBody `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, string(body.Error.Code))
			assert.Equal(t, tt.wantMsg, body.Error.Message)
		})
	}
}
