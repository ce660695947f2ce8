package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type errorBody struct {
	Code    Kind              `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// HTTPErrorHandler renders every error returned by a handler or middleware
// as {"error": {...}}. Internal errors are logged with their cause and
// replaced by an opaque message.
func HTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := classify(err)
		rid, _ := c.Get("request_id").(string)

		if status >= http.StatusInternalServerError {
			log.Error().Err(err).
				Str("request_id", rid).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		} else {
			log.Debug().Err(err).
				Str("request_id", rid).
				Int("status", status).
				Msg("request rejected")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, echo.Map{"error": body})
		}
		if err != nil {
			log.Error().Err(err).Str("request_id", rid).Msg("write error response")
		}
	}
}

func classify(err error) (int, errorBody) {
	var ae *Error
	if errors.As(err, &ae) {
		msg := ae.Message
		if ae.Kind == KindInternal {
			msg = "internal server error"
		}
		return ae.Status(), errorBody{Code: ae.Kind, Message: msg, Details: ae.Details}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorBody{Code: kindForStatus(he.Code), Message: fmt.Sprint(he.Message)}
	}

	return http.StatusInternalServerError, errorBody{Code: KindInternal, Message: "internal server error"}
}

func kindForStatus(status int) Kind {
	for k, s := range statusByKind {
		if s == status {
			return k
		}
	}
	if status >= http.StatusInternalServerError {
		return KindInternal
	}
	return Kind(http.StatusText(status))
}
