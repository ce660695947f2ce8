// Package handler adapts HTTP requests to the service layer. Handlers bind
// and parse input, call one service method under a timeout and render the
// result; every failure is returned to echo's error handler.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/labdesk/internal/apperr"
	"github.com/iliyamo/labdesk/internal/middleware"
	"github.com/iliyamo/labdesk/internal/model"
)

// requestTimeout bounds the service call of a single request.
const requestTimeout = 5 * time.Second

// exportTimeout is longer; complete workbooks read every table.
const exportTimeout = 60 * time.Second

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return apperr.Validation("invalid request body")
	}
	return nil
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validationf("%s must be a positive id", name)
	}
	return id, nil
}

// queryInt parses an optional integer query parameter.
func queryInt(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validationf("%s must be an integer", name)
	}
	return n, nil
}

// actor returns the user loaded by the identity middleware.
func actor(c echo.Context) (model.User, error) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return model.User{}, apperr.Auth("authentication required")
	}
	return u, nil
}

func created(c echo.Context, v any) error { return c.JSON(http.StatusCreated, v) }

func okJSON(c echo.Context, v any) error { return c.JSON(http.StatusOK, v) }
