// Package apperr is the error taxonomy shared by services and handlers.
// Services return *Error values; the HTTP layer maps the Kind to a status
// code in one place.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"unicode/utf8"
)

// Kind classifies an error for the caller.
type Kind string

const (
	KindValidation      Kind = "validation_error"
	KindAuth            Kind = "auth_error"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindPaymentRequired Kind = "payment_required"
	KindInternal        Kind = "internal_error"
)

var statusByKind = map[Kind]int{
	KindValidation:      http.StatusBadRequest,
	KindAuth:            http.StatusUnauthorized,
	KindForbidden:       http.StatusForbidden,
	KindNotFound:        http.StatusNotFound,
	KindConflict:        http.StatusConflict,
	KindPaymentRequired: http.StatusPaymentRequired,
	KindInternal:        http.StatusInternalServerError,
}

// Error is a classified application error. Message is safe to show to
// clients; Err carries the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status is the HTTP status code for the error's kind.
func (e *Error) Status() int {
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func Validation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }

func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Auth(msg string) *Error { return &Error{Kind: KindAuth, Message: msg} }

func Forbidden(msg string) *Error { return &Error{Kind: KindForbidden, Message: msg} }

// NotFound names the missing entity, e.g. NotFound("patient", 42) gives
// "patient 42 not found".
func NotFound(entity string, id any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %v not found", entity, id)}
}

func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

func PaymentRequired(msg string) *Error { return &Error{Kind: KindPaymentRequired, Message: msg} }

// Internal wraps an unexpected failure. The client only ever sees msg.
func Internal(err error, msg string) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf extracts the Kind of err. Unclassified errors are internal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Fields accumulates per-field validation problems.
type Fields map[string]string

// Add records a problem for field, keeping the first one reported.
func (f Fields) Add(field, problem string) {
	if _, ok := f[field]; !ok {
		f[field] = problem
	}
}

// Check records problem when cond is false.
func (f Fields) Check(cond bool, field, problem string) {
	if !cond {
		f.Add(field, problem)
	}
}

// TextLen is the longest value accepted for a utf8mb4 TEXT column.
const TextLen = 65535 / 4

// MaxLen records a problem when s is longer than n characters.
func (f Fields) MaxLen(s string, n int, field string) {
	if utf8.RuneCountInString(s) > n {
		f.Add(field, fmt.Sprintf("must be at most %d characters", n))
	}
}

// Err returns a validation error listing every field, or nil when empty.
func (f Fields) Err() error {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+f[k])
	}
	return &Error{
		Kind:    KindValidation,
		Message: "validation failed: " + strings.Join(parts, "; "),
		Details: map[string]string(f),
	}
}
