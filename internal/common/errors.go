package common

import (
	"errors"
	"net/http"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// ErrorMapping translates a sentinel error into an HTTP error response. An empty Message
// echoes the error text.
type ErrorMapping struct {
	Target  error
	Status  int
	Code    string
	Message string
}

// WriteError renders err using the first mapping whose target matches. AppErrors carry
// their own status; anything unmatched becomes a 500 without leaking internals.
func WriteError(w http.ResponseWriter, err error, mappings ...ErrorMapping) {
	if err == nil {
		JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadRequest
		}
		code := appErr.Code
		if code == "" {
			code = "BAD_REQUEST"
		}
		JSONError(w, status, code, appErr.Message, appErr.Details)
		return
	}
	if errors.Is(err, ErrInvalidPayload) {
		JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	for _, m := range mappings {
		if m.Target == nil || !errors.Is(err, m.Target) {
			continue
		}
		msg := m.Message
		if msg == "" {
			msg = err.Error()
		}
		JSONError(w, m.Status, m.Code, msg, nil)
		return
	}
	JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
