// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler provides the JSON admin API handlers.
package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sitewarden/sitewarden/internal/auth"
	"github.com/sitewarden/sitewarden/internal/governance"
)

// Response is the standard API response wrapper. Warning carries the audit
// append failure message when a privileged operation succeeded but could not
// be recorded in the admin action log.
type Response struct {
	Data    any    `json:"data,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
	Warning string `json:"warning,omitempty"`
}

// Meta contains pagination and other metadata.
type Meta struct {
	Total   int64 `json:"total,omitempty"`
	Page    int   `json:"page,omitempty"`
	PerPage int   `json:"per_page,omitempty"`
	Pages   int   `json:"pages,omitempty"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response.
func WriteSuccess(w http.ResponseWriter, data any, meta *Meta) {
	WriteJSON(w, http.StatusOK, Response{Data: data, Meta: meta})
}

// WriteSuccessWarn writes a successful JSON response with an optional warning.
// auditWarn is the second return of privileged operations; nil means no
// warning field is emitted.
func WriteSuccessWarn(w http.ResponseWriter, data any, auditWarn error) {
	resp := Response{Data: data}
	if auditWarn != nil {
		resp.Warning = "operation succeeded but was not recorded in the audit log: " + auditWarn.Error()
	}
	WriteJSON(w, http.StatusOK, resp)
}

// WriteCreated writes a 201 Created JSON response with an optional warning.
func WriteCreated(w http.ResponseWriter, data any, auditWarn error) {
	resp := Response{Data: data}
	if auditWarn != nil {
		resp.Warning = "operation succeeded but was not recorded in the audit log: " + auditWarn.Error()
	}
	WriteJSON(w, http.StatusCreated, resp)
}

// WriteError writes an error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message, Details: details},
	})
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message, details)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message, nil)
}

// WriteUnauthorized writes a 401 Unauthorized response.
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message, nil)
}

// WriteForbidden writes a 403 Forbidden response.
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "forbidden", message, nil)
}

// WriteConflict writes a 409 Conflict response.
func WriteConflict(w http.ResponseWriter, code, message string) {
	WriteError(w, http.StatusConflict, code, message, nil)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message, nil)
}

// WriteValidationError writes a 422 Unprocessable Entity response with field errors.
func WriteValidationError(w http.ResponseWriter, message string, fieldErrors map[string]string) {
	if message == "" {
		message = "Validation failed"
	}
	WriteError(w, http.StatusUnprocessableEntity, "validation_error", message, fieldErrors)
}

// writeDomainError maps domain errors to HTTP responses. notFoundMsg is used
// when the error is sql.ErrNoRows.
func writeDomainError(w http.ResponseWriter, err error, notFoundMsg string) {
	var vErr *governance.ValidationError

	switch {
	case errors.Is(err, governance.ErrForbidden):
		WriteForbidden(w, "You do not hold the required capability for this operation")
	case errors.Is(err, governance.ErrConflict):
		WriteConflict(w, "conflict", "The section changed since you last read it; reload and retry")
	case errors.Is(err, governance.ErrDuplicateEmail):
		WriteConflict(w, "duplicate_email", "This email is already authorized")
	case errors.Is(err, governance.ErrUnknownEmail):
		WriteNotFound(w, "No user with this email")
	case errors.Is(err, governance.ErrNothingToRevert):
		WriteValidationError(w, "This history entry has no prior content to restore", nil)
	case errors.As(err, &vErr):
		WriteBadRequest(w, vErr.Error(), nil)
	case errors.Is(err, auth.ErrNotAuthorized):
		WriteForbidden(w, "This email is not authorized to register")
	case errors.Is(err, auth.ErrEmailTaken):
		WriteConflict(w, "email_taken", "An account with this email already exists")
	case errors.Is(err, auth.ErrInvalidCredentials):
		WriteUnauthorized(w, "Invalid email or password")
	case errors.Is(err, auth.ErrWeakPassword):
		WriteValidationError(w, "Password does not meet the minimum requirements", nil)
	case errors.Is(err, sql.ErrNoRows):
		WriteNotFound(w, notFoundMsg)
	default:
		WriteInternalError(w, "Operation failed")
	}
}
