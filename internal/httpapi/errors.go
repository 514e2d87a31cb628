package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/agentrt/agentd/internal/apperr"
)

// ErrorBody is the JSON shape of every non-2xx response (spec §4.9 "Error
// response body").
type ErrorBody struct {
	Error            string            `json:"error"`
	Detail           string            `json:"detail,omitempty"`
	ValidationErrors []ValidationError `json:"validation_errors,omitempty"`
}

// ValidationError describes one field-level validation failure, in the
// {loc, msg, type} shape spec §4.9 names.
type ValidationError struct {
	Loc  string `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

// writeJSON writes data as a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeError maps err to a status code via its apperr.Kind (spec §4.9
// "HTTP codes: 400 validation/duplicate, 404 not found, 422 body
// validation, 500 otherwise"; a denied error is also reported as 400) and
// writes the ErrorBody.
func writeError(w http.ResponseWriter, err error) {
	status, msg := statusForError(err)
	writeJSON(w, status, ErrorBody{Error: msg})
}

// writeBodyValidationError reports a 422 for a malformed/unparseable
// request body, distinct from apperr.KindValidation's 400 (spec §4.9
// reserves 422 specifically for body validation).
func writeBodyValidationError(w http.ResponseWriter, detail string) {
	writeJSON(w, http.StatusUnprocessableEntity, ErrorBody{
		Error:  "invalid request body",
		Detail: detail,
	})
}

// writeFieldValidationErrors reports a 422 with per-field validation_errors.
func writeFieldValidationErrors(w http.ResponseWriter, errs []ValidationError) {
	writeJSON(w, http.StatusUnprocessableEntity, ErrorBody{
		Error:            "invalid request body",
		ValidationErrors: errs,
	})
}

func statusForError(err error) (int, string) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		switch appErr.Kind {
		case apperr.KindValidation:
			return http.StatusBadRequest, appErr.Message
		case apperr.KindNotFound:
			return http.StatusNotFound, appErr.Message
		case apperr.KindDenied:
			return http.StatusBadRequest, appErr.Message
		default:
			return http.StatusInternalServerError, appErr.Message
		}
	}
	return http.StatusInternalServerError, err.Error()
}
