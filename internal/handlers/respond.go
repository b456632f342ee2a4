package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clipstream/backend/internal/apperrors"
	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/logging"
	"github.com/clipstream/backend/internal/repositories"
)

// envelope is the uniform success response body.
type envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// errorEnvelope is the uniform failure response body. Data is always null.
type errorEnvelope struct {
	StatusCode int      `json:"statusCode"`
	Success    bool     `json:"success"`
	Message    string   `json:"message"`
	Errors     []string `json:"errors"`
	Data       any      `json:"data"`
}

func respond(ctx context.Context, w http.ResponseWriter, status int, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	body := envelope{StatusCode: status, Data: data, Message: message, Success: true}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
	}
}

// RespondError classifies err and writes the error envelope. This is the
// only point where errors become HTTP statuses; anything unclassified is
// reported as an internal failure with a generic message.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	appErr := apperrors.As(storeError(err, "resource not found"))
	status := appErr.HTTPStatus()

	logger := logging.FromContext(ctx)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request rejected", "status", status, "message", appErr.Message)
	}

	details := appErr.Details
	if details == nil {
		details = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := errorEnvelope{StatusCode: status, Success: false, Message: appErr.Message, Errors: details, Data: nil}
	if encErr := json.NewEncoder(w).Encode(body); encErr != nil {
		logger.Error("encode error body", "status", status, "error", encErr)
	}
}

// storeError maps the shared repository sentinels onto the taxonomy, using
// notFoundMsg for the missing-entity case.
func storeError(err error, notFoundMsg string) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return apperrors.NotFound(notFoundMsg)
	case errors.Is(err, repositories.ErrConflict):
		return apperrors.Conflict("resource already exists")
	case errors.Is(err, auth.ErrUnauthorized):
		return apperrors.Unauthorized("invalid or expired token")
	default:
		return err
	}
}
