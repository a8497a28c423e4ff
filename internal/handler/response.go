package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"waterdash/internal/dataset"
	"waterdash/internal/model"
	"waterdash/pkg/apierror"
)

// Swapped out in tests that pin the clock.
var timeNow = time.Now

func writeSuccess(w http.ResponseWriter, status int, data any, meta *model.Meta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	var locked *model.LockedError
	var notFound *dataset.ErrNotFound
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	} else if errors.As(err, &locked) {
		// Locked identities get a distinct status so clients can back off
		// instead of burning the user's remaining patience.
		status = http.StatusLocked
		body.Code = "ACCOUNT_LOCKED"
		body.Message = "Too many failed logins, try again later"
		w.Header().Set("Retry-After", strconv.Itoa(int(locked.RetryAfter(timeNow()).Seconds())))
	} else if errors.Is(err, model.ErrInvalidCredentials) {
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "Invalid credentials"
	} else if errors.Is(err, model.ErrSessionExpired) {
		status = http.StatusUnauthorized
		body.Code = "SESSION_EXPIRED"
		body.Message = "Session expired, log in again"
	} else if errors.Is(err, model.ErrSessionNotFound) {
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "Invalid session"
	} else if errors.Is(err, model.ErrPermissionDenied) {
		status = http.StatusForbidden
		body.Code = "FORBIDDEN"
		body.Message = "Access denied"
	} else if errors.Is(err, model.ErrUserNotFound) {
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "User not found"
	} else if errors.Is(err, model.ErrUserAlreadyExists) {
		status = http.StatusConflict
		body.Code = "ALREADY_EXISTS"
		body.Message = "User already exists"
	} else if errors.Is(err, model.ErrValidation) {
		// The sentinel covers country-scope and password-policy failures;
		// the wrapped text says which rule was broken.
		status = http.StatusUnprocessableEntity
		body.Code = "VALIDATION_FAILED"
		body.Message = "Validation failed"
		body.Details = err.Error()
	} else if errors.As(err, &notFound) {
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "Dataset not found"
	} else if errors.Is(err, model.ErrInvalidInput) {
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Message = "Invalid input"
	} else {
		// Log unclassified errors so they are visible in container logs.
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}
