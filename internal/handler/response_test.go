package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waterdash/internal/model"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *model.APIError {
	t.Helper()
	var resp model.APIResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	return resp.Error
}

func TestWriteErrorLockoutCarriesRetryAfter(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	timeNow = func() time.Time { return now }
	defer func() { timeNow = time.Now }()

	rec := httptest.NewRecorder()
	writeError(rec, &model.LockedError{Until: now.Add(15 * time.Minute)})

	assert.Equal(t, http.StatusLocked, rec.Code)
	assert.Equal(t, "900", rec.Header().Get("Retry-After"))
	assert.Equal(t, "ACCOUNT_LOCKED", decodeError(t, rec).Code)
}

func TestWriteErrorValidationSurfacesRule(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, fmt.Errorf("password must be at least 8 characters: %w", model.ErrValidation))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_FAILED", body.Code)
	assert.Contains(t, body.Details, "password must be at least 8 characters")
}

func TestWriteErrorSessionExpired(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, model.ErrSessionExpired)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "SESSION_EXPIRED", decodeError(t, rec).Code)
}

func TestWriteErrorDefaultsToInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeError(t, rec).Code)
}
