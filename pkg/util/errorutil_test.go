package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type codedError struct {
	status  int
	code    string
	message string
	cause   error
}

func (e *codedError) Error() string         { return e.message + ": " + e.cause.Error() }
func (e *codedError) Unwrap() error         { return e.cause }
func (e *codedError) HTTPStatus() int       { return e.status }
func (e *codedError) ErrorCode() string     { return e.code }
func (e *codedError) PublicMessage() string { return e.message }

type detailedError struct{ codedError }

func (e *detailedError) ErrorDetails() map[string]any { return map[string]any{"kind": e.code} }

func coded(status int, code, message string) error {
	return &codedError{status: status, code: code, message: message, cause: errors.New("underlying")}
}

func TestToDomainError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"domain", NewConflict("taken", nil), http.StatusConflict, "CONFLICT"},
		{"wrapped domain", fmt.Errorf("ctx: %w", NewValidationError("bad", nil)), http.StatusBadRequest, "VALIDATION_FAILED"},
		{"no rows", fmt.Errorf("get: %w", pgx.ErrNoRows), http.StatusNotFound, "NOT_FOUND"},
		{"status error", coded(http.StatusUnauthorized, "UNAUTHORIZED", "Token expired"), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrapped status error", fmt.Errorf("resolve: %w", coded(http.StatusConflict, "DOMAIN_ID_NOT_FOUND", "none")), http.StatusConflict, "DOMAIN_ID_NOT_FOUND"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			de := ToDomainError(tc.err)
			require.NotNil(t, de)
			assert.Equal(t, tc.status, de.HTTPStatus)
			assert.Equal(t, tc.code, de.Code)
		})
	}
	assert.Nil(t, ToDomainError(nil))
}

func TestWriteJSONBodies(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, coded(http.StatusUnauthorized, "UNAUTHORIZED", "Token expired"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body, 1)
	assert.Equal(t, "Token expired", body["error"])

	rec = httptest.NewRecorder()
	de := WriteJSON(rec, &detailedError{codedError{
		status: http.StatusInternalServerError, code: "INTERNAL_ERROR", message: "Internal authentication error",
		cause: errors.New("disk gone"),
	}})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk gone")
	assert.NotContains(t, rec.Body.String(), "details")
	assert.Equal(t, "internal server error", de.Message)
	assert.Equal(t, map[string]any{"kind": "INTERNAL_ERROR"}, de.Details)
	assert.ErrorContains(t, de, "disk gone")

	rec = httptest.NewRecorder()
	WriteJSON(rec, NewNotFound("user", map[string]any{"id": "u-1"}))
	body = map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Not Found", body["error"])
	assert.Equal(t, "user not found", body["message"])
	assert.Equal(t, map[string]any{"id": "u-1"}, body["details"])
}
