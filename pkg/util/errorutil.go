package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return internal(err)
}

func internal(err error) *DomainError {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// StatusError is implemented by errors of other layers that know their own status and code.
type StatusError interface {
	error
	HTTPStatus() int
	ErrorCode() string
	PublicMessage() string
}

// detailer optionally adds details to a StatusError envelope.
type detailer interface {
	ErrorDetails() map[string]any
}

// FromStatusError converts err into the envelope. Server errors keep only a generic message;
// the original stays on Err for logging.
func FromStatusError(err StatusError) *DomainError {
	if err == nil {
		return nil
	}
	de := &DomainError{
		Code:       err.ErrorCode(),
		Message:    err.PublicMessage(),
		HTTPStatus: err.HTTPStatus(),
		Err:        err,
	}
	if d, ok := err.(detailer); ok {
		de.Details = d.ErrorDetails()
	}
	if de.HTTPStatus >= http.StatusInternalServerError {
		de.Message = "internal server error"
	}
	return de
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var statusErr StatusError
	if errors.As(err, &statusErr) {
		return FromStatusError(statusErr)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return &DomainError{
			Code:       "NOT_FOUND",
			Message:    "resource not found",
			HTTPStatus: http.StatusNotFound,
			Err:        err,
		}
	}
	return internal(err)
}

func MapError(err error) error {
	return ToDomainError(err)
}

// Body renders the JSON payload for err. Authentication failures keep the short
// {"error": message} shape clients already parse; everything else carries a title and a message.
func Body(de *DomainError) map[string]any {
	if de.HTTPStatus == http.StatusUnauthorized {
		return map[string]any{"error": de.Message}
	}
	body := map[string]any{
		"error":   http.StatusText(de.HTTPStatus),
		"code":    de.Code,
		"message": de.Message,
	}
	if len(de.Details) > 0 && de.HTTPStatus < http.StatusInternalServerError {
		body["details"] = de.Details
	}
	return body
}

// WriteJSON writes err as a JSON error response and returns the envelope used.
func WriteJSON(w http.ResponseWriter, err error) *DomainError {
	de := ToDomainError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(de.HTTPStatus)
	_ = json.NewEncoder(w).Encode(Body(de))
	return de
}
