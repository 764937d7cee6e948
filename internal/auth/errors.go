package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies identity-layer failures.
type Kind string

const (
	KindMissingCredential  Kind = "missing_credential"
	KindMalformedToken     Kind = "malformed_token"
	KindSignatureInvalid   Kind = "signature_invalid"
	KindExpired            Kind = "token_expired"
	KindIncompleteIdentity Kind = "incomplete_identity"
	KindDomainIDNotFound   Kind = "domain_id_not_found"
	KindForbidden          Kind = "forbidden"
	KindUnauthenticated    Kind = "unauthenticated"
	KindInternal           Kind = "internal_error"
)

var kindMessages = map[Kind]string{
	KindMissingCredential:  "Missing or invalid Authorization header",
	KindMalformedToken:     "Malformed token",
	KindSignatureInvalid:   "Invalid token signature",
	KindExpired:            "Token expired",
	KindIncompleteIdentity: "Token does not describe a complete identity",
	KindDomainIDNotFound:   "Domain id not found",
	KindForbidden:          "Access denied",
	KindUnauthenticated:    "Authentication required",
	KindInternal:           "Internal authentication error",
}

// Cause categories attached to internal errors for log triage.
const (
	CauseKeyUnavailable = "key_unavailable"
	CauseDecode         = "decode"
	CauseRemote         = "remote"
)

// Error is the tagged failure returned by every component of the identity layer.
type Error struct {
	Kind    Kind
	Message string
	// Cause is only set for KindInternal.
	Cause string
	Err   error
}

func (e *Error) Error() string {
	base := e.Message
	if base == "" {
		base = string(e.Kind)
	}
	if e.Err == nil {
		return base
	}
	return fmt.Sprintf("%s: %v", base, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind so sentinel comparisons work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// HTTPStatus maps the kind to the status surfaced to clients.
// DomainIDNotFound defaults to 409; callers facing a server-side cause use 500.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindMissingCredential, KindMalformedToken, KindSignatureInvalid, KindExpired,
		KindIncompleteIdentity, KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindDomainIDNotFound:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode is the stable machine readable code used in JSON error bodies.
func (e *Error) ErrorCode() string {
	switch e.HTTPStatus() {
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusConflict:
		return "DOMAIN_ID_NOT_FOUND"
	default:
		return "INTERNAL_ERROR"
	}
}

// PublicMessage is the client facing message; it never includes the wrapped error.
func (e *Error) PublicMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return kindMessages[e.Kind]
}

// ErrorDetails exposes the kind, or the cause category for internal errors.
func (e *Error) ErrorDetails() map[string]any {
	if e.Kind == KindInternal {
		return map[string]any{"cause": e.Cause}
	}
	return map[string]any{"kind": string(e.Kind)}
}

// Sentinels usable with errors.Is.
var (
	ErrMissingCredential  = &Error{Kind: KindMissingCredential}
	ErrMalformedToken     = &Error{Kind: KindMalformedToken}
	ErrSignatureInvalid   = &Error{Kind: KindSignatureInvalid}
	ErrExpired            = &Error{Kind: KindExpired}
	ErrIncompleteIdentity = &Error{Kind: KindIncompleteIdentity}
	ErrDomainIDNotFound   = &Error{Kind: KindDomainIDNotFound}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrInternal           = &Error{Kind: KindInternal}

	// ErrContextNotPopulated is returned by context readers outside an authenticated request.
	ErrContextNotPopulated = &Error{Kind: KindUnauthenticated, Message: "security context not populated"}
)

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Message: kindMessages[kind], Err: err}
}

func newInternal(cause string, err error) *Error {
	return &Error{Kind: KindInternal, Message: kindMessages[KindInternal], Cause: cause, Err: err}
}

// NewError builds a tagged error with the default message for kind.
func NewError(kind Kind, err error) error {
	return newError(kind, err)
}

// NewInternalError builds a KindInternal error carrying a log-safe cause category.
func NewInternalError(cause string, err error) error {
	return newInternal(cause, err)
}

// Forbidden builds a KindForbidden error with a specific reason.
func Forbidden(reason string) error {
	if reason == "" {
		reason = kindMessages[KindForbidden]
	}
	return &Error{Kind: KindForbidden, Message: reason}
}

// KindOf extracts the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var authErr *Error
	return errors.As(err, &authErr) && authErr.Kind == kind
}

// AsError returns err as *Error, wrapping foreign errors as internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr
	}
	return newInternal(CauseDecode, err)
}
