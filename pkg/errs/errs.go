package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies failures so transport and callers can react without
// inspecting error strings.
type Code string

const (
	// CodeInvalidAttestation covers signature, hash, or proof mismatches.
	// Always raised before any ledger interaction and never retried.
	CodeInvalidAttestation Code = "invalid_attestation"

	// CodeClearingFailed means the ledger rejected the transfer for a
	// substantive reason. Idempotent "exists" replies are never this code.
	CodeClearingFailed Code = "clearing_failed"

	// CodeHonoringFailed covers external fulfillment failures. These never
	// escalate to ledger mutation.
	CodeHonoringFailed Code = "honoring_failed"

	// CodeMirrorWrite marks best-effort narrative writes that failed. Logged
	// only, never propagated as a clearing failure.
	CodeMirrorWrite Code = "mirror_write_failed"

	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeInternal     Code = "internal"
)

// Error carries a code alongside a human-readable message so handlers can map
// domain failures to consistent HTTP envelopes.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf extracts the code from an error, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf extracts the coded message from an error. Uncoded errors yield a
// generic message so internals never leak to clients.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// ToHTTPStatus maps error codes to HTTP status codes for the transport layer.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidAttestation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeClearingFailed:
		return http.StatusUnprocessableEntity
	case CodeHonoringFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
