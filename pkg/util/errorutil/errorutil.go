package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
)

// Error codes surfaced to API clients.
const (
	CodeValidation       = "VALIDATION_FAILED"
	CodeNotFound         = "NOT_FOUND"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeInternal         = "INTERNAL_ERROR"
	CodeExpired          = "QR_EXPIRED"
	CodeAlreadyRedeemed  = "QR_ALREADY_REDEEMED"
	CodeIntegrityFailed  = "QR_INTEGRITY_FAILED"
	CodeDecryptionFailed = "QR_DECRYPTION_FAILED"
	CodeMalformedPayload = "QR_MALFORMED_PAYLOAD"
)

// Sentinels for errors.Is checks. Matching is done on Code only.
var (
	ErrValidation       = &DomainError{Code: CodeValidation}
	ErrNotFound         = &DomainError{Code: CodeNotFound}
	ErrUnauthorized     = &DomainError{Code: CodeUnauthorized}
	ErrInternal         = &DomainError{Code: CodeInternal}
	ErrExpired          = &DomainError{Code: CodeExpired}
	ErrAlreadyRedeemed  = &DomainError{Code: CodeAlreadyRedeemed}
	ErrIntegrityFailed  = &DomainError{Code: CodeIntegrityFailed}
	ErrDecryptionFailed = &DomainError{Code: CodeDecryptionFailed}
	ErrMalformedPayload = &DomainError{Code: CodeMalformedPayload}
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

// Is reports whether target is a DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

// NewExpired reports a QR code used at or after its expiry.
func NewExpired() error {
	return NewDomainError(CodeExpired, "qr code has expired", http.StatusBadRequest, nil)
}

// NewAlreadyRedeemed reports a second redemption of a single-use code.
func NewAlreadyRedeemed() error {
	return NewDomainError(CodeAlreadyRedeemed, "qr code already scanned", http.StatusBadRequest, nil)
}

// NewIntegrityFailed reports a payload whose digest does not match its contents.
func NewIntegrityFailed() error {
	return NewDomainError(CodeIntegrityFailed, "qr code integrity check failed", http.StatusBadRequest, nil)
}

// NewDecryptionFailed reports a payload that could not be opened with the shared secret.
func NewDecryptionFailed(err error) error {
	return &DomainError{
		Code:       CodeDecryptionFailed,
		Message:    "qr code could not be decrypted",
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}

// NewMalformedPayload reports a decrypted payload missing required fields.
func NewMalformedPayload(reason string) error {
	return NewDomainError(CodeMalformedPayload, "qr payload malformed", http.StatusBadRequest,
		map[string]any{"reason": reason})
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
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
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fromFiberError(fiberErr)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// fromFiberError covers errors raised by fiber itself, such as unmatched routes.
func fromFiberError(fe *fiber.Error) *DomainError {
	code := CodeInternal
	switch {
	case fe.Code == http.StatusNotFound:
		code = CodeNotFound
	case fe.Code == http.StatusUnauthorized:
		code = CodeUnauthorized
	case fe.Code == http.StatusForbidden:
		code = CodeForbidden
	case fe.Code < http.StatusInternalServerError:
		code = CodeValidation
	}
	return &DomainError{Code: code, Message: fe.Message, HTTPStatus: fe.Code, Err: fe}
}

func MapError(err error) error {
	return ToDomainError(err)
}
