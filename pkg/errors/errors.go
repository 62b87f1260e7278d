// Package errors carries the API error taxonomy. Every error leaving a
// service is an *Error whose Code decides the HTTP status, whether the
// caller may retry, and whether Details reach the client.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInFlight      Code = "REQUEST_IN_FLIGHT"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

type trait uint8

const (
	retryable trait = 1 << iota
	exposeDetails
)

func describe(status int, public string, traits ...trait) Metadata {
	m := Metadata{HTTPStatus: status, PublicMessage: public}
	for _, t := range traits {
		m.Retryable = m.Retryable || t&retryable != 0
		m.DetailsAllowed = m.DetailsAllowed || t&exposeDetails != 0
	}
	return m
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:    describe(http.StatusBadRequest, "validation failed", exposeDetails),
	CodeUnauthorized:  describe(http.StatusUnauthorized, "authentication required"),
	CodeForbidden:     describe(http.StatusForbidden, "access denied"),
	CodeNotFound:      describe(http.StatusNotFound, "resource not found"),
	CodeConflict:      describe(http.StatusConflict, "conflict detected"),
	CodeStateConflict: describe(http.StatusUnprocessableEntity, "state transition disallowed", exposeDetails),
	CodeIdempotency:   describe(http.StatusConflict, "idempotency key reused", exposeDetails),
	CodeInFlight:      describe(http.StatusConflict, "a previous request is still being processed", retryable),
	CodeRateLimit:     describe(http.StatusTooManyRequests, "rate limit exceeded"),
	CodeInternal:      describe(http.StatusInternalServerError, "internal server error", retryable),
	CodeDependency:    describe(http.StatusServiceUnavailable, "dependency unavailable", retryable, exposeDetails),
}

// MetadataFor falls back to INTERNAL_ERROR for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// CodeFromHTTPStatus is the inverse mapping for clients that only receive a
// status line without an error envelope.
func CodeFromHTTPStatus(status int) Code {
	switch {
	case status == http.StatusConflict:
		return CodeConflict
	case status == http.StatusBadGateway, status == http.StatusGatewayTimeout:
		return CodeDependency
	}
	for code, meta := range metadataByCode {
		if meta.HTTPStatus == status && code != CodeIdempotency && code != CodeInFlight {
			return code
		}
	}
	return CodeInternal
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap keeps err reachable through errors.Is and errors.As.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// Code on a nil *Error is INTERNAL_ERROR.
func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails mutates e and returns it for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause == nil:
		return fmt.Sprintf("%s: %s", e.code, e.message)
	default:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// Retryable reports whether the caller may resend the same request.
func Retryable(err error) bool {
	typed := As(err)
	return typed != nil && MetadataFor(typed.code).Retryable
}
