// Package iamerr defines the stable error taxonomy shared by every kernel
// package (rbum, credential, session, oauth2, resource, gateway, spi).
package iamerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the six error kinds from the propagation policy.
type Kind string

const (
	KindBadRequest   Kind = "BadRequest"
	KindUnauthorized Kind = "Unauthorized"
	KindForbidden    Kind = "Forbidden"
	KindNotFound     Kind = "NotFound"
	KindConflict     Kind = "Conflict"
	KindInternal     Kind = "Internal"
)

// HTTPStatus maps a Kind to its HTTP status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is the typed error surfaced by every service function. Code follows
// the "<http>-<domain>-<op>" scheme, e.g. "401-iam-cert-code-not-exist".
type Error struct {
	Kind    Kind
	Domain  string
	Op      string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code(), e.Message)
	}
	return e.Code()
}

func (e *Error) Unwrap() error { return e.cause }

// Code renders the stable "<http>-<domain>-<op>" string.
func (e *Error) Code() string {
	return fmt.Sprintf("%d-%s-%s", e.Kind.HTTPStatus(), e.Domain, e.Op)
}

// New constructs a typed error.
func New(kind Kind, domain, op, message string) *Error {
	return &Error{Kind: kind, Domain: domain, Op: op, Message: message}
}

// Wrap attaches an underlying cause to a typed error, preserving errors.Is/As chains.
func Wrap(kind Kind, domain, op, message string, cause error) *Error {
	return &Error{Kind: kind, Domain: domain, Op: op, Message: message, cause: cause}
}

// As extracts an *Error from err, if present.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// BadRequest, Unauthorized, Forbidden, NotFound, Conflict, Internal are
// shorthand constructors for the most common call sites.
func BadRequest(domain, op, message string) *Error   { return New(KindBadRequest, domain, op, message) }
func Unauthorized(domain, op, message string) *Error { return New(KindUnauthorized, domain, op, message) }
func Forbidden(domain, op, message string) *Error    { return New(KindForbidden, domain, op, message) }
func NotFound(domain, op, message string) *Error     { return New(KindNotFound, domain, op, message) }
func Conflict(domain, op, message string) *Error     { return New(KindConflict, domain, op, message) }
func Internal(domain, op, message string) *Error     { return New(KindInternal, domain, op, message) }
