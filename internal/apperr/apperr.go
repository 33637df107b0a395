// Package apperr holds the error kinds shared by the store layers and the HTTP edge.
package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("conflict")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
)

// Invalid wraps msg as an ErrInvalidInput so errors.Is keeps working after formatting.
func Invalid(msg string) error {
	return &kindError{kind: ErrInvalidInput, msg: msg}
}

// NotFound reports a missing record of the given kind ("medicine", "category", ...).
func NotFound(what string) error {
	return &kindError{kind: ErrNotFound, msg: what + " not found"}
}

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

func Conflict(msg string) error {
	return &kindError{kind: ErrConflict, msg: msg}
}

func Unauthorized(msg string) error {
	return &kindError{kind: ErrUnauthorized, msg: msg}
}
