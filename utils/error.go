package utils

import (
	"errors"
	"net/http"
)

var ErrorRecordNotFound = errors.New("record not found")

type ErrorKind int

const (
	KindUnexpected ErrorKind = iota
	KindUnauthenticated
	KindUnauthorized
	KindValidation
	KindNotFound
)

// AppError carries a user-facing (localized) message and the kind used to pick the HTTP status.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) StatusCode() int {
	switch e.Kind {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindUnauthorized:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func UnauthenticatedError(message string) error {
	return &AppError{Kind: KindUnauthenticated, Message: message}
}

func UnauthorizedError(message string) error {
	return &AppError{Kind: KindUnauthorized, Message: message}
}

func ValidationError(message string) error {
	return &AppError{Kind: KindValidation, Message: message}
}

func NotFoundError(message string) error {
	return &AppError{Kind: KindNotFound, Message: message, Err: ErrorRecordNotFound}
}

// UnexpectedError hides err behind the generic message; err is kept for server-side logs.
func UnexpectedError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}
	return &AppError{Kind: KindUnexpected, Message: MsgUnexpected, Err: err}
}

// ResolveError maps any error to its HTTP status and the message safe to show to the client.
func ResolveError(err error) (int, string) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Kind == KindUnexpected {
			return http.StatusInternalServerError, MsgUnexpected
		}
		return appErr.StatusCode(), appErr.Message
	}
	if errors.Is(err, ErrorRecordNotFound) {
		return http.StatusNotFound, MsgRecordNotFound
	}
	return http.StatusInternalServerError, MsgUnexpected
}
