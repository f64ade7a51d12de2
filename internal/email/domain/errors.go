package domain

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrMissingCredentials = errors.New("missing credentials")
	ErrValidation         = errors.New("validation error")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("already exists")
	ErrUnauthorized       = errors.New("unauthorized")
)

// ErrorKind is the coarse class of an error, reported in sync results and
// mapped to HTTP statuses.
type ErrorKind string

const (
	KindNotFound           ErrorKind = "not_found"
	KindMissingCredentials ErrorKind = "missing_credentials"
	KindProvider           ErrorKind = "provider_error"
	KindValidation         ErrorKind = "validation_error"
	KindForbidden          ErrorKind = "forbidden"
	KindConflict           ErrorKind = "conflict"
	KindUnauthorized       ErrorKind = "unauthorized"
	KindInternal           ErrorKind = "internal"
)

// ProviderErrorClass tells retryable provider failures from terminal ones.
type ProviderErrorClass string

const (
	ProviderAuth        ProviderErrorClass = "auth"
	ProviderRateLimited ProviderErrorClass = "rate_limited"
	ProviderNotFound    ProviderErrorClass = "not_found"
	ProviderTransient   ProviderErrorClass = "transient"
	ProviderRejected    ProviderErrorClass = "rejected"
)

// ProviderError is any failure returned by the mail provider.
type ProviderError struct {
	Op        string
	Code      int
	Class     ProviderErrorClass
	Retryable bool
	Err       error
}

func (e *ProviderError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("provider %s: %s (%d): %v", e.Op, e.Class, e.Code, e.Err)
	}
	return fmt.Sprintf("provider %s: %s: %v", e.Op, e.Class, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a provider failure worth retrying.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

func KindOf(err error) ErrorKind {
	var pe *ProviderError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pe):
		return KindProvider
	case errors.Is(err, ErrMissingCredentials):
		return KindMissingCredentials
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	default:
		return KindInternal
	}
}

// HTTPStatus maps err to the status code request handlers answer with.
func HTTPStatus(err error) int {
	var pe *ProviderError
	if errors.As(err, &pe) {
		switch pe.Class {
		case ProviderAuth:
			return http.StatusUnauthorized
		case ProviderNotFound:
			return http.StatusNotFound
		}
	}
	return KindStatus(KindOf(err))
}

// KindStatus maps an error kind to a status code. Provider errors map to 502
// here; HTTPStatus refines them by class when the error itself is at hand.
func KindStatus(kind ErrorKind) int {
	switch kind {
	case "":
		return http.StatusOK
	case KindNotFound:
		return http.StatusNotFound
	case KindMissingCredentials, KindUnauthorized:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
