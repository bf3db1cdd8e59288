// Package errors contains the service error type returned by API services
// and mapped to HTTP responses by pkg/app/http.
package errors

import (
	"errors"
	"net/http"
)

// Category classifies a ServiceError
type Category int

const (
	// CategoryGeneralError is an unexpected failure of the service
	CategoryGeneralError Category = iota
	// CategoryDataError is invalid input in the request path, query or body
	CategoryDataError
	// CategoryResourceNotFound is a lookup of something that does not exist
	CategoryResourceNotFound
	// CategoryDependencyFailure is a failing store or ledger node
	CategoryDependencyFailure
	// CategoryUnavailable means the service is starting up or recovering
	CategoryUnavailable
)

func (c Category) String() string {
	switch c {
	case CategoryDataError:
		return "CategoryDataError"
	case CategoryResourceNotFound:
		return "CategoryResourceNotFound"
	case CategoryDependencyFailure:
		return "CategoryDependencyFailure"
	case CategoryUnavailable:
		return "CategoryUnavailable"
	default:
		return "CategoryGeneralError"
	}
}

// ServiceError carries a client-facing message and the underlying error, which is only logged.
type ServiceError struct {
	Category Category
	Message  string
	Err      error
}

func (err ServiceError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	return err.Message
}

func (err ServiceError) Unwrap() error {
	return err.Err
}

// StatusCode returns the HTTP status code for the error category
func (err ServiceError) StatusCode() int {
	switch err.Category {
	case CategoryDataError:
		return http.StatusBadRequest
	case CategoryResourceNotFound:
		return http.StatusNotFound
	case CategoryDependencyFailure:
		return http.StatusBadGateway
	case CategoryUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Is checks that err is a ServiceError of category cat
func Is(err error, cat Category) bool {
	var svcErr *ServiceError
	return errors.As(err, &svcErr) && svcErr.Category == cat
}

// IsInternalError reports whether err should be hidden from clients and logged.
func IsInternalError(err error) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Category == CategoryGeneralError || svcErr.Category == CategoryDependencyFailure
	}
	return true
}

func newError(cat Category, err error, message string) error {
	if err == nil {
		err = errors.New(message)
	}
	return &ServiceError{Category: cat, Message: message, Err: err}
}

// BadRequestError returns a CategoryDataError; message is returned to the client
func BadRequestError(err error, message string) error {
	return newError(CategoryDataError, err, message)
}

// ResourceNotFoundError returns a CategoryResourceNotFound error
func ResourceNotFoundError(err error, message string) error {
	return newError(CategoryResourceNotFound, err, message)
}

// DependencyFailureError wraps a failure of the store or a ledger node
func DependencyFailureError(err error, message string) error {
	return newError(CategoryDependencyFailure, err, message)
}

// UnavailableError is returned while the service cannot serve yet
func UnavailableError(err error, message string) error {
	return newError(CategoryUnavailable, err, message)
}

// GeneralError hides err behind "Internal Server Error"
func GeneralError(err error) error {
	return newError(CategoryGeneralError, err, "Internal Server Error")
}
