package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrCandidateNotFound  = errors.New("candidate not found")
	ErrProductExists      = errors.New("product already exists")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	ErrCacheUnavailable   = errors.New("cache unavailable")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInternal           = errors.New("internal error")
	ErrTimeout            = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// NotFoundError reports candidate identifiers that the catalog does not
// contain. It unwraps to ErrCandidateNotFound.
type NotFoundError struct {
	IDs []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCandidateNotFound.Error(), strings.Join(e.IDs, ", "))
}

func (e *NotFoundError) Unwrap() error {
	return ErrCandidateNotFound
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrCandidateNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrProductExists):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrCatalogUnavailable), errors.Is(err, ErrCacheUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}

}
