package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error", New(ErrInvalidInput, http.StatusUnprocessableEntity, "bad"), http.StatusUnprocessableEntity},
		{"wrapped not found", fmt.Errorf("retrieving: %w", ErrCandidateNotFound), http.StatusNotFound},
		{"not found ids", &NotFoundError{IDs: []string{"a"}}, http.StatusNotFound},
		{"invalid", ErrInvalidInput, http.StatusBadRequest},
		{"exists", ErrProductExists, http.StatusConflict},
		{"catalog down", ErrCatalogUnavailable, http.StatusServiceUnavailable},
		{"timeout", ErrTimeout, http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNotFoundError(t *testing.T) {
	err := fmt.Errorf("rerank: %w", &NotFoundError{IDs: []string{"prod_9", "prod_10"}})
	if !errors.Is(err, ErrCandidateNotFound) {
		t.Fatal("NotFoundError should unwrap to ErrCandidateNotFound")
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) || len(nf.IDs) != 2 {
		t.Fatalf("errors.As failed: %v", err)
	}
	if want := "candidate not found: prod_9, prod_10"; nf.Error() != want {
		t.Errorf("Error() = %q, want %q", nf.Error(), want)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrTimeout, http.StatusGatewayTimeout, "after %dms", 50)
	if !errors.Is(err, ErrTimeout) {
		t.Error("AppError should unwrap to its sentinel")
	}
	if err.Error() != "operation timed out: after 50ms" {
		t.Errorf("Error() = %q", err.Error())
	}
}
