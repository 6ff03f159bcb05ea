package errors

import (
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
		{"invalid input", fmt.Errorf("parsing limit: %w", ErrInvalidInput), http.StatusBadRequest},
		{"malformed record", fmt.Errorf("decoding payload: %w", ErrMalformedRecord), http.StatusUnprocessableEntity},
		{"not ready", ErrIndexNotReady, http.StatusServiceUnavailable},
		{"source unavailable", ErrSourceUnavailable, http.StatusServiceUnavailable},
		{"timeout", ErrTimeout, http.StatusGatewayTimeout},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
		{"app error wins", New(ErrIndexNotReady, http.StatusTeapot, "custom"), http.StatusTeapot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrInvalidInput, http.StatusBadRequest, "limit %d out of range", -1)
	if got := err.Error(); got != "invalid input: limit -1 out of range" {
		t.Errorf("Error() = %q", got)
	}
	if err.Unwrap() != ErrInvalidInput {
		t.Error("Unwrap did not return the sentinel")
	}
}
