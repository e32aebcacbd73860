package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestConstructors(t *testing.T) {
	cause := errors.New("boom")

	testCases := []struct {
		name       string
		err        *AppError
		wantType   ErrorType
		wantStatus int
	}{
		{"validation", NewValidationError("bad", cause), ErrorTypeValidation, http.StatusBadRequest},
		{"network", NewNetworkError("down", cause), ErrorTypeNetwork, http.StatusBadGateway},
		{"processing", NewProcessingError("too small", cause), ErrorTypeProcessing, http.StatusUnprocessableEntity},
		{"unsupported media", NewUnsupportedMediaError("not an image", cause), ErrorTypeUnsupportedMedia, http.StatusUnsupportedMediaType},
		{"timeout", NewTimeoutError("slow", cause), ErrorTypeTimeout, http.StatusGatewayTimeout},
		{"not found", NewNotFoundError("missing", nil), ErrorTypeNotFound, http.StatusNotFound},
		{"internal", NewInternalError("oops", nil), ErrorTypeInternal, http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.Type != tc.wantType {
				t.Errorf("Expected type %s, got %s", tc.wantType, tc.err.Type)
			}
			if tc.err.StatusCode != tc.wantStatus {
				t.Errorf("Expected status %d, got %d", tc.wantStatus, tc.err.StatusCode)
			}
			if !IsType(tc.err, tc.wantType) {
				t.Errorf("Expected IsType(%s) to be true", tc.wantType)
			}
		})
	}
}

func TestUnwrapAndWrapped(t *testing.T) {
	cause := errors.New("root cause")
	appErr := NewProcessingError("failed", cause)
	wrapped := fmt.Errorf("service: %w", appErr)

	if !errors.Is(wrapped, cause) {
		t.Error("Expected wrapped error to unwrap to cause")
	}
	if !IsType(wrapped, ErrorTypeProcessing) {
		t.Error("Expected IsType to see through fmt wrapping")
	}
	if GetStatusCode(wrapped) != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422, got %d", GetStatusCode(wrapped))
	}
	if GetStatusCode(cause) != http.StatusInternalServerError {
		t.Errorf("Expected 500 for plain error, got %d", GetStatusCode(cause))
	}
}

func TestErrorMessage(t *testing.T) {
	if got := NewNotFoundError("missing", nil).Error(); got != "not_found: missing" {
		t.Errorf("Unexpected message %q", got)
	}
	if got := NewNetworkError("down", errors.New("dial")).Error(); got != "network: down (caused by: dial)" {
		t.Errorf("Unexpected message %q", got)
	}

	withDetails := NewValidationError("bad", nil).WithDetails("threshold must be >= 0")
	if withDetails.Details != "threshold must be >= 0" {
		t.Errorf("Expected details to be set, got %q", withDetails.Details)
	}
}
