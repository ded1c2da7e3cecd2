package engine

import (
	"errors"
	"fmt"
	"testing"
)

func TestEngineError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *EngineError
		want string
	}{
		{
			name: "operation only",
			err:  NewTransportError("call failed", errors.New("connection refused")).WithOperation("host.get"),
			want: "[transport] call failed (operation=host.get): connection refused",
		},
		{
			name: "resource and operation",
			err: NewApplicationError("remote error", errors.New("Invalid params.")).
				WithResource("webserver1").WithOperation("host.create"),
			want: "[application] remote error (resource=webserver1, operation=host.create): Invalid params.",
		},
		{
			name: "no cause",
			err:  NewValidationError("catalog is empty", nil),
			want: "[validation] catalog is empty",
		},
		{
			name: "operation without cause",
			err:  NewPreconditionError(`host "ghost" not found`, nil).WithOperation("host.get"),
			want: `[precondition] host "ghost" not found (operation=host.get)`,
		},
		{
			name: "resource without cause",
			err:  NewValidationError("duplicate key", nil).WithResource("host/web"),
			want: "[validation] duplicate key (resource=host/web)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPredicates(t *testing.T) {
	transport := NewTransportError("x", nil)
	exhausted := NewTransportError("x", nil).WithCode(ErrCodeRetriesExhausted)
	wrapped := fmt.Errorf("ensure host: %w", NewPreconditionError("host group not found", nil))

	if !IsTransport(transport) || !IsRetryable(transport) {
		t.Error("plain transport error should be retryable")
	}
	if IsRetryable(exhausted) {
		t.Error("exhausted transport error should not be retryable")
	}
	if !IsPrecondition(wrapped) {
		t.Error("IsPrecondition should see through wrapping")
	}
	if IsRetryable(NewApplicationError("x", nil)) {
		t.Error("application errors are never retryable")
	}
	if ClassOf(errors.New("plain")) != "" {
		t.Error("plain errors have no class")
	}
	if ClassOf(wrapped) != ErrorClassPrecondition {
		t.Errorf("ClassOf = %s", ClassOf(wrapped))
	}
}

func TestEngineError_Is(t *testing.T) {
	err := fmt.Errorf("apply: %w", NewTransportError("x", nil).WithCode(ErrCodeRetriesExhausted))
	target := &EngineError{Class: ErrorClassTransport, Code: ErrCodeRetriesExhausted}

	if !errors.Is(err, target) {
		t.Error("errors.Is should match on class and code")
	}
	if errors.Is(err, &EngineError{Class: ErrorClassTransport}) {
		t.Error("errors.Is should not match a different code")
	}
}

func TestEngineError_WithDetail(t *testing.T) {
	err := NewTransportError("x", nil).WithDetail("attempts", 8)
	if err.Details["attempts"] != 8 {
		t.Errorf("Details = %v", err.Details)
	}
}
