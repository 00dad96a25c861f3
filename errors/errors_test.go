package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestNew_RetryableFromCode(t *testing.T) {
	tests := []struct {
		code      ErrorCode
		retryable bool
	}{
		{ErrCodeTimeout, true},
		{ErrCodeConnectionFailed, true},
		{ErrCodeProvisioningFailed, true},
		{ErrCodeForbidden, false},
		{ErrCodeAlreadyExists, false},
		{ErrCodeNotImplemented, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := New(tt.code, "x", http.StatusTeapot)
			if err.Retryable != tt.retryable {
				t.Errorf("expected retryable=%v, got %v", tt.retryable, err.Retryable)
			}
			if err.HTTPStatus != http.StatusTeapot {
				t.Errorf("expected status %d, got %d", http.StatusTeapot, err.HTTPStatus)
			}
		})
	}
}

func TestAppError_ErrorString(t *testing.T) {
	err := PermissionDenied("")
	if err.Error() != "FORBIDDEN: permission denied" {
		t.Errorf("unexpected error string %q", err.Error())
	}
	wrapped := DatabaseError(fmt.Errorf("conn reset"))
	if !strings.Contains(wrapped.Error(), "conn reset") {
		t.Errorf("expected cause in error string, got %q", wrapped.Error())
	}
}

func TestCodeOf_WrappedChain(t *testing.T) {
	base := AlreadyExists("users").WithDetail(DetailBackendCode, "23505")
	err := fmt.Errorf("create profile: %w", base)

	if got := CodeOf(err); got != ErrCodeAlreadyExists {
		t.Fatalf("expected ALREADY_EXISTS, got %q", got)
	}
	if !HasCode(err, ErrCodeForbidden, ErrCodeAlreadyExists) {
		t.Error("expected HasCode to match one of the codes")
	}
	if HasCode(err, ErrCodeForbidden) {
		t.Error("expected HasCode to reject FORBIDDEN")
	}
	if HasCode(fmt.Errorf("plain"), ErrCodeInternal) {
		t.Error("plain errors carry no code")
	}
	appErr, _ := AsAppError(err)
	if appErr.BackendCode() != "23505" {
		t.Errorf("expected backend code 23505, got %q", appErr.BackendCode())
	}
}

func TestAppError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("wrap: %w", FunctionNotFound("ensure_user_profile"))
	if !stderrors.Is(err, &AppError{Code: ErrCodeFunctionNotFound}) {
		t.Error("expected errors.Is to match by code")
	}
	if stderrors.Is(err, &AppError{Code: ErrCodeNotFound}) {
		t.Error("expected errors.Is to reject a different code")
	}
}

func TestFrom(t *testing.T) {
	if From(nil) != nil {
		t.Error("expected nil for nil error")
	}
	plain := fmt.Errorf("boom")
	got := From(plain)
	if got.Code != ErrCodeInternal || got.Cause != plain {
		t.Errorf("expected internal error wrapping cause, got %+v", got)
	}
	orig := Timeout("select")
	if From(fmt.Errorf("x: %w", orig)) != orig {
		t.Error("expected the original AppError to be returned")
	}
}

func TestProvisioningFailed_Response(t *testing.T) {
	err := ProvisioningFailed("u1").WithHint("run ensure_user_profile")
	resp := err.ToResponse()
	if resp.Error.Code != ErrCodeProvisioningFailed {
		t.Errorf("expected PROVISIONING_FAILED, got %s", resp.Error.Code)
	}
	if resp.Error.Hint != "run ensure_user_profile" {
		t.Errorf("expected hint to be carried, got %q", resp.Error.Hint)
	}
	if !resp.Error.Retryable {
		t.Error("provisioning failures should be retryable by the user")
	}
	if resp.Error.Details["user_id"] != "u1" {
		t.Errorf("expected user_id detail, got %v", resp.Error.Details["user_id"])
	}
}

func TestIsTransport(t *testing.T) {
	if !IsTransport(ErrCodeConnectionFailed) || !IsTransport(ErrCodeTimeout) {
		t.Error("expected connection and timeout codes to be transport")
	}
	if IsTransport(ErrCodeForbidden) {
		t.Error("FORBIDDEN is not a transport code")
	}
}

func TestStatus_Default(t *testing.T) {
	if (&AppError{Code: ErrCodeInternal}).Status() != 500 {
		t.Error("expected default status 500")
	}
	if AuthFailed("").Status() != http.StatusUnauthorized {
		t.Error("expected 401 for auth errors")
	}
}
