package firebase

import (
	"context"
	"testing"

	"github.com/kbukum/bizbackend/backend"
	"github.com/kbukum/bizbackend/errors"
)

func TestProvider_FailsFast(t *testing.T) {
	p, err := Factory(Config{ProjectID: "demo"})()
	if err != nil {
		t.Fatalf("factory failed: %v", err)
	}
	ctx := context.Background()

	if p.Kind() != backend.KindFirebase {
		t.Errorf("expected kind firebase, got %s", p.Kind())
	}
	if p.Name() != "Firebase (demo)" {
		t.Errorf("expected Firebase (demo), got %s", p.Name())
	}
	if p.IsAvailable(ctx) {
		t.Error("expected adapter to be unavailable")
	}

	err = p.Initialize(ctx)
	if errors.CodeOf(err) != errors.ErrCodeNotImplemented {
		t.Fatalf("expected NOT_IMPLEMENTED from Initialize, got %v", err)
	}
	if appErr, _ := errors.AsAppError(err); appErr.Hint != unavailableReason {
		t.Errorf("expected remediation hint, got %q", appErr.Hint)
	}

	if _, err := p.GetUserProfile(ctx, "u1"); errors.CodeOf(err) != errors.ErrCodeNotImplemented {
		t.Errorf("expected NOT_IMPLEMENTED from GetUserProfile, got %v", err)
	}
	if res := p.Query(ctx, backend.From("users")); res.Error == nil || res.Error.Code != errors.ErrCodeNotImplemented {
		t.Errorf("expected NOT_IMPLEMENTED from Query, got %v", res.Error)
	}
	if err := p.Cleanup(ctx); err != nil {
		t.Errorf("expected Cleanup to succeed, got %v", err)
	}
}
